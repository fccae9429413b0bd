package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// SagaLog writes coordinator attempt snapshots to the hash saga:{attempt_id}.
type SagaLog struct {
	RDB *redis.Client
}

func (s *SagaLog) Record(ctx context.Context, attemptID string, fields map[string]any) error {
	k := sagaKey(attemptID)
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, fields)
		p.Expire(ctx, k, TTLSaga)
		return nil
	})
	return err
}

func (s *SagaLog) Load(ctx context.Context, attemptID string) (map[string]string, error) {
	return s.RDB.HGetAll(ctx, sagaKey(attemptID)).Result()
}
