package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	l, err := New("orders", "test", "debug")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("orders", "test", "chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
