package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes mirrors the HMAC-SHA256 minimum key size.
const MinKeyBytes = 32

var (
	// ErrInvalid is the only verification failure callers ever see.
	ErrInvalid = errors.New("auth: invalid token")
	ErrWeakKey = fmt.Errorf("auth: signing key must be at least %d bytes", MinKeyBytes)
)

// Claims is the decoded identity carried by a token.
type Claims struct {
	Subject   string    `json:"sub"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type tokenClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Verifier checks signature and expiry against a pre-shared key.
type Verifier struct {
	key    []byte
	clock  clock.Clock
	parser *jwt.Parser
}

func NewVerifier(key []byte, clk clock.Clock) (*Verifier, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrWeakKey
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	v := &Verifier{key: append([]byte(nil), key...), clock: clk}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods(hmacMethods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clk.Now),
	)
	return v, nil
}

// Verify returns the claims of a well-signed, unexpired token with a known
// role. Malformed, badly signed and expired tokens all yield ErrInvalid.
func (v *Verifier) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalid
	}

	var tc tokenClaims
	_, err := v.parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return Claims{}, ErrInvalid
	}

	role, ok := ParseRole(tc.Role)
	if !ok || tc.Subject == "" || tc.UserID == "" || tc.ExpiresAt == nil {
		return Claims{}, ErrInvalid
	}

	c := Claims{
		Subject:   tc.Subject,
		UserID:    tc.UserID,
		Role:      role,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	return c, nil
}

// Issuer mints tokens for authenticated accounts.
type Issuer struct {
	key    []byte
	ttl    time.Duration
	clock  clock.Clock
	method jwt.SigningMethod
}

func NewIssuer(key []byte, ttl time.Duration, clk clock.Clock) (*Issuer, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrWeakKey
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Issuer{
		key:    append([]byte(nil), key...),
		ttl:    ttl,
		clock:  clk,
		method: methodForKey(key),
	}, nil
}

// Issue signs a token for subject (the login identity) and userID.
func (i *Issuer) Issue(subject, userID string, role Role) (string, Claims, error) {
	if subject == "" || userID == "" {
		return "", Claims{}, errors.New("auth: subject and user id are required")
	}
	if !role.Valid() {
		return "", Claims{}, fmt.Errorf("auth: unknown role %q", role)
	}

	now := i.clock.Now().Truncate(time.Second)
	exp := now.Add(i.ttl)
	tc := tokenClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(i.method, tc).SignedString(i.key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, Claims{Subject: subject, UserID: userID, Role: role, IssuedAt: now, ExpiresAt: exp}, nil
}

// methodForKey picks the strongest HMAC variant the key length supports.
func methodForKey(key []byte) jwt.SigningMethod {
	switch {
	case len(key) >= 64:
		return jwt.SigningMethodHS512
	case len(key) >= 48:
		return jwt.SigningMethodHS384
	default:
		return jwt.SigningMethodHS256
	}
}
