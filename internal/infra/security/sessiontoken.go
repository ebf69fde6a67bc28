package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpiredSessionToken signals that the token was valid but is past
	// its expiry.
	ErrExpiredSessionToken = errors.New("security: session token expired")
	// ErrInvalidSessionToken covers every other parse or signature failure.
	ErrInvalidSessionToken = errors.New("security: invalid session token")
)

// SessionClaims carries the authenticated operator identity inside a
// signed session token.
type SessionClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionTokenManager signs and verifies HS256 operator session tokens.
type SessionTokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenManager builds a manager from the configured signing
// secret. The secret is mandatory: operator sessions cannot fall back to
// an unsigned mode.
func NewSessionTokenManager(secret, issuer string, ttl time.Duration) (*SessionTokenManager, error) {
	if secret == "" {
		return nil, errors.New("security: session token secret is not configured")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionTokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for the given operator.
func (m *SessionTokenManager) Issue(userID, name, role string) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := SessionClaims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("security: sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a session token, returning its claims.
func (m *SessionTokenManager) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSessionToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSessionToken
	}

	return claims, nil
}
