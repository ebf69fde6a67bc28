package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoomTokenIssuer signs short-lived video consultation tokens. The room
// name is always the patient's CIP, so the video layer never sees a RUT.
type RoomTokenIssuer struct {
	secret   []byte
	appID    string
	audience string
	ttl      time.Duration
}

// NewRoomTokenIssuer builds an issuer from the session-signing secret
// supplied by the hosting environment.
func NewRoomTokenIssuer(secret, appID, audience string, ttl time.Duration) (*RoomTokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("security: room token secret is not configured")
	}
	if audience == "" {
		audience = "jitsi"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RoomTokenIssuer{
		secret:   []byte(secret),
		appID:    appID,
		audience: audience,
		ttl:      ttl,
	}, nil
}

// Issue signs an HS256 token granting displayName access to the room
// named by the CIP.
func (i *RoomTokenIssuer) Issue(displayName, cip string) (string, error) {
	if !ValidateCIP(cip) {
		return "", fmt.Errorf("security: room name must be a valid cip")
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"aud":  i.audience,
		"iss":  i.appID,
		"sub":  "*",
		"room": cip,
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
		"context": map[string]any{
			"user": map[string]any{"name": displayName},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign room token: %w", err)
	}
	return signed, nil
}
