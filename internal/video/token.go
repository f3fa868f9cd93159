// Package video issues short-lived access tokens for the consultation
// room. The token is an HMAC-signed JWT carrying the participant's
// display identity and the room name; the media layer validates it with
// the shared secret.
package video

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoomClaims is the grant embedded in a room token.
type RoomClaims struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
	jwt.RegisteredClaims
}

// Issuer signs room tokens.
type Issuer struct {
	secret []byte
	room   string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, room string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, room: room, ttl: ttl, now: time.Now}
}

// Token mints a signed grant for one participant.
func (i *Issuer) Token(identity string) (string, error) {
	now := i.now()
	claims := RoomClaims{
		Identity: identity,
		Room:     i.room,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "telemed-portal",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("video: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a room token and returns its claims. Used by tests and
// by the media gateway sidecar.
func (i *Issuer) Parse(tokenString string) (*RoomClaims, error) {
	claims := &RoomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("video: parse token: %w", err)
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}
