package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mbeoliero/chatsync/pkg/errcode"
)

// Claims represents the claims the gateway token carries
type Claims struct {
	UserId     string `json:"user_id"`
	PlatformId int    `json:"platform_id"`
	jwt.RegisteredClaims
}

// ParseUnverified decodes token claims without verifying the signature. The
// client never holds the signing secret; it only needs the expiry and the
// user identity embedded in the token it received from login.
func ParseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}
	return claims, nil
}

// ExpiresIn returns the duration until the token expires. Returns zero if the
// token carries no expiry or is already expired.
func ExpiresIn(tokenString string, now time.Time) (time.Duration, error) {
	claims, err := ParseUnverified(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, nil
	}
	d := claims.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
