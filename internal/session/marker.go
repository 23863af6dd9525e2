package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidMarker 标记签名不对、已过期或者格式错误
var ErrInvalidMarker = errors.New("invalid session marker")

// MarkerCodec 把用户名标记签名成 HS256 token 保存，防止手工篡改
type MarkerCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewMarkerCodec(secret string, ttl time.Duration) (*MarkerCodec, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &MarkerCodec{secret: []byte(secret), ttl: ttl}, nil
}

// Encode creates a signed marker for a username.
func (c *MarkerCodec) Encode(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
	}
	if c.ttl > 0 {
		claims["exp"] = now.Add(c.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode validates the marker and extracts the username.
func (c *MarkerCodec) Decode(marker string) (string, error) {
	token, err := jwt.Parse(marker, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMarker, err)
	}

	username, err := token.Claims.GetSubject()
	if err != nil || username == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidMarker, jwt.ErrTokenMalformed)
	}
	return username, nil
}
