// Package auth signs JWT bearer tokens for brokers that authenticate MQTT CONNECT
// requests via the username/password fields (a common pattern for managed brokers such
// as EMQX and HiveMQ Cloud, which accept a signed JWT as the CONNECT password).
package auth

import (
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

// Claims describes the JWT payload to sign for a broker's CONNECT auth.
type Claims struct {
	// Subject is placed in the "sub" claim, usually the same as the MQTT ClientID.
	Subject string
	// Issuer is placed in the "iss" claim.
	Issuer string
	// TTL controls the "exp" claim, relative to now.
	TTL time.Duration
	// Secret is the HMAC signing key.
	Secret []byte
}

// Sign produces a signed JWT (HS256) for the given claims, suitable for use as the
// CONNECT password when UserName is also set.
func Sign(c Claims) (string, error) {
	now := time.Now()
	ttl := c.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": c.Subject,
		"iss": c.Issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(c.Secret)
}
