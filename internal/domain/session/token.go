package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryOf decodes the bearer token's payload without verifying its
// signature and returns the absolute expiry instant from the exp claim.
//
// The signature is the server's concern; the client only needs the expiry
// to schedule a refresh. Returns ok=false when the token is malformed or
// carries no exp claim -- callers treat that as "unknown expiry, do not
// schedule", not as a fatal error.
func ExpiryOf(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
