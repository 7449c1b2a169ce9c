// Package auth issues and verifies the signed bearer tokens that
// identify a logged-in user. Tokens are self-verifying HS256 JWTs whose
// subject is the user id; revocation is handled separately by the
// session registry, so a cryptographically valid token is not by itself
// proof of a live session.
package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for malformed, tampered, or wrongly
// signed tokens. Callers get no further detail.
var ErrInvalidToken = errors.New("invalid token")

// Issue mints a token bound to userID. A zero ttl omits the expiry
// claim; any other ttl sets it relative to now, so a negative ttl
// yields an already-expired token. Issuing is stateless: the same
// identity yields independent, equally valid tokens on every call.
func Issue(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	// The jti claim makes every issued token distinct, so revoking one
	// device's session never touches another's.
	claims := jwt.RegisteredClaims{
		Subject:  strconv.Itoa(userID),
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify checks the token signature against secret and recovers the
// user id from the subject claim.
func Verify(tokenString string, secret []byte) (int, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return 0, ErrInvalidToken
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
