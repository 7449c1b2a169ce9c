package services

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials covers both an unknown email and a wrong
// password. The two are deliberately indistinguishable so login
// failures cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken covers every authentication-gate failure: bad
// signature, unknown user, or a revoked session.
var ErrInvalidToken = errors.New("invalid token")

// ValidationError reports a malformed, missing, or disallowed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
