package services

import (
	"errors"
	"fmt"
)

// Session and identity failure kinds. Handlers dispatch on these with
// errors.Is; none are retried here — retry policy belongs to the caller.
var (
	ErrDuplicateAccount      = errors.New("username or email already taken")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailNotConfirmed     = errors.New("email not confirmed")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")
	ErrReuseDetected         = errors.New("refresh token reuse detected")
	ErrInvalidToken          = errors.New("invalid confirmation token")
	ErrAccountNotFound       = errors.New("account not found")

	// ErrStorageUnavailable wraps transient storage failures. Safe to
	// retry for Login/Refresh (rotation is atomic, no partial state), not
	// for Register without an existence check first.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
