package services

import "errors"

// User-facing failure kinds. Handlers surface these verbatim; anything else
// coming out of a service is an internal error and must be logged and masked.
var (
	ErrTotpAlreadyEnabled = errors.New("totp is already enabled")
	ErrTotpNotConfigured  = errors.New("totp is not configured")
	ErrInvalidCode        = errors.New("invalid code")
)
