package domain

import "errors"

// Every engine failure wraps exactly one of these. All of them are
// recoverable; the caller decides how to surface them.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrDeviceUnavailable   = errors.New("device unavailable")
	ErrStateViolation      = errors.New("state violation")
)
