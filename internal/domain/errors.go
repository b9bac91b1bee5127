package domain

import "errors"

var (
	ErrInvalidIdentity  = errors.New("a valid email or mobile number (10-15 digits) is required")
	ErrStoreUnavailable = errors.New("waitlist store unavailable")
	ErrNotFound         = errors.New("participant not found")
)
