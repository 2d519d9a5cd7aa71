package services

import "errors"

var (
	// ErrNotFound is returned for records that do not exist or belong to
	// another user.
	ErrNotFound        = errors.New("services: not found")
	ErrInvalidInput    = errors.New("services: invalid input")
	ErrRendersDisabled = errors.New("services: render cache not configured")
	ErrForbidden       = errors.New("services: forbidden")
)
