package domain

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInsufficientPoints     = errors.New("insufficient points")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrImmutableEntry         = errors.New("entry is system-generated and cannot be modified")

	// ErrIneligibleRedemption is never returned by the pricing package: requests below the
	// threshold are clamped to zero points instead.
	ErrIneligibleRedemption = errors.New("point redemption not eligible")
)
