package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrTagNotFound   = errors.New("tag not found after filtering")
	ErrAmbiguousTag  = errors.New("tag name maps to more than one id")
)
