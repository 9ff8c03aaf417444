package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRetrieval         = errors.New("catalog retrieval failed")
	ErrInvalidImage      = errors.New("invalid image")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrSchemaMismatch    = errors.New("catalog schema mismatch")
	ErrModelUnavailable  = errors.New("model unavailable")
)
