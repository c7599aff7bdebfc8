package analyses

import "errors"

var (
	ErrNotFound     = errors.New("analysis not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Failure codes recorded on failed analyses.
const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeQueue      = "QUEUE_ERROR"
	ErrorCodeUsage      = "LIMIT_REACHED"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
