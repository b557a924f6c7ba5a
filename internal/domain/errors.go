package domain

import "errors"

var (
	// ErrValidation marks requests missing a chat id or text.
	ErrValidation = errors.New("validation failed")
	// ErrNotRecognized is returned when no future date/time can be extracted.
	ErrNotRecognized = errors.New("date/time not recognized")
	// ErrStorageUnavailable wraps failures of the underlying store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDeliveryFailed wraps notification transport failures.
	ErrDeliveryFailed = errors.New("delivery failed")
)
