package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Job-plane error kinds. Each is wrapped with fmt.Errorf at the call site so
// callers can still errors.Is against the sentinel while getting the detail.
var (
	// ErrBadRequest indicates a submission failed validation: missing
	// sources, conflicting fields, or an empty machine name.
	ErrBadRequest = errors.New("bad request")

	// ErrSourceNotFound indicates a declared source path does not exist
	// on the local filesystem.
	ErrSourceNotFound = errors.New("source not found")

	// ErrDestinationInvalid indicates the destination folder does not exist.
	ErrDestinationInvalid = errors.New("destination invalid")

	// ErrProbeFailed indicates the media probe could not determine
	// duration or framerate for a source.
	ErrProbeFailed = errors.New("probe failed")

	// ErrClaimLost indicates ClaimNext raced another claimer and its
	// conditional update affected zero rows.
	ErrClaimLost = errors.New("claim lost")

	// ErrRepository indicates a storage engine I/O failure.
	ErrRepository = errors.New("repository error")

	// ErrJobNotFound indicates a requested job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrRequestNotFound indicates a requested correlation id does not exist.
	ErrRequestNotFound = errors.New("request not found")
)
