package errs

import "errors"

// Sentinel errors for the chat core. Handlers map these to transport
// responses; anything else is treated as an internal failure and never
// leaks its text to clients.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrNotParticipant = errors.New("not a participant")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrTransient      = errors.New("transient failure")
)
