package dto

import "errors"

// Error taxonomy shared by the adapter, guardrail and model packages.
// Callers match with errors.Is; details are wrapped with %w.
var (
	// ErrValidation indicates malformed boundary data such as an unknown
	// phase status, a missing phase name, or an unsupported event kind.
	ErrValidation = errors.New("validation failed")
	// ErrConfig indicates missing or malformed configuration.
	ErrConfig = errors.New("invalid configuration")
)
