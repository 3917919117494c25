// Package prompts manages named instruction overrides for the reasoning
// phases. Each phase has built-in instructions and an immutable output
// specification; at most one stored override per phase is active and
// replaces the built-in instructions.
package prompts

import "github.com/google/uuid"

// Prompt is a named instruction override for a phase.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Phase        Phase     `json:"phase"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
}

// CreateCommand carries the data needed to create a new prompt override.
type CreateCommand struct {
	Name         string  `json:"name"`
	Phase        Phase   `json:"phase"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// UpdateCommand carries the data needed to update an existing prompt override.
type UpdateCommand struct {
	Name         string  `json:"name"`
	Phase        Phase   `json:"phase"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}
