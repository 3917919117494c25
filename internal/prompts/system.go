package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/cleverhoods/sagecompass-sub001/pkg/pagination"
)

// Source resolves the prompt text used by phase nodes.
type Source interface {
	// Instructions returns the active override for phase, or the built-in
	// instructions when none is active.
	Instructions(ctx context.Context, phase Phase) (string, error)
	// Spec returns the output specification for phase.
	Spec(ctx context.Context, phase Phase) (string, error)
}

// System defines the public contract for prompt domain operations.
type System interface {
	Source

	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Prompt], error)

	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)
}
