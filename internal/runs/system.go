package runs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
	"github.com/cleverhoods/sagecompass-sub001/pkg/pagination"
)

// System defines the public contract for run archive operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Run], error)

	Find(ctx context.Context, id uuid.UUID) (*Run, error)
	Create(ctx context.Context, cmd CreateCommand) (*Run, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Checkpoint persists the gating verdict, phase results, error log and
	// trace events held by s. Phases are upserted; events already archived
	// are skipped by uid.
	Checkpoint(ctx context.Context, id uuid.UUID, s state.State) (*Run, error)

	// Execute runs the workflow against the run's input, applying any
	// clarifications in cmd, and checkpoints the resulting state. A run
	// held for clarification reports its pending questions.
	Execute(ctx context.Context, id uuid.UUID, cmd ExecuteCommand) (*Report, error)

	// InvokeTool runs the named tool under the guardrail allowlist and
	// archives its tool_invoked event, appending any failure to the run
	// error log.
	InvokeTool(ctx context.Context, id uuid.UUID, name string, args json.RawMessage) (*ToolCall, error)

	Phases(ctx context.Context, id uuid.UUID) ([]Phase, error)
	Events(ctx context.Context, id uuid.UUID) ([]dto.TraceEvent, error)
	Report(ctx context.Context, id uuid.UUID) (*Report, error)

	// Export writes the run report to runs/<id>/report.json in blob storage.
	Export(ctx context.Context, id uuid.UUID) (*ExportResult, error)
}
