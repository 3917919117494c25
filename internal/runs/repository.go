package runs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/events"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
	"github.com/cleverhoods/sagecompass-sub001/internal/workflow"
	"github.com/cleverhoods/sagecompass-sub001/pkg/pagination"
	"github.com/cleverhoods/sagecompass-sub001/pkg/query"
	"github.com/cleverhoods/sagecompass-sub001/pkg/repository"
	"github.com/cleverhoods/sagecompass-sub001/pkg/storage"
)

type repo struct {
	db         *sql.DB
	rt         *workflow.Runtime
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a run repository implementing the System interface.
func New(
	db *sql.DB,
	rt *workflow.Runtime,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		rt:         rt,
		storage:    store,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Run], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Input", "ThreadID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &run, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Run, error) {
	input := strings.TrimSpace(cmd.Input)
	if input == "" {
		return nil, fmt.Errorf("%w: input is required", ErrInvalidInput)
	}

	id := uuid.New()
	thread := strings.TrimSpace(cmd.ThreadID)
	if thread == "" {
		thread = id.String()
	}

	q := `
		INSERT INTO runs(id, thread_id, input)
		VALUES ($1, $2, $3)
		RETURNING ` + runColumns

	run, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Run, error) {
		return repository.QueryOne(ctx, tx, q, []any{id, thread, input}, scanRun)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("run created", "id", run.ID, "thread_id", run.ThreadID)
	return &run, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM runs WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("run deleted", "id", id)
	return nil
}

// checkpoint is the persisted projection of run state.
type checkpoint struct {
	decision  *string
	gating    []byte
	ambiguity []byte
	errors    []byte
	phases    []dto.PhaseResult
	events    []dto.TraceEvent
}

func newCheckpoint(s state.State) (checkpoint, error) {
	var cp checkpoint

	g, err := guardrails.Gating(s)
	if err != nil {
		return cp, err
	}
	if g.Decision != "" {
		d := string(g.Decision)
		cp.decision = &d
	}
	if cp.gating, err = json.Marshal(g); err != nil {
		return cp, fmt.Errorf("marshal gating: %w", err)
	}

	if _, ok := s.Get(state.KeyAmbiguity); ok {
		c, err := ambiguity.FromState(s)
		if err != nil {
			return cp, err
		}
		if cp.ambiguity, err = json.Marshal(c); err != nil {
			return cp, fmt.Errorf("marshal ambiguity: %w", err)
		}
	}

	if cp.errors, err = marshalErrors(s); err != nil {
		return cp, err
	}

	p, err := phases.FromState(s)
	if err != nil {
		return cp, err
	}
	if cp.phases, err = p.Results(); err != nil {
		return cp, err
	}

	if cp.events, err = events.Log(s); err != nil {
		return cp, err
	}
	return cp, nil
}

func marshalErrors(s state.State) ([]byte, error) {
	errs, err := workflow.Errors(s)
	if err != nil {
		return nil, err
	}
	if errs == nil {
		errs = []dto.ErrorEntry{}
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("marshal errors: %w", err)
	}
	return data, nil
}

const insertEventQ = `
	INSERT INTO run_events(uid, run_id, kind, owner, phase, message, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (uid) DO NOTHING`

// insertEvents archives evs for run id. Events already archived are
// skipped by uid.
func insertEvents(ctx context.Context, tx *sql.Tx, id uuid.UUID, evs []dto.TraceEvent) error {
	for _, ev := range evs {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		if _, err := tx.ExecContext(
			ctx, insertEventQ,
			ev.ID, id, string(ev.Kind), ev.Owner, ev.Phase, ev.Message, payload, ev.Timestamp,
		); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return nil
}

func (r *repo) Checkpoint(ctx context.Context, id uuid.UUID, s state.State) (*Run, error) {
	cp, err := newCheckpoint(s)
	if err != nil {
		return nil, fmt.Errorf("checkpoint run %s: %w", id, err)
	}

	updateQ := `
		UPDATE runs
		SET decision = $2, gating = $3, ambiguity = $4, errors = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + runColumns

	phaseQ := `
		INSERT INTO run_phases(run_id, phase, status, output, errors, evidence, raw_output)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, phase) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			errors = EXCLUDED.errors,
			evidence = EXCLUDED.evidence,
			raw_output = EXCLUDED.raw_output,
			updated_at = NOW()`

	run, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Run, error) {
		run, err := repository.QueryOne(ctx, tx, updateQ, []any{id, cp.decision, cp.gating, cp.ambiguity, cp.errors}, scanRun)
		if err != nil {
			return Run{}, err
		}

		for _, p := range cp.phases {
			output, err := json.Marshal(p.Output)
			if err != nil {
				return Run{}, fmt.Errorf("marshal %s output: %w", p.PhaseName, err)
			}
			errs, err := json.Marshal(p.Errors)
			if err != nil {
				return Run{}, fmt.Errorf("marshal %s errors: %w", p.PhaseName, err)
			}
			evidence := []byte("[]")
			if len(p.Evidence) > 0 {
				if evidence, err = json.Marshal(p.Evidence); err != nil {
					return Run{}, fmt.Errorf("marshal %s evidence: %w", p.PhaseName, err)
				}
			}
			if _, err := tx.ExecContext(
				ctx, phaseQ,
				id, p.PhaseName, string(p.Status), output, errs, evidence, p.RawOutput,
			); err != nil {
				return Run{}, fmt.Errorf("upsert phase %s: %w", p.PhaseName, err)
			}
		}

		if err := insertEvents(ctx, tx, id, cp.events); err != nil {
			return Run{}, err
		}

		return run, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("run checkpointed",
		"id", id,
		"decision", cp.decision,
		"phases", len(cp.phases),
		"events", len(cp.events),
	)
	return &run, nil
}

func (r *repo) Execute(ctx context.Context, id uuid.UUID, cmd ExecuteCommand) (*Report, error) {
	if r.rt == nil {
		return nil, fmt.Errorf("execute run %s: workflow runtime not configured", id)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	run, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	s, execErr := workflow.Execute(ctx, r.rt, workflow.NewState(run.Input), cmd.Clarifications...)

	// A canceled request still archives whatever the workflow produced.
	if _, err := r.Checkpoint(context.WithoutCancel(ctx), id, s); err != nil {
		return nil, err
	}
	if execErr != nil {
		return nil, fmt.Errorf("execute run %s: %w", id, execErr)
	}

	return r.Report(ctx, id)
}

func (r *repo) InvokeTool(ctx context.Context, id uuid.UUID, name string, args json.RawMessage) (*ToolCall, error) {
	if r.rt == nil {
		return nil, fmt.Errorf("invoke tool for run %s: workflow runtime not configured", id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tool name is required", ErrInvalidInput)
	}
	if len(args) > 0 && !json.Valid(args) {
		return nil, fmt.Errorf("%w: tool arguments must be JSON", ErrInvalidInput)
	}

	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	s, err := workflow.ToolNode(r.rt, name, args)(ctx, state.New(nil))
	if err != nil {
		return nil, fmt.Errorf("invoke tool %s: %w", name, err)
	}

	evs, err := events.Log(s)
	if err != nil {
		return nil, fmt.Errorf("invoke tool %s: %w", name, err)
	}
	if len(evs) == 0 {
		return nil, fmt.Errorf("invoke tool %s: no event recorded", name)
	}
	errs, err := marshalErrors(s)
	if err != nil {
		return nil, fmt.Errorf("invoke tool %s: %w", name, err)
	}

	q := `
		UPDATE runs
		SET errors = errors || $2::jsonb, updated_at = NOW()
		WHERE id = $1`

	// The tool has already run; archive its outcome even if the request is
	// canceled.
	persist := context.WithoutCancel(ctx)
	_, err = repository.WithTx(persist, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(persist, tx, q, id, errs); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, insertEvents(persist, tx, id, evs)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	call := newToolCall(evs[len(evs)-1])
	r.logger.Info("tool invoked", "id", id, "tool", name, "allowed", call.Allowed)
	return &call, nil
}

func (r *repo) Phases(ctx context.Context, id uuid.UUID) ([]Phase, error) {
	q := `
		SELECT phase, status, output, errors, evidence, raw_output, updated_at
		FROM run_phases
		WHERE run_id = $1`

	items, err := repository.QueryMany(ctx, r.db, q, []any{id}, scanPhase)
	if err != nil {
		return nil, fmt.Errorf("query run phases: %w", err)
	}

	order := phases.Known()
	slices.SortStableFunc(items, func(a, b Phase) int {
		return rank(order, a.PhaseName) - rank(order, b.PhaseName)
	})
	return items, nil
}

func rank(order []string, name string) int {
	if i := slices.Index(order, name); i >= 0 {
		return i
	}
	return len(order)
}

func (r *repo) Events(ctx context.Context, id uuid.UUID) ([]dto.TraceEvent, error) {
	q := `
		SELECT uid, kind, owner, phase, message, payload, created_at
		FROM run_events
		WHERE run_id = $1
		ORDER BY seq`

	items, err := repository.QueryMany(ctx, r.db, q, []any{id}, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	return items, nil
}

func (r *repo) Report(ctx context.Context, id uuid.UUID) (*Report, error) {
	run, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &Report{Run: *run}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.Phases, err = r.Phases(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		report.Events, err = r.Events(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c := run.Ambiguity; c != nil && c.Blocks(c.TargetStep) {
		report.PendingQuestions = c.PendingQuestions()
	}

	report.Summary, err = summarize(report.Phases)
	if err != nil {
		return nil, fmt.Errorf("summarize run %s: %w", id, err)
	}
	return report, nil
}

func summarize(items []Phase) ([]phases.Summary, error) {
	results := make([]dto.PhaseResult, len(items))
	for i, p := range items {
		results[i] = p.PhaseResult
	}

	p, err := phases.FromResults(results...)
	if err != nil {
		return nil, err
	}
	summary := slices.Collect(p.Summary())
	if summary == nil {
		summary = []phases.Summary{}
	}
	return summary, nil
}

func (r *repo) Export(ctx context.Context, id uuid.UUID) (*ExportResult, error) {
	report, err := r.Report(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal run report: %w", err)
	}

	key := buildReportKey(id)
	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return nil, fmt.Errorf("upload run report: %w", err)
	}

	r.logger.Info("run exported", "id", id, "key", key, "size", len(data))
	return &ExportResult{Key: key, Size: int64(len(data))}, nil
}

func buildReportKey(id uuid.UUID) string {
	return fmt.Sprintf("runs/%s/report.json", id)
}
