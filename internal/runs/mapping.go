package runs

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/pkg/query"
	"github.com/cleverhoods/sagecompass-sub001/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "runs", "r").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("input", "Input").
	Project("decision", "Decision").
	Project("gating", "Gating").
	Project("ambiguity", "Ambiguity").
	Project("errors", "Errors").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

const runColumns = "id, thread_id, input, decision, gating, ambiguity, errors, created_at, updated_at"

// Filters contains optional filtering criteria for run queries.
// Nil fields are ignored. ThreadID and Decision use exact matching;
// Input uses case-insensitive contains matching.
type Filters struct {
	ThreadID *string `json:"thread_id,omitempty"`
	Decision *string `json:"decision,omitempty"`
	Input    *string `json:"input,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ThreadID", f.ThreadID).
		WhereEquals("Decision", f.Decision).
		WhereContains("Input", f.Input)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if t := values.Get("thread_id"); t != "" {
		f.ThreadID = &t
	}

	if d := values.Get("decision"); d != "" {
		f.Decision = &d
	}

	if in := values.Get("input"); in != "" {
		f.Input = &in
	}

	return f
}

func scanRun(s repository.Scanner) (Run, error) {
	var (
		r      Run
		gating []byte
		amb    []byte
		errs   []byte
	)
	err := s.Scan(
		&r.ID,
		&r.ThreadID,
		&r.Input,
		&r.Decision,
		&gating,
		&amb,
		&errs,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return Run{}, err
	}

	if len(gating) > 0 && string(gating) != "null" {
		var g dto.GatingContext
		if err := json.Unmarshal(gating, &g); err != nil {
			return Run{}, fmt.Errorf("unmarshal gating: %w", err)
		}
		r.Gating = &g
	}

	if len(amb) > 0 && string(amb) != "null" {
		var c ambiguity.Context
		if err := json.Unmarshal(amb, &c); err != nil {
			return Run{}, fmt.Errorf("unmarshal ambiguity: %w", err)
		}
		r.Ambiguity = &c
	}

	r.Errors = []dto.ErrorEntry{}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &r.Errors); err != nil {
			return Run{}, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return r, nil
}

func scanPhase(s repository.Scanner) (Phase, error) {
	var (
		p        Phase
		output   []byte
		errs     []byte
		evidence []byte
	)
	err := s.Scan(
		&p.PhaseName,
		&p.Status,
		&output,
		&errs,
		&evidence,
		&p.RawOutput,
		&p.UpdatedAt,
	)
	if err != nil {
		return Phase{}, err
	}

	if len(output) > 0 && string(output) != "null" {
		if err := json.Unmarshal(output, &p.Output); err != nil {
			return Phase{}, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	if len(errs) > 0 && string(errs) != "null" {
		if err := json.Unmarshal(errs, &p.Errors); err != nil {
			return Phase{}, fmt.Errorf("unmarshal phase errors: %w", err)
		}
	}
	if len(evidence) > 0 && string(evidence) != "null" {
		if err := json.Unmarshal(evidence, &p.Evidence); err != nil {
			return Phase{}, fmt.Errorf("unmarshal phase evidence: %w", err)
		}
	}
	return p, nil
}

func scanEvent(s repository.Scanner) (dto.TraceEvent, error) {
	var (
		ev      dto.TraceEvent
		payload []byte
	)
	err := s.Scan(
		&ev.ID,
		&ev.Kind,
		&ev.Owner,
		&ev.Phase,
		&ev.Message,
		&payload,
		&ev.Timestamp,
	)
	if err != nil {
		return dto.TraceEvent{}, err
	}

	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return dto.TraceEvent{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return ev, nil
}
