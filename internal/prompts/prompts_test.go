package prompts_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/cleverhoods/sagecompass-sub001/internal/prompts"
	"github.com/cleverhoods/sagecompass-sub001/pkg/query"
)

func ptr[T any](v T) *T { return &v }

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", prompts.ErrNotFound, http.StatusNotFound},
		{"duplicate", prompts.ErrDuplicate, http.StatusConflict},
		{"invalid phase", prompts.ErrInvalidPhase, http.StatusBadRequest},
		{"unknown error", errors.New("something else"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("find failed: %w", prompts.ErrNotFound), http.StatusNotFound},
		{"wrapped duplicate", fmt.Errorf("insert failed: %w", prompts.ErrDuplicate), http.StatusConflict},
		{"wrapped invalid phase", fmt.Errorf("decode failed: %w", prompts.ErrInvalidPhase), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prompts.MapHTTPStatus(tt.err)
			if got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestPhases(t *testing.T) {
	phases := prompts.Phases()

	if len(phases) != 4 {
		t.Fatalf("len(Phases()) = %d, want 4", len(phases))
	}

	want := []prompts.Phase{
		prompts.PhaseProblemFraming,
		prompts.PhaseGoalsKPIs,
		prompts.PhaseFeasibility,
		prompts.PhaseDecisionSynthesis,
	}
	for i, s := range phases {
		if s != want[i] {
			t.Errorf("Phases()[%d] = %q, want %q", i, s, want[i])
		}
	}
}

func TestPhaseUnmarshalJSON(t *testing.T) {
	t.Run("valid phases", func(t *testing.T) {
		tests := []struct {
			input string
			want  prompts.Phase
		}{
			{`"problem_framing"`, prompts.PhaseProblemFraming},
			{`"feasibility"`, prompts.PhaseFeasibility},
		}

		for _, tt := range tests {
			t.Run(string(tt.want), func(t *testing.T) {
				var s prompts.Phase
				if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
					t.Fatalf("Unmarshal(%s) error: %v", tt.input, err)
				}
				if s != tt.want {
					t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, s, tt.want)
				}
			})
		}
	})

	t.Run("non-phase node is invalid", func(t *testing.T) {
		var s prompts.Phase
		err := json.Unmarshal([]byte(`"gating_guardrails"`), &s)
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("Unmarshal(gating_guardrails) error = %v, want ErrInvalidPhase", err)
		}
	})

	t.Run("invalid phase returns error", func(t *testing.T) {
		var s prompts.Phase
		err := json.Unmarshal([]byte(`"banana"`), &s)
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("Unmarshal(banana) error = %v, want ErrInvalidPhase", err)
		}
	})

	t.Run("empty string returns error", func(t *testing.T) {
		var s prompts.Phase
		err := json.Unmarshal([]byte(`""`), &s)
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("Unmarshal('') error = %v, want ErrInvalidPhase", err)
		}
	})

	t.Run("non-string returns error", func(t *testing.T) {
		var s prompts.Phase
		err := json.Unmarshal([]byte(`42`), &s)
		if err == nil {
			t.Error("Unmarshal(42) should return error")
		}
	})

	t.Run("struct with phase field", func(t *testing.T) {
		type payload struct {
			Phase prompts.Phase `json:"phase"`
		}

		var p payload
		if err := json.Unmarshal([]byte(`{"phase":"problem_framing"}`), &p); err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if p.Phase != prompts.PhaseProblemFraming {
			t.Errorf("Phase = %q, want problem_framing", p.Phase)
		}
	})

	t.Run("struct with invalid phase field", func(t *testing.T) {
		type payload struct {
			Phase prompts.Phase `json:"phase"`
		}

		var p payload
		err := json.Unmarshal([]byte(`{"phase":"invalid"}`), &p)
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("Unmarshal error = %v, want ErrInvalidPhase", err)
		}
	})
}

func TestParsePhase(t *testing.T) {
	t.Run("valid phases", func(t *testing.T) {
		tests := []struct {
			input string
			want  prompts.Phase
		}{
			{"problem_framing", prompts.PhaseProblemFraming},
			{"feasibility", prompts.PhaseFeasibility},
		}

		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				got, err := prompts.ParsePhase(tt.input)
				if err != nil {
					t.Fatalf("ParsePhase(%q) error: %v", tt.input, err)
				}
				if got != tt.want {
					t.Errorf("ParsePhase(%q) = %q, want %q", tt.input, got, tt.want)
				}
			})
		}
	})

	t.Run("non-phase node is invalid", func(t *testing.T) {
		_, err := prompts.ParsePhase("gating_guardrails")
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("ParsePhase(gating_guardrails) error = %v, want ErrInvalidPhase", err)
		}
	})

	t.Run("unknown phase returns error", func(t *testing.T) {
		_, err := prompts.ParsePhase("banana")
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("ParsePhase(banana) error = %v, want ErrInvalidPhase", err)
		}
	})

	t.Run("empty string returns error", func(t *testing.T) {
		_, err := prompts.ParsePhase("")
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("ParsePhase('') error = %v, want ErrInvalidPhase", err)
		}
	})
}

func TestInstructions(t *testing.T) {
	t.Run("returns content for valid phases", func(t *testing.T) {
		for _, phase := range prompts.Phases() {
			t.Run(string(phase), func(t *testing.T) {
				text, err := prompts.Instructions(phase)
				if err != nil {
					t.Fatalf("Instructions(%q) error: %v", phase, err)
				}
				if text == "" {
					t.Errorf("Instructions(%q) returned empty string", phase)
				}
			})
		}
	})

	t.Run("invalid phase returns error", func(t *testing.T) {
		_, err := prompts.Instructions("banana")
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("Instructions(banana) error = %v, want ErrInvalidPhase", err)
		}
	})
}

func TestSpec(t *testing.T) {
	t.Run("returns content for valid phases", func(t *testing.T) {
		for _, phase := range prompts.Phases() {
			t.Run(string(phase), func(t *testing.T) {
				text, err := prompts.Spec(phase)
				if err != nil {
					t.Fatalf("Spec(%q) error: %v", phase, err)
				}
				if text == "" {
					t.Errorf("Spec(%q) returned empty string", phase)
				}
			})
		}
	})

	t.Run("invalid phase returns error", func(t *testing.T) {
		_, err := prompts.Spec("banana")
		if !errors.Is(err, prompts.ErrInvalidPhase) {
			t.Errorf("Spec(banana) error = %v, want ErrInvalidPhase", err)
		}
	})
}

func TestFiltersFromQuery(t *testing.T) {
	t.Run("all params present", func(t *testing.T) {
		values := url.Values{
			"phase":  {"problem_framing"},
			"name":   {"detailed"},
			"active": {"true"},
		}

		f := prompts.FiltersFromQuery(values)

		if f.Phase == nil || *f.Phase != prompts.PhaseProblemFraming {
			t.Errorf("Phase = %v, want problem_framing", f.Phase)
		}
		if f.Name == nil || *f.Name != "detailed" {
			t.Errorf("Name = %v, want detailed", f.Name)
		}
		if f.Active == nil || *f.Active != true {
			t.Errorf("Active = %v, want true", f.Active)
		}
	})

	t.Run("empty params yield nil fields", func(t *testing.T) {
		f := prompts.FiltersFromQuery(url.Values{})

		if f.Phase != nil {
			t.Errorf("Phase = %v, want nil", f.Phase)
		}
		if f.Name != nil {
			t.Errorf("Name = %v, want nil", f.Name)
		}
		if f.Active != nil {
			t.Errorf("Active = %v, want nil", f.Active)
		}
	})

	t.Run("invalid active ignored", func(t *testing.T) {
		values := url.Values{"active": {"not-a-bool"}}
		f := prompts.FiltersFromQuery(values)

		if f.Active != nil {
			t.Errorf("Active = %v, want nil for invalid input", f.Active)
		}
	})

	t.Run("active false", func(t *testing.T) {
		values := url.Values{"active": {"false"}}
		f := prompts.FiltersFromQuery(values)

		if f.Active == nil || *f.Active != false {
			t.Errorf("Active = %v, want false", f.Active)
		}
	})

	t.Run("partial params", func(t *testing.T) {
		values := url.Values{
			"phase": {"feasibility"},
			"name":  {"verbose"},
		}

		f := prompts.FiltersFromQuery(values)

		if f.Phase == nil || *f.Phase != prompts.PhaseFeasibility {
			t.Errorf("Phase = %v, want feasibility", f.Phase)
		}
		if f.Name == nil || *f.Name != "verbose" {
			t.Errorf("Name = %v, want verbose", f.Name)
		}
		if f.Active != nil {
			t.Errorf("Active = %v, want nil", f.Active)
		}
	})
}

func TestFiltersApply(t *testing.T) {
	projection := query.
		NewProjectionMap("public", "prompts", "p").
		Project("phase", "Phase").
		Project("name", "Name").
		Project("active", "Active")

	t.Run("no filters produces no WHERE clause", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := prompts.Filters{}
		f.Apply(b)
		sql, args := b.Build()

		wantSQL := "SELECT p.phase, p.name, p.active FROM public.prompts p"
		if sql != wantSQL {
			t.Errorf("sql = %q, want %q", sql, wantSQL)
		}
		if len(args) != 0 {
			t.Errorf("args = %v, want empty", args)
		}
	})

	t.Run("phase equals filter", func(t *testing.T) {
		b := query.NewBuilder(projection)
		phase := prompts.PhaseProblemFraming
		f := prompts.Filters{Phase: &phase}
		f.Apply(b)
		_, args := b.Build()

		if len(args) != 1 {
			t.Fatalf("args length = %d, want 1", len(args))
		}
	})

	t.Run("name contains filter", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := prompts.Filters{Name: ptr("detailed")}
		f.Apply(b)
		_, args := b.Build()

		if len(args) != 1 || args[0] != "%detailed%" {
			t.Errorf("args = %v, want [%%detailed%%]", args)
		}
	})

	t.Run("active equals filter", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := prompts.Filters{Active: ptr(true)}
		f.Apply(b)
		_, args := b.Build()

		if len(args) != 1 {
			t.Fatalf("args length = %d, want 1", len(args))
		}
		if v, ok := args[0].(*bool); !ok || *v != true {
			t.Errorf("args[0] = %v, want *true", args[0])
		}
	})

	t.Run("multiple filters combine with AND", func(t *testing.T) {
		b := query.NewBuilder(projection)
		phase := prompts.PhaseFeasibility
		f := prompts.Filters{
			Phase:  &phase,
			Name:   ptr("verbose"),
			Active: ptr(false),
		}
		f.Apply(b)
		_, args := b.Build()

		if len(args) != 3 {
			t.Errorf("args length = %d, want 3", len(args))
		}
	})
}

func TestBuiltin(t *testing.T) {
	src := prompts.Builtin()

	for _, phase := range prompts.Phases() {
		t.Run(string(phase), func(t *testing.T) {
			got, err := src.Instructions(context.Background(), phase)
			if err != nil {
				t.Fatalf("Instructions: %v", err)
			}
			want, _ := prompts.Instructions(phase)
			if got != want {
				t.Errorf("Instructions(%s) differs from built-in", phase)
			}

			spec, err := src.Spec(context.Background(), phase)
			if err != nil {
				t.Fatalf("Spec: %v", err)
			}
			if !strings.Contains(spec, "valid JSON") {
				t.Errorf("Spec(%s) missing JSON constraint", phase)
			}
		})
	}

	if _, err := src.Instructions(context.Background(), "banana"); !errors.Is(err, prompts.ErrInvalidPhase) {
		t.Errorf("Instructions(banana) error = %v, want ErrInvalidPhase", err)
	}
}
