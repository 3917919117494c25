package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/events"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

func mustEvent(t *testing.T, kind dto.EventKind, payload map[string]any) dto.TraceEvent {
	t.Helper()
	ev, err := dto.NewTraceEvent(kind, payload)
	if err != nil {
		t.Fatalf("NewTraceEvent() error: %v", err)
	}
	return ev
}

func TestEmit(t *testing.T) {
	s := state.New(nil)

	s1, err := events.Emit(s, dto.KindPhaseStarted, map[string]any{"phase": "problem_framing"})
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	s2, err := events.Emit(s1, dto.KindPhaseCompleted, map[string]any{"phase": "problem_framing"})
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	log1, _ := events.Log(s1)
	log2, _ := events.Log(s2)

	if len(log1) != 1 {
		t.Fatalf("len(log1) = %d, want 1", len(log1))
	}
	if len(log2) != 2 {
		t.Fatalf("len(log2) = %d, want 2", len(log2))
	}
	if log2[0].ID != log1[0].ID {
		t.Error("prior event changed")
	}
	if log2[1].Kind != dto.KindPhaseCompleted {
		t.Errorf("last kind: got %q, want %q", log2[1].Kind, dto.KindPhaseCompleted)
	}
	if log2[1].Timestamp.Before(log2[0].Timestamp) {
		t.Error("timestamps out of order")
	}
}

func TestEmitInvalidKind(t *testing.T) {
	s := state.New(nil)

	next, err := events.Emit(s, "bogus", nil)
	if !errors.Is(err, dto.ErrValidation) {
		t.Fatalf("Emit(bogus) error = %v, want ErrValidation", err)
	}
	if _, ok := next.Get(state.KeyEvents); ok {
		t.Error("state changed on failure")
	}
}

func TestEmitAppendsExactlyOneProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	props := gopter.NewProperties(parameters)

	kinds := dto.EventKinds()

	props.Property("emit grows the log by one and keeps the prefix", prop.ForAll(
		func(existing int, kindIdx int, key string) bool {
			s := state.New(nil)
			for range existing {
				var err error
				if s, err = events.Emit(s, dto.KindProgress, nil); err != nil {
					return false
				}
			}
			before, _ := events.Log(s)

			next, err := events.Emit(s, kinds[kindIdx%len(kinds)], map[string]any{key: true})
			if err != nil {
				return false
			}
			after, _ := events.Log(next)

			if len(after) != len(before)+1 {
				return false
			}
			for i := range before {
				if after[i].ID != before[i].ID {
					return false
				}
			}
			return after[len(after)-1].Payload[key] == true
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 6),
		gen.Identifier(),
	))

	props.TestingRun(t)
}

func TestMerge(t *testing.T) {
	s, err := events.Emit(state.New(nil), dto.KindRouting, nil)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	a := mustEvent(t, dto.KindToolInvoked, map[string]any{"tool": "nothingizer"})
	b := mustEvent(t, dto.KindDecision, nil)

	next, err := events.Merge(s, a, b)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	log, _ := events.Log(next)
	if len(log) != 3 {
		t.Fatalf("len(log) = %d, want 3", len(log))
	}
	if log[1].ID != a.ID || log[2].ID != b.ID {
		t.Error("merged events out of order")
	}

	orig, _ := events.Log(s)
	if len(orig) != 1 {
		t.Errorf("input state mutated: len %d", len(orig))
	}
}

func TestMergeSkipsKnownIDs(t *testing.T) {
	ev := mustEvent(t, dto.KindProgress, map[string]any{"step": 1})
	other := mustEvent(t, dto.KindRouting, nil)

	s, err := events.Merge(state.New(nil), ev)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	s, err = events.Merge(s, ev, other, other)
	if err != nil {
		t.Fatalf("Merge() replay error: %v", err)
	}

	log, _ := events.Log(s)
	if len(log) != 2 {
		t.Fatalf("len(log) = %d, want 2", len(log))
	}
	if log[0].ID != ev.ID || log[1].ID != other.ID {
		t.Error("deduplicated log out of order")
	}
}

func TestMergeRejectsWholeBatch(t *testing.T) {
	s := state.New(nil)
	good := mustEvent(t, dto.KindProgress, nil)
	bad := dto.TraceEvent{Kind: "unknown"}

	next, err := events.Merge(s, good, bad)
	if !errors.Is(err, dto.ErrValidation) {
		t.Fatalf("Merge() error = %v, want ErrValidation", err)
	}
	if log, _ := events.Log(next); len(log) != 0 {
		t.Errorf("partial merge applied: %d events", len(log))
	}
}

func TestLogMalformed(t *testing.T) {
	s := state.New(map[string]any{state.KeyEvents: "not a list"})
	if _, err := events.Log(s); !errors.Is(err, dto.ErrValidation) {
		t.Errorf("Log() error = %v, want ErrValidation", err)
	}
}

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var observed []dto.TraceEvent
	collect := events.ObserverFunc(func(_ context.Context, ev dto.TraceEvent) {
		observed = append(observed, ev)
	})

	rec := events.NewRecorder("phase_nodes", events.LogObserver(logger), collect)

	s, err := rec.Emit(context.Background(), state.New(nil), dto.KindPhaseStarted, "goals_kpis", "starting", nil)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	log, _ := events.Log(s)
	if len(log) != 1 || log[0].Owner != "phase_nodes" || log[0].Phase != "goals_kpis" {
		t.Errorf("log: got %+v", log)
	}
	if len(observed) != 1 || observed[0].ID != log[0].ID {
		t.Errorf("observer: got %+v", observed)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output not JSON: %v", err)
	}
	if record["msg"] != "trace_event" || record["kind"] != "phase_started" {
		t.Errorf("log record: got %v", record)
	}

	if _, err := rec.WithOwner("x").Emit(context.Background(), s, "bogus", "", "", nil); err == nil {
		t.Error("expected error for invalid kind")
	}
	if len(observed) != 1 {
		t.Error("observer notified for rejected event")
	}
}
