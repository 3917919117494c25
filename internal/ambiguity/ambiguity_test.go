package ambiguity_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
	"github.com/cleverhoods/sagecompass-sub001/pkg/formatting"
)

func item(key string, importance, confidence float64) ambiguity.Item {
	return ambiguity.Item{
		Key:                  key,
		Description:          key + " is unclear",
		ClarifyingQuestion:   "What is " + key + "?",
		ResolutionAssumption: "assume the usual " + key,
		ImpactDirection:      ambiguity.Positive,
		ImpactValue:          0.5,
		Importance:           importance,
		Confidence:           confidence,
	}
}

func keys(items []ambiguity.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func TestItemValidate(t *testing.T) {
	valid := item("audience", 0.9, 0.9)

	tests := []struct {
		name    string
		mutate  func(*ambiguity.Item)
		wantErr bool
	}{
		{"valid", func(*ambiguity.Item) {}, false},
		{"empty key", func(i *ambiguity.Item) { i.Key = " " }, true},
		{"no question", func(i *ambiguity.Item) { i.ClarifyingQuestion = "" }, true},
		{"unknown direction", func(i *ambiguity.Item) { i.ImpactDirection = "+++" }, true},
		{"impact above one", func(i *ambiguity.Item) { i.ImpactValue = 1.5 }, true},
		{"importance at one", func(i *ambiguity.Item) { i.Importance = 1 }, true},
		{"confidence zero", func(i *ambiguity.Item) { i.Confidence = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := valid
			tt.mutate(&it)
			err := it.Validate()
			if tt.wantErr && !errors.Is(err, dto.ErrValidation) {
				t.Errorf("Validate() = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	items := []ambiguity.Item{
		item("low_importance", 0.5, 0.95),
		item("b", 0.92, 0.85),
		item("low_confidence", 0.95, 0.5),
		item("a", 0.97, 0.81),
		item("c", 0.92, 0.90),
		item("d", 0.90, 0.80),
	}

	got := keys(ambiguity.Select(items, ambiguity.DefaultThresholds()))
	if diff := cmp.Diff([]string{"a", "c", "b"}, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}

	all := ambiguity.Thresholds{Importance: 0.9, Confidence: 0.8}
	got = keys(ambiguity.Select(items, all))
	if diff := cmp.Diff([]string{"a", "c", "b", "d"}, got); diff != "" {
		t.Errorf("Select() without limit mismatch (-want +got):\n%s", diff)
	}

	if got := ambiguity.Select(nil, ambiguity.DefaultThresholds()); len(got) != 0 {
		t.Errorf("Select(nil) = %v, want empty", got)
	}
}

func TestPendingAndResolve(t *testing.T) {
	c := ambiguity.Reset("problem_framing")
	c.Checked = true
	c.Detected = []ambiguity.Item{item("audience", 0.95, 0.9), item("budget", 0.92, 0.9)}

	if !c.Blocks("problem_framing") {
		t.Fatal("Blocks() = false with pending items")
	}
	if c.Blocks("goals_kpis") {
		t.Error("Blocks() = true for a phase the scan did not target")
	}
	if q, ok := c.CurrentQuestion(); !ok || q != "What is audience?" {
		t.Errorf("CurrentQuestion() = %q, %v", q, ok)
	}

	next, err := c.Resolve(ambiguity.Clarification{ClarifiedKeys: []string{"audience", "unrelated"}, Response: "store managers"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if diff := cmp.Diff([]string{"budget"}, next.PendingKeys()); diff != "" {
		t.Errorf("PendingKeys() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"What is budget?"}, next.PendingQuestions()); diff != "" {
		t.Errorf("PendingQuestions() mismatch (-want +got):\n%s", diff)
	}
	if next.Eligible {
		t.Error("Eligible = true with a pending item")
	}
	if len(c.Resolved) != 0 {
		t.Error("Resolve() modified the receiver")
	}

	next, err = next.Resolve(ambiguity.Clarification{ClarifiedKeys: []string{"budget"}, Response: "under 50k"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !next.Eligible || next.Blocks("problem_framing") {
		t.Errorf("fully clarified context: Eligible = %v, Blocks = %v", next.Eligible, next.Blocks("problem_framing"))
	}
	if _, ok := next.CurrentQuestion(); ok {
		t.Error("CurrentQuestion() reported a question with nothing pending")
	}
	if diff := cmp.Diff([]string{"audience", "budget", "unrelated"}, next.ClarifiedKeys()); diff != "" {
		t.Errorf("ClarifiedKeys() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRejectsEmpty(t *testing.T) {
	c := ambiguity.Reset("problem_framing")

	for _, cl := range []ambiguity.Clarification{
		{Response: "yes"},
		{ClarifiedKeys: []string{"audience"}, Response: "  "},
	} {
		if _, err := c.Resolve(cl); !errors.Is(err, dto.ErrValidation) {
			t.Errorf("Resolve(%+v) = %v, want ErrValidation", cl, err)
		}
	}
}

func TestParseScan(t *testing.T) {
	items, err := ambiguity.ParseScan("```json\n" + `{"ambiguities":[{"key":"audience","description":"who","clarifying_question":"Who?","resolution_assumption":"staff","resolution_impact_direction":"-","resolution_impact_value":0.3,"importance":0.95,"confidence":0.9}]}` + "\n```")
	if err != nil {
		t.Fatalf("ParseScan() error: %v", err)
	}
	if len(items) != 1 || items[0].Key != "audience" || items[0].ImpactDirection != ambiguity.Negative {
		t.Errorf("ParseScan() = %+v", items)
	}

	items, err = ambiguity.ParseScan(`{"ambiguities":[]}`)
	if err != nil || len(items) != 0 {
		t.Errorf("ParseScan(empty) = %v, %v", items, err)
	}

	if _, err := ambiguity.ParseScan("nothing to report"); !errors.Is(err, formatting.ErrParseFailed) {
		t.Errorf("ParseScan(text) = %v, want ErrParseFailed", err)
	}

	if _, err := ambiguity.ParseScan(`{"ambiguities":[{"key":"x","importance":2}]}`); !errors.Is(err, dto.ErrValidation) {
		t.Errorf("ParseScan(invalid item) = %v, want ErrValidation", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	empty, err := ambiguity.FromState(state.New(nil))
	if err != nil || empty.Checked || empty.TargetStep != "" {
		t.Fatalf("FromState(empty) = %+v, %v", empty, err)
	}

	c := ambiguity.Reset("problem_framing")
	c.Checked = true
	c.Detected = []ambiguity.Item{item("audience", 0.95, 0.9)}

	s := ambiguity.ToState(state.New(nil), c)
	c.Detected[0].Key = "changed"

	got, err := ambiguity.FromState(s)
	if err != nil {
		t.Fatalf("FromState() error: %v", err)
	}
	if got.Detected[0].Key != "audience" {
		t.Error("ToState() shares the detected slice with the caller")
	}

	decoded := state.New(map[string]any{state.KeyAmbiguity: map[string]any{
		"target_step": "problem_framing",
		"checked":     true,
		"detected": []any{map[string]any{
			"key":                         "audience",
			"clarifying_question":         "Who?",
			"resolution_impact_direction": "0",
			"importance":                  0.95,
			"confidence":                  0.9,
		}},
	}})
	got, err = ambiguity.FromState(decoded)
	if err != nil {
		t.Fatalf("FromState(map) error: %v", err)
	}
	if !got.Blocks("problem_framing") {
		t.Errorf("decoded context does not block: %+v", got)
	}

	if _, err := ambiguity.FromState(state.New(map[string]any{state.KeyAmbiguity: 42})); !errors.Is(err, dto.ErrValidation) {
		t.Errorf("FromState(int) = %v, want ErrValidation", err)
	}
}
