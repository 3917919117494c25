// Package ambiguity tracks the ambiguities detected in a request before a
// reasoning phase runs and the clarifications that resolve them. A Context
// lives in run state under state.KeyAmbiguity; while it holds unresolved
// items for its target phase, that phase does not run.
package ambiguity

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/pkg/formatting"
)

// Direction is the direction and rough magnitude of an assumption's impact.
type Direction string

const (
	StrongPositive Direction = "++"
	Positive       Direction = "+"
	Neutral        Direction = "0"
	Negative       Direction = "-"
	StrongNegative Direction = "--"
)

var directions = []Direction{StrongPositive, Positive, Neutral, Negative, StrongNegative}

// Item is one detected ambiguity.
type Item struct {
	Key                  string    `json:"key"`
	Description          string    `json:"description"`
	ClarifyingQuestion   string    `json:"clarifying_question"`
	ResolutionAssumption string    `json:"resolution_assumption"`
	ImpactDirection      Direction `json:"resolution_impact_direction"`
	ImpactValue          float64   `json:"resolution_impact_value"`
	Importance           float64   `json:"importance"`
	Confidence           float64   `json:"confidence"`
}

// Validate checks the item's key, impact, and score ranges. Importance and
// confidence lie in [0.01, 0.99]; impact value lies in [0, 1].
func (i Item) Validate() error {
	switch {
	case strings.TrimSpace(i.Key) == "":
		return fmt.Errorf("%w: ambiguity key is required", dto.ErrValidation)
	case strings.TrimSpace(i.ClarifyingQuestion) == "":
		return fmt.Errorf("%w: ambiguity %s has no clarifying question", dto.ErrValidation, i.Key)
	case !slices.Contains(directions, i.ImpactDirection):
		return fmt.Errorf("%w: ambiguity %s has impact direction %q", dto.ErrValidation, i.Key, i.ImpactDirection)
	case i.ImpactValue < 0 || i.ImpactValue > 1:
		return fmt.Errorf("%w: ambiguity %s impact value out of range", dto.ErrValidation, i.Key)
	case i.Importance < 0.01 || i.Importance > 0.99:
		return fmt.Errorf("%w: ambiguity %s importance out of range", dto.ErrValidation, i.Key)
	case i.Confidence < 0.01 || i.Confidence > 0.99:
		return fmt.Errorf("%w: ambiguity %s confidence out of range", dto.ErrValidation, i.Key)
	}
	return nil
}

// Clarification is a user answer resolving one or more ambiguity keys.
type Clarification struct {
	ClarifiedKeys []string `json:"clarified_keys"`
	Response      string   `json:"response"`
}

// Validate requires at least one key and a non-empty response.
func (c Clarification) Validate() error {
	if len(c.ClarifiedKeys) == 0 {
		return fmt.Errorf("%w: clarification names no keys", dto.ErrValidation)
	}
	if strings.TrimSpace(c.Response) == "" {
		return fmt.Errorf("%w: clarification response is required", dto.ErrValidation)
	}
	return nil
}

// Context is the ambiguity record for one target phase.
type Context struct {
	TargetStep string          `json:"target_step,omitempty"`
	Checked    bool            `json:"checked"`
	Eligible   bool            `json:"eligible"`
	Detected   []Item          `json:"detected,omitempty"`
	Resolved   []Clarification `json:"resolved,omitempty"`
	Exhausted  bool            `json:"exhausted,omitempty"`
}

// Reset returns a fresh, unchecked context for target.
func Reset(target string) Context {
	return Context{TargetStep: target}
}

// ClarifiedKeys returns the sorted, de-duplicated keys named by resolved
// clarifications.
func (c Context) ClarifiedKeys() []string {
	var keys []string
	for _, r := range c.Resolved {
		keys = append(keys, r.ClarifiedKeys...)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Pending returns the detected items not yet clarified, in detection order.
func (c Context) Pending() []Item {
	clarified := c.ClarifiedKeys()
	var out []Item
	for _, item := range c.Detected {
		if _, found := slices.BinarySearch(clarified, item.Key); !found {
			out = append(out, item)
		}
	}
	return out
}

// PendingKeys returns the keys of Pending items.
func (c Context) PendingKeys() []string {
	pending := c.Pending()
	keys := make([]string, len(pending))
	for i, item := range pending {
		keys[i] = item.Key
	}
	return keys
}

// PendingQuestions returns the clarifying questions of Pending items.
func (c Context) PendingQuestions() []string {
	pending := c.Pending()
	questions := make([]string, len(pending))
	for i, item := range pending {
		questions[i] = item.ClarifyingQuestion
	}
	return questions
}

// CurrentQuestion returns the first pending clarifying question.
func (c Context) CurrentQuestion() (string, bool) {
	pending := c.Pending()
	if len(pending) == 0 {
		return "", false
	}
	return pending[0].ClarifyingQuestion, true
}

// Resolve records cl and recomputes eligibility. Keys the scan did not
// detect are kept on the clarification but do not affect eligibility.
func (c Context) Resolve(cl Clarification) (Context, error) {
	if err := cl.Validate(); err != nil {
		return c, err
	}
	next := c.clone()
	next.Resolved = append(next.Resolved, Clarification{
		ClarifiedKeys: slices.Clone(cl.ClarifiedKeys),
		Response:      cl.Response,
	})
	next.Eligible = next.Checked && len(next.Pending()) == 0
	return next, nil
}

// Blocks reports whether the context holds phase back: the scan targeted
// phase, ran, and left items unresolved.
func (c Context) Blocks(phase string) bool {
	return c.TargetStep == phase && c.Checked && !c.Eligible
}

func (c Context) clone() Context {
	next := c
	next.Detected = slices.Clone(c.Detected)
	next.Resolved = make([]Clarification, len(c.Resolved))
	for i, r := range c.Resolved {
		next.Resolved[i] = Clarification{ClarifiedKeys: slices.Clone(r.ClarifiedKeys), Response: r.Response}
	}
	return next
}

// Thresholds decide which detected items require clarification.
type Thresholds struct {
	Importance  float64
	Confidence  float64
	MaxSelected int
}

// DefaultThresholds keeps at most three items scoring at least 0.9
// importance and 0.8 confidence.
func DefaultThresholds() Thresholds {
	return Thresholds{Importance: 0.9, Confidence: 0.8, MaxSelected: 3}
}

// Select filters items by t and orders them by importance, then
// confidence, highest first. Ties keep detection order. A non-positive
// MaxSelected keeps every qualifying item.
func Select(items []Item, t Thresholds) []Item {
	var out []Item
	for _, item := range items {
		if item.Importance >= t.Importance && item.Confidence >= t.Confidence {
			out = append(out, item)
		}
	}
	slices.SortStableFunc(out, func(a, b Item) int {
		if c := cmp.Compare(b.Importance, a.Importance); c != 0 {
			return c
		}
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if t.MaxSelected > 0 && len(out) > t.MaxSelected {
		out = out[:t.MaxSelected]
	}
	return out
}

type scanReply struct {
	Ambiguities []Item `json:"ambiguities"`
}

// ParseScan decodes a scan reply (bare JSON or a fenced JSON block) of the
// form {"ambiguities": [...]} and validates every item. Decoding failures
// wrap formatting.ErrParseFailed; invalid items wrap dto.ErrValidation.
func ParseScan(raw string) ([]Item, error) {
	reply, err := formatting.Parse[scanReply](raw)
	if err != nil {
		return nil, err
	}
	for _, item := range reply.Ambiguities {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	return reply.Ambiguities, nil
}
