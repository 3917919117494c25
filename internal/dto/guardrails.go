package dto

// Guardrail reasons reported by policy evaluation.
const (
	ReasonUnsafe     = "Contains blocked or unsafe terms."
	ReasonOutOfScope = "Outside supported business / AI domains."
	ReasonPassed     = "Passed all checks."
)

// GuardrailResult is the verdict of a guardrail evaluation. Reasons is never
// empty.
type GuardrailResult struct {
	IsSafe          bool     `json:"is_safe"`
	IsInScope       bool     `json:"is_in_scope"`
	Reasons         []string `json:"reasons"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	MatchedTopics   []string `json:"matched_topics,omitempty"`
}

// Allowed reports whether the input may proceed to the model.
func (r GuardrailResult) Allowed() bool {
	return r.IsSafe && r.IsInScope
}
