package prompts

const problemFramingSpec = `Respond with a JSON object matching this exact structure:

{
  "business_domain": "<domain>",
  "primary_outcome": "<outcome>",
  "actors": ["<actor>"],
  "current_pain": ["<pain point>"],
  "constraints": ["<constraint>"],
  "confidence": 0.5
}

Field constraints:
- business_domain: The industry or business area the request belongs to.
- primary_outcome: One sentence describing what success looks like.
- actors: People, teams, or systems involved. Empty when none are named.
- current_pain: Problems the requester experiences today.
- constraints: Budget, timeline, regulatory, or technical limits.
- confidence: Number between 0.01 and 0.99 reflecting how complete the
  description is.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Report only what the user stated or clearly implied`

const goalsKPIsSpec = `Respond with a JSON object matching this exact structure:

{
  "business_goals": [
    {"subject": "<subject>", "direction": "<increase|decrease|maintain|create|remove>", "weight": 0.5}
  ],
  "kpis": [
    {"subject": "<measured quantity>", "direction": "<increase|decrease|maintain|create|remove>", "indicator": "<formula>", "scope": "<time and segmentation>"}
  ]
}

Field constraints:
- business_goals: Atomic goals. Weights sum to 1.0 across all goals.
- kpis: At least one KPI per goal. indicator describes how the value is
  computed; scope names the period and segment (e.g. "per team per month").

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Derive goals from the problem frame; do not introduce new outcomes`

const feasibilitySpec = `Respond with a JSON object matching this exact structure:

{
  "category": "<core_ai_problem|ai_useful_but_not_core|not_really_ai|unclear_need_more_info>",
  "confidence": 0.5,
  "reasons": ["<reason>"],
  "missing_info": ["<question>"]
}

Field constraints:
- category: How well the problem fits an AI solution.
- confidence: Number between 0.0 and 1.0.
- reasons: Evidence from prior phases supporting the category.
- missing_info: Questions that would raise confidence. Empty when none.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Prefer unclear_need_more_info over guessing`

const decisionSynthesisSpec = `Respond with a JSON object matching this exact structure:

{
  "decision": "<go|no-go>",
  "summary": "<recommendation>",
  "recommended_approach": "<build_inhouse|buy_existing|hybrid|none>",
  "rationale": ["<reason>"],
  "conditions": ["<condition that would change the decision>"]
}

Field constraints:
- decision: go when AI is recommended, no-go otherwise.
- recommended_approach: none when decision is no-go.
- rationale: Bullets tying the decision to goals, KPIs and feasibility.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never contradict the feasibility category without explaining why`

var specs = map[Phase]string{
	PhaseProblemFraming:    problemFramingSpec,
	PhaseGoalsKPIs:         goalsKPIsSpec,
	PhaseFeasibility:       feasibilitySpec,
	PhaseDecisionSynthesis: decisionSynthesisSpec,
}

// Spec returns the output specification for a phase. Specifications define
// the expected output format and behavioral constraints and cannot be
// overridden.
// Returns ErrInvalidPhase if the phase is not recognized.
func Spec(phase Phase) (string, error) {
	text, ok := specs[phase]
	if !ok {
		return "", ErrInvalidPhase
	}
	return text, nil
}
