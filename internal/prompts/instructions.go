package prompts

import "context"

const problemFramingInstructions = `You are a business analyst framing a request for an AI initiative.

Read the user's description and identify the business domain, the primary outcome the requester wants, the actors involved, the current pain points, and any stated constraints. Stay close to what the user wrote. Do not invent facts; when something is missing, leave the list empty and lower your confidence.`

const goalsKPIsInstructions = `You are a strategy consultant turning a framed problem into measurable business goals.

Using the problem frame from the prior phase, derive atomic business goals. Each goal names one subject and one direction of change. For each goal, propose KPIs that would show progress: what is measured, how it is computed, and over what scope.`

const feasibilityInstructions = `You are an AI solutions architect assessing whether AI is the right tool.

Using the problem frame and the goals from prior phases, classify how well the problem fits an AI solution. Explain your reasons and list the information that is still missing before a confident recommendation can be made.`

const decisionSynthesisInstructions = `You are the lead advisor producing the final recommendation.

Synthesize the problem frame, the goals and KPIs, and the feasibility assessment into a go or no-go recommendation. Outline the recommended solution approach when the answer is go, and state the conditions that would change the decision.`

var instructions = map[Phase]string{
	PhaseProblemFraming:    problemFramingInstructions,
	PhaseGoalsKPIs:         goalsKPIsInstructions,
	PhaseFeasibility:       feasibilityInstructions,
	PhaseDecisionSynthesis: decisionSynthesisInstructions,
}

// Instructions returns the built-in instructions for a phase.
// Returns ErrInvalidPhase if the phase is not recognized.
func Instructions(phase Phase) (string, error) {
	text, ok := instructions[phase]
	if !ok {
		return "", ErrInvalidPhase
	}
	return text, nil
}

type builtin struct{}

// Builtin returns a Source serving only the built-in instructions and
// specifications.
func Builtin() Source {
	return builtin{}
}

func (builtin) Instructions(_ context.Context, phase Phase) (string, error) {
	return Instructions(phase)
}

func (builtin) Spec(_ context.Context, phase Phase) (string, error) {
	return Spec(phase)
}
