// Package dto defines the boundary types exchanged between agent nodes,
// the state adapters, and the run archive: error entries, trace events,
// phase results, and guardrail verdicts.
package dto
