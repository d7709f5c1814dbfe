// Package decision implements the pluggable decision-graph adapter (spec
// component C3): assembling evaluation context from a prospective
// aggregate view, invoking an engine implementation, and extracting the
// suggested-next-steps result with a defined fallback precedence.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/decision
package decision

import (
	"github.com/redbadger/journey-dynamics/internal/domain"
)

// Engine is satisfied by every concrete decision-graph adapter in this
// package (SimpleEngine, RegoEngine). It is the same shape as
// domain.DecisionEngine; the alias exists so callers outside the domain
// package (the façade, wiring code) have a name to refer to without
// importing domain purely for this interface.
type Engine = domain.DecisionEngine

// resultFields are the decision-graph output keys this adapter looks for
// a suggestion list under, in fallback order: a dedicated suggestion
// field first, then a generic "output" envelope some graph shapes use,
// then the broadest "available next steps" naming.
var resultFields = []string{"suggestedActions", "output", "availableNextSteps"}

// extractSuggestions walks resultFields in order and returns the first
// one present as a []string, plus whether a field was found at all (a
// present-but-empty list is a valid "no suggestions" answer; a wholly
// absent field is an engine error).
func extractSuggestions(result map[string]any) ([]string, bool) {
	for _, field := range resultFields {
		raw, ok := result[field]
		if !ok {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// extractPrimaryNextStep reads the optional "primaryNextStep" string
// field from a decision-graph result.
func extractPrimaryNextStep(result map[string]any) *string {
	raw, ok := result["primaryNextStep"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	return &s
}

// assembleContext builds the wire document passed to a decision-graph
// evaluation, mirroring the original system's {currentStep, capturedData}
// envelope so rules can route on either field.
func assembleContext(ec domain.EvaluationContext) map[string]any {
	return map[string]any{
		"currentStep":  ec.CurrentStep,
		"capturedData": ec.CapturedData,
	}
}
