package decision

import (
	"context"
	"strings"

	"github.com/redbadger/journey-dynamics/internal/domain"
)

// SimpleEngine is a literal, hard-coded rule set: it exists as the
// zero-dependency fallback engine and as a worked reference for what a
// decision graph's result shape looks like. Its two rules mirror the
// reference system's own built-in rule engine:
//
//   - if any previously captured value is itself an object containing a
//     "first_name" key, suggest "form_3"
//   - otherwise, if the current step name contains "section_2", suggest
//     "form_4"
//   - otherwise, no suggestions
type SimpleEngine struct{}

var _ Engine = SimpleEngine{}

// Evaluate implements domain.DecisionEngine.
func (SimpleEngine) Evaluate(_ context.Context, ec domain.EvaluationContext) (domain.Decision, error) {
	hasFirstName := false
	for _, v := range ec.CapturedData {
		if obj, ok := v.(map[string]any); ok {
			if _, ok := obj["first_name"]; ok {
				hasFirstName = true
				break
			}
		}
	}

	suggestions := []string{}
	switch {
	case hasFirstName:
		suggestions = []string{"form_3"}
	case strings.Contains(ec.CurrentStep, "section_2"):
		suggestions = []string{"form_4"}
	}

	return domain.Decision{SuggestedActions: suggestions}, nil
}
