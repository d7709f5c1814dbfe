package decision_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/redbadger/journey-dynamics/internal/decision"
	"github.com/redbadger/journey-dynamics/internal/domain"
)

type decisionScenario struct {
	Name                 string         `yaml:"name"`
	CurrentStep          string         `yaml:"current_step"`
	CapturedData         map[string]any `yaml:"captured_data"`
	WantSuggestedActions []string       `yaml:"want_suggested_actions"`
}

func loadDecisionScenarios(t *testing.T) []decisionScenario {
	t.Helper()
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	require.NoError(t, err)

	var scenarios []decisionScenario
	require.NoError(t, yaml.Unmarshal(raw, &scenarios))
	return scenarios
}

func TestSimpleEngineMatchesYAMLScenarios(t *testing.T) {
	e := decision.SimpleEngine{}

	for _, sc := range loadDecisionScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			d, err := e.Evaluate(context.Background(), domain.EvaluationContext{
				CapturedData: sc.CapturedData,
				CurrentStep:  sc.CurrentStep,
			})
			require.NoError(t, err)
			assert.Equal(t, sc.WantSuggestedActions, d.SuggestedActions)
		})
	}
}
