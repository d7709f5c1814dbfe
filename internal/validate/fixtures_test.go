package validate_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/redbadger/journey-dynamics/internal/validate"
)

type schemaCase struct {
	Name    string         `yaml:"name"`
	Schema  map[string]any `yaml:"schema"`
	Payload any            `yaml:"payload"`
	WantErr bool           `yaml:"want_err"`
}

func loadSchemaCases(t *testing.T) []schemaCase {
	t.Helper()
	raw, err := os.ReadFile("testdata/schema_cases.yaml")
	require.NoError(t, err)

	var cases []schemaCase
	require.NoError(t, yaml.Unmarshal(raw, &cases))
	return cases
}

func TestSchemaValidatorMatchesYAMLFixtures(t *testing.T) {
	for _, tc := range loadSchemaCases(t) {
		t.Run(tc.Name, func(t *testing.T) {
			schemaJSON, err := json.Marshal(tc.Schema)
			require.NoError(t, err)

			v, err := validate.NewSchemaValidator(schemaJSON)
			require.NoError(t, err)

			err = v.Validate(tc.Payload)
			if tc.WantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
