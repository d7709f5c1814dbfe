package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbadger/journey-dynamics/internal/validate"
)

func TestPermissiveAcceptsAnything(t *testing.T) {
	v := validate.Permissive{}
	assert.NoError(t, v.Validate(map[string]any{"anything": "goes"}))
	assert.NoError(t, v.Validate(nil))
	assert.NoError(t, v.Validate(42))
}

const basicSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "number", "minimum": 0}
	},
	"required": ["name", "age"]
}`

func TestSchemaValidatorAcceptsValidPayload(t *testing.T) {
	v, err := validate.NewSchemaValidator([]byte(basicSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]any{"name": "John", "age": 30.0})
	assert.NoError(t, err)
}

func TestSchemaValidatorRejectsMissingField(t *testing.T) {
	v, err := validate.NewSchemaValidator([]byte(basicSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]any{"name": "John"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Schema validation failed:")
}

func TestSchemaValidatorRejectsWrongType(t *testing.T) {
	v, err := validate.NewSchemaValidator([]byte(basicSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]any{"name": "John", "age": "thirty"})
	assert.Error(t, err)
}

func TestSchemaValidatorRejectsConstraintViolation(t *testing.T) {
	v, err := validate.NewSchemaValidator([]byte(basicSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]any{"name": "John", "age": -5.0})
	assert.Error(t, err)
}

func TestSchemaValidatorWithEnumRefs(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"tripType": {"type": "string", "enum": ["one-way", "round-trip", "multi-city"]},
			"status": {"type": "string", "enum": ["search_criteria", "completed"]}
		},
		"required": ["tripType", "status"]
	}`
	v, err := validate.NewSchemaValidator([]byte(schema))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]any{"tripType": "round-trip", "status": "search_criteria"}))
	assert.Error(t, v.Validate(map[string]any{"tripType": "invalid-trip-type", "status": "search_criteria"}))
}
