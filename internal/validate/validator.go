// Package validate implements the schema-validation contract (spec
// component C2): a pluggable pre-merge gate that rejects malformed
// Capture payloads before they ever reach the merger or decision engine.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/validate
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/redbadger/journey-dynamics/internal/domain"
)

// Permissive accepts every payload unconditionally. It is the default
// collaborator when a journey type declares no schema.
type Permissive struct{}

// Validate always succeeds.
func (Permissive) Validate(any) error { return nil }

var _ domain.Validator = Permissive{}

// SchemaValidator validates Capture payloads against a compiled JSON
// Schema document, using kin-openapi's schema visitor (the teacher
// already depends on kin-openapi for request-body validation; its
// Schema.VisitJSON walks the same draft-07-ish keyword set the original
// system's jsonschema crate validates against).
type SchemaValidator struct {
	schema *openapi3.Schema
}

// NewSchemaValidator compiles raw (a JSON Schema document) into a
// SchemaValidator.
func NewSchemaValidator(raw []byte) (*SchemaValidator, error) {
	schema := &openapi3.Schema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return nil, fmt.Errorf("validate: invalid schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate reports every violation of data against the compiled schema,
// joined with ", " and prefixed "Schema validation failed: ", matching
// the wire-visible error the original validator produced.
func (v *SchemaValidator) Validate(data any) error {
	if err := v.schema.VisitJSON(data, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("Schema validation failed: %s", flattenSchemaError(err))
	}
	return nil
}

// flattenSchemaError joins kin-openapi's (possibly multi-error) schema
// violation into a single comma-separated message.
func flattenSchemaError(err error) string {
	var me openapi3.MultiError
	if ok := asMultiError(err, &me); ok {
		msgs := make([]string, 0, len(me))
		for _, e := range me {
			msgs = append(msgs, e.Error())
		}
		return strings.Join(msgs, ", ")
	}
	return err.Error()
}

func asMultiError(err error, target *openapi3.MultiError) bool {
	if me, ok := err.(openapi3.MultiError); ok {
		*target = me
		return true
	}
	return false
}

var _ domain.Validator = (*SchemaValidator)(nil)
