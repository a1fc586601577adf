// Package schemas provides JSON Schema validation for structured step
// outputs before the client trusts them.
package schemas

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed step_files.schema.json
var stepFilesSchema []byte

// ValidationError reports a payload that did not conform to a schema.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "schema validation failed"
	}
	first := e.Errors[0]
	if len(e.Errors) == 1 {
		return fmt.Sprintf("schema validation failed: %s: %s", first.Field, first.Message)
	}
	return fmt.Sprintf("schema validation failed: %s: %s (and %d more)", first.Field, first.Message, len(e.Errors)-1)
}

// ValidateStepFiles checks a scaffold step's output against the files-payload
// schema. A nil error means the payload can be trusted for extraction.
func ValidateStepFiles(payload []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(stepFilesSchema)
	docLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation could not run: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return verr
}
