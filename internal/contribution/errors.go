package contribution

import (
	"fmt"
	"strings"
)

// Violation is one schema failure. Path is the JSON pointer of the
// offending value without the leading slash, empty for the document root.
type Violation struct {
	Path    string
	Message string
}

// SchemaValidationError rejects a submission that does not match the schema.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	return "schema validation failed: " + strings.Join(e.Messages(), "; ")
}

// Messages returns the violation messages in order.
func (e *SchemaValidationError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Message
	}
	return out
}

// CategoryNotValidError means the schema accepted a category the registry
// does not know.
type CategoryNotValidError struct {
	Category string
}

func (e *CategoryNotValidError) Error() string {
	return fmt.Sprintf("category %q is not registered", e.Category)
}

// DispatchInconsistencyError means a value accepted by the schema has no
// counterpart in the category's model.
type DispatchInconsistencyError struct {
	Key      string
	Value    string
	Category string
}

func (e *DispatchInconsistencyError) Error() string {
	return fmt.Sprintf("unexpected %s %q for category %q", e.Key, e.Value, e.Category)
}

// FieldError is one rejected custom field value.
type FieldError struct {
	Key     string
	Message string
}

// FieldTypeError rejects a custom contribution whose values do not fit the
// field specifications.
type FieldTypeError struct {
	Errors []FieldError
}

func (e *FieldTypeError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Key + ": " + fe.Message
	}
	return "invalid custom values: " + strings.Join(parts, "; ")
}

// Body groups the messages by field key.
func (e *FieldTypeError) Body() map[string][]string {
	out := make(map[string][]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Key] = append(out[fe.Key], fe.Message)
	}
	return out
}
