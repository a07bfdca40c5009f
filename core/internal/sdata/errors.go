package sdata

import "fmt"

// ConfigurationError reports an invalid schema or relation declaration.
type ConfigurationError struct {
	Schema string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schema %q: %s", e.Schema, e.Reason)
}

// DuplicateRelationsError is raised when relations are registered twice for
// the same schema.
type DuplicateRelationsError struct {
	Schema string
}

func (e *DuplicateRelationsError) Error() string {
	return fmt.Sprintf("schema %q: relations already registered", e.Schema)
}

// Is lets errors.Is(err, &ConfigurationError{}) match duplicate registrations.
func (e *DuplicateRelationsError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// SchemaNotFoundError is returned when a schema name is unknown.
type SchemaNotFoundError struct {
	Schema string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema %q not found", e.Schema)
}

// RelationNotFoundError is returned when a populate request names a field
// that has no relation descriptor.
type RelationNotFoundError struct {
	Schema string
	Field  string
}

func (e *RelationNotFoundError) Error() string {
	return fmt.Sprintf("schema %q: no relation defined for field %q", e.Schema, e.Field)
}

// TargetSchemaUninitializedError is returned when a relation points at a
// schema that was never added to the registry.
type TargetSchemaUninitializedError struct {
	Schema string
	Field  string
	Target string
}

func (e *TargetSchemaUninitializedError) Error() string {
	return fmt.Sprintf("schema %q: relation %q targets schema %q which was never initialized",
		e.Schema, e.Field, e.Target)
}
