package qcode

import (
	"errors"
	"fmt"
)

// ProjectionConflictError is returned when a request level sets both
// select and omit.
type ProjectionConflictError struct {
	Schema string
	Path   string
}

func (e *ProjectionConflictError) Error() string {
	msg := "select and omit cannot be used together"
	if e.Path != "" {
		msg = fmt.Sprintf("populate %q: %s", e.Path, msg)
	}
	return withSchema(e.Schema, msg)
}

// InvalidRequestError reports a malformed populate request.
type InvalidRequestError struct {
	Schema string
	Path   string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	msg := "invalid populate request: " + e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("invalid populate request at %q: %s", e.Path, e.Reason)
	}
	return withSchema(e.Schema, msg)
}

func withSchema(schema, msg string) string {
	if schema == "" {
		return msg
	}
	return fmt.Sprintf("schema %q: %s", schema, msg)
}

// WithSchema records the schema a request was made against on the request
// error inside err, unless one is already set. err itself is returned.
func WithSchema(err error, schema string) error {
	var pce *ProjectionConflictError
	if errors.As(err, &pce) && pce.Schema == "" {
		pce.Schema = schema
	}
	var ire *InvalidRequestError
	if errors.As(err, &ire) && ire.Schema == "" {
		ire.Schema = schema
	}
	return err
}
