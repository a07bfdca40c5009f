package core

import (
	"errors"

	"github.com/dosco/graphjin/populate/v3/core/internal/qcode"
	"github.com/dosco/graphjin/populate/v3/core/internal/reconcile"
	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
)

type (
	ConfigurationError             = sdata.ConfigurationError
	DuplicateRelationsError        = sdata.DuplicateRelationsError
	SchemaNotFoundError            = sdata.SchemaNotFoundError
	RelationNotFoundError          = sdata.RelationNotFoundError
	TargetSchemaUninitializedError = sdata.TargetSchemaUninitializedError
	ProjectionConflictError        = qcode.ProjectionConflictError
	InvalidRequestError            = qcode.InvalidRequestError
	MissingAliasError              = reconcile.MissingAliasError
)

// ErrNotInitialized is returned when the engine has no executor.
var ErrNotInitialized = errors.New("populate: engine has no executor")

// WithSchema names schema on the request error inside err. Callers that
// parse a query themselves, like ParseQueryJSON, use it to report which
// schema the query was for. The engine does this for its own errors.
func WithSchema(err error, schema string) error {
	return qcode.WithSchema(err, schema)
}

// IsRequestError reports whether err was caused by the caller's request or
// the schema configuration rather than by the store. These errors are all
// raised before a pipeline is executed.
func IsRequestError(err error) bool {
	var (
		ce  *ConfigurationError
		dre *DuplicateRelationsError
		snf *SchemaNotFoundError
		rnf *RelationNotFoundError
		tsu *TargetSchemaUninitializedError
		pce *ProjectionConflictError
		ire *InvalidRequestError
	)
	return errors.As(err, &ce) ||
		errors.As(err, &dre) ||
		errors.As(err, &snf) ||
		errors.As(err, &rnf) ||
		errors.As(err, &tsu) ||
		errors.As(err, &pce) ||
		errors.As(err, &ire)
}

// errorKind is the metrics label for err.
func errorKind(err error) string {
	var (
		snf *SchemaNotFoundError
		rnf *RelationNotFoundError
		tsu *TargetSchemaUninitializedError
		pce *ProjectionConflictError
		ire *InvalidRequestError
		mae *MissingAliasError
	)
	switch {
	case errors.As(err, &snf):
		return "schema_not_found"
	case errors.As(err, &rnf):
		return "relation_not_found"
	case errors.As(err, &tsu):
		return "target_uninitialized"
	case errors.As(err, &pce):
		return "projection_conflict"
	case errors.As(err, &ire):
		return "invalid_request"
	case errors.As(err, &mae):
		return "missing_alias"
	}
	return "execute"
}
