package sdata

import (
	"errors"
	"fmt"
	"sort"
)

// Builder collects schemas and relation declarations. Relations are
// declared against target names so schemas may reference each other (or
// themselves) in any order; Finalize resolves the names.
type Builder struct {
	schemas map[string]*Schema
	decls   map[string][]RelationDecl
	order   []string
}

func NewBuilder() *Builder {
	return &Builder{
		schemas: make(map[string]*Schema),
		decls:   make(map[string][]RelationDecl),
	}
}

// AddSchema adds a schema. Names must be unique.
func (b *Builder) AddSchema(s *Schema) error {
	if s == nil || s.Name == "" {
		return &ConfigurationError{Reason: "schema name is required"}
	}
	if _, ok := b.schemas[s.Name]; ok {
		return &ConfigurationError{Schema: s.Name, Reason: "schema already defined"}
	}
	b.schemas[s.Name] = s
	b.order = append(b.order, s.Name)
	return nil
}

// Register declares the relations of schemaName. It may be called once per
// schema; the schema itself may be added before or after.
func (b *Builder) Register(schemaName string, decls ...RelationDecl) error {
	if _, ok := b.decls[schemaName]; ok {
		return &DuplicateRelationsError{Schema: schemaName}
	}

	seen := make(map[string]struct{}, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			return &ConfigurationError{Schema: schemaName, Reason: "relation name is required"}
		}
		if _, ok := seen[d.Name]; ok {
			return &ConfigurationError{Schema: schemaName,
				Reason: fmt.Sprintf("relation %q declared twice", d.Name)}
		}
		seen[d.Name] = struct{}{}

		switch d.Cardinality {
		case RelOne, RelMany, RelRef:
		default:
			return &ConfigurationError{Schema: schemaName,
				Reason: fmt.Sprintf("relation %q has invalid kind %d", d.Name, d.Cardinality)}
		}
		if d.SchemaField == "" || d.TargetField == "" {
			return &ConfigurationError{Schema: schemaName,
				Reason: fmt.Sprintf("relation %q: field and references are required", d.Name)}
		}
	}
	b.decls[schemaName] = decls
	return nil
}

// Finalize resolves every relation's target handle and returns the
// immutable registry. Relations whose target was never added keep a nil
// Target and are reported as a joined error of
// TargetSchemaUninitializedError values; the registry is still returned so
// callers that choose to continue get the same error at population time.
func (b *Builder) Finalize() (*Registry, error) {
	var errs []error

	names := make([]string, 0, len(b.decls))
	for name := range b.decls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := b.schemas[name]; !ok {
			errs = append(errs, &ConfigurationError{Schema: name,
				Reason: "relations registered for an unknown schema"})
		}
	}

	for _, name := range b.order {
		s := b.schemas[name]
		decls := b.decls[name]

		s.relations = make(map[string]*Relation, len(decls))
		s.order = s.order[:0]

		for _, d := range decls {
			rel := &Relation{
				Name:        d.Name,
				Cardinality: d.Cardinality,
				Source:      s,
				SchemaField: d.SchemaField,
				TargetName:  d.Target,
				TargetField: d.TargetField,
				Target:      b.schemas[d.Target],
			}
			if rel.Target == nil {
				errs = append(errs, &TargetSchemaUninitializedError{
					Schema: name, Field: d.Name, Target: d.Target})
			}
			s.relations[d.Name] = rel
			s.order = append(s.order, d.Name)
		}
	}

	reg := &Registry{schemas: b.schemas, order: append([]string(nil), b.order...)}
	return reg, errors.Join(errs...)
}

// Registry is the read-only schema and relation lookup shared by all
// population calls.
type Registry struct {
	schemas map[string]*Schema
	order   []string
}

// Schema returns the named schema.
func (r *Registry) Schema(name string) (*Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, &SchemaNotFoundError{Schema: name}
	}
	return s, nil
}

// Lookup returns the relation declared for field on schemaName.
func (r *Registry) Lookup(schemaName, field string) (*Relation, error) {
	s, err := r.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	rel, ok := s.relations[field]
	if !ok {
		return nil, &RelationNotFoundError{Schema: schemaName, Field: field}
	}
	if rel.Target == nil {
		return nil, &TargetSchemaUninitializedError{
			Schema: schemaName, Field: field, Target: rel.TargetName}
	}
	return rel, nil
}

// Names returns schema names in the order they were added.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
