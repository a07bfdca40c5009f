package sdata

import "fmt"

//go:generate stringer -type=Cardinality -linecomment

// Cardinality is the shape a relation resolves to. The set is closed:
// every switch over it must handle all three values.
type Cardinality int8

const (
	RelOne  Cardinality = iota + 1 // one
	RelMany                        // many
	RelRef                         // ref
)

// ParseCardinality maps the config spelling of a relation kind.
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "one":
		return RelOne, nil
	case "many":
		return RelMany, nil
	case "ref":
		return RelRef, nil
	}
	return 0, fmt.Errorf("unknown relation kind %q: expected one, many or ref", s)
}

// Relation describes how a field on one schema joins another schema.
//
// For RelOne and RelMany the value(s) stored in SchemaField on the source
// document are matched against TargetField on the target collection. RelRef
// runs the other way: target documents whose TargetField equals the
// source's SchemaField (usually the source's own _id) are collected.
type Relation struct {
	Name        string
	Cardinality Cardinality
	Source      *Schema
	SchemaField string
	TargetName  string
	TargetField string

	// Target is nil until the registry is finalized and stays nil when the
	// target schema was never added.
	Target *Schema
}

// RelationDecl declares a relation against a target schema handle (its
// name). Handles are resolved by Builder.Finalize.
type RelationDecl struct {
	Name        string
	Cardinality Cardinality
	Target      string
	SchemaField string
	TargetField string
}

// One declares a to-one relation: source.field -> target.references.
func One(name, target, field, references string) RelationDecl {
	return RelationDecl{Name: name, Cardinality: RelOne, Target: target,
		SchemaField: field, TargetField: references}
}

// Many declares an array relation: every id in source.field -> target.references.
func Many(name, target, field, references string) RelationDecl {
	return RelationDecl{Name: name, Cardinality: RelMany, Target: target,
		SchemaField: field, TargetField: references}
}

// Ref declares an inverse relation: target.references == source.field.
func Ref(name, target, field, references string) RelationDecl {
	return RelationDecl{Name: name, Cardinality: RelRef, Target: target,
		SchemaField: field, TargetField: references}
}
