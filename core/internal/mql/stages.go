// Package mql renders population plans into MongoDB aggregation stages.
// Stages are bson.D so key order (which $sort depends on) survives all the
// way to the server.
package mql

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Field returns the expression that reads a document field.
func Field(name string) string { return "$" + name }

// Var returns the expression that reads a $lookup let variable.
func Var(name string) string { return "$$" + name }

func Match(filter any) bson.D {
	if filter == nil {
		filter = bson.D{}
	}
	return bson.D{{Key: "$match", Value: filter}}
}

func MatchExpr(expr any) bson.D {
	return Match(bson.D{{Key: "$expr", Value: expr}})
}

func Project(spec bson.D) bson.D {
	return bson.D{{Key: "$project", Value: spec}}
}

// Set is the conditional add-fields step used after a $lookup.
func Set(field string, expr any) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: expr}}}}
}

func Sort(spec bson.D) bson.D {
	return bson.D{{Key: "$sort", Value: spec}}
}

func Skip(n int64) bson.D {
	return bson.D{{Key: "$skip", Value: n}}
}

func Limit(n int64) bson.D {
	return bson.D{{Key: "$limit", Value: n}}
}

// LookupSpec is a $lookup stage. LocalField/ForeignField and Let/Pipeline
// may be combined.
type LookupSpec struct {
	From         string
	LocalField   string
	ForeignField string
	Let          bson.D
	Pipeline     []bson.D
	As           string
}

func Lookup(l LookupSpec) bson.D {
	spec := bson.D{{Key: "from", Value: l.From}}
	if l.LocalField != "" {
		spec = append(spec,
			bson.E{Key: "localField", Value: l.LocalField},
			bson.E{Key: "foreignField", Value: l.ForeignField})
	}
	if len(l.Let) != 0 {
		spec = append(spec, bson.E{Key: "let", Value: l.Let})
	}
	if l.Pipeline != nil {
		spec = append(spec, bson.E{Key: "pipeline", Value: pipelineArray(l.Pipeline)})
	}
	spec = append(spec, bson.E{Key: "as", Value: l.As})
	return bson.D{{Key: "$lookup", Value: spec}}
}

func pipelineArray(stages []bson.D) bson.A {
	a := make(bson.A, len(stages))
	for i, s := range stages {
		a[i] = s
	}
	return a
}

// Expression primitives.

func Eq(a, b any) bson.D {
	return bson.D{{Key: "$eq", Value: bson.A{a, b}}}
}

func Ne(a, b any) bson.D {
	return bson.D{{Key: "$ne", Value: bson.A{a, b}}}
}

func And(exprs ...any) bson.D {
	return bson.D{{Key: "$and", Value: bson.A(exprs)}}
}

func IsArray(expr any) bson.D {
	return bson.D{{Key: "$isArray", Value: expr}}
}

func ArrayElemAt(arr any, idx int) bson.D {
	return bson.D{{Key: "$arrayElemAt", Value: bson.A{arr, idx}}}
}

func Size(expr any) bson.D {
	return bson.D{{Key: "$size", Value: expr}}
}

func Literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

func Cond(ifExpr, thenExpr, elseExpr any) bson.D {
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: ifExpr},
		{Key: "then", Value: thenExpr},
		{Key: "else", Value: elseExpr},
	}}}
}
