package mql

import (
	"fmt"

	"github.com/dosco/graphjin/populate/v3/core/internal/qcode"
	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Base is the primary query the population stages are appended to.
type Base struct {
	Filter any
	Sort   []qcode.OrderBy
	Skip   *int64
	Limit  *int64
}

// Pipeline renders the complete aggregation for a root plan:
// match, sort, skip, limit, project, then the population stages.
func Pipeline(p *qcode.Plan, b Base) []bson.D {
	stages := []bson.D{Match(b.Filter)}
	stages = append(stages, paging(b.Sort, b.Skip, b.Limit)...)
	if st := ProjectStage(p); st != nil {
		stages = append(stages, st)
	}
	return append(stages, Render(p)...)
}

// Render returns the population stages of one plan level: for every node a
// $lookup staging the joined documents under the node's alias, followed by
// the $set that fixes the alias's shape.
func Render(p *qcode.Plan) []bson.D {
	stages := make([]bson.D, 0, len(p.Nodes)*2)
	for _, n := range p.Nodes {
		stages = append(stages, renderNode(n)...)
	}
	return stages
}

// SubPipeline returns the stages run against the target collection of n.
func SubPipeline(n *qcode.Node) []bson.D {
	var stages []bson.D
	tf := n.Rel.TargetField

	switch n.Cardinality() {
	case sdata.RelOne:
		stages = append(stages, MatchExpr(And(
			Ne(Var(n.LetVar), nil),
			Eq(Field(tf), Var(n.LetVar)),
		)))
	case sdata.RelMany:
		// the join itself is localField/foreignField
	case sdata.RelRef:
		stages = append(stages,
			Match(bson.D{{Key: tf, Value: bson.D{{Key: "$ne", Value: nil}}}}),
			MatchExpr(Eq(Field(tf), Var(n.LetVar))),
		)
	default:
		panic(fmt.Sprintf("mql: unhandled cardinality %s", n.Cardinality()))
	}

	stages = append(stages, paging(n.Sort, n.Skip, n.Limit)...)

	if st := ProjectStage(n.Target); st != nil {
		stages = append(stages, st)
	}
	return append(stages, Render(n.Target)...)
}

func renderNode(n *qcode.Node) []bson.D {
	rel := n.Rel
	sub := SubPipeline(n)

	switch n.Cardinality() {
	case sdata.RelOne:
		return []bson.D{
			Lookup(LookupSpec{
				From:     rel.Target.Collection,
				Let:      bson.D{{Key: n.LetVar, Value: Field(rel.SchemaField)}},
				Pipeline: sub,
				As:       n.Alias,
			}),
			unwrapOne(n.Alias),
		}

	case sdata.RelMany:
		l := LookupSpec{
			From:         rel.Target.Collection,
			LocalField:   rel.SchemaField,
			ForeignField: rel.TargetField,
			As:           n.Alias,
		}
		if len(sub) != 0 {
			l.Pipeline = sub
		}
		return []bson.D{Lookup(l), ensureArray(n.Alias)}

	case sdata.RelRef:
		return []bson.D{
			Lookup(LookupSpec{
				From:     rel.Target.Collection,
				Let:      bson.D{{Key: n.LetVar, Value: Field(rel.SchemaField)}},
				Pipeline: sub,
				As:       n.Alias,
			}),
			ensureArray(n.Alias),
		}
	}
	panic(fmt.Sprintf("mql: unhandled cardinality %s", n.Cardinality()))
}

// unwrapOne turns the one-element $lookup array into the element or null.
func unwrapOne(alias string) bson.D {
	f := Field(alias)
	return Set(alias, Cond(
		And(IsArray(f), Ne(Size(f), 0)),
		ArrayElemAt(f, 0),
		Literal(nil),
	))
}

// ensureArray coerces anything that is not an array into [].
func ensureArray(alias string) bson.D {
	f := Field(alias)
	return Set(alias, Cond(IsArray(f), f, Literal(bson.A{})))
}

// ProjectStage renders the $project stage of a plan level, or nil when every
// field is visible. Virtual fields are computed client side and never sent.
func ProjectStage(p *qcode.Plan) bson.D {
	proj := p.Projection

	var v int32
	switch proj.Mode() {
	case qcode.Unrestricted:
		return nil
	case qcode.Inclusion:
		v = 1
	case qcode.Exclusion:
		v = 0
	}

	spec := bson.D{}
	for _, f := range proj.Fields() {
		// a listed ancestor already covers f; both would collide
		if p.Schema.IsVirtual(f) || proj.HasAncestor(f) {
			continue
		}
		spec = append(spec, bson.E{Key: f, Value: v})
	}

	if len(spec) == 0 {
		if proj.Mode() == qcode.Exclusion {
			return nil
		}
		// only virtuals were selected; keep the document identity
		spec = bson.D{{Key: "_id", Value: int32(1)}}
	}
	return Project(spec)
}

func paging(sort []qcode.OrderBy, skip, limit *int64) []bson.D {
	var stages []bson.D
	if len(sort) != 0 {
		spec := make(bson.D, len(sort))
		for i, ob := range sort {
			spec[i] = bson.E{Key: ob.Field, Value: int32(ob.Order)}
		}
		stages = append(stages, Sort(spec))
	}
	if skip != nil && *skip > 0 {
		stages = append(stages, Skip(*skip))
	}
	if limit != nil && *limit > 0 {
		stages = append(stages, Limit(*limit))
	}
	return stages
}
