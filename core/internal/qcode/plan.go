package qcode

import (
	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
)

// Plan is the compiled form of one level of a populate request: the schema
// whose documents appear at this level, how they are projected, and the
// joins to run against them.
type Plan struct {
	Schema     *sdata.Schema
	Projection Projection

	// Extras are fields fetched only for virtuals or joins. The decoder
	// strips them from the output.
	Extras []string

	Nodes []*Node
}

// Node is one requested relation field.
type Node struct {
	Field  string
	Rel    *sdata.Relation
	Depth  int
	Alias  string
	LetVar string

	Sort  []OrderBy
	Skip  *int64
	Limit *int64

	// Target describes the joined documents. It always exists; a relation
	// without a nested populate has a Target with no Nodes.
	Target *Plan
}

// Cardinality is a shortcut for n.Rel.Cardinality.
func (n *Node) Cardinality() sdata.Cardinality {
	return n.Rel.Cardinality
}

// Aliases returns the staging keys this level adds to its documents.
func (p *Plan) Aliases() []string {
	aliases := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		aliases[i] = n.Alias
	}
	return aliases
}

// Depth returns the number of join levels below p.
func (p *Plan) Depth() int {
	d := 0
	for _, n := range p.Nodes {
		if nd := n.Target.Depth() + 1; nd > d {
			d = nd
		}
	}
	return d
}

// Compiler turns populate requests into plans. It holds only the immutable
// registry and is safe for concurrent use.
type Compiler struct {
	reg *sdata.Registry
}

func NewCompiler(reg *sdata.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile builds the plan for documents of schemaName projected by proj with
// the relations in req populated. The plan is built depth first and returned
// only when every branch resolved; on error nothing is returned.
func (co *Compiler) Compile(schemaName string, proj Projection, req *Request) (*Plan, error) {
	s, err := co.reg.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return co.compileLevel(s, proj, req, 0)
}

func (co *Compiler) compileLevel(s *sdata.Schema, proj Projection, req *Request, depth int) (*Plan, error) {
	var nodes []*Node
	var joinKeys []string

	if req != nil {
		nodes = make([]*Node, 0, len(req.Entries))
		joinKeys = make([]string, 0, len(req.Entries))
	}

	for _, e := range req.entries() {
		n, err := co.compileNode(s, e, depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		joinKeys = append(joinKeys, n.Rel.SchemaField)
	}

	proj, extras := AddExtraFields(proj, s.VirtualDeps(), joinKeys)

	return &Plan{
		Schema:     s,
		Projection: proj,
		Extras:     extras,
		Nodes:      nodes,
	}, nil
}

func (co *Compiler) compileNode(s *sdata.Schema, e Entry, depth int) (*Node, error) {
	rel, err := co.reg.Lookup(s.Name, e.Field)
	if err != nil {
		return nil, err
	}

	opts := e.Options
	if opts == nil {
		opts = &Options{}
	}

	tproj := Normalize(opts.Select, opts.Omit)
	if tproj.Mode() == Unrestricted {
		tproj = Exclude(rel.Target.Omit...)
	}

	target, err := co.compileLevel(rel.Target, tproj, opts.Populate, depth+1)
	if err != nil {
		return nil, err
	}

	alias, letVar, err := aliasFor(aliasKey{
		Depth:       depth,
		Schema:      s.Name,
		Field:       e.Field,
		Target:      rel.Target.Name,
		SchemaField: rel.SchemaField,
		TargetField: rel.TargetField,
	})
	if err != nil {
		return nil, err
	}

	n := &Node{
		Field:  e.Field,
		Rel:    rel,
		Depth:  depth,
		Alias:  alias,
		LetVar: letVar,
		Target: target,
	}

	switch rel.Cardinality {
	case sdata.RelOne:
		// first match wins; sort and skip do not apply to a single value
		one := int64(1)
		n.Limit = &one
	case sdata.RelMany, sdata.RelRef:
		n.Sort = opts.Sort
		n.Skip = opts.Skip
		n.Limit = opts.Limit
	}
	return n, nil
}

func (r *Request) entries() []Entry {
	if r == nil {
		return nil
	}
	return r.Entries
}
