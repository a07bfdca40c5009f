package sdata

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
)

// Schema is the metadata the population engine needs about a collection.
type Schema struct {
	Name       string
	Collection string

	// Omit lists fields hidden when a caller gives no select or omit.
	Omit []string

	Virtuals []*Virtual

	relations map[string]*Relation
	order     []string
}

// NewSchema returns a schema with no relations. The collection defaults to
// the schema name.
func NewSchema(name, collection string, omit []string, virtuals ...*Virtual) *Schema {
	if collection == "" {
		collection = name
	}
	return &Schema{
		Name:       name,
		Collection: collection,
		Omit:       omit,
		Virtuals:   virtuals,
	}
}

// Virtual returns the virtual field with the given name.
func (s *Schema) Virtual(name string) (*Virtual, bool) {
	for _, v := range s.Virtuals {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// IsVirtual reports whether name is a computed field.
func (s *Schema) IsVirtual(name string) bool {
	_, ok := s.Virtual(name)
	return ok
}

// VirtualDeps maps every virtual field to the stored fields it reads.
func (s *Schema) VirtualDeps() map[string][]string {
	if len(s.Virtuals) == 0 {
		return nil
	}
	deps := make(map[string][]string, len(s.Virtuals))
	for _, v := range s.Virtuals {
		deps[v.Name] = v.Deps
	}
	return deps
}

// Relations returns the relations in declaration order.
func (s *Schema) Relations() []*Relation {
	rels := make([]*Relation, 0, len(s.order))
	for _, name := range s.order {
		rels = append(rels, s.relations[name])
	}
	return rels
}

var (
	virtualEnvOnce sync.Once
	virtualEnv     *cel.Env
	virtualEnvErr  error
)

func getVirtualEnv() (*cel.Env, error) {
	virtualEnvOnce.Do(func() {
		virtualEnv, virtualEnvErr = cel.NewEnv(
			cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return virtualEnv, virtualEnvErr
}

// Virtual is a computed field. Its value is a CEL expression evaluated
// against the decoded document, bound as `doc`.
type Virtual struct {
	Name string
	Deps []string
	Expr string

	prg cel.Program
}

// NewVirtual compiles expr. Deps must list every stored field the
// expression reads; they are fetched even when the caller hides them.
func NewVirtual(name string, deps []string, expr string) (*Virtual, error) {
	env, err := getVirtualEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("virtual %q: compile error: %w", name, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("virtual %q: %w", name, err)
	}

	d := append([]string(nil), deps...)
	sort.Strings(d)

	return &Virtual{Name: name, Deps: d, Expr: expr, prg: prg}, nil
}

// Eval computes the virtual value for doc.
func (v *Virtual) Eval(doc map[string]any) (any, error) {
	out, _, err := v.prg.Eval(map[string]any{"doc": doc})
	if err != nil {
		return nil, fmt.Errorf("virtual %q: %w", v.Name, err)
	}
	return out.Value(), nil
}
