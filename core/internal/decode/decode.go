// Package decode turns raw documents read from the store into the values
// handed back to callers.
package decode

import (
	"maps"
	"strings"

	"github.com/dosco/graphjin/populate/v3/core/internal/qcode"
	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
)

// Decoder converts one raw document of schema s. p and extras are the pair
// returned by qcode.AddExtraFields: the inputs of the virtual fields visible
// under p are present in raw, and extras names what was fetched only for
// them and must not reach the caller.
type Decoder interface {
	Decode(s *sdata.Schema, raw map[string]any, p qcode.Projection, extras []string) (map[string]any, error)
}

// Default is the Decoder used when none is configured. Values are converted
// to plain Go maps and slices, virtuals are evaluated and anything the
// caller's projection hides is removed, dotted paths included.
type Default struct{}

func (Default) Decode(s *sdata.Schema, raw map[string]any, p qcode.Projection, extras []string) (map[string]any, error) {
	doc := make(map[string]any, len(raw)+len(s.Virtuals))
	for k, v := range raw {
		doc[k] = Value(v)
	}

	caller := p.Restore(extras)

	for _, v := range s.Virtuals {
		if !caller.IsVisible(v.Name) {
			continue
		}
		val, err := v.Eval(bindDeps(doc, v.Deps))
		if err != nil {
			return nil, &VirtualError{Schema: s.Name, Err: err}
		}
		doc[v.Name] = val
	}

	return project(doc, caller, ""), nil
}

// bindDeps returns doc with every absent dependency bound to null, so
// expressions can test for it instead of failing on a missing key. Only
// the top-level key of a dotted dependency is bound.
func bindDeps(doc map[string]any, deps []string) map[string]any {
	in := doc
	for _, d := range deps {
		if i := strings.IndexByte(d, '.'); i != -1 {
			d = d[:i]
		}
		if _, ok := in[d]; ok {
			continue
		}
		if len(in) == len(doc) {
			in = maps.Clone(doc)
		}
		in[d] = nil
	}
	return in
}

// project keeps the parts of m visible under p. prefix is the dotted path
// of m inside the top-level document.
func project(m map[string]any, p qcode.Projection, prefix string) map[string]any {
	for k, v := range m {
		path := prefix + k
		switch {
		case prefix == "" && !p.IsVisible(path):
			delete(m, k)
		case p.Mode() == qcode.Inclusion && p.Covers(path):
		case p.Mode() == qcode.Exclusion && p.Covers(path):
			delete(m, k)
		case p.HasDescendant(path):
			if keep, ok := projectValue(v, p, path+"."); ok {
				m[k] = keep
			} else {
				delete(m, k)
			}
		case p.Mode() == qcode.Inclusion && prefix != "":
			delete(m, k)
		}
	}
	return m
}

// projectValue projects the subdocuments inside v. Scalars under a partly
// included path are dropped; under an exclusion they are kept as is.
func projectValue(v any, p qcode.Projection, prefix string) (any, bool) {
	switch v := v.(type) {
	case map[string]any:
		return project(v, p, prefix), true
	case []any:
		out := v[:0]
		for _, e := range v {
			if e, ok := projectValue(e, p, prefix); ok {
				out = append(out, e)
			}
		}
		return out, true
	}
	return v, p.Mode() != qcode.Inclusion
}

// VirtualError wraps a failed virtual field evaluation.
type VirtualError struct {
	Schema string
	Err    error
}

func (e *VirtualError) Error() string {
	return "schema \"" + e.Schema + "\": " + e.Err.Error()
}

func (e *VirtualError) Unwrap() error { return e.Err }
