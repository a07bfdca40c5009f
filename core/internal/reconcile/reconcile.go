// Package reconcile rebuilds the nested documents a caller asked for from
// the flat output of a population pipeline.
package reconcile

import (
	"fmt"

	"github.com/dosco/graphjin/populate/v3/core/internal/decode"
	"github.com/dosco/graphjin/populate/v3/core/internal/qcode"
	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
)

// MissingAliasError means a document came back without a staging field the
// plan put there. The pipeline and the plan disagree.
type MissingAliasError struct {
	Schema string
	Field  string
	Alias  string
}

func (e *MissingAliasError) Error() string {
	return fmt.Sprintf("schema %q: populated field %q: alias %q missing from result",
		e.Schema, e.Field, e.Alias)
}

// NotDocumentError is returned when a value that must be a document is not.
type NotDocumentError struct {
	Schema string
	Type   string
}

func (e *NotDocumentError) Error() string {
	return fmt.Sprintf("schema %q: expected a document, got %s", e.Schema, e.Type)
}

// Reconciler maps pipeline output back through a plan. It keeps no state
// between calls and is safe for concurrent use.
type Reconciler struct {
	dec decode.Decoder
}

// New returns a Reconciler using dec for every document. A nil dec selects
// decode.Default.
func New(dec decode.Decoder) *Reconciler {
	if dec == nil {
		dec = decode.Default{}
	}
	return &Reconciler{dec: dec}
}

// Document reconciles one raw document against p. raw is not modified.
func (r *Reconciler) Document(p *qcode.Plan, raw any) (map[string]any, error) {
	src, ok := decode.Doc(raw)
	if !ok {
		return nil, &NotDocumentError{Schema: p.Schema.Name, Type: fmt.Sprintf("%T", raw)}
	}
	return r.document(p, src)
}

// src is always a private copy produced by decode.Doc.
func (r *Reconciler) document(p *qcode.Plan, src map[string]any) (map[string]any, error) {
	staged := make(map[string]any, len(p.Nodes))
	for _, n := range p.Nodes {
		v, ok := src[n.Alias]
		if !ok {
			return nil, &MissingAliasError{
				Schema: p.Schema.Name,
				Field:  n.Field,
				Alias:  n.Alias,
			}
		}
		staged[n.Alias] = v
		delete(src, n.Alias)
	}

	doc, err := r.dec.Decode(p.Schema, src, p.Projection, p.Extras)
	if err != nil {
		return nil, err
	}

	for _, n := range p.Nodes {
		v, err := r.node(n, staged[n.Alias])
		if err != nil {
			return nil, err
		}
		doc[n.Field] = v
	}
	return doc, nil
}

func (r *Reconciler) node(n *qcode.Node, v any) (any, error) {
	switch n.Cardinality() {
	case sdata.RelOne:
		if arr, ok := decode.Array(v); ok {
			if len(arr) == 0 {
				return nil, nil
			}
			v = arr[0]
		}
		if v == nil {
			return nil, nil
		}
		return r.element(n.Target, v)

	case sdata.RelMany, sdata.RelRef:
		arr, ok := decode.Array(v)
		if !ok {
			return []any{}, nil
		}
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			d, err := r.element(n.Target, item)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}
	panic(fmt.Sprintf("reconcile: unhandled cardinality %s", n.Cardinality()))
}

func (r *Reconciler) element(p *qcode.Plan, v any) (map[string]any, error) {
	src, ok := decode.Doc(v)
	if !ok {
		return nil, &NotDocumentError{Schema: p.Schema.Name, Type: fmt.Sprintf("%T", v)}
	}
	return r.document(p, src)
}
