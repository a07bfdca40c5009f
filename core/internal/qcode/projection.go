package qcode

import (
	"sort"
	"strings"
)

type Mode int8

const (
	Unrestricted Mode = iota
	Inclusion
	Exclusion
)

func (m Mode) String() string {
	switch m {
	case Inclusion:
		return "inclusion"
	case Exclusion:
		return "exclusion"
	}
	return "unrestricted"
}

// Projection is the field visibility of one plan level. It is a value type:
// every operation returns a new Projection and never touches the maps the
// caller passed in.
type Projection struct {
	mode   Mode
	fields map[string]struct{}
}

// Normalize folds a select or omit map into a Projection. Only truthy
// entries count. When both are given select wins; rejecting that
// combination is the job of the request parser.
func Normalize(sel, omit map[string]bool) Projection {
	if p := fromMap(Inclusion, sel); p.mode != Unrestricted {
		return p
	}
	return fromMap(Exclusion, omit)
}

// Include returns an inclusion projection of the given fields.
func Include(fields ...string) Projection {
	return fromList(Inclusion, fields)
}

// Exclude returns an exclusion projection of the given fields.
func Exclude(fields ...string) Projection {
	return fromList(Exclusion, fields)
}

func fromMap(mode Mode, m map[string]bool) Projection {
	var fields map[string]struct{}
	for k, v := range m {
		if !v {
			continue
		}
		if fields == nil {
			fields = make(map[string]struct{}, len(m))
		}
		fields[k] = struct{}{}
	}
	if len(fields) == 0 {
		return Projection{}
	}
	return Projection{mode: mode, fields: fields}
}

func fromList(mode Mode, list []string) Projection {
	if len(list) == 0 {
		return Projection{}
	}
	fields := make(map[string]struct{}, len(list))
	for _, f := range list {
		fields[f] = struct{}{}
	}
	return Projection{mode: mode, fields: fields}
}

// Mode reports how IsVisible interprets the field set.
func (p Projection) Mode() Mode {
	return p.mode
}

// Fields returns the listed fields in sorted order.
func (p Projection) Fields() []string {
	list := make([]string, 0, len(p.fields))
	for f := range p.fields {
		list = append(list, f)
	}
	sort.Strings(list)
	return list
}

// IsVisible reports whether field ends up, at least in part, in the
// projected document. Under inclusion a dotted path is visible when it or an
// ancestor is listed, and a parent is visible when one of its descendants is
// listed. Under exclusion a path is hidden only when it or an ancestor is
// listed. _id is kept by inclusion projections unless explicitly omitted.
func (p Projection) IsVisible(field string) bool {
	switch p.mode {
	case Inclusion:
		return field == "_id" || p.Covers(field) || p.HasDescendant(field)
	case Exclusion:
		return !p.Covers(field)
	}
	return true
}

// Covers reports whether field or one of its ancestors is listed.
func (p Projection) Covers(field string) bool {
	if _, ok := p.fields[field]; ok {
		return true
	}
	return p.HasAncestor(field)
}

// HasAncestor reports whether a strict ancestor of field is listed.
func (p Projection) HasAncestor(field string) bool {
	for i := strings.LastIndexByte(field, '.'); i != -1; i = strings.LastIndexByte(field, '.') {
		field = field[:i]
		if _, ok := p.fields[field]; ok {
			return true
		}
	}
	return false
}

// HasDescendant reports whether a path below field is listed.
func (p Projection) HasDescendant(field string) bool {
	prefix := field + "."
	for f := range p.fields {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

// fetchesAll reports whether the whole value of field, subdocuments
// included, is read from the store.
func (p Projection) fetchesAll(field string) bool {
	switch p.mode {
	case Inclusion:
		return p.Covers(field)
	case Exclusion:
		return !p.Covers(field) && !p.HasDescendant(field)
	}
	return true
}

func (p Projection) with(field string) Projection {
	fields := make(map[string]struct{}, len(p.fields)+1)
	for f := range p.fields {
		fields[f] = struct{}{}
	}
	fields[field] = struct{}{}
	return Projection{mode: p.mode, fields: fields}
}

// hiding returns, sorted, the listed entries on the same path as field.
func (p Projection) hiding(field string) []string {
	var list []string
	for f := range p.fields {
		if f == field || strings.HasPrefix(field, f+".") || strings.HasPrefix(f, field+".") {
			list = append(list, f)
		}
	}
	sort.Strings(list)
	return list
}

func (p Projection) without(drop ...string) Projection {
	fields := make(map[string]struct{}, len(p.fields))
	for f := range p.fields {
		fields[f] = struct{}{}
	}
	for _, f := range drop {
		delete(fields, f)
	}
	if len(fields) == 0 {
		return Projection{}
	}
	return Projection{mode: p.mode, fields: fields}
}

// Restore undoes AddExtraFields: given the widened projection and the extras
// it returned, it yields the projection the caller asked for.
func (p Projection) Restore(extras []string) Projection {
	if len(extras) == 0 {
		return p
	}
	switch p.mode {
	case Inclusion:
		return p.without(extras...)
	case Exclusion:
		for _, f := range extras {
			p = p.with(f)
		}
		return p
	}
	// every omitted entry was lifted
	return Exclude(extras...)
}

// AddExtraFields makes sure every input of a visible virtual field and every
// join key in joinKeys is fetched whole. It returns the widened projection
// and the entries changed for that purpose, in the order they were changed:
// fields added to an inclusion, or omitted entries lifted from an exclusion.
// Restore turns the pair back into the caller's projection.
func AddExtraFields(p Projection, virtualDeps map[string][]string, joinKeys []string) (Projection, []string) {
	var extras []string
	seen := make(map[string]struct{})

	need := func(field string) {
		if _, ok := seen[field]; ok {
			return
		}
		seen[field] = struct{}{}
		if p.fetchesAll(field) {
			return
		}
		switch p.mode {
		case Inclusion:
			p = p.with(field)
			extras = append(extras, field)
		case Exclusion:
			// lift the omitted entries in the way; they are the extras
			hide := p.hiding(field)
			p = p.without(hide...)
			extras = append(extras, hide...)
		}
	}

	names := make([]string, 0, len(virtualDeps))
	for name := range virtualDeps {
		names = append(names, name)
	}
	sort.Strings(names)

	// virtual visibility is judged on the caller's projection
	visible := make([]string, 0, len(names))
	for _, name := range names {
		if p.IsVisible(name) {
			visible = append(visible, name)
		}
	}
	for _, name := range visible {
		for _, dep := range virtualDeps[name] {
			need(dep)
		}
	}
	for _, key := range joinKeys {
		need(key)
	}
	return p, extras
}
