package qcode

import (
	"fmt"
)

// Request is a populate request: relation fields in the order the caller
// listed them.
type Request struct {
	Entries []Entry
}

// Entry requests one relation field. A nil Options means `true`: populate
// with the target schema's defaults.
type Entry struct {
	Field   string
	Options *Options
}

// Options are the per-relation settings of a populate request.
type Options struct {
	Select   map[string]bool
	Omit     map[string]bool
	Populate *Request
	Sort     []OrderBy
	Skip     *int64
	Limit    *int64
}

type Order int8

const (
	OrderAsc  Order = 1
	OrderDesc Order = -1
)

type OrderBy struct {
	Field string
	Order Order
}

// Len returns the number of requested fields.
func (r *Request) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Add appends a field. It is a small builder for callers that construct
// requests in code.
func (r *Request) Add(field string, opts *Options) *Request {
	r.Entries = append(r.Entries, Entry{Field: field, Options: opts})
	return r
}

// Validate checks the invariants the compiler relies on: unique field names
// per level and select/omit exclusivity.
func (r *Request) Validate() error {
	return r.validate("")
}

func (r *Request) validate(path string) error {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(r.Entries))
	for _, e := range r.Entries {
		p := joinPath(path, e.Field)
		if e.Field == "" {
			return &InvalidRequestError{Path: path, Reason: "empty field name"}
		}
		if _, ok := seen[e.Field]; ok {
			return &InvalidRequestError{Path: p, Reason: "field requested twice"}
		}
		seen[e.Field] = struct{}{}

		if e.Options == nil {
			continue
		}
		if err := e.Options.validate(p); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) validate(path string) error {
	if hasTruthy(o.Select) && hasTruthy(o.Omit) {
		return &ProjectionConflictError{Path: path}
	}
	if o.Skip != nil && *o.Skip < 0 {
		return &InvalidRequestError{Path: path, Reason: fmt.Sprintf("skip must not be negative, got %d", *o.Skip)}
	}
	if o.Limit != nil && *o.Limit < 0 {
		return &InvalidRequestError{Path: path, Reason: fmt.Sprintf("limit must not be negative, got %d", *o.Limit)}
	}
	for _, ob := range o.Sort {
		if ob.Order != OrderAsc && ob.Order != OrderDesc {
			return &InvalidRequestError{Path: path, Reason: fmt.Sprintf("invalid sort order for %q", ob.Field)}
		}
	}
	return o.Populate.validate(path)
}

func hasTruthy(m map[string]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
