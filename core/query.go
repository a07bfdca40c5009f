package core

import (
	"fmt"

	"github.com/dosco/graphjin/populate/v3/core/internal/qcode"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type (
	// PopulateRequest is a parsed populate request.
	PopulateRequest = qcode.Request
	PopulateEntry   = qcode.Entry
	PopulateOptions = qcode.Options
	OrderBy         = qcode.OrderBy
	Order           = qcode.Order
)

const (
	OrderAsc  = qcode.OrderAsc
	OrderDesc = qcode.OrderDesc
)

// Query is the primary query a populate request is attached to.
type Query struct {
	// Filter is any value the driver encodes as a document: bson.D, bson.M,
	// a map or a struct. Nil matches every document.
	Filter any

	Select map[string]bool
	Omit   map[string]bool

	// Populate accepts whatever ParsePopulate does.
	Populate any

	Sort  []OrderBy
	Skip  *int64
	Limit *int64
}

// ParsePopulate parses a populate request given as a
// *PopulateRequest, bson.D, map or extended JSON document.
func ParsePopulate(v any) (*PopulateRequest, error) {
	return qcode.ParseRequest(v)
}

// ParseQueryJSON reads a query from an extended JSON document with the keys
// filter, select, omit, populate, sort, skip and limit. Key order inside
// populate and sort is preserved.
func ParseQueryJSON(data []byte) (Query, error) {
	var q Query
	if len(data) == 0 {
		return q, nil
	}

	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return q, &InvalidRequestError{Reason: err.Error()}
	}

	for _, e := range d {
		var err error

		switch e.Key {
		case "filter":
			q.Filter = e.Value
		case "select":
			q.Select, err = qcode.ParseFieldSet(e.Value)
		case "omit":
			q.Omit, err = qcode.ParseFieldSet(e.Value)
		case "populate":
			q.Populate, err = qcode.ParseRequest(e.Value)
		case "sort":
			q.Sort, err = qcode.ParseSort(e.Value)
		case "skip":
			q.Skip, err = qcode.ParseCount(e.Key, e.Value)
		case "limit":
			q.Limit, err = qcode.ParseCount(e.Key, e.Value)
		default:
			err = &InvalidRequestError{Reason: fmt.Sprintf("unknown query key %q", e.Key)}
		}
		if err != nil {
			return q, err
		}
	}
	return q, q.validate()
}

func (q *Query) validate() error {
	if hasTruthy(q.Select) && hasTruthy(q.Omit) {
		return &ProjectionConflictError{}
	}
	if q.Skip != nil && *q.Skip < 0 {
		return &InvalidRequestError{Reason: "skip must not be negative"}
	}
	if q.Limit != nil && *q.Limit < 0 {
		return &InvalidRequestError{Reason: "limit must not be negative"}
	}
	for _, ob := range q.Sort {
		if ob.Order != OrderAsc && ob.Order != OrderDesc {
			return &InvalidRequestError{Reason: fmt.Sprintf("invalid sort order for %q", ob.Field)}
		}
	}
	return nil
}

func hasTruthy(m map[string]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}
