package qcode

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseRequest builds a Request from the shapes callers send: a *Request, an
// ordered bson.D, an extended-JSON document ([]byte or string), or a plain
// map. Field order is kept for bson.D and JSON input; plain maps have no
// order so their keys are visited sorted.
func ParseRequest(v any) (*Request, error) {
	req, err := parseRequest("", v)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func parseRequest(path string, v any) (*Request, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case *Request:
		return val, nil
	case Request:
		return &val, nil
	case []byte:
		return parseRequestJSON(path, val)
	case string:
		return parseRequestJSON(path, []byte(val))
	}

	kvs, ok := orderedPairs(v)
	if !ok {
		return nil, &InvalidRequestError{Path: path,
			Reason: fmt.Sprintf("expected a document, got %T", v)}
	}

	req := &Request{Entries: make([]Entry, 0, len(kvs))}
	for _, kv := range kvs {
		p := joinPath(path, kv.Key)

		if on, isBool := truthy(kv.Value); isBool {
			if on {
				req.Entries = append(req.Entries, Entry{Field: kv.Key})
			}
			continue
		}

		opts, err := parseOptions(p, kv.Value)
		if err != nil {
			return nil, err
		}
		req.Entries = append(req.Entries, Entry{Field: kv.Key, Options: opts})
	}
	return req, nil
}

func parseRequestJSON(path string, data []byte) (*Request, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, &InvalidRequestError{Path: path, Reason: err.Error()}
	}
	return parseRequest(path, d)
}

func parseOptions(path string, v any) (*Options, error) {
	kvs, ok := orderedPairs(v)
	if !ok {
		return nil, &InvalidRequestError{Path: path,
			Reason: fmt.Sprintf("expected true or an options document, got %T", v)}
	}

	opts := &Options{}
	for _, kv := range kvs {
		var err error

		switch kv.Key {
		case "select":
			opts.Select, err = parseFieldSet(path, kv.Key, kv.Value)
		case "omit":
			opts.Omit, err = parseFieldSet(path, kv.Key, kv.Value)
		case "populate":
			opts.Populate, err = parseRequest(path, kv.Value)
		case "sort":
			opts.Sort, err = parseSort(path, kv.Value)
		case "skip":
			opts.Skip, err = parseCount(path, kv.Key, kv.Value)
		case "limit":
			opts.Limit, err = parseCount(path, kv.Key, kv.Value)
		default:
			err = &InvalidRequestError{Path: path, Reason: fmt.Sprintf("unknown option %q", kv.Key)}
		}
		if err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// ParseFieldSet reads a select/omit document such as {name: true, age: 1}.
func ParseFieldSet(v any) (map[string]bool, error) {
	return parseFieldSet("", "select", v)
}

func parseFieldSet(path, key string, v any) (map[string]bool, error) {
	if v == nil {
		return nil, nil
	}
	kvs, ok := orderedPairs(v)
	if !ok {
		return nil, &InvalidRequestError{Path: path,
			Reason: fmt.Sprintf("%s must be a document, got %T", key, v)}
	}
	set := make(map[string]bool, len(kvs))
	for _, kv := range kvs {
		on, isBool := truthy(kv.Value)
		if !isBool {
			return nil, &InvalidRequestError{Path: path,
				Reason: fmt.Sprintf("%s.%s must be a boolean", key, kv.Key)}
		}
		set[kv.Key] = on
	}
	return set, nil
}

// ParseSort reads a sort document such as {createdAt: -1, title: "asc"}.
func ParseSort(v any) ([]OrderBy, error) {
	return parseSort("", v)
}

func parseSort(path string, v any) ([]OrderBy, error) {
	if v == nil {
		return nil, nil
	}
	kvs, ok := orderedPairs(v)
	if !ok {
		return nil, &InvalidRequestError{Path: path,
			Reason: fmt.Sprintf("sort must be a document, got %T", v)}
	}

	list := make([]OrderBy, 0, len(kvs))
	for _, kv := range kvs {
		ob := OrderBy{Field: kv.Key}

		switch val := kv.Value.(type) {
		case string:
			switch strings.ToLower(val) {
			case "asc", "ascending":
				ob.Order = OrderAsc
			case "desc", "descending":
				ob.Order = OrderDesc
			}
		default:
			if n, ok := toInt64(val); ok {
				switch n {
				case 1:
					ob.Order = OrderAsc
				case -1:
					ob.Order = OrderDesc
				}
			}
		}
		if ob.Order == 0 {
			return nil, &InvalidRequestError{Path: path,
				Reason: fmt.Sprintf("sort.%s must be 1, -1, \"asc\" or \"desc\"", kv.Key)}
		}
		list = append(list, ob)
	}
	return list, nil
}

// ParseCount reads a skip or limit value.
func ParseCount(key string, v any) (*int64, error) {
	return parseCount("", key, v)
}

func parseCount(path, key string, v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, &InvalidRequestError{Path: path,
			Reason: fmt.Sprintf("%s must be an integer, got %v", key, v)}
	}
	return &n, nil
}

// orderedPairs returns the key/value pairs of a document value. bson.D keeps
// its order, maps are sorted by key.
func orderedPairs(v any) ([]bson.E, bool) {
	switch val := v.(type) {
	case bson.D:
		return val, true
	case bson.M:
		return sortedPairs(val), true
	case map[string]any:
		return sortedPairs(val), true
	case map[string]bool:
		m := make(map[string]any, len(val))
		for k, b := range val {
			m[k] = b
		}
		return sortedPairs(m), true
	}
	return nil, false
}

func sortedPairs(m map[string]any) []bson.E {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]bson.E, len(keys))
	for i, k := range keys {
		kvs[i] = bson.E{Key: k, Value: m[k]}
	}
	return kvs
}

// truthy interprets booleans and the 0/1 numbers MongoDB accepts in
// projections. The second value is false when v is neither.
func truthy(v any) (on bool, ok bool) {
	if b, isBool := v.(bool); isBool {
		return b, true
	}
	if n, isNum := toInt64(v); isNum {
		return n != 0, true
	}
	return false, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
