package qcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParseRequestJSON(t *testing.T) {
	req, err := ParseRequest(`{
		"author": true,
		"comments": {
			"select": {"body": true},
			"sort": {"createdAt": -1, "body": "asc"},
			"skip": 5,
			"limit": 10,
			"populate": {"author": {"select": {"name": 1}}}
		},
		"tags": false
	}`)
	require.NoError(t, err)
	require.Len(t, req.Entries, 2)

	assert.Equal(t, "author", req.Entries[0].Field)
	assert.Nil(t, req.Entries[0].Options)

	c := req.Entries[1]
	assert.Equal(t, "comments", c.Field)
	require.NotNil(t, c.Options)
	assert.Equal(t, map[string]bool{"body": true}, c.Options.Select)
	assert.Equal(t, []OrderBy{{"createdAt", OrderDesc}, {"body", OrderAsc}}, c.Options.Sort)
	assert.Equal(t, int64p(5), c.Options.Skip)
	assert.Equal(t, int64p(10), c.Options.Limit)

	require.Equal(t, 1, c.Options.Populate.Len())
	nested := c.Options.Populate.Entries[0]
	assert.Equal(t, "author", nested.Field)
	assert.Equal(t, map[string]bool{"name": true}, nested.Options.Select)
}

func TestParseRequestShapes(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		fields []string
	}{
		{"nil", nil, nil},
		{"blank json", "  ", nil},
		{"bson.D keeps order", bson.D{{Key: "tags", Value: true}, {Key: "author", Value: true}}, []string{"tags", "author"}},
		{"bson.M sorted", bson.M{"tags": true, "author": true}, []string{"author", "tags"}},
		{"map sorted", map[string]any{"tags": 1, "author": true}, []string{"author", "tags"}},
		{"bool map", map[string]bool{"tags": true, "author": false}, []string{"tags"}},
		{"request", new(Request).Add("author", nil), []string{"author"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.in)
			require.NoError(t, err)

			var fields []string
			for _, e := range req.entries() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		in   any
		conf bool
	}{
		{"not a document", 42, false},
		{"bad json", `{"author":`, false},
		{"bad entry", `{"author": "yes"}`, false},
		{"unknown option", `{"author": {"where": {}}}`, false},
		{"bad select", `{"author": {"select": {"name": "yes"}}}`, false},
		{"bad sort", `{"comments": {"sort": {"createdAt": 2}}}`, false},
		{"bad limit", `{"comments": {"limit": 1.5}}`, false},
		{"negative skip", `{"comments": {"skip": -1}}`, false},
		{"select and omit", `{"author": {"select": {"name": 1}, "omit": {"email": 1}}}`, true},
		{"nested conflict", `{"comments": {"populate": {"author": {"select": {"a": 1}, "omit": {"b": 1}}}}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.in)
			require.Error(t, err)

			var conflict *ProjectionConflictError
			assert.Equal(t, tt.conf, errors.As(err, &conflict))
		})
	}
}

func TestValidateDuplicateField(t *testing.T) {
	req := new(Request).Add("author", nil).Add("author", nil)
	err := req.Validate()
	var ire *InvalidRequestError
	require.ErrorAs(t, err, &ire)
	assert.Equal(t, "author", ire.Path)
}

func TestConflictPath(t *testing.T) {
	_, err := ParseRequest(`{"comments": {"populate": {"author": {"select": {"a": 1}, "omit": {"b": 1}}}}}`)
	var conflict *ProjectionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "comments.author", conflict.Path)
}

func TestParseSort(t *testing.T) {
	list, err := ParseSort(bson.D{{Key: "b", Value: "DESC"}, {Key: "a", Value: int32(1)}})
	require.NoError(t, err)
	assert.Equal(t, []OrderBy{{"b", OrderDesc}, {"a", OrderAsc}}, list)

	list, err = ParseSort(nil)
	require.NoError(t, err)
	assert.Nil(t, list)
}
