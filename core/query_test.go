package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParseQueryJSON(t *testing.T) {
	q, err := ParseQueryJSON([]byte(`{
		"filter": {"_id": {"$oid": "5f1b2c3d4e5f6a7b8c9d0e1f"}},
		"select": {"title": true},
		"populate": {"author": true, "contributors": {"limit": 2}},
		"sort": {"createdAt": -1},
		"skip": 10,
		"limit": 5
	}`))
	require.NoError(t, err)

	f, ok := q.Filter.(bson.D)
	require.True(t, ok)
	_, isOID := f[0].Value.(bson.ObjectID)
	assert.True(t, isOID)

	assert.Equal(t, map[string]bool{"title": true}, q.Select)
	assert.Equal(t, []OrderBy{{Field: "createdAt", Order: OrderDesc}}, q.Sort)
	assert.Equal(t, int64(10), *q.Skip)
	assert.Equal(t, int64(5), *q.Limit)

	req, ok := q.Populate.(*PopulateRequest)
	require.True(t, ok)
	require.Equal(t, 2, req.Len())
	assert.Equal(t, "author", req.Entries[0].Field)
	assert.Equal(t, int64(2), *req.Entries[1].Options.Limit)
}

func TestParseQueryJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{"filter":`},
		{"unknown key", `{"where": {}}`},
		{"conflict", `{"select": {"a": 1}, "omit": {"b": 1}}`},
		{"bad populate", `{"populate": {"author": "yes"}}`},
		{"negative skip", `{"skip": -5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueryJSON([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, IsRequestError(err))
		})
	}
}

func TestParseQueryJSONEmpty(t *testing.T) {
	q, err := ParseQueryJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, q.Filter)
	assert.Nil(t, q.Populate)
}
