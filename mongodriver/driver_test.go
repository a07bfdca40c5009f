package mongodriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap/zaptest"
)

func TestInferBSONType(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"object id", bson.NewObjectID(), "objectId"},
		{"string", "a", "string"},
		{"int32", int32(1), "int"},
		{"int64", int64(1), "long"},
		{"double", 1.5, "double"},
		{"bool", true, "bool"},
		{"date", bson.NewDateTimeFromTime(time.Now()), "date"},
		{"bson array", bson.A{1}, "array"},
		{"slice", []string{"a"}, "array"},
		{"document", bson.D{{Key: "a", Value: 1}}, "object"},
		{"map", bson.M{"a": 1}, "object"},
		{"binary", bson.Binary{Data: []byte{1}}, "binData"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferBSONType(tt.in))
		})
	}
}

func TestNormalizeBSONType(t *testing.T) {
	assert.Equal(t, "objectId", normalizeBSONType("objectId"))
	assert.Equal(t, "string", normalizeBSONType(bson.A{"string", "null"}))
	assert.Equal(t, "int", normalizeBSONType([]any{"int"}))
	assert.Equal(t, "string", normalizeBSONType(42))
}

func TestMergeFields(t *testing.T) {
	declared := map[string]FieldInfo{
		"author": {Name: "author", BSONType: "objectId", Required: true},
	}
	sampled := map[string]FieldInfo{
		"author": {Name: "author", BSONType: "string"},
		"title":  {Name: "title", BSONType: "string"},
	}

	got := mergeFields(declared, sampled)
	assert.Equal(t, []string{"author", "title"}, FieldNames(got))
	assert.Equal(t, "objectId", got["author"].BSONType)
	assert.True(t, got["author"].Required)
}

func TestFindingString(t *testing.T) {
	f := Finding{Schema: "posts", Relation: "author", Collection: "posts", Field: "authorId"}
	assert.Equal(t, "posts.author: field 'authorId' not found in collection 'posts'", f.String())
}

func TestConnectValidation(t *testing.T) {
	ctx := context.Background()

	_, err := Connect(ctx, Config{Database: "blog"})
	assert.ErrorContains(t, err, "uri is required")

	_, err = Connect(ctx, Config{URI: "mongodb://localhost:27017"})
	assert.ErrorContains(t, err, "database name is required")
}

func TestNewConn(t *testing.T) {
	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Skipf("could not create mongo client: %v", err)
	}
	c := NewConn(client, "blog")
	assert.Equal(t, "blog", c.Database())

	var _ core.Executor = c

	_, err = c.Aggregate(context.Background(), "", nil)
	assert.ErrorContains(t, err, "requires collection")

	// Close leaves a borrowed client connected
	require.NoError(t, c.Close(context.Background()))
}

// Runs against a real server started with testcontainers. Set
// POPULATE_INTEGRATION=1 to enable.
func TestWithMongoDB(t *testing.T) {
	if os.Getenv("POPULATE_INTEGRATION") == "" {
		t.Skip("set POPULATE_INTEGRATION=1 to run the MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	defer func() { _ = container.Terminate(context.Background()) }()

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	conn, err := Connect(ctx, Config{
		URI:          uri,
		Database:     "populate_test",
		Retries:      10,
		PingTimeout:  2 * time.Second,
		AllowDiskUse: true,
	})
	require.NoError(t, err)
	defer conn.Close(ctx)

	userA, userB, userC := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()
	post1, post2 := bson.NewObjectID(), bson.NewObjectID()

	_, err = conn.DB().Collection("users").InsertMany(ctx, []any{
		bson.D{{Key: "_id", Value: userA}, {Key: "name", Value: "Ada"}},
		bson.D{{Key: "_id", Value: userB}, {Key: "name", Value: "Brian"}, {Key: "tutor", Value: userA}},
		bson.D{{Key: "_id", Value: userC}, {Key: "name", Value: "Cleo"}},
	})
	require.NoError(t, err)

	_, err = conn.DB().Collection("posts").InsertMany(ctx, []any{
		bson.D{
			{Key: "_id", Value: post1},
			{Key: "title", Value: "Joins without joins"},
			{Key: "body", Value: "..."},
			{Key: "author", Value: userA},
			{Key: "editor", Value: userB},
			{Key: "contributors", Value: bson.A{userB, userC}},
		},
		bson.D{
			{Key: "_id", Value: post2},
			{Key: "title", Value: "Second post"},
			{Key: "body", Value: "..."},
			{Key: "author", Value: userB},
			{Key: "editor", Value: userB},
			{Key: "contributors", Value: bson.A{}},
		},
	})
	require.NoError(t, err)

	conf := &core.Config{Schemas: []core.SchemaConfig{
		{
			Name: "users",
			Relations: []core.RelationConfig{
				{Name: "tutor", Kind: "one", Target: "users"},
				{Name: "posts", Kind: "ref", Target: "posts", References: "editor"},
			},
		},
		{
			Name: "posts",
			Relations: []core.RelationConfig{
				{Name: "author", Kind: "one", Target: "users"},
				{Name: "editor", Kind: "one", Target: "users"},
				{Name: "contributors", Kind: "many", Target: "users"},
			},
		},
	}}

	e, err := core.NewEngine(conf, conn, core.OptionSetLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	t.Run("self relation", func(t *testing.T) {
		b, err := e.FindOne(ctx, "users", core.Query{
			Filter:   bson.D{{Key: "_id", Value: userB}},
			Populate: map[string]any{"tutor": true},
		})
		require.NoError(t, err)
		require.NotNil(t, b)
		tutor, ok := b["tutor"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, userA, tutor["_id"])

		a, err := e.FindOne(ctx, "users", core.Query{
			Filter:   bson.D{{Key: "_id", Value: userA}},
			Populate: map[string]any{"tutor": true},
		})
		require.NoError(t, err)
		assert.Contains(t, a, "tutor")
		assert.Nil(t, a["tutor"])
	})

	t.Run("one and many together", func(t *testing.T) {
		p, err := e.FindOne(ctx, "posts", core.Query{
			Filter:   bson.D{{Key: "_id", Value: post1}},
			Populate: map[string]any{"author": true, "contributors": true},
		})
		require.NoError(t, err)

		author, ok := p["author"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Ada", author["name"])

		contributors, ok := p["contributors"].([]any)
		require.True(t, ok)
		assert.Len(t, contributors, 2)
	})

	t.Run("three levels", func(t *testing.T) {
		docs, err := e.Find(ctx, "posts", core.Query{
			Sort: []core.OrderBy{{Field: "title", Order: core.OrderAsc}},
			Populate: map[string]any{
				"editor": map[string]any{
					"populate": map[string]any{
						"posts": map[string]any{"populate": map[string]any{"author": true}},
					},
				},
			},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)

		editor := docs[0]["editor"].(map[string]any)
		assert.Equal(t, userB, editor["_id"])

		posts := editor["posts"].([]any)
		assert.Len(t, posts, 2)
		for _, p := range posts {
			_, ok := p.(map[string]any)["author"].(map[string]any)
			assert.True(t, ok)
		}
	})

	t.Run("nested select", func(t *testing.T) {
		b, err := e.FindOne(ctx, "users", core.Query{
			Filter: bson.D{{Key: "_id", Value: userB}},
			Populate: map[string]any{
				"posts": map[string]any{"select": map[string]any{"title": true}},
			},
		})
		require.NoError(t, err)

		posts := b["posts"].([]any)
		require.Len(t, posts, 2)
		for _, p := range posts {
			doc := p.(map[string]any)
			assert.ElementsMatch(t, []string{"_id", "title"}, keys(doc))
		}
	})

	t.Run("check relations", func(t *testing.T) {
		found, err := conn.CheckRelations(ctx, e.Schemas(), 10)
		require.NoError(t, err)
		assert.Empty(t, found)

		fields, err := conn.SampleFields(ctx, "posts", 10)
		require.NoError(t, err)
		assert.True(t, fields["contributors"].IsArray)
	})
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
