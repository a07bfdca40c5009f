package qcode

import (
	"testing"

	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
	"github.com/stretchr/testify/require"
)

// blogRegistry builds users, posts, comments and tags with relations in
// every direction, including a self reference on users.
func blogRegistry(t *testing.T) *sdata.Registry {
	t.Helper()

	fullName, err := sdata.NewVirtual("fullName", []string{"firstName", "lastName"},
		`doc.firstName + " " + doc.lastName`)
	require.NoError(t, err)

	b := sdata.NewBuilder()
	require.NoError(t, b.AddSchema(sdata.NewSchema("users", "", []string{"password"}, fullName)))
	require.NoError(t, b.AddSchema(sdata.NewSchema("posts", "", nil)))
	require.NoError(t, b.AddSchema(sdata.NewSchema("comments", "", nil)))
	require.NoError(t, b.AddSchema(sdata.NewSchema("tags", "", nil)))

	require.NoError(t, b.Register("users",
		sdata.Ref("posts", "posts", "_id", "author"),
		sdata.One("bestFriend", "users", "bestFriend", "_id"),
	))
	require.NoError(t, b.Register("posts",
		sdata.One("author", "users", "author", "_id"),
		sdata.Many("tags", "tags", "tags", "_id"),
		sdata.Ref("comments", "comments", "_id", "post"),
	))
	require.NoError(t, b.Register("comments",
		sdata.One("author", "users", "author", "_id"),
		sdata.One("post", "posts", "post", "_id"),
	))

	reg, err := b.Finalize()
	require.NoError(t, err)
	return reg
}

func int64p(n int64) *int64 { return &n }
