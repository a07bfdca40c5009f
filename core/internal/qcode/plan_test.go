package qcode

import (
	"testing"

	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileOneLevel(t *testing.T) {
	co := NewCompiler(blogRegistry(t))

	req, err := ParseRequest(`{"author": true, "tags": {"limit": 3}}`)
	require.NoError(t, err)

	p, err := co.Compile("posts", Include("title"), req)
	require.NoError(t, err)

	assert.Equal(t, "posts", p.Schema.Name)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, 1, p.Depth())

	// join keys missing from the caller's select are fetched as extras
	assert.Equal(t, []string{"author", "tags"}, p.Extras)
	assert.Equal(t, []string{"author", "tags", "title"}, p.Projection.Fields())

	author := p.Nodes[0]
	assert.Equal(t, "author", author.Field)
	assert.Equal(t, sdata.RelOne, author.Cardinality())
	assert.Equal(t, int64p(1), author.Limit)
	assert.Equal(t, 0, author.Depth)
	require.NotNil(t, author.Target)
	assert.Empty(t, author.Target.Nodes)

	// default target projection applies the schema omit list
	assert.Equal(t, Exclusion, author.Target.Projection.Mode())
	assert.False(t, author.Target.Projection.IsVisible("password"))

	tags := p.Nodes[1]
	assert.Equal(t, sdata.RelMany, tags.Cardinality())
	assert.Equal(t, int64p(3), tags.Limit)
	assert.Equal(t, Unrestricted, tags.Target.Projection.Mode())
}

func TestCompileNested(t *testing.T) {
	co := NewCompiler(blogRegistry(t))

	req, err := ParseRequest(`{
		"posts": {
			"sort": {"createdAt": -1},
			"populate": {
				"comments": {
					"select": {"body": true},
					"populate": {"author": {"select": {"fullName": true}}}
				}
			}
		}
	}`)
	require.NoError(t, err)

	p, err := co.Compile("users", Projection{}, req)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Depth())
	assert.Empty(t, p.Extras)

	posts := p.Nodes[0]
	assert.Equal(t, sdata.RelRef, posts.Cardinality())
	assert.Equal(t, []OrderBy{{"createdAt", OrderDesc}}, posts.Sort)
	assert.Nil(t, posts.Limit)

	comments := posts.Target.Nodes[0]
	assert.Equal(t, 1, comments.Depth)
	assert.Equal(t, []string{"author"}, comments.Target.Extras)

	author := comments.Target.Nodes[0]
	assert.Equal(t, 2, author.Depth)
	// the virtual needs both name parts even though only fullName is selected
	assert.Equal(t, []string{"firstName", "lastName"}, author.Target.Extras)
	assert.Equal(t, []string{"firstName", "fullName", "lastName"}, author.Target.Projection.Fields())
}

func TestCompileOneIgnoresPaging(t *testing.T) {
	co := NewCompiler(blogRegistry(t))

	req := new(Request).Add("author", &Options{
		Sort:  []OrderBy{{"name", OrderAsc}},
		Skip:  int64p(2),
		Limit: int64p(5),
	})
	p, err := co.Compile("posts", Projection{}, req)
	require.NoError(t, err)

	n := p.Nodes[0]
	assert.Nil(t, n.Sort)
	assert.Nil(t, n.Skip)
	assert.Equal(t, int64p(1), n.Limit)
}

func TestCompileAliasesUnique(t *testing.T) {
	co := NewCompiler(blogRegistry(t))

	// author appears at three depths and three relations target users
	req, err := ParseRequest(`{
		"author": {"populate": {"bestFriend": {"populate": {"bestFriend": true}}}},
		"comments": {"populate": {"author": {"populate": {"posts": {"populate": {"author": true}}}}}}
	}`)
	require.NoError(t, err)

	p, err := co.Compile("posts", Projection{}, req)
	require.NoError(t, err)

	seen := map[string]string{}
	var walk func(p *Plan, path string)
	walk = func(p *Plan, path string) {
		for _, n := range p.Nodes {
			np := path + "." + n.Field
			assert.True(t, IsAlias(n.Alias), n.Alias)
			if prev, ok := seen[n.Alias]; ok {
				t.Errorf("alias %s used by %s and %s", n.Alias, prev, np)
			}
			seen[n.Alias] = np
			walk(n.Target, np)
		}
	}
	walk(p, "posts")
	assert.Len(t, seen, 7)
}

func TestCompileDeterministic(t *testing.T) {
	co := NewCompiler(blogRegistry(t))
	req, err := ParseRequest(`{"author": true, "comments": {"populate": {"author": true}}}`)
	require.NoError(t, err)

	a, err := co.Compile("posts", Projection{}, req)
	require.NoError(t, err)
	b, err := co.Compile("posts", Projection{}, req)
	require.NoError(t, err)

	assert.Equal(t, a.Aliases(), b.Aliases())
	assert.Equal(t, a.Nodes[1].Target.Aliases(), b.Nodes[1].Target.Aliases())
	assert.NotEqual(t, a.Nodes[0].Alias, a.Nodes[1].Target.Nodes[0].Alias)
}

func TestCompileErrors(t *testing.T) {
	co := NewCompiler(blogRegistry(t))

	_, err := co.Compile("authors", Projection{}, nil)
	var noSchema *sdata.SchemaNotFoundError
	assert.ErrorAs(t, err, &noSchema)

	// the failure is deep in the tree; no partial plan comes back
	req, err := ParseRequest(`{"comments": {"populate": {"author": {"populate": {"editor": true}}}}}`)
	require.NoError(t, err)
	p, err := co.Compile("posts", Projection{}, req)
	var notFound *sdata.RelationNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "users", notFound.Schema)
	assert.Nil(t, p)

	conflict := new(Request).Add("author", &Options{
		Select: map[string]bool{"name": true},
		Omit:   map[string]bool{"email": true},
	})
	_, err = co.Compile("posts", Projection{}, conflict)
	var pce *ProjectionConflictError
	assert.ErrorAs(t, err, &pce)
}
