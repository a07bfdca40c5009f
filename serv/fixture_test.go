package serv

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"
)

const blogYAML = `
app_name: blog
log_level: debug
http_compress: false
schemas:
  - name: users
    omit: [password]
    relations:
      - name: tutor
        kind: one
        target: users
  - name: posts
    relations:
      - name: author
        kind: one
        target: users
      - name: contributors
        kind: many
        target: users
`

// fakeExec returns docs for every aggregate. Each $lookup alias at the top
// level of the pipeline is filled with related.
type fakeExec struct {
	mu        sync.Mutex
	docs      []bson.D
	related   bson.D
	err       error
	pipelines [][]bson.D
}

func (f *fakeExec) Aggregate(ctx context.Context, collection string, pipeline []bson.D) (core.RawCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pipelines = append(f.pipelines, pipeline)
	if f.err != nil {
		return nil, f.err
	}

	aliases := lookupAliases(pipeline)
	docs := make([]bson.D, 0, len(f.docs))
	for _, d := range f.docs {
		nd := append(bson.D{}, d...)
		for _, as := range aliases {
			nd = append(nd, bson.E{Key: as, Value: bson.A{f.related}})
		}
		docs = append(docs, nd)
	}
	return &fakeCursor{docs: docs, i: -1}, nil
}

func (f *fakeExec) last() []bson.D {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pipelines) == 0 {
		return nil
	}
	return f.pipelines[len(f.pipelines)-1]
}

func lookupAliases(pipeline []bson.D) []string {
	var aliases []string
	for _, st := range pipeline {
		if len(st) == 0 || st[0].Key != "$lookup" {
			continue
		}
		for _, e := range st[0].Value.(bson.D) {
			if e.Key == "as" {
				aliases = append(aliases, e.Value.(string))
			}
		}
	}
	return aliases
}

type fakeCursor struct {
	docs []bson.D
	i    int
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	c.i++
	return c.i < len(c.docs)
}

func (c *fakeCursor) Decode(v any) error {
	d, ok := v.(*bson.D)
	if !ok {
		return errors.New("unsupported decode target")
	}
	*d = c.docs[c.i]
	return nil
}

func (c *fakeCursor) Err() error { return nil }

func (c *fakeCursor) Close(ctx context.Context) error { return nil }

func newBlogExec() *fakeExec {
	return &fakeExec{
		docs: []bson.D{
			{{Key: "_id", Value: "p1"}, {Key: "title", Value: "Hello"}, {Key: "author", Value: "u1"}},
		},
		related: bson.D{{Key: "_id", Value: "u1"}, {Key: "name", Value: "Ada"}},
	}
}

func newTestService(t *testing.T, yaml string, exec core.Executor) *HttpService {
	t.Helper()

	conf, err := NewConfig(yaml, "yaml")
	require.NoError(t, err)

	s1, err := NewPopulateService(conf,
		OptionSetExecutor(exec),
		OptionSetZapLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s1
}

func newTestServer(t *testing.T, s1 *HttpService) *httptest.Server {
	t.Helper()

	h, err := s1.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}
