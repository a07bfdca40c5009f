package serv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchedYAML = `
app_name: blog
schemas:
  - name: users
`

func TestReload(t *testing.T) {
	s1 := newTestService(t, blogYAML, newBlogExec())
	before := s1.Engine()

	conf, err := NewConfig(watchedYAML, "yaml")
	require.NoError(t, err)
	require.NoError(t, s1.Reload(conf))

	assert.NotSame(t, before, s1.Engine())
	assert.Equal(t, []string{"users"}, schemaNames(s1.Engine()))
	assert.Same(t, conf, s1.Config())
}

func TestReloadInvalidKeepsEngine(t *testing.T) {
	s1 := newTestService(t, blogYAML, newBlogExec())
	before := s1.Engine()

	conf, err := NewConfig(`
schemas:
  - name: posts
    relations:
      - name: author
        kind: one
        target: nobody
`, "yaml")
	require.NoError(t, err)

	assert.Error(t, s1.Reload(conf))
	assert.Same(t, before, s1.Engine())
}

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	cf := filepath.Join(dir, "dev.yml")
	require.NoError(t, os.WriteFile(cf, []byte(blogYAML), 0o644))

	conf, err := ReadInConfig(cf)
	require.NoError(t, err)

	s1, err := NewPopulateService(conf, OptionSetExecutor(newBlogExec()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s1.startConfigWatcher(ctx) }()

	// The watcher needs a moment to register the directory
	require.Eventually(t, func() bool {
		if err := os.WriteFile(cf, []byte(watchedYAML), 0o644); err != nil {
			return false
		}
		return len(s1.Engine().Schemas()) == 1
	}, 10*time.Second, 700*time.Millisecond)

	// A broken config is logged and the running engine is kept
	time.Sleep(2 * reloadDelay)
	e := s1.Engine()
	require.NoError(t, os.WriteFile(cf, []byte("schemas: ["), 0o644))
	time.Sleep(2 * reloadDelay)
	assert.Same(t, e, s1.Engine())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
