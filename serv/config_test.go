package serv

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	conf, err := NewConfig(blogYAML, "yaml")
	require.NoError(t, err)

	assert.Equal(t, "blog", conf.AppName)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.False(t, conf.HTTPGZip)
	assert.Equal(t, "0.0.0.0:8080", conf.HostPort)
	assert.Equal(t, "mongodb://localhost:27017", conf.DB.URI)
	assert.Equal(t, 10*time.Second, conf.DB.ConnectTimeout)
	assert.Equal(t, 2*time.Second, conf.DB.PingTimeout)
	assert.Equal(t, uint(5), conf.DB.ConnectRetries)
	assert.Equal(t, 100, conf.DB.SampleSize)
	assert.True(t, conf.MCP.AllowQueries)
	assert.Equal(t, int64(100), conf.MCP.MaxResults)

	require.Len(t, conf.Schemas, 2)
	assert.Equal(t, "users", conf.Schemas[0].Name)
	assert.Equal(t, []string{"password"}, conf.Schemas[0].Omit)
	require.Len(t, conf.Schemas[1].Relations, 2)
	assert.Equal(t, "contributors", conf.Schemas[1].Relations[1].Name)
	assert.Equal(t, "many", conf.Schemas[1].Relations[1].Kind)

	assert.Empty(t, conf.ConfigFile())
}

func TestNewConfigJSON(t *testing.T) {
	conf, err := NewConfig(`{"app_name": "api", "database": {"name": "blog"}}`, "json")
	require.NoError(t, err)
	assert.Equal(t, "api", conf.AppName)
	assert.Equal(t, "blog", conf.DB.Name)
}

func TestNewConfigInvalid(t *testing.T) {
	_, err := NewConfig("schemas: [", "yaml")
	assert.Error(t, err)
}

func TestReadInConfigFS(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "/app/config/base.yml", []byte(`
app_name: base
log_level: warn
database:
  name: blog
schemas:
  - name: users
`), 0o644))

	require.NoError(t, afero.WriteFile(fs, "/app/config/dev.yml", []byte(`
inherits: base
app_name: dev
`), 0o644))

	conf, err := ReadInConfigFS("/app/config/dev.yml", fs)
	require.NoError(t, err)

	assert.Equal(t, "dev", conf.AppName)
	assert.Equal(t, "warn", conf.LogLevel)
	assert.Equal(t, "blog", conf.DB.Name)
	assert.Equal(t, "/app/config", conf.ConfigPath)
	require.Len(t, conf.Schemas, 1)
	assert.Equal(t, "/app/config/dev.yml", conf.ConfigFile())
	assert.Equal(t, "/app/config/seed.js", conf.AbsolutePath("seed.js"))
}

func TestReadInConfigFSNestedInherits(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "/app/config/a.yml", []byte("inherits: b\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/config/b.yml", []byte("inherits: c\n"), 0o644))

	_, err := ReadInConfigFS("/app/config/a.yml", fs)
	assert.ErrorContains(t, err, "only one level is allowed")
}

func TestReadInConfigFSEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/config/dev.yml", []byte("log_level: info\n"), 0o644))

	t.Setenv("POP_LOG_LEVEL", "error")
	t.Setenv("POP_DATABASE_URI", "mongodb://db:27017")

	conf, err := ReadInConfigFS("/app/config/dev.yml", fs)
	require.NoError(t, err)
	assert.Equal(t, "error", conf.LogLevel)
	assert.Equal(t, "mongodb://db:27017", conf.DB.URI)
}

func TestShouldUseJSONLogs(t *testing.T) {
	tests := []struct {
		format     string
		production bool
		want       bool
	}{
		{"json", false, true},
		{"auto", true, true},
		{"auto", false, false},
		{"simple", true, false},
	}

	for _, tt := range tests {
		c := &Config{}
		c.LogFormat = tt.format
		c.Production = tt.production
		assert.Equal(t, tt.want, c.ShouldUseJSONLogs(), "%s production=%v", tt.format, tt.production)
	}
}

func TestGetConfigName(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"", "dev"},
		{"development", "dev"},
		{"Production", "prod"},
		{"stage", "stage"},
		{"test", "test"},
		{"qa", "qa"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.env, func(t *testing.T) {
			t.Setenv("GO_ENV", tt.env)
			assert.Equal(t, tt.want, GetConfigName())
		})
	}
}

func TestInitConfigHostPort(t *testing.T) {
	conf, err := NewConfig("host_port: 127.0.0.1:9000\nport: \"9100\"\n", "yaml")
	require.NoError(t, err)

	s := &service{conf: conf}
	require.NoError(t, s.initConfig())
	assert.Equal(t, "127.0.0.1:9100", conf.hostPort)
}
