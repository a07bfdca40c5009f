package serv

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/dosco/graphjin/populate/v3/serv/internal/util"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type Core = core.Config

// Configuration for the populate service
type Config struct {
	// Schemas, relations and engine limits
	Core `mapstructure:",squash" jsonschema:"title=Engine Configuration"`

	// Configuration for the HTTP and MCP service
	Serv `mapstructure:",squash" jsonschema:"title=Service Configuration"`

	hostPort string
	viper    *viper.Viper
}

// Configuration for the populate service
type Serv struct {
	// Name used for the logger and in startup logs
	AppName string `mapstructure:"app_name" jsonschema:"title=App Name"`

	// When enabled the config watcher is disabled and logs default to JSON
	Production bool `jsonschema:"title=Production Mode,default=false"`

	// The default path to find all configuration files
	ConfigPath string `mapstructure:"config_path" jsonschema:"title=Config Path"`

	// One of debug, info, warn or error
	LogLevel string `mapstructure:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// Logging Format: "auto" (colored console in dev, JSON in production),
	// "json" or "simple"
	LogFormat string `mapstructure:"log_format" jsonschema:"title=Logging Format,enum=auto,enum=json,enum=simple"`

	// Listen address, for example localhost:8080. Host and Port override
	// its parts.
	HostPort string `mapstructure:"host_port" jsonschema:"title=Listen Address,default=0.0.0.0:8080"`

	// Overrides the host part of HostPort, bound to $HOST
	Host string `jsonschema:"title=Host"`

	// Overrides the port part of HostPort, bound to $PORT
	Port string `jsonschema:"title=Port"`

	// Gzip API responses
	HTTPGZip bool `mapstructure:"http_compress" jsonschema:"title=Compress Responses,default=true"`

	// Per client request rate limit
	RateLimiter RateLimiter `mapstructure:"rate_limiter" jsonschema:"title=Rate Limit"`

	// Enable OpenTelemetry request tracing
	EnableTracing bool `mapstructure:"enable_tracing" jsonschema:"title=Enable Tracing,default=false"`

	// Rebuild the engine when the config file changes. Disabled in production
	WatchAndReload bool `mapstructure:"reload_on_config_change" jsonschema:"title=Reload Config"`

	// Origins allowed by CORS and the stream websocket
	AllowedOrigins []string `mapstructure:"cors_allowed_origins" jsonschema:"title=Allowed Origins"`

	// Request headers allowed by CORS
	AllowedHeaders []string `mapstructure:"cors_allowed_headers" jsonschema:"title=Allowed Headers"`

	// Log CORS decisions
	DebugCORS bool `mapstructure:"cors_debug" jsonschema:"title=Debug CORS"`

	// Database configuration
	DB Database `mapstructure:"database" jsonschema:"title=Database"`

	// Model Context Protocol tools
	MCP MCPConfig `mapstructure:"mcp" jsonschema:"title=MCP"`
}

// Database configuration
type Database struct {
	// MongoDB connection string, for example mongodb://localhost:27017
	URI string `mapstructure:"uri" jsonschema:"title=Connection URI"`

	// Database name
	Name string `mapstructure:"name" jsonschema:"title=Database Name"`

	// Max number of pooled connections
	PoolSize uint64 `mapstructure:"pool_size" jsonschema:"title=Connection Pool Size"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" jsonschema:"title=Connect Timeout"`

	// Database ping timeout is used for health checking
	PingTimeout time.Duration `mapstructure:"ping_timeout" jsonschema:"title=Ping Timeout"`

	// Ping attempts made on startup before giving up
	ConnectRetries uint `mapstructure:"connect_retries" jsonschema:"title=Connect Retries,default=5"`

	// Allow population stages to spill to disk
	AllowDiskUse bool `mapstructure:"allow_disk_use" jsonschema:"title=Allow Disk Use,default=false"`

	// Sample collections on startup and warn about relation fields that
	// were not found
	CheckRelations bool `mapstructure:"check_relations" jsonschema:"title=Check Relation Fields,default=false"`

	// Documents sampled per collection by the relation check
	SampleSize int `mapstructure:"sample_size" jsonschema:"title=Sample Size,default=100"`
}

// RateLimiter is a token bucket kept per client IP
type RateLimiter struct {
	// Requests per second
	Rate float64 `jsonschema:"title=Rate"`

	// Largest burst allowed
	Bucket int `jsonschema:"title=Burst"`

	// Read the client IP from this header instead of the remote address
	IPHeader string `mapstructure:"ip_header" jsonschema:"title=Client IP Header,example=X-Forwarded-For"`
}

// MCPConfig configures the Model Context Protocol server. The CLI `mcp`
// command serves it over stdio, the HTTP service at /api/v1/mcp.
type MCPConfig struct {
	// Turn the MCP tools off
	Disable bool `jsonschema:"title=Disable,default=false"`

	// Allow the populate tool to run queries. When false only schema listing
	// and explain are available.
	AllowQueries bool `mapstructure:"allow_queries" jsonschema:"title=Allow Queries,default=true"`

	// Upper bound on documents returned by the populate tool
	MaxResults int64 `mapstructure:"max_results" jsonschema:"title=Max Results,default=100"`
}

// ReadInConfig reads in the config file for the environment specified in
// the GO_ENV environment variable.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but reads from fs
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := vi.GetString("inherits"); value != "" {
			return nil, errors.Errorf("config %s inherits %s, which inherits %s: only one level is allowed", configFile, pcf, value)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	for _, e := range os.Environ() {
		if strings.HasPrefix(e, util.EnvPrefix) {
			kv := strings.SplitN(e, "=", 2)
			util.SetKeyValue(vi, kv[0], kv[1])
		}
	}

	c := &Config{viper: vi}
	c.ConfigPath = cp

	if err := vi.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return c, nil
}

// NewConfig creates a configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}

	c := &Config{viper: vi}

	if err := vi.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return c, nil
}

func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("host_port", "0.0.0.0:8080")
	vi.SetDefault("http_compress", true)
	vi.SetDefault("enable_tracing", false)
	vi.SetDefault("reload_on_config_change", true)

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")

	vi.SetDefault("database.uri", "mongodb://localhost:27017")
	vi.SetDefault("database.connect_timeout", "10s")
	vi.SetDefault("database.ping_timeout", "2s")
	vi.SetDefault("database.connect_retries", 5)
	vi.SetDefault("database.sample_size", 100)

	vi.SetDefault("max_depth", 0)

	vi.SetDefault("env", "development")

	vi.BindEnv("env", "GO_ENV") //nolint:errcheck
	vi.BindEnv("host", "HOST")  //nolint:errcheck
	vi.BindEnv("port", "PORT")  //nolint:errcheck

	vi.SetDefault("mcp.disable", false)
	vi.SetDefault("mcp.allow_queries", true)
	vi.SetDefault("mcp.max_results", 100)

	return vi
}

func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}
	return vi
}

// ConfigFile returns the path of the file the config was read from, if any
func (c *Config) ConfigFile() string {
	if c.viper == nil {
		return ""
	}
	return c.viper.ConfigFileUsed()
}

// AbsolutePath resolves p against the config directory
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

func (c *Config) rateLimiterEnable() bool {
	return c.RateLimiter.Rate > 0 && c.RateLimiter.Bucket > 0
}

// ShouldUseJSONLogs returns true if log_format is "json" or if it is "auto"
// and production mode is enabled.
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	if c.LogFormat == "auto" && c.Serv.Production {
		return true
	}
	return false
}

// GetConfigName returns the name of the config file for GO_ENV
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
