// Package serv runs the population engine as an HTTP and MCP service.
package serv

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/dosco/graphjin/populate/v3/mongodriver"
	"github.com/dosco/graphjin/populate/v3/serv/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var version string

const (
	serverName = "Populate"
	defaultHP  = "0.0.0.0:8080"
)

// HttpService holds the current service. Handlers load it on every request
// so a config reload swaps the engine without restarting the listener.
type HttpService struct {
	atomic.Value

	opt     []Option
	reg     *prometheus.Registry
	metrics *core.Metrics
}

type service struct {
	conf   *Config
	log    *zap.SugaredLogger
	zlog   *zap.Logger
	engine *core.Engine
	exec   core.Executor
	conn   *mongodriver.Conn
}

type Option func(*service) error

// OptionSetExecutor runs queries on exec instead of connecting to the
// configured database.
func OptionSetExecutor(exec core.Executor) Option {
	return func(s *service) error {
		if exec == nil {
			return errors.New("executor is nil")
		}
		s.exec = exec
		return nil
	}
}

// OptionSetZapLogger sets the service logger
func OptionSetZapLogger(zlog *zap.Logger) Option {
	return func(s *service) error {
		if zlog == nil {
			return errors.New("logger is nil")
		}
		s.zlog = zlog
		s.log = zlog.Sugar()
		return nil
	}
}

// OptionSetLogOutput writes service logs to out. The mcp command uses it to
// keep stdout free for JSON-RPC.
func OptionSetLogOutput(out zapcore.WriteSyncer) Option {
	return func(s *service) error {
		s.zlog = util.NewLoggerWithOutput(s.conf.ShouldUseJSONLogs(), s.conf.LogLevel, out).
			Named(appName(s.conf))
		s.log = s.zlog.Sugar()
		return nil
	}
}

// NewPopulateService connects to the database and builds the engine.
func NewPopulateService(conf *Config, options ...Option) (*HttpService, error) {
	if conf == nil {
		return nil, errors.New("config is nil")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := core.NewMetrics(reg)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}

	s1 := &HttpService{opt: options, reg: reg, metrics: m}

	s, err := newService(context.Background(), conf, m, nil, options...)
	if err != nil {
		return nil, err
	}
	s1.Store(s)
	return s1, nil
}

func newService(ctx context.Context, conf *Config, m *core.Metrics, prev *service, options ...Option) (*service, error) {
	s := &service{conf: conf}
	s.zlog = newLogger(conf)
	s.log = s.zlog.Sugar()

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if err := s.initConfig(); err != nil {
		return nil, err
	}

	if s.exec == nil && prev != nil {
		s.exec, s.conn = prev.exec, prev.conn
	}

	if s.exec == nil {
		if err := s.initDB(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.initEngine(m); err != nil {
		return nil, err
	}

	if conf.DB.CheckRelations && s.conn != nil {
		s.checkRelations(ctx)
	}
	return s, nil
}

// Engine returns the current engine.
func (s1 *HttpService) Engine() *core.Engine {
	return s1.Load().(*service).engine
}

// Config returns the current configuration.
func (s1 *HttpService) Config() *Config {
	return s1.Load().(*service).conf
}

// Reload rebuilds the engine from conf and swaps it in. The database
// connection is kept.
func (s1 *HttpService) Reload(conf *Config) error {
	prev := s1.Load().(*service)

	s, err := newService(context.Background(), conf, s1.metrics, prev, s1.opt...)
	if err != nil {
		return err
	}

	if prev.conf.DB != conf.DB {
		s.log.Warn("database settings changed, restart the service to apply them")
	}
	s1.Store(s)
	return nil
}

// Start runs the service until an interrupt or terminate signal arrives.
func (s1 *HttpService) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s1.Run(ctx)
}

// Run serves HTTP, and watches the config file in development, until ctx is
// canceled or one of them fails.
func (s1 *HttpService) Run(ctx context.Context) error {
	s := s1.Load().(*service)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s1.startHTTP(ctx)
	})

	if s.conf.WatchAndReload && !s.conf.Production && s.conf.ConfigFile() != "" {
		g.Go(func() error {
			return s1.startConfigWatcher(ctx)
		})
	}
	return g.Wait()
}

// Handler returns the service's HTTP routes.
func (s1 *HttpService) Handler() (http.Handler, error) {
	return routesHandler(s1, chi.NewRouter())
}

func (s1 *HttpService) startHTTP(ctx context.Context) error {
	s := s1.Load().(*service)

	routes, err := s1.Handler()
	if err != nil {
		return errors.Wrap(err, "routes")
	}

	srv := &http.Server{
		Addr:              s.conf.hostPort,
		Handler:           routes,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		s := s1.Load().(*service)
		if s.conn != nil {
			if err := s.conn.Close(context.Background()); err != nil {
				s.log.Warnf("closing database connection: %s", err)
			}
		}
		s.log.Info("shutdown complete")
	})

	l, err := net.Listen("tcp", s.conf.hostPort)
	if err != nil {
		return errors.Wrapf(err, "failed to init port %s", s.conf.hostPort)
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.log.Warnf("shutdown: %s", err)
		}
	}()

	ver := version
	if ver == "" {
		ver = "not-set"
	}

	s.zlog.Info("populate service started",
		zap.String("version", ver),
		zap.String("host-port", s.conf.hostPort),
		zap.String("app-name", s.conf.AppName),
		zap.String("env", os.Getenv("GO_ENV")),
		zap.Bool("production", s.conf.Production),
		zap.Strings("schemas", schemaNames(s.engine)),
		zap.String("mcp", mcpMode(s.conf)))

	if err := srv.Serve(l); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func mcpMode(conf *Config) string {
	if conf.MCP.Disable {
		return "disabled"
	}
	return strings.Join(mcpToolList(conf), ",")
}

func schemaNames(e *core.Engine) []string {
	var names []string
	for _, si := range e.Schemas() {
		names = append(names, si.Name)
	}
	return names
}

// Set the server header
func setServerHeader(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverName)
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
