package serv

import (
	"context"
	"fmt"
	"strings"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/dosco/graphjin/populate/v3/mongodriver"
	"github.com/dosco/graphjin/populate/v3/plugin/otel"
	"github.com/dosco/graphjin/populate/v3/serv/internal/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func newLogger(conf *Config) *zap.Logger {
	return util.NewLogger(conf.ShouldUseJSONLogs(), conf.LogLevel).
		Named(appName(conf))
}

func appName(conf *Config) string {
	if conf.AppName != "" {
		return conf.AppName
	}
	return "populate"
}

// initConfig resolves the listen address
func (s *service) initConfig() error {
	c := s.conf
	hp := strings.SplitN(c.HostPort, ":", 2)

	if len(hp) == 2 {
		if c.Host != "" {
			hp[0] = c.Host
		}

		if c.Port != "" {
			hp[1] = c.Port
		}

		c.hostPort = fmt.Sprintf("%s:%s", hp[0], hp[1])
	}

	if c.hostPort == "" {
		c.hostPort = defaultHP
	}
	return nil
}

// initDB connects to the configured database
func (s *service) initDB(ctx context.Context) error {
	db := s.conf.DB

	if db.Name == "" {
		return errors.New("database.name is required")
	}

	conn, err := mongodriver.Connect(ctx, mongodriver.Config{
		URI:            db.URI,
		Database:       db.Name,
		ConnectTimeout: db.ConnectTimeout,
		PingTimeout:    db.PingTimeout,
		MaxPoolSize:    db.PoolSize,
		Retries:        db.ConnectRetries,
		AllowDiskUse:   db.AllowDiskUse,
	})
	if err != nil {
		return errors.Wrap(err, "database")
	}

	s.conn = conn
	s.exec = conn
	s.log.Infof("connected to database: %s", db.Name)
	return nil
}

// initEngine builds the population engine
func (s *service) initEngine(m *core.Metrics) error {
	opts := []core.Option{
		core.OptionSetLogger(s.zlog),
		core.OptionSetMetrics(m),
	}
	if s.conf.EnableTracing {
		opts = append(opts, core.OptionSetTrace(otel.NewTracer()))
	}

	e, err := core.NewEngine(&s.conf.Core, s.exec, opts...)
	if err != nil {
		return errors.Wrap(err, "engine")
	}
	s.engine = e
	return nil
}

// checkRelations warns about relation fields missing from the sampled
// collections
func (s *service) checkRelations(ctx context.Context) {
	found, err := s.conn.CheckRelations(ctx, s.engine.Schemas(), s.conf.DB.SampleSize)
	if err != nil {
		s.log.Warnf("relation check failed: %s", err)
		return
	}
	for _, f := range found {
		s.zlog.Warn("relation field not found",
			zap.String("schema", f.Schema),
			zap.String("relation", f.Relation),
			zap.String("collection", f.Collection),
			zap.String("field", f.Field))
	}
}
