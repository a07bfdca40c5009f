// Package core provides the relation population engine. A request to
// populate related documents, at any nesting depth, is compiled into a
// single MongoDB aggregation pipeline; each document the pipeline returns is
// then rebuilt into the nested shape the caller asked for.
//
//	e, err := core.NewEngine(conf, conn)
//	docs, err := e.Find(ctx, "posts", core.Query{
//		Filter:   bson.D{{Key: "published", Value: true}},
//		Populate: `{"author": {"select": {"name": 1}}, "comments": true}`,
//	})
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dosco/graphjin/populate/v3/core/internal/decode"
	"github.com/dosco/graphjin/populate/v3/core/internal/mql"
	"github.com/dosco/graphjin/populate/v3/core/internal/qcode"
	"github.com/dosco/graphjin/populate/v3/core/internal/reconcile"
	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type (
	// Schema is the compiled form of a SchemaConfig.
	Schema = sdata.Schema

	// Projection is the field visibility of one level of a result.
	Projection = qcode.Projection

	// Decoder turns one raw document into the value returned to callers.
	// It computes visible virtual fields and strips extras.
	Decoder = decode.Decoder
)

// Executor runs an aggregation pipeline against a collection.
// mongodriver.Conn is the production implementation.
type Executor interface {
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) (RawCursor, error)
}

// RawCursor iterates over pipeline output. *mongo.Cursor satisfies it.
type RawCursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Engine compiles and runs populate queries. It is safe for concurrent use;
// every call builds its own plan and shares only the immutable registry.
type Engine struct {
	conf    *Config
	reg     *sdata.Registry
	qc      *qcode.Compiler
	rc      *reconcile.Reconciler
	exec    Executor
	log     *zap.Logger
	trace   Tracer
	dec     Decoder
	metrics *Metrics
}

type Option func(*Engine) error

// NewEngine validates conf and builds the relation registry. exec may be
// nil for an engine that only explains queries.
func NewEngine(conf *Config, exec Executor, options ...Option) (*Engine, error) {
	if conf == nil {
		conf = &Config{}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		conf:  conf,
		exec:  exec,
		log:   zap.NewNop(),
		trace: &tracer{},
		dec:   decode.Default{},
	}

	for _, op := range options {
		if err := op(e); err != nil {
			return nil, err
		}
	}

	reg, err := buildRegistry(conf)
	if err != nil {
		return nil, err
	}

	e.reg = reg
	e.qc = qcode.NewCompiler(reg)
	e.rc = reconcile.New(e.dec)

	e.log.Debug("populate engine ready", zap.Strings("schemas", reg.Names()))
	return e, nil
}

// OptionSetLogger sets the logger used by the engine
func OptionSetLogger(log *zap.Logger) Option {
	return func(e *Engine) error {
		if log == nil {
			return fmt.Errorf("logger is nil")
		}
		e.log = log
		return nil
	}
}

// OptionSetTrace sets the tracer used by the engine
func OptionSetTrace(trace Tracer) Option {
	return func(e *Engine) error {
		e.trace = trace
		return nil
	}
}

// OptionSetDecoder replaces the default document decoder
func OptionSetDecoder(dec Decoder) Option {
	return func(e *Engine) error {
		e.dec = dec
		return nil
	}
}

// OptionSetMetrics enables Prometheus metrics
func OptionSetMetrics(m *Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// Compiled is a compiled query: the pipeline that will be sent and the plan
// used to rebuild its results.
type Compiled struct {
	Schema     string
	Collection string
	Depth      int
	Pipeline   []bson.D

	plan *qcode.Plan
}

// MarshalJSON renders the pipeline as relaxed extended JSON.
func (c *Compiled) MarshalJSON() ([]byte, error) {
	stages := make([]json.RawMessage, len(c.Pipeline))
	for i, st := range c.Pipeline {
		b, err := bson.MarshalExtJSON(st, false, false)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages[i] = b
	}
	return json.Marshal(struct {
		Schema     string            `json:"schema"`
		Collection string            `json:"collection"`
		Depth      int               `json:"depth"`
		Pipeline   []json.RawMessage `json:"pipeline"`
	}{c.Schema, c.Collection, c.Depth, stages})
}

// Explain compiles q against schema without running it.
func (e *Engine) Explain(schema string, q Query) (*Compiled, error) {
	return e.compile(context.Background(), schema, q)
}

// Find runs q and returns every reconciled document.
func (e *Engine) Find(ctx context.Context, schema string, q Query) ([]map[string]any, error) {
	cur, err := e.Stream(ctx, schema, q)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx) //nolint:errcheck

	var docs []map[string]any
	for cur.Next(ctx) {
		docs = append(docs, cur.Doc())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// FindOne runs q with a limit of one. It returns nil when nothing matched.
func (e *Engine) FindOne(ctx context.Context, schema string, q Query) (map[string]any, error) {
	one := int64(1)
	q.Limit = &one

	docs, err := e.Find(ctx, schema, q)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Stream runs q and returns a cursor over the reconciled documents. Nested
// relations of a document are complete before the document is returned.
func (e *Engine) Stream(ctx context.Context, schema string, q Query) (*Cursor, error) {
	if e.exec == nil {
		return nil, ErrNotInitialized
	}

	c, err := e.compile(ctx, schema, q)
	if err != nil {
		return nil, err
	}

	c1, span := e.spanStart(ctx, "Execute Pipeline")
	span.SetAttributesString(
		StringAttr{"populate.schema", c.Schema},
		StringAttr{"populate.collection", c.Collection})
	defer span.End()

	start := time.Now()
	raw, err := e.exec.Aggregate(c1, c.Collection, c.Pipeline)
	e.metrics.observeExecute(c.Schema, start)

	if err != nil {
		err = fmt.Errorf("aggregate %s: %w", c.Collection, err)
		span.Error(err)
		e.metrics.observeError(err)
		e.log.Error("pipeline failed",
			zap.String("schema", c.Schema),
			zap.String("collection", c.Collection),
			zap.Int("stages", len(c.Pipeline)),
			zap.Error(err))
		return nil, err
	}
	return &Cursor{e: e, c: c, raw: raw}, nil
}

func (e *Engine) compile(ctx context.Context, schema string, q Query) (c *Compiled, err error) {
	_, span := e.spanStart(ctx, "Compile Populate")
	span.SetAttributesString(StringAttr{"populate.schema", schema})

	defer func() {
		if err != nil {
			err = qcode.WithSchema(err, schema)
			span.Error(err)
			e.metrics.observeError(err)
			e.log.Debug("populate compile failed", zap.String("schema", schema), zap.Error(err))
		}
		span.End()
	}()

	if err = q.validate(); err != nil {
		return
	}

	s, err := e.reg.Schema(schema)
	if err != nil {
		return
	}

	req, err := qcode.ParseRequest(q.Populate)
	if err != nil {
		return
	}

	proj := qcode.Normalize(q.Select, q.Omit)
	if proj.Mode() == qcode.Unrestricted {
		proj = qcode.Exclude(s.Omit...)
	}

	plan, err := e.qc.Compile(schema, proj, req)
	if err != nil {
		return
	}

	depth := plan.Depth()
	if e.conf.MaxDepth > 0 && depth > e.conf.MaxDepth {
		err = &InvalidRequestError{
			Reason: fmt.Sprintf("populate depth %d exceeds the limit of %d", depth, e.conf.MaxDepth)}
		return
	}

	c = &Compiled{
		Schema:     s.Name,
		Collection: s.Collection,
		Depth:      depth,
		Pipeline: mql.Pipeline(plan, mql.Base{
			Filter: q.Filter,
			Sort:   q.Sort,
			Skip:   q.Skip,
			Limit:  q.Limit,
		}),
		plan: plan,
	}

	e.metrics.observeCompile(c)
	if e.conf.Debug {
		e.log.Debug("populate compiled",
			zap.String("schema", c.Schema),
			zap.Int("depth", c.Depth),
			zap.Int("stages", len(c.Pipeline)),
			zap.Any("pipeline", c))
	}
	return
}

// Reconcile rebuilds one raw pipeline document compiled by c. Cursors call
// it for every document; it is exported for callers that run the pipeline
// themselves.
func (e *Engine) Reconcile(c *Compiled, raw any) (map[string]any, error) {
	return e.rc.Document(c.plan, raw)
}
