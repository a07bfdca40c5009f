// Package mongodriver runs compiled population pipelines on MongoDB using
// the official v2 driver.
package mongodriver

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/dosco/graphjin/populate/v3/core"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Config holds the connection settings.
type Config struct {
	URI      string
	Database string

	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	MaxPoolSize    uint64

	// Ping attempts before Connect gives up
	Retries uint

	// Let large $lookup stages spill to disk
	AllowDiskUse bool
}

// Conn executes aggregation pipelines against one database. It implements
// core.Executor.
type Conn struct {
	client       *mongo.Client
	db           *mongo.Database
	allowDiskUse bool
	owned        bool
}

// NewConn wraps an existing client. Close does not disconnect it.
func NewConn(client *mongo.Client, dbName string) *Conn {
	return &Conn{client: client, db: client.Database(dbName)}
}

// Connect opens a client and pings the primary, retrying with backoff.
func Connect(ctx context.Context, conf Config) (*Conn, error) {
	if conf.URI == "" {
		return nil, fmt.Errorf("mongodriver: uri is required")
	}
	if conf.Database == "" {
		return nil, fmt.Errorf("mongodriver: database name is required")
	}

	opts := options.Client().ApplyURI(conf.URI)
	if conf.ConnectTimeout != 0 {
		opts.SetConnectTimeout(conf.ConnectTimeout)
	}
	if conf.MaxPoolSize != 0 {
		opts.SetMaxPoolSize(conf.MaxPoolSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: connect: %w", err)
	}

	c := &Conn{
		client:       client,
		db:           client.Database(conf.Database),
		allowDiskUse: conf.AllowDiskUse,
		owned:        true,
	}

	attempts := conf.Retries
	if attempts == 0 {
		attempts = 1
	}

	err = retry.Do(
		func() error { return c.Ping(ctx, conf.PingTimeout) },
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodriver: ping: %w", err)
	}
	return c, nil
}

// Database returns the database name.
func (c *Conn) Database() string {
	return c.db.Name()
}

// DB returns the underlying database handle.
func (c *Conn) DB() *mongo.Database {
	return c.db
}

// Ping checks that the primary is reachable.
func (c *Conn) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.client.Ping(ctx, readpref.Primary())
}

// Aggregate runs pipeline against collection.
func (c *Conn) Aggregate(ctx context.Context, collection string, pipeline []bson.D) (core.RawCursor, error) {
	if collection == "" {
		return nil, fmt.Errorf("mongodriver: aggregate requires collection")
	}

	opts := options.Aggregate()
	if c.allowDiskUse {
		opts.SetAllowDiskUse(true)
	}

	cur, err := c.db.Collection(collection).Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: aggregate: %w", err)
	}
	return cur, nil
}

// Close disconnects the client when the Conn created it.
func (c *Conn) Close(ctx context.Context) error {
	if !c.owned {
		return nil
	}
	return c.client.Disconnect(ctx)
}
