package core

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Cursor streams reconciled top-level documents. It is not safe for
// concurrent use.
type Cursor struct {
	e   *Engine
	c   *Compiled
	raw RawCursor
	doc map[string]any
	err error
	n   int
}

// Compiled returns the query the cursor is reading.
func (cur *Cursor) Compiled() *Compiled {
	return cur.c
}

// Next advances to the next document. It returns false at the end of the
// results or on the first error; check Err.
func (cur *Cursor) Next(ctx context.Context) bool {
	if cur.err != nil {
		return false
	}
	cur.doc = nil

	if !cur.raw.Next(ctx) {
		cur.err = cur.raw.Err()
		return false
	}

	var raw bson.D
	if err := cur.raw.Decode(&raw); err != nil {
		cur.fail(err)
		return false
	}

	_, span := cur.e.spanStart(ctx, "Reconcile Document")
	doc, err := cur.e.Reconcile(cur.c, raw)
	if err != nil {
		span.Error(err)
	}
	span.End()

	if err != nil {
		cur.fail(err)
		return false
	}

	cur.doc = doc
	cur.n++
	return true
}

func (cur *Cursor) fail(err error) {
	cur.err = err
	cur.e.metrics.observeError(err)
	cur.e.log.Error("populate reconcile failed",
		zap.String("schema", cur.c.Schema),
		zap.Int("document", cur.n),
		zap.Error(err))
}

// Doc returns the current document.
func (cur *Cursor) Doc() map[string]any {
	return cur.doc
}

func (cur *Cursor) Err() error {
	return cur.err
}

// Close releases the underlying store cursor.
func (cur *Cursor) Close(ctx context.Context) error {
	cur.e.metrics.observeDocuments(cur.c.Schema, cur.n)
	cur.n = 0
	return cur.raw.Close(ctx)
}
