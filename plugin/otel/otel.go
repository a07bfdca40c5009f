// Package otel traces the population engine and its HTTP surface with
// OpenTelemetry.
package otel

import (
	"context"
	"net/http"

	"github.com/dosco/graphjin/populate/v3/core"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dosco/graphjin/populate/v3"

type tracer struct {
	t trace.Tracer
}

// NewTracer returns a core.Tracer backed by the global tracer provider.
func NewTracer() core.Tracer {
	return NewTracerWithProvider(otel.GetTracerProvider())
}

// NewTracerWithProvider returns a core.Tracer backed by tp.
func NewTracerWithProvider(tp trace.TracerProvider) core.Tracer {
	return &tracer{t: tp.Tracer(instrumentationName)}
}

func (t *tracer) Start(c context.Context, name string) (context.Context, core.Spaner) {
	c, s := t.t.Start(c, name)
	return c, &span{s}
}

type span struct {
	s trace.Span
}

func (s *span) SetAttributesString(attrs ...core.StringAttr) {
	for _, a := range attrs {
		s.s.SetAttributes(attribute.String(a.Name, a.Value))
	}
}

func (s *span) IsRecording() bool {
	return s.s.IsRecording()
}

func (s *span) Error(err error) {
	s.s.RecordError(err)
	s.s.SetStatus(codes.Error, err.Error())
}

func (s *span) End() {
	s.s.End()
}

// NewHandler wraps h so every request starts a server span named op.
func NewHandler(h http.Handler, op string) http.Handler {
	return otelhttp.NewHandler(h, op)
}
