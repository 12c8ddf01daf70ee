// Package observe builds the structured logger and tracer used by the
// transport layers. The storage core does not log.
package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "memory-store"

// Observer bundles a logger and a tracer. Until UseTracerProvider is called
// the tracer follows the global OpenTelemetry provider, which records nothing
// unless the embedding process installs one.
type Observer struct {
	log    *bolt.Logger
	tracer trace.Tracer
}

// New creates an Observer writing human-readable lines to out.
// If verbose is false, only warnings and errors are shown.
func New(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.New(bolt.NewConsoleHandler(out)), verbose)
}

// NewJSON creates an Observer writing one JSON object per line to out.
// If verbose is false, only warnings and errors are shown.
func NewJSON(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.New(bolt.NewJSONHandler(out)), verbose)
}

// NewFormat picks New or NewJSON by name; anything other than "json" is
// console output.
func NewFormat(format string, out io.Writer, verbose bool) *Observer {
	if format == "json" {
		return NewJSON(out, verbose)
	}
	return New(out, verbose)
}

func newObserver(l *bolt.Logger, verbose bool) *Observer {
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l, tracer: otel.Tracer(tracerName)}
}

// UseTracerProvider sends spans to tp instead of the global provider.
func (o *Observer) UseTracerProvider(tp trace.TracerProvider) {
	o.tracer = tp.Tracer(tracerName)
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a span on the observer's tracer.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name)
}
