package observe

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingProvider struct {
	embedded.TracerProvider
	mu    sync.Mutex
	names []string
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recordingTracer{p: p}
}

type recordingTracer struct {
	embedded.Tracer
	p *recordingProvider
}

func (t recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.p.mu.Lock()
	t.p.names = append(t.p.names, name)
	t.p.mu.Unlock()
	return noop.NewTracerProvider().Tracer("").Start(ctx, name, opts...)
}

func TestLogWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, true)

	obs.Log().Info().
		Str("method", "GET").
		Int("status", 200).
		Msg("request served")

	assert.Contains(t, buf.String(), "request served")
}

func TestJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := NewFormat("json", buf, true)

	obs.Log().Info().Str("project", "p1").Msg("opened")

	assert.Contains(t, buf.String(), `"project"`)
	assert.Contains(t, buf.String(), "opened")
}

func TestQuietSuppressesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, false)

	obs.Log().Info().Msg("hidden")
	obs.Log().Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestStartSpan(t *testing.T) {
	obs := New(&bytes.Buffer{}, true)

	ctx, span := obs.StartSpan(context.Background(), "test-span")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestUseTracerProviderRecordsSpans(t *testing.T) {
	obs := New(&bytes.Buffer{}, false)
	tp := &recordingProvider{}
	obs.UseTracerProvider(tp)

	_, span := obs.StartSpan(context.Background(), "tool.read_graph")
	span.End()

	assert.Equal(t, []string{"tool.read_graph"}, tp.names)
}
