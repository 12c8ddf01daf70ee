package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/session"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

const sessionHeader = "Mcp-Session-Id"

// eventStoreMaxBytes bounds the replay buffer shared by all sessions. The
// oldest events are purged first.
const eventStoreMaxBytes = 8 << 20

// HTTPOptions configures the streamable HTTP transport.
type HTTPOptions struct {
	// DefaultProject is the process-wide default project.
	DefaultProject string
	// Registry bounds the number of live sessions. Its idle timeout also
	// closes idle sessions inside the transport.
	Registry *session.Registry
	// EventStore keeps outgoing stream events so a client can resume with
	// Last-Event-ID. Nil means a bounded in-memory store.
	EventStore mcp.EventStore
}

// NewHTTPHandler serves the MCP streamable HTTP transport. Each session gets
// its own server whose default project is taken from the ?project= query
// parameter of the initialize request.
func NewHTTPHandler(store *storage.Store, obs *observe.Observer, opts HTTPOptions) http.Handler {
	events := opts.EventStore
	if events == nil {
		mem := mcp.NewMemoryEventStore(nil)
		mem.SetMaxBytes(eventStoreMaxBytes)
		events = mem
	}
	inner := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		sess := session.New(r.URL.Query().Get("project"), opts.DefaultProject)
		return New(store, sess, obs)
	}, &mcp.StreamableHTTPOptions{
		EventStore:     events,
		SessionTimeout: opts.Registry.IdleTimeout(),
	})
	return &sessionGate{inner: inner, reg: opts.Registry, obs: obs}
}

// sessionGate admits new sessions only while the registry has room.
type sessionGate struct {
	inner http.Handler
	reg   *session.Registry
	obs   *observe.Observer
}

func (g *sessionGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)

	if id == "" {
		if err := g.reg.Reserve(); err != nil {
			if errors.Is(err, session.ErrFull) {
				g.obs.Log().Warn().Str("remote", r.RemoteAddr).Msg("mcp session rejected: at capacity")
				http.Error(w, "too many sessions", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rec := &sessionRecorder{ResponseWriter: w, reg: g.reg}
		g.inner.ServeHTTP(rec, r)
		rec.settle()
		if rec.id != "" {
			g.obs.Log().Info().Str("session", rec.id).Msg("mcp session opened")
		}
		return
	}

	if r.Method == http.MethodDelete {
		g.reg.Release(id)
		g.inner.ServeHTTP(w, r)
		g.obs.Log().Info().Str("session", id).Msg("mcp session closed")
		return
	}

	if !g.reg.Touch(id) {
		// Expired or unknown: make the transport forget it as well so the
		// client starts over.
		g.closeSession(r.Context(), id)
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	g.inner.ServeHTTP(w, r)
}

func (g *sessionGate) closeSession(ctx context.Context, id string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, "/", nil)
	if err != nil {
		return
	}
	req.Header.Set(sessionHeader, id)
	g.inner.ServeHTTP(discardWriter{header: http.Header{}}, req)
}

// sessionRecorder settles a registry reservation with the session id the
// transport assigns, as soon as the response headers are written.
type sessionRecorder struct {
	http.ResponseWriter
	reg  *session.Registry
	once sync.Once
	id   string
}

func (w *sessionRecorder) settle() {
	w.once.Do(func() {
		w.id = w.Header().Get(sessionHeader)
		w.reg.Commit(w.id)
	})
}

func (w *sessionRecorder) WriteHeader(code int) {
	w.settle()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionRecorder) Write(b []byte) (int, error) {
	w.settle()
	return w.ResponseWriter.Write(b)
}

func (w *sessionRecorder) Flush() {
	w.settle()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *sessionRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type discardWriter struct {
	header http.Header
}

func (d discardWriter) Header() http.Header         { return d.header }
func (d discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (d discardWriter) WriteHeader(int)             {}
