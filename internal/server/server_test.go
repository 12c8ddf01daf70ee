package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/session"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestNewRegistersAllTools(t *testing.T) {
	ctx := context.Background()
	srv := New(openStore(t), session.New("", ""), observe.New(io.Discard, false))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_entities", "create_relations", "add_observations",
		"delete_entities", "delete_observations", "delete_relations",
		"read_graph", "search_nodes", "open_nodes",
		"append_memory_item", "search_memory_items", "get_memory_item", "delete_memory_item",
		"list_projects", "switch_project", "get_current_project",
	}, names)
}

func TestHTTPSessionDefaultFromQuery(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	reg := session.NewRegistry(2, 0)

	ts := httptest.NewServer(NewHTTPHandler(store, observe.New(io.Discard, false), HTTPOptions{
		DefaultProject: "proc",
		Registry:       reg,
	}))
	defer ts.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL + "?project=alpha"}, nil)
	require.NoError(t, err)
	defer cs.Close()

	assert.Equal(t, 1, reg.Len())

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "get_current_project", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.Contains(t, toolText(t, res), `"alpha"`)

	_, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name: "create_entities",
		Arguments: map[string]any{
			"entities": []map[string]any{{"name": "Alice", "entity_type": "person"}},
		},
	})
	require.NoError(t, err)

	g, err := store.ReadGraph(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, "Alice", g.Entities[0].Name)
}

func TestHTTPRejectsSessionsOverCapacity(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry(1, 0)

	ts := httptest.NewServer(NewHTTPHandler(openStore(t), observe.New(io.Discard, false), HTTPOptions{Registry: reg}))
	defer ts.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err)
	defer cs.Close()

	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, reg.Len())
}

func TestHTTPUnknownSessionIsNotFound(t *testing.T) {
	reg := session.NewRegistry(1, 0)
	ts := httptest.NewServer(NewHTTPHandler(openStore(t), observe.New(io.Discard, false), HTTPOptions{Registry: reg}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set(sessionHeader, "nope")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPExpiredSessionIsReleased(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry(1, 100*time.Millisecond)

	ts := httptest.NewServer(NewHTTPHandler(openStore(t), observe.New(io.Discard, false), HTTPOptions{Registry: reg}))
	defer ts.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	stale, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err)
	defer stale.Close()

	time.Sleep(300 * time.Millisecond)

	_, err = stale.CallTool(ctx, &mcp.CallToolParams{Name: "list_projects", Arguments: map[string]any{}})
	assert.Error(t, err, "an idle session must not be revived")

	fresh, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err, "the expired slot is free for a new session")
	defer fresh.Close()

	_, err = fresh.CallTool(ctx, &mcp.CallToolParams{Name: "list_projects", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}

type countingEventStore struct {
	*mcp.MemoryEventStore
	appended atomic.Int64
}

func (s *countingEventStore) Append(ctx context.Context, sessionID, streamID string, data []byte) error {
	s.appended.Add(1)
	return s.MemoryEventStore.Append(ctx, sessionID, streamID, data)
}

func TestHTTPStreamsAreRecordedForResumption(t *testing.T) {
	ctx := context.Background()
	events := &countingEventStore{MemoryEventStore: mcp.NewMemoryEventStore(nil)}

	ts := httptest.NewServer(NewHTTPHandler(openStore(t), observe.New(io.Discard, false), HTTPOptions{
		Registry:   session.NewRegistry(1, 0),
		EventStore: events,
	}))
	defer ts.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err)
	defer cs.Close()

	_, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "get_current_project", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.Positive(t, events.appended.Load())
}
