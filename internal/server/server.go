// Package server assembles the MCP server and its HTTP transport.
package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/session"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/tools"
)

// Name and Version identify the server to MCP clients.
const (
	Name    = "memory-store"
	Version = "0.2.0"
)

// New creates a fully configured MCP server for one session with all tools
// registered.
func New(store *storage.Store, sess *session.Session, obs *observe.Observer) *mcp.Server {
	t := &tools.Tools{Store: store, Session: sess, Obs: obs}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, nil)

	// Knowledge graph tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_entities",
		Description: "Create entities in the knowledge graph; existing names are kept and only new observations are added",
	}, t.CreateEntities)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_relations",
		Description: "Create directed relations between existing entities; missing endpoints and duplicates are skipped",
	}, t.CreateRelations)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_observations",
		Description: "Add observations to existing entities; unknown entities are skipped",
	}, t.AddObservations)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_entities",
		Description: "Delete entities together with their observations and relations",
	}, t.DeleteEntities)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_observations",
		Description: "Delete specific observations from entities by exact content",
	}, t.DeleteObservations)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_relations",
		Description: "Delete relations matching from, to and relation type",
	}, t.DeleteRelations)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_graph",
		Description: "Read the entire knowledge graph of a project",
	}, t.ReadGraph)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_nodes",
		Description: "Prefix-match words against entity names and observations, then expand one hop along relations",
	}, t.SearchNodes)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "open_nodes",
		Description: "Retrieve entities by exact name together with their direct neighbours",
	}, t.OpenNodes)

	// Timeline tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "append_memory_item",
		Description: "Append a memory item (decision, note, todo, ...) to the project timeline",
	}, t.AppendMemoryItem)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_memory_items",
		Description: "Search memory items by content, newest first; a blank query lists recent items",
	}, t.SearchMemoryItems)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_memory_item",
		Description: "Get one memory item by id",
	}, t.GetMemoryItem)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_memory_item",
		Description: "Delete one memory item by id",
	}, t.DeleteMemoryItem)

	// Project tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List project keys that hold entities or memory items",
	}, t.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "switch_project",
		Description: "Set the project used by this session when a tool call names none",
	}, t.SwitchProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_current_project",
		Description: "Report the project used by this session when a tool call names none",
	}, t.GetCurrentProject)

	return srv
}
