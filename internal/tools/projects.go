// Package tools implements the MCP tool handlers over the store.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/session"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

// Tools holds references needed by the tool handlers of one MCP session.
type Tools struct {
	Store   *storage.Store
	Session *session.Session
	Obs     *observe.Observer
}

// --- Input types ---

type ListProjectsInput struct{}

type SwitchProjectInput struct {
	Name string `json:"name" jsonschema:"Project to use when a tool call names none; blank resets to the process default"`
}

type GetCurrentProjectInput struct{}

// CurrentProject reports the project a tool call without an explicit
// project would use.
type CurrentProject struct {
	Project string `json:"project"`
	Source  string `json:"source"`
}

// --- Handlers ---

func (t *Tools) ListProjects(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectsInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "list_projects")
	defer span.End()

	projects, err := t.Store.ListProjects(ctx)
	if err != nil {
		return toolError("Failed to list projects: %v", err), nil, nil
	}
	return toolJSON(projects)
}

func (t *Tools) SwitchProject(ctx context.Context, _ *mcp.CallToolRequest, input SwitchProjectInput) (*mcp.CallToolResult, any, error) {
	_, span := t.start(ctx, "switch_project")
	defer span.End()

	t.Session.SwitchProject(input.Name)
	return toolJSON(t.current())
}

func (t *Tools) GetCurrentProject(ctx context.Context, _ *mcp.CallToolRequest, _ GetCurrentProjectInput) (*mcp.CallToolResult, any, error) {
	_, span := t.start(ctx, "get_current_project")
	defer span.End()

	return toolJSON(t.current())
}

func (t *Tools) current() CurrentProject {
	project, fromSession := t.Session.Current()
	source := "default"
	if fromSession {
		source = "session"
	}
	return CurrentProject{Project: project, Source: source}
}

// --- Helpers ---

func (t *Tools) start(ctx context.Context, tool string) (context.Context, trace.Span) {
	ctx, span := t.Obs.StartSpan(ctx, "tool."+tool)
	span.SetAttributes(attribute.String("mcp.tool", tool))
	t.Obs.Log().Debug().Str("tool", tool).Msg("tool call")
	return ctx, span
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
