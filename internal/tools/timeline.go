package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

// --- Input types ---

type AppendMemoryItemInput struct {
	Project string   `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Kind    string   `json:"kind" jsonschema:"Item category (e.g., decision, note, todo)"`
	Title   string   `json:"title,omitempty" jsonschema:"Optional short title"`
	Content string   `json:"content" jsonschema:"Item body"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Optional tags"`
	Source  string   `json:"source,omitempty" jsonschema:"Optional provenance (file, URL, conversation)"`
}

type SearchMemoryItemsInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Query   string `json:"query" jsonschema:"Words to match as prefixes against item content; blank lists recent items"`
	Kind    string `json:"kind,omitempty" jsonschema:"Only return items of this kind"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Page size, 1 to 200 (default 50)"`
	Offset  int    `json:"offset,omitempty" jsonschema:"Number of items to skip"`
}

type MemoryItemIDInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	ID      int64  `json:"id" jsonschema:"Memory item id"`
}

// --- Handlers ---

func (t *Tools) AppendMemoryItem(ctx context.Context, _ *mcp.CallToolRequest, input AppendMemoryItemInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "append_memory_item")
	defer span.End()

	item, err := t.Store.AppendMemoryItem(ctx, t.Session.Project(input.Project), models.NewMemoryItem{
		Kind:    input.Kind,
		Title:   input.Title,
		Content: input.Content,
		Tags:    input.Tags,
		Source:  input.Source,
	})
	if err != nil {
		return toolError("Failed to append memory item: %v", err), nil, nil
	}
	return toolJSON(item)
}

func (t *Tools) SearchMemoryItems(ctx context.Context, _ *mcp.CallToolRequest, input SearchMemoryItemsInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "search_memory_items")
	defer span.End()

	items, err := t.Store.SearchMemoryItems(ctx, t.Session.Project(input.Project), input.Query, models.ListOptions{
		Kind:   input.Kind,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	return toolJSON(items)
}

func (t *Tools) GetMemoryItem(ctx context.Context, _ *mcp.CallToolRequest, input MemoryItemIDInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "get_memory_item")
	defer span.End()

	item, err := t.Store.GetMemoryItem(ctx, t.Session.Project(input.Project), input.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return toolError("Memory item %d not found", input.ID), nil, nil
	}
	if err != nil {
		return toolError("Failed to get memory item: %v", err), nil, nil
	}
	return toolJSON(item)
}

func (t *Tools) DeleteMemoryItem(ctx context.Context, _ *mcp.CallToolRequest, input MemoryItemIDInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "delete_memory_item")
	defer span.End()

	deleted, err := t.Store.DeleteMemoryItem(ctx, t.Session.Project(input.Project), input.ID)
	if err != nil {
		return toolError("Failed to delete memory item: %v", err), nil, nil
	}
	if !deleted {
		return toolText("Not found"), nil, nil
	}
	return toolText("Deleted"), nil, nil
}
