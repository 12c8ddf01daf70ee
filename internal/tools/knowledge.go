package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
)

// --- Input types ---

type CreateEntitiesInput struct {
	Project  string        `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Entities []EntityInput `json:"entities" jsonschema:"Array of entities to create"`
}

type EntityInput struct {
	Name         string   `json:"name" jsonschema:"Entity name, unique within the project"`
	EntityType   string   `json:"entity_type" jsonschema:"Entity type (e.g., person, technology, concept)"`
	Observations []string `json:"observations,omitempty" jsonschema:"Initial observations about the entity"`
}

type AddObservationsInput struct {
	Project      string             `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Observations []ObservationInput `json:"observations" jsonschema:"Array of observations to add"`
}

type ObservationInput struct {
	EntityName string   `json:"entity_name" jsonschema:"Name of the entity"`
	Contents   []string `json:"contents" jsonschema:"Observation texts to add"`
}

type CreateRelationsInput struct {
	Project   string          `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Relations []RelationInput `json:"relations" jsonschema:"Array of relations to create"`
}

type RelationInput struct {
	From         string `json:"from" jsonschema:"Source entity name"`
	To           string `json:"to" jsonschema:"Target entity name"`
	RelationType string `json:"relation_type" jsonschema:"Relation type in active voice (e.g., uses, depends_on, manages)"`
}

type SearchNodesInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Query   string `json:"query" jsonschema:"Words to match as prefixes against entity names and observations"`
}

type OpenNodesInput struct {
	Project string   `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Names   []string `json:"names" jsonschema:"Exact entity names to retrieve together with their neighbours"`
}

type ReadGraphInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
}

type DeleteEntitiesInput struct {
	Project string   `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Names   []string `json:"names" jsonschema:"Entity names to delete"`
}

type DeleteObservationsInput struct {
	Project   string                  `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Deletions []DeleteObservationItem `json:"deletions" jsonschema:"Array of observations to delete"`
}

type DeleteObservationItem struct {
	EntityName   string   `json:"entity_name" jsonschema:"Name of the entity"`
	Observations []string `json:"observations" jsonschema:"Observation content strings to match and delete"`
}

type DeleteRelationsInput struct {
	Project   string          `json:"project,omitempty" jsonschema:"Project key; defaults to the session project"`
	Relations []RelationInput `json:"relations" jsonschema:"Array of relations to delete"`
}

func (in RelationInput) model() models.NewRelation {
	return models.NewRelation{From: in.From, To: in.To, RelationType: in.RelationType}
}

func relationModels(in []RelationInput) []models.NewRelation {
	out := make([]models.NewRelation, len(in))
	for i, r := range in {
		out[i] = r.model()
	}
	return out
}

// --- Handlers ---

func (t *Tools) CreateEntities(ctx context.Context, _ *mcp.CallToolRequest, input CreateEntitiesInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "create_entities")
	defer span.End()

	entities := make([]models.NewEntity, len(input.Entities))
	for i, e := range input.Entities {
		entities[i] = models.NewEntity{Name: e.Name, EntityType: e.EntityType, Observations: e.Observations}
	}

	created, err := t.Store.CreateEntities(ctx, t.Session.Project(input.Project), entities)
	if err != nil {
		return toolError("Failed to create entities: %v", err), nil, nil
	}
	return toolJSON(created)
}

func (t *Tools) AddObservations(ctx context.Context, _ *mcp.CallToolRequest, input AddObservationsInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "add_observations")
	defer span.End()

	batches := make([]models.ObservationBatch, len(input.Observations))
	for i, o := range input.Observations {
		batches[i] = models.ObservationBatch{EntityName: o.EntityName, Contents: o.Contents}
	}

	added, err := t.Store.AddObservations(ctx, t.Session.Project(input.Project), batches)
	if err != nil {
		return toolError("Failed to add observations: %v", err), nil, nil
	}
	return toolJSON(added)
}

func (t *Tools) CreateRelations(ctx context.Context, _ *mcp.CallToolRequest, input CreateRelationsInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "create_relations")
	defer span.End()

	created, err := t.Store.CreateRelations(ctx, t.Session.Project(input.Project), relationModels(input.Relations))
	if err != nil {
		return toolError("Failed to create relations: %v", err), nil, nil
	}
	return toolJSON(created)
}

func (t *Tools) SearchNodes(ctx context.Context, _ *mcp.CallToolRequest, input SearchNodesInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "search_nodes")
	defer span.End()

	graph, err := t.Store.SearchNodes(ctx, t.Session.Project(input.Project), input.Query)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	return toolJSON(graph)
}

func (t *Tools) OpenNodes(ctx context.Context, _ *mcp.CallToolRequest, input OpenNodesInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "open_nodes")
	defer span.End()

	graph, err := t.Store.OpenNodes(ctx, t.Session.Project(input.Project), input.Names)
	if err != nil {
		return toolError("Failed to open nodes: %v", err), nil, nil
	}
	return toolJSON(graph)
}

func (t *Tools) ReadGraph(ctx context.Context, _ *mcp.CallToolRequest, input ReadGraphInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "read_graph")
	defer span.End()

	graph, err := t.Store.ReadGraph(ctx, t.Session.Project(input.Project))
	if err != nil {
		return toolError("Failed to read graph: %v", err), nil, nil
	}
	return toolJSON(graph)
}

func (t *Tools) DeleteEntities(ctx context.Context, _ *mcp.CallToolRequest, input DeleteEntitiesInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "delete_entities")
	defer span.End()

	count, err := t.Store.DeleteEntities(ctx, t.Session.Project(input.Project), input.Names)
	if err != nil {
		return toolError("Failed to delete entities: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Deleted %d entities.", count)), nil, nil
}

func (t *Tools) DeleteObservations(ctx context.Context, _ *mcp.CallToolRequest, input DeleteObservationsInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "delete_observations")
	defer span.End()

	deletions := make([]models.ObservationDeletion, len(input.Deletions))
	for i, d := range input.Deletions {
		deletions[i] = models.ObservationDeletion{EntityName: d.EntityName, Observations: d.Observations}
	}

	count, err := t.Store.DeleteObservations(ctx, t.Session.Project(input.Project), deletions)
	if err != nil {
		return toolError("Failed to delete observations: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Deleted %d observations.", count)), nil, nil
}

func (t *Tools) DeleteRelations(ctx context.Context, _ *mcp.CallToolRequest, input DeleteRelationsInput) (*mcp.CallToolResult, any, error) {
	ctx, span := t.start(ctx, "delete_relations")
	defer span.End()

	count, err := t.Store.DeleteRelations(ctx, t.Session.Project(input.Project), relationModels(input.Relations))
	if err != nil {
		return toolError("Failed to delete relations: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Deleted %d relations.", count)), nil, nil
}
