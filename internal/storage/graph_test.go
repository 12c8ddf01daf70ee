package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
)

func TestCreateEntitiesIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "person", Observations: []string{"likes cats"}},
	})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, []string{"likes cats"}, first[0].Observations)

	second, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "human", Observations: []string{"likes cats", "likes dogs"}},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "human", second[0].EntityType)
	assert.Equal(t, []string{"likes dogs"}, second[0].Observations)

	alice, err := s.GetEntityByName(ctx, "p", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "human", alice.EntityType)
	assert.Equal(t, []string{"likes cats", "likes dogs"}, contents(alice.Observations))
}

func TestCreateEntitiesDuplicateObservationsInOneCall(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Go", EntityType: "technology", Observations: []string{"fast", "fast", "typed"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "typed"}, created[0].Observations)
}

func TestCreateEntitiesValidation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input []models.NewEntity
	}{
		{"empty name", []models.NewEntity{{Name: "", EntityType: "t"}}},
		{"blank type", []models.NewEntity{{Name: "A", EntityType: "  "}}},
		{"blank observation", []models.NewEntity{{Name: "A", EntityType: "t", Observations: []string{""}}}},
		{"one bad element aborts batch", []models.NewEntity{{Name: "Ok", EntityType: "t"}, {Name: "", EntityType: "t"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateEntities(ctx, "p", tt.input)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	graph, err := s.ReadGraph(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, graph.Entities, "no rows may be written when validation fails")
}

func TestCreateRelationsSkipsMissingAndDuplicates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "person"},
		{Name: "Bob", EntityType: "person"},
	})
	require.NoError(t, err)

	created, err := s.CreateRelations(ctx, "p", []models.NewRelation{
		{From: "Alice", To: "Bob", RelationType: "knows"},
		{From: "Alice", To: "Ghost", RelationType: "knows"},
		{From: "Alice", To: "Bob", RelationType: "knows"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Relation{{From: "Alice", To: "Bob", RelationType: "knows"}}, created)

	again, err := s.CreateRelations(ctx, "p", []models.NewRelation{{From: "Alice", To: "Bob", RelationType: "knows"}})
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = s.CreateRelations(ctx, "p", []models.NewRelation{{From: "Alice", To: "Bob", RelationType: ""}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCreateRelationDirect(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "person"},
		{Name: "Bob", EntityType: "person"},
	})
	require.NoError(t, err)

	id, err := s.CreateRelationDirect(ctx, "p", "Alice", "Bob", "knows")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = s.CreateRelationDirect(ctx, "p", "Alice", "Bob", "knows")
	assert.ErrorIs(t, err, ErrNotFound, "duplicate collapses to not found")

	_, err = s.CreateRelationDirect(ctx, "p", "Alice", "Ghost", "knows")
	assert.ErrorIs(t, err, ErrNotFound)

	alice, err := s.GetEntityByName(ctx, "p", "Alice")
	require.NoError(t, err)
	require.Len(t, alice.Relations, 1)
	assert.Equal(t, id, alice.Relations[0].ID)
}

func TestAddObservations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Go", EntityType: "technology", Observations: []string{"fast"}},
	})
	require.NoError(t, err)

	results, err := s.AddObservations(ctx, "p", []models.ObservationBatch{
		{EntityName: "Go", Contents: []string{"fast", "has generics"}},
		{EntityName: "Missing", Contents: []string{"ignored"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go", results[0].EntityName)
	assert.Equal(t, []string{"has generics"}, results[0].AddedObservations)

	_, err = s.AddObservations(ctx, "p", []models.ObservationBatch{{EntityName: "Go", Contents: []string{" "}}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteEntitiesCascades(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "person", Observations: []string{"likes cats"}},
		{Name: "Bob", EntityType: "person"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, "p", []models.NewRelation{{From: "Alice", To: "Bob", RelationType: "knows"}})
	require.NoError(t, err)

	n, err := s.DeleteEntities(ctx, "p", []string{"Alice", "Nobody"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.GetEntityByName(ctx, "p", "Alice")
	assert.ErrorIs(t, err, ErrNotFound)

	bob, err := s.GetEntityByName(ctx, "p", "Bob")
	require.NoError(t, err)
	assert.Empty(t, bob.Relations)

	var orphans int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM observations WHERE entity_id NOT IN (SELECT id FROM entities)`,
	).Scan(&orphans))
	assert.Zero(t, orphans)

	graph, err := s.ReadGraph(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, graph.Relations)
}

func TestDeleteObservations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Go", EntityType: "technology", Observations: []string{"fast", "compiled", "typed"}},
	})
	require.NoError(t, err)

	n, err := s.DeleteObservations(ctx, "p", []models.ObservationDeletion{
		{EntityName: "Go", Observations: []string{"fast", "typed", "absent"}},
		{EntityName: "Missing", Observations: []string{"fast"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	e, err := s.GetEntityByName(ctx, "p", "Go")
	require.NoError(t, err)
	assert.Equal(t, []string{"compiled"}, contents(e.Observations))
}

func TestDeleteRelations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Go", EntityType: "technology"},
		{Name: "SQLite", EntityType: "technology"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, "p", []models.NewRelation{
		{From: "Go", To: "SQLite", RelationType: "uses"},
		{From: "Go", To: "SQLite", RelationType: "embeds"},
	})
	require.NoError(t, err)

	n, err := s.DeleteRelations(ctx, "p", []models.NewRelation{
		{From: "Go", To: "SQLite", RelationType: "uses"},
		{From: "Go", To: "Ghost", RelationType: "uses"},
		{From: "SQLite", To: "Go", RelationType: "uses"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	graph, err := s.ReadGraph(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []models.Relation{{From: "Go", To: "SQLite", RelationType: "embeds"}}, graph.Relations)
}

func TestDeleteByID(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "person", Observations: []string{"likes cats", "likes tea"}},
		{Name: "Bob", EntityType: "person"},
	})
	require.NoError(t, err)
	relID, err := s.CreateRelationDirect(ctx, "p", "Alice", "Bob", "knows")
	require.NoError(t, err)

	alice, err := s.GetEntityByName(ctx, "p", "Alice")
	require.NoError(t, err)
	require.Len(t, alice.Observations, 2)

	require.NoError(t, s.DeleteObservationByID(ctx, alice.Observations[0].ID))
	require.NoError(t, s.DeleteRelationByID(ctx, relID))
	require.NoError(t, s.DeleteObservationByID(ctx, 999999), "missing id is a no-op")
	require.NoError(t, s.DeleteRelationByID(ctx, 999999), "missing id is a no-op")

	alice, err = s.GetEntityByName(ctx, "p", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"likes tea"}, contents(alice.Observations))
	assert.Empty(t, alice.Relations)
}

func TestReadGraph(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Go", EntityType: "technology", Observations: []string{"fast", "typed"}},
		{Name: "SQLite", EntityType: "technology"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, "p", []models.NewRelation{{From: "Go", To: "SQLite", RelationType: "uses"}})
	require.NoError(t, err)

	graph, err := s.ReadGraph(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []models.Entity{
		{Name: "Go", EntityType: "technology", Observations: []string{"fast", "typed"}},
		{Name: "SQLite", EntityType: "technology", Observations: []string{}},
	}, graph.Entities)
	assert.Equal(t, []models.Relation{{From: "Go", To: "SQLite", RelationType: "uses"}}, graph.Relations)

	empty, err := s.ReadGraph(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty.Entities)
	assert.Empty(t, empty.Relations)
}

func TestGetEntityByNameIncidentRelations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p", []models.NewEntity{
		{Name: "Alice", EntityType: "person"},
		{Name: "Bob", EntityType: "person"},
		{Name: "Carol", EntityType: "person"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, "p", []models.NewRelation{
		{From: "Alice", To: "Bob", RelationType: "knows"},
		{From: "Carol", To: "Alice", RelationType: "mentors"},
		{From: "Bob", To: "Carol", RelationType: "knows"},
	})
	require.NoError(t, err)

	alice, err := s.GetEntityByName(ctx, "p", "Alice")
	require.NoError(t, err)
	require.Len(t, alice.Relations, 2)
	assert.Equal(t, "Bob", alice.Relations[0].To)
	assert.Equal(t, "Carol", alice.Relations[1].From)
	assert.NotEmpty(t, alice.CreatedAt)

	_, err = s.GetEntityByName(ctx, "p", "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectIsolation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateEntities(ctx, "p1", []models.NewEntity{
		{Name: "Alice", EntityType: "person", Observations: []string{"likes cats"}},
		{Name: "Bob", EntityType: "person"},
	})
	require.NoError(t, err)
	_, err = s.CreateRelations(ctx, "p1", []models.NewRelation{{From: "Alice", To: "Bob", RelationType: "knows"}})
	require.NoError(t, err)
	item, err := s.AppendMemoryItem(ctx, "p1", models.NewMemoryItem{Kind: "note", Content: "cats everywhere"})
	require.NoError(t, err)

	graph, err := s.ReadGraph(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, graph.Entities)

	found, err := s.SearchNodes(ctx, "p2", "Alice cats")
	require.NoError(t, err)
	assert.Empty(t, found.Entities)
	assert.Empty(t, found.Relations)

	opened, err := s.OpenNodes(ctx, "p2", []string{"Alice"})
	require.NoError(t, err)
	assert.Empty(t, opened.Entities)

	_, err = s.GetEntityByName(ctx, "p2", "Alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetMemoryItem(ctx, "p2", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := s.SearchMemoryItems(ctx, "p2", "cats", models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)

	listed, err := s.ListMemoryItems(ctx, "p2", models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = s.CreateRelationDirect(ctx, "p2", "Alice", "Bob", "knows")
	assert.ErrorIs(t, err, ErrNotFound)

	// Same name in another project is a distinct entity.
	_, err = s.CreateEntities(ctx, "p2", []models.NewEntity{{Name: "Alice", EntityType: "robot"}})
	require.NoError(t, err)
	alice, err := s.GetEntityByName(ctx, "p1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "person", alice.EntityType)
}

func TestBlankProjectRejected(t *testing.T) {
	s := setupStore(t)
	_, err := s.ReadGraph(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func contents(obs []models.Observation) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = o.Content
	}
	return out
}
