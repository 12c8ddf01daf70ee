package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
)

// Expansion caps. They bound the cost and size of a search independently of
// how large the project is.
const (
	maxSeedEntities = 200
	maxRelations    = 2000
	maxEntities     = 500
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]+`)

// Tokenize strips punctuation from query and splits it on whitespace.
func Tokenize(query string) []string {
	return strings.Fields(nonWord.ReplaceAllString(query, " "))
}

// prefixQuery builds an FTS5 expression in which every token is a quoted
// prefix term and the terms are OR-combined. It returns "" when query has no
// tokens.
func prefixQuery(query string) string {
	tokens := Tokenize(query)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = `"` + t + `"*`
	}
	return strings.Join(terms, " OR ")
}

// SearchNodes matches query against entity names and observation contents,
// then expands the matched entities one hop. A query with no tokens yields
// an empty graph.
func (s *Store) SearchNodes(ctx context.Context, project, query string) (*models.KnowledgeGraph, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	match := prefixQuery(query)
	if match == "" {
		return emptyGraph(), nil
	}

	seeds := newIDSet(maxSeedEntities)

	nameRows, err := s.db.QueryContext(ctx,
		`SELECT e.id
		 FROM entities_fts f
		 JOIN entities e ON e.id = f.rowid
		 WHERE entities_fts MATCH ? AND f.project = ? AND e.project = ?
		 ORDER BY e.id
		 LIMIT ?`,
		match, project, project, maxSeedEntities,
	)
	if err != nil {
		return nil, fmt.Errorf("search entity names: %w", err)
	}
	if err := seeds.scan(nameRows); err != nil {
		return nil, err
	}

	obsRows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT e.id
		 FROM observations_fts f
		 JOIN observations o ON o.id = f.rowid
		 JOIN entities e ON e.id = o.entity_id
		 WHERE observations_fts MATCH ? AND f.project = ? AND e.project = ?
		 ORDER BY e.id
		 LIMIT ?`,
		match, project, project, maxSeedEntities,
	)
	if err != nil {
		return nil, fmt.Errorf("search observations: %w", err)
	}
	if err := seeds.scan(obsRows); err != nil {
		return nil, err
	}

	return s.expand(ctx, project, seeds.ids)
}

// OpenNodes seeds the one-hop expansion with the named entities. Names that
// do not exist are ignored.
func (s *Store) OpenNodes(ctx context.Context, project string, names []string) (*models.KnowledgeGraph, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return emptyGraph(), nil
	}

	namesJSON, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode names: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM entities
		 WHERE project = ? AND name IN (SELECT value FROM json_each(?))
		 ORDER BY id`,
		project, string(namesJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve names: %w", err)
	}
	seeds := newIDSet(0)
	if err := seeds.scan(rows); err != nil {
		return nil, err
	}

	return s.expand(ctx, project, seeds.ids)
}

// expand fetches the relations touching any seed, adds their endpoints to
// the seeds, and returns the induced subgraph over the capped entity set.
// Relations whose endpoints fell outside the cap are dropped, so every
// returned relation has both endpoints among the returned entities.
func (s *Store) expand(ctx context.Context, project string, seeds []int64) (*models.KnowledgeGraph, error) {
	if len(seeds) == 0 {
		return emptyGraph(), nil
	}

	seedJSON, err := idsJSON(seeds)
	if err != nil {
		return nil, err
	}
	relRows, err := s.db.QueryContext(ctx,
		`SELECT id, from_entity_id, to_entity_id, relation_type
		 FROM relations
		 WHERE project = ?
		   AND (from_entity_id IN (SELECT value FROM json_each(?))
		        OR to_entity_id IN (SELECT value FROM json_each(?)))
		 ORDER BY id
		 LIMIT ?`,
		project, seedJSON, seedJSON, maxRelations,
	)
	if err != nil {
		return nil, fmt.Errorf("query neighbor relations: %w", err)
	}
	edges, err := scanEdges(relRows)
	if err != nil {
		return nil, err
	}

	result := newIDSet(maxEntities)
	result.add(seeds...)
	for _, e := range edges {
		result.add(e.from, e.to)
	}

	resultJSON, err := idsJSON(result.ids)
	if err != nil {
		return nil, err
	}
	entRows, err := s.db.QueryContext(ctx,
		`SELECT id, name, entity_type FROM entities
		 WHERE project = ? AND id IN (SELECT value FROM json_each(?))
		 ORDER BY id`,
		project, resultJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	entities, err := scanEntities(entRows)
	if err != nil {
		return nil, err
	}

	obsRows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, content FROM observations
		 WHERE entity_id IN (SELECT value FROM json_each(?))
		 ORDER BY id`,
		resultJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	if err := attachObservations(obsRows, entities); err != nil {
		return nil, err
	}

	return entities.graph(edges), nil
}

func emptyGraph() *models.KnowledgeGraph {
	return &models.KnowledgeGraph{Entities: []models.Entity{}, Relations: []models.Relation{}}
}

func idsJSON(ids []int64) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}

// idSet is an insertion-ordered set of entity ids with an optional capacity.
// Ids added past the capacity are dropped.
type idSet struct {
	limit int
	ids   []int64
	seen  map[int64]struct{}
}

func newIDSet(limit int) *idSet {
	return &idSet{limit: limit, seen: make(map[int64]struct{})}
}

func (s *idSet) add(ids ...int64) {
	for _, id := range ids {
		if s.limit > 0 && len(s.ids) >= s.limit {
			return
		}
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

// scan adds the single integer column of every row and closes rows.
func (s *idSet) scan(rows *sql.Rows) error {
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		s.add(id)
	}
	return rows.Err()
}

type edge struct {
	id           int64
	from, to     int64
	relationType string
}

func scanEdges(rows *sql.Rows) ([]edge, error) {
	defer rows.Close()
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.id, &e.from, &e.to, &e.relationType); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// entityIndex holds fetched entities in row order, addressable by id.
type entityIndex struct {
	order []int64
	byID  map[int64]*models.Entity
}

func scanEntities(rows *sql.Rows) (*entityIndex, error) {
	defer rows.Close()
	idx := &entityIndex{byID: make(map[int64]*models.Entity)}
	for rows.Next() {
		var (
			id int64
			e  models.Entity
		)
		if err := rows.Scan(&id, &e.Name, &e.EntityType); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Observations = []string{}
		idx.order = append(idx.order, id)
		idx.byID[id] = &e
	}
	return idx, rows.Err()
}

// attachObservations appends (entity_id, content) rows to the entities they
// belong to. Rows for entities outside the index are ignored.
func attachObservations(rows *sql.Rows, idx *entityIndex) error {
	defer rows.Close()
	for rows.Next() {
		var (
			entityID int64
			content  string
		)
		if err := rows.Scan(&entityID, &content); err != nil {
			return fmt.Errorf("scan observation: %w", err)
		}
		if e, ok := idx.byID[entityID]; ok {
			e.Observations = append(e.Observations, content)
		}
	}
	return rows.Err()
}

// graph renders the index and the edges whose endpoints are both indexed.
func (idx *entityIndex) graph(edges []edge) *models.KnowledgeGraph {
	g := emptyGraph()
	for _, id := range idx.order {
		g.Entities = append(g.Entities, *idx.byID[id])
	}
	for _, e := range edges {
		from, okFrom := idx.byID[e.from]
		to, okTo := idx.byID[e.to]
		if !okFrom || !okTo {
			continue
		}
		g.Relations = append(g.Relations, models.Relation{
			From:         from.Name,
			To:           to.Name,
			RelationType: e.relationType,
		})
	}
	return g
}
