package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a write transaction. Any error rolls back every row
// fn touched.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// lookupEntityID resolves (project, name) to an entity id. The boolean is
// false when no such entity exists.
func lookupEntityID(ctx context.Context, q queryer, project, name string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM entities WHERE project = ? AND name = ?`, project, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup entity %q: %w", name, err)
	}
	return id, true, nil
}

// CreateEntities upserts each entity and inserts the observations it does
// not already have. The result reports, per input, only the observations
// that were newly added.
func (s *Store) CreateEntities(ctx context.Context, project string, entities []models.NewEntity) ([]models.Entity, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	for _, e := range entities {
		if err := requireText("name", e.Name); err != nil {
			return nil, err
		}
		if err := requireText("entity_type", e.EntityType); err != nil {
			return nil, fmt.Errorf("entity %q: %w", e.Name, err)
		}
		for _, obs := range e.Observations {
			if err := requireText("observation", obs); err != nil {
				return nil, fmt.Errorf("entity %q: %w", e.Name, err)
			}
		}
	}

	created := make([]models.Entity, 0, len(entities))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx,
			`INSERT INTO entities (project, name, entity_type) VALUES (?, ?, ?)
			 ON CONFLICT(project, name) DO UPDATE SET
			     entity_type = excluded.entity_type,
			     updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			 RETURNING id, name, entity_type`,
		)
		if err != nil {
			return fmt.Errorf("prepare entity upsert: %w", err)
		}
		defer upsert.Close()

		for _, e := range entities {
			var (
				id     int64
				entity models.Entity
			)
			if err := upsert.QueryRowContext(ctx, project, e.Name, e.EntityType).
				Scan(&id, &entity.Name, &entity.EntityType); err != nil {
				return fmt.Errorf("upsert entity %q: %w", e.Name, err)
			}

			added, err := insertObservations(ctx, tx, id, e.Observations)
			if err != nil {
				return fmt.Errorf("entity %q: %w", e.Name, err)
			}
			entity.Observations = added
			created = append(created, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertObservations inserts contents for entityID, skipping any already
// present, and returns the contents actually inserted in input order.
func insertObservations(ctx context.Context, tx *sql.Tx, entityID int64, contents []string) ([]string, error) {
	added := []string{}
	for _, content := range contents {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO observations (entity_id, content) VALUES (?, ?)
			 ON CONFLICT(entity_id, content) DO NOTHING`,
			entityID, content,
		)
		if err != nil {
			return nil, fmt.Errorf("insert observation: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added = append(added, content)
		}
	}
	return added, nil
}

// CreateRelations inserts each relation whose endpoints both exist and which
// is not already stored. Skipped relations produce no output row.
func (s *Store) CreateRelations(ctx context.Context, project string, relations []models.NewRelation) ([]models.Relation, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	for _, r := range relations {
		if err := validateRelation(r); err != nil {
			return nil, err
		}
	}

	created := []models.Relation{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range relations {
			fromID, toID, ok, err := resolveEndpoints(ctx, tx, project, r.From, r.To)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO relations (project, from_entity_id, to_entity_id, relation_type)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(project, from_entity_id, to_entity_id, relation_type) DO NOTHING`,
				project, fromID, toID, r.RelationType,
			)
			if err != nil {
				return fmt.Errorf("insert relation: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				created = append(created, models.Relation{From: r.From, To: r.To, RelationType: r.RelationType})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRelationDirect inserts a single relation and returns its id. A
// missing endpoint and an already existing relation both yield ErrNotFound.
func (s *Store) CreateRelationDirect(ctx context.Context, project, from, to, relationType string) (int64, error) {
	if err := requireProject(project); err != nil {
		return 0, err
	}
	if err := validateRelation(models.NewRelation{From: from, To: to, RelationType: relationType}); err != nil {
		return 0, err
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		fromID, toID, ok, err := resolveEndpoints(ctx, tx, project, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO relations (project, from_entity_id, to_entity_id, relation_type)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(project, from_entity_id, to_entity_id, relation_type) DO NOTHING
			 RETURNING id`,
			project, fromID, toID, relationType,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("insert relation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func validateRelation(r models.NewRelation) error {
	if err := requireText("from", r.From); err != nil {
		return err
	}
	if err := requireText("to", r.To); err != nil {
		return err
	}
	return requireText("relation_type", r.RelationType)
}

// resolveEndpoints looks up both relation endpoints. ok is false when either
// is missing.
func resolveEndpoints(ctx context.Context, q queryer, project, from, to string) (fromID, toID int64, ok bool, err error) {
	fromID, found, err := lookupEntityID(ctx, q, project, from)
	if err != nil || !found {
		return 0, 0, false, err
	}
	toID, found, err = lookupEntityID(ctx, q, project, to)
	if err != nil || !found {
		return 0, 0, false, err
	}
	return fromID, toID, true, nil
}

// AddObservations inserts new observation contents for existing entities.
// Entities that do not exist are skipped and produce no output row.
func (s *Store) AddObservations(ctx context.Context, project string, batches []models.ObservationBatch) ([]models.AddedObservations, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	for _, b := range batches {
		if err := requireText("entity_name", b.EntityName); err != nil {
			return nil, err
		}
		for _, c := range b.Contents {
			if err := requireText("observation", c); err != nil {
				return nil, fmt.Errorf("entity %q: %w", b.EntityName, err)
			}
		}
	}

	results := []models.AddedObservations{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range batches {
			id, found, err := lookupEntityID(ctx, tx, project, b.EntityName)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			added, err := insertObservations(ctx, tx, id, b.Contents)
			if err != nil {
				return fmt.Errorf("entity %q: %w", b.EntityName, err)
			}
			results = append(results, models.AddedObservations{EntityName: b.EntityName, AddedObservations: added})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteEntities removes the named entities together with their
// observations and incident relations. Missing names are ignored. It returns
// the number of entities removed.
func (s *Store) DeleteEntities(ctx context.Context, project string, names []string) (int64, error) {
	if err := requireProject(project); err != nil {
		return 0, err
	}

	var count int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			id, found, err := lookupEntityID(ctx, tx, project, name)
			if err != nil {
				return err
			}
			if !found {
				continue
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE entity_id = ?`, id); err != nil {
				return fmt.Errorf("delete observations of %q: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM relations WHERE from_entity_id = ? OR to_entity_id = ?`, id, id,
			); err != nil {
				return fmt.Errorf("delete relations of %q: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete entity %q: %w", name, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteObservations removes the listed contents from each named entity.
// Missing entities and contents are ignored. It returns the number of
// observations removed.
func (s *Store) DeleteObservations(ctx context.Context, project string, deletions []models.ObservationDeletion) (int64, error) {
	if err := requireProject(project); err != nil {
		return 0, err
	}

	var total int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range deletions {
			id, found, err := lookupEntityID(ctx, tx, project, d.EntityName)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			for _, content := range d.Observations {
				res, err := tx.ExecContext(ctx,
					`DELETE FROM observations WHERE entity_id = ? AND content = ?`, id, content,
				)
				if err != nil {
					return fmt.Errorf("delete observation: %w", err)
				}
				n, _ := res.RowsAffected()
				total += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteRelations removes each exact (from, to, type) relation. Relations
// with a missing endpoint or that are not stored are ignored. It returns the
// number of relations removed.
func (s *Store) DeleteRelations(ctx context.Context, project string, relations []models.NewRelation) (int64, error) {
	if err := requireProject(project); err != nil {
		return 0, err
	}

	var total int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range relations {
			fromID, toID, ok, err := resolveEndpoints(ctx, tx, project, r.From, r.To)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`DELETE FROM relations
				 WHERE project = ? AND from_entity_id = ? AND to_entity_id = ? AND relation_type = ?`,
				project, fromID, toID, r.RelationType,
			)
			if err != nil {
				return fmt.Errorf("delete relation: %w", err)
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteObservationByID removes one observation. A missing id is a no-op.
func (s *Store) DeleteObservationByID(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete observation %d: %w", id, err)
	}
	return nil
}

// DeleteRelationByID removes one relation. A missing id is a no-op.
func (s *Store) DeleteRelationByID(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete relation %d: %w", id, err)
	}
	return nil
}

// ReadGraph returns every entity of the project with its observations and
// every relation among them.
func (s *Store) ReadGraph(ctx context.Context, project string) (*models.KnowledgeGraph, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, entity_type FROM entities WHERE project = ? ORDER BY id`, project,
	)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	entities, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}

	obsRows, err := s.db.QueryContext(ctx,
		`SELECT o.entity_id, o.content
		 FROM observations o
		 JOIN entities e ON e.id = o.entity_id
		 WHERE e.project = ?
		 ORDER BY o.id`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	if err := attachObservations(obsRows, entities); err != nil {
		return nil, err
	}

	relRows, err := s.db.QueryContext(ctx,
		`SELECT id, from_entity_id, to_entity_id, relation_type
		 FROM relations WHERE project = ? ORDER BY id`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	edges, err := scanEdges(relRows)
	if err != nil {
		return nil, err
	}

	return entities.graph(edges), nil
}

// GetEntityByName returns the named entity with its observations and every
// relation incident to it, or ErrNotFound.
func (s *Store) GetEntityByName(ctx context.Context, project, name string) (*models.EntityDetail, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}

	var e models.EntityDetail
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, entity_type, created_at, updated_at
		 FROM entities WHERE project = ? AND name = ?`,
		project, name,
	).Scan(&e.ID, &e.Name, &e.EntityType, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity %q: %w", name, err)
	}

	obsRows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM observations WHERE entity_id = ? ORDER BY id`, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer obsRows.Close()
	e.Observations = []models.Observation{}
	for obsRows.Next() {
		var o models.Observation
		if err := obsRows.Scan(&o.ID, &o.Content); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		e.Observations = append(e.Observations, o)
	}
	if err := obsRows.Err(); err != nil {
		return nil, err
	}

	relRows, err := s.db.QueryContext(ctx,
		`SELECT r.id, ef.name, et.name, r.relation_type
		 FROM relations r
		 JOIN entities ef ON ef.id = r.from_entity_id
		 JOIN entities et ON et.id = r.to_entity_id
		 WHERE r.project = ? AND (r.from_entity_id = ? OR r.to_entity_id = ?)
		 ORDER BY r.id`,
		project, e.ID, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer relRows.Close()
	e.Relations = []models.RelationRecord{}
	for relRows.Next() {
		var r models.RelationRecord
		if err := relRows.Scan(&r.ID, &r.From, &r.To, &r.RelationType); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		e.Relations = append(e.Relations, r)
	}
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	return &e, nil
}
