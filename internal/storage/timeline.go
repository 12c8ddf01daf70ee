package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/models"
)

// Pagination defaults for memory item listings.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

const memoryItemColumns = `id, project, kind, title, content, tags_json, source, created_at`

// AppendMemoryItem stores a new memory item and returns it with its
// assigned id and creation time.
func (s *Store) AppendMemoryItem(ctx context.Context, project string, item models.NewMemoryItem) (*models.MemoryItem, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	if err := requireText("kind", item.Kind); err != nil {
		return nil, err
	}
	if err := requireText("content", item.Content); err != nil {
		return nil, err
	}

	var tagsJSON sql.NullString
	if len(item.Tags) > 0 {
		b, err := json.Marshal(item.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		tagsJSON = sql.NullString{String: string(b), Valid: true}
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO memory_items (project, kind, title, content, tags_json, source)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING `+memoryItemColumns,
		project, item.Kind, nullIfEmpty(item.Title), item.Content, tagsJSON, nullIfEmpty(item.Source),
	)
	m, err := scanMemoryItem(row)
	if err != nil {
		return nil, fmt.Errorf("insert memory item: %w", err)
	}
	return m, nil
}

// GetMemoryItem returns the memory item with id in project, or ErrNotFound.
func (s *Store) GetMemoryItem(ctx context.Context, project string, id int64) (*models.MemoryItem, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryItemColumns+` FROM memory_items WHERE project = ? AND id = ?`,
		project, id,
	)
	m, err := scanMemoryItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory item %d: %w", id, err)
	}
	return m, nil
}

// DeleteMemoryItem removes the memory item with id in project and reports
// whether a row was removed.
func (s *Store) DeleteMemoryItem(ctx context.Context, project string, id int64) (bool, error) {
	if err := requireProject(project); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_items WHERE project = ? AND id = ?`, project, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete memory item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete memory item %d: %w", id, err)
	}
	return n > 0, nil
}

// ListMemoryItems returns memory items newest first, optionally filtered by
// kind.
func (s *Store) ListMemoryItems(ctx context.Context, project string, opts models.ListOptions) ([]models.MemoryItem, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	limit, offset := normalizePage(opts)

	var (
		sb   strings.Builder
		args = []any{project}
	)
	sb.WriteString(`SELECT ` + memoryItemColumns + ` FROM memory_items WHERE project = ?`)
	if opts.Kind != "" {
		sb.WriteString(` AND kind = ?`)
		args = append(args, opts.Kind)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list memory items: %w", err)
	}
	return scanMemoryItems(rows)
}

// SearchMemoryItems prefix-matches query tokens against memory item
// contents. A query without tokens behaves like ListMemoryItems.
func (s *Store) SearchMemoryItems(ctx context.Context, project, query string, opts models.ListOptions) ([]models.MemoryItem, error) {
	if err := requireProject(project); err != nil {
		return nil, err
	}
	match := prefixQuery(query)
	if match == "" {
		return s.ListMemoryItems(ctx, project, opts)
	}
	limit, offset := normalizePage(opts)

	var (
		sb   strings.Builder
		args = []any{match, project, project}
	)
	sb.WriteString(`SELECT mi.id, mi.project, mi.kind, mi.title, mi.content, mi.tags_json, mi.source, mi.created_at
		FROM memory_items_fts f
		JOIN memory_items mi ON mi.id = f.rowid
		WHERE memory_items_fts MATCH ? AND f.project = ? AND mi.project = ?`)
	if opts.Kind != "" {
		sb.WriteString(` AND mi.kind = ?`)
		args = append(args, opts.Kind)
	}
	sb.WriteString(` ORDER BY mi.created_at DESC, mi.id DESC LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search memory items: %w", err)
	}
	return scanMemoryItems(rows)
}

// normalizePage applies the default limit and floors the offset at zero.
// Limits above MaxListLimit are clamped so a single call stays bounded.
func normalizePage(opts models.ListOptions) (limit, offset int) {
	limit = opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryItem(row rowScanner) (*models.MemoryItem, error) {
	var (
		m        models.MemoryItem
		title    sql.NullString
		tagsJSON sql.NullString
		source   sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Project, &m.Kind, &title, &m.Content, &tagsJSON, &source, &m.CreatedAt); err != nil {
		return nil, err
	}
	if title.Valid {
		m.Title = &title.String
	}
	if source.Valid {
		m.Source = &source.String
	}
	m.Tags = []string{}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of memory item %d: %w", m.ID, err)
		}
	}
	return &m, nil
}

func scanMemoryItems(rows *sql.Rows) ([]models.MemoryItem, error) {
	defer rows.Close()
	items := []models.MemoryItem{}
	for rows.Next() {
		m, err := scanMemoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory item: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
