package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/diagram"
)

const defaultDiagramKey = "default_diagram_id"

// ReadFull assembles the diagram id with every child entity it owns.
//
// Returns a NotFound error if the diagram row is absent. A child collection
// with no matching rows, or one missing from the database, contributes an
// empty slice.
func (s *Store) ReadFull(ctx context.Context, id string) (*diagram.Diagram, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read diagram: begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDiagram(tx.QueryRowContext(ctx, `
		SELECT id, name, database_type, database_edition, created_at, updated_at
		FROM diagrams
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeNotFound, "diagram %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read diagram: %w", err)
	}

	cat, err := loadCatalog(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("read diagram: %w", err)
	}
	for _, c := range ChildCollections {
		if !cat.tables[c] {
			s.log.Debug("collection missing, reading as empty",
				zap.String("collection", c), zap.String("diagram_id", id))
		} else if !cat.indexes[ownerIndex(c)] {
			s.log.Debug("owner index missing, scanning collection",
				zap.String("collection", c), zap.String("diagram_id", id))
		}
	}

	if d.Tables, err = readIfPresent[diagram.Table](ctx, tx, cat, CollectionTables, id); err != nil {
		return nil, err
	}
	if d.Relationships, err = readIfPresent[diagram.Relationship](ctx, tx, cat, CollectionRelationships, id); err != nil {
		return nil, err
	}
	if d.Dependencies, err = readIfPresent[diagram.Dependency](ctx, tx, cat, CollectionDependencies, id); err != nil {
		return nil, err
	}
	if d.Areas, err = readIfPresent[diagram.Area](ctx, tx, cat, CollectionAreas, id); err != nil {
		return nil, err
	}
	if d.Notes, err = readIfPresent[diagram.Note](ctx, tx, cat, CollectionNotes, id); err != nil {
		return nil, err
	}
	if d.CustomTypes, err = readIfPresent[diagram.CustomType](ctx, tx, cat, CollectionCustomTypes, id); err != nil {
		return nil, err
	}

	d.Normalize()
	return d, nil
}

func readIfPresent[T any](ctx context.Context, q querier, cat catalog, collection, id string) ([]T, error) {
	if !cat.tables[collection] {
		return []T{}, nil
	}
	items, err := readChildren[T](ctx, q, cat, collection, id)
	if err != nil {
		return nil, fmt.Errorf("read diagram: %w", err)
	}
	return items, nil
}

// Get returns the summary of a single diagram without its children.
func (s *Store) Get(ctx context.Context, id string) (diagram.Summary, error) {
	var sum diagram.Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.name, d.database_type, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM db_tables t WHERE t.diagram_id = d.id)
		FROM diagrams d
		WHERE d.id = ?
	`, id).Scan(&sum.ID, &sum.Name, &sum.DatabaseType, &sum.CreatedAt, &sum.UpdatedAt, &sum.TableCount)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, apperr.Newf(apperr.CodeNotFound, "diagram %s not found", id)
	}
	if err != nil {
		return sum, fmt.Errorf("get diagram: %w", err)
	}
	return sum, nil
}

// ListSummaries returns every stored diagram, most recently updated first.
//
// Returns an empty slice (not nil) if the store holds no diagrams.
func (s *Store) ListSummaries(ctx context.Context) ([]diagram.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.database_type, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM db_tables t WHERE t.diagram_id = d.id)
		FROM diagrams d
		ORDER BY d.updated_at DESC, d.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	summaries := []diagram.Summary{}
	for rows.Next() {
		var sum diagram.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.DatabaseType, &sum.CreatedAt, &sum.UpdatedAt, &sum.TableCount); err != nil {
			return nil, fmt.Errorf("scan diagram: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagrams: %w", err)
	}
	return summaries, nil
}

// DefaultDiagramID returns the default-diagram pointer, or "" when unset.
func (s *Store) DefaultDiagramID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM config WHERE key = ?
	`, defaultDiagramKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read default diagram: %w", err)
	}
	return id, nil
}

func scanDiagram(row *sql.Row) (*diagram.Diagram, error) {
	var d diagram.Diagram
	if err := row.Scan(&d.ID, &d.Name, &d.DatabaseType, &d.DatabaseEdition, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
