package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Collection names. Each child collection is keyed by entity id and carries
// a secondary index on the owning diagram id named idx_<collection>_diagram_id.
const (
	CollectionDiagrams      = "diagrams"
	CollectionTables        = "db_tables"
	CollectionRelationships = "db_relationships"
	CollectionDependencies  = "db_dependencies"
	CollectionAreas         = "areas"
	CollectionNotes         = "notes"
	CollectionCustomTypes   = "db_custom_types"
	CollectionConfig        = "config"
)

// ChildCollections lists the child collections in traversal order.
var ChildCollections = []string{
	CollectionTables,
	CollectionRelationships,
	CollectionDependencies,
	CollectionAreas,
	CollectionNotes,
	CollectionCustomTypes,
}

func ownerIndex(collection string) string {
	return "idx_" + collection + "_diagram_id"
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// catalog is a snapshot of which tables and indexes exist.
type catalog struct {
	tables  map[string]bool
	indexes map[string]bool
}

func loadCatalog(ctx context.Context, q querier) (catalog, error) {
	c := catalog{tables: map[string]bool{}, indexes: map[string]bool{}}

	rows, err := q.QueryContext(ctx, `
		SELECT type, name FROM sqlite_master
		WHERE type IN ('table', 'index')
	`)
	if err != nil {
		return c, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, name string
		if err := rows.Scan(&typ, &name); err != nil {
			return c, fmt.Errorf("scan catalog: %w", err)
		}
		if typ == "table" {
			c.tables[name] = true
		} else {
			c.indexes[name] = true
		}
	}
	if err := rows.Err(); err != nil {
		return c, fmt.Errorf("iterate catalog: %w", err)
	}
	return c, nil
}

// readChildren returns every entity in collection owned by diagramID, in
// insertion order. Without the owner index it scans the whole collection and
// filters rows here.
func readChildren[T any](ctx context.Context, q querier, cat catalog, collection, diagramID string) ([]T, error) {
	indexed := cat.indexes[ownerIndex(collection)]

	var (
		rows *sql.Rows
		err  error
	)
	if indexed {
		rows, err = q.QueryContext(ctx, fmt.Sprintf(`
			SELECT diagram_id, body FROM %s INDEXED BY %s
			WHERE diagram_id = ?
			ORDER BY ordinal ASC, id COLLATE BINARY ASC
		`, collection, ownerIndex(collection)), diagramID)
	} else {
		rows, err = q.QueryContext(ctx, fmt.Sprintf(`
			SELECT diagram_id, body FROM %s
			ORDER BY ordinal ASC, id COLLATE BINARY ASC
		`, collection))
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var owner, body string
		if err := rows.Scan(&owner, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if owner != diagramID {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(body), &item); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", collection, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return items, nil
}

// insertChildren inserts items into collection under diagramID. Items
// without an id are skipped.
func insertChildren[T any](
	ctx context.Context,
	tx *sql.Tx,
	log *zap.Logger,
	collection, diagramID string,
	items []T,
	idOf func(T) string,
) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, diagram_id, ordinal, body)
		VALUES (?, ?, ?, ?)
	`, collection))
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", collection, err)
	}
	defer stmt.Close()

	for i, item := range items {
		id := idOf(item)
		if id == "" {
			log.Warn("skipping entity without id",
				zap.String("collection", collection),
				zap.String("diagram_id", diagramID),
				zap.Int("ordinal", i),
			)
			continue
		}

		body, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", collection, id, err)
		}

		if _, err := stmt.ExecContext(ctx, id, diagramID, i, string(body)); err != nil {
			return fmt.Errorf("insert %s %s: %w", collection, id, err)
		}
	}
	return nil
}
