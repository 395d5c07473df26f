package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/diagram"
)

// WriteFull replaces the diagram d.ID and all of its children with d.
//
// The write is one transaction: upsert the diagram row, delete every child
// of the diagram in every child collection, insert every child in d. Either
// all collections change or none do.
//
// Returns SchemaMismatch, before anything is written, when a child
// collection is missing from the database. Any failure inside the
// transaction rolls it back and returns TransactionFailure. Child ids are
// unique per collection across diagrams, so inserting an id that another
// diagram already owns fails the whole write.
//
// The stored updatedAt is the store clock's time, not d.UpdatedAt, and it
// always moves past the previous value so every write is visible to a
// reader comparing timestamps. d itself is not modified.
func (s *Store) WriteFull(ctx context.Context, d *diagram.Diagram) error {
	if d == nil || d.ID == "" {
		return apperr.New(apperr.CodeMalformedPayload, "write diagram: id is required")
	}

	if err := s.checkSchema(ctx); err != nil {
		return err
	}

	if err := s.writeFull(ctx, d); err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "write diagram "+d.ID)
	}

	s.notify(WriteEvent{Op: OpWrite, DiagramID: d.ID})
	return nil
}

func (s *Store) writeFull(ctx context.Context, d *diagram.Diagram) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	updated, err := s.nextUpdatedAt(ctx, tx, d.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diagrams (id, name, database_type, database_edition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			database_type = excluded.database_type,
			database_edition = excluded.database_edition,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`,
		d.ID,
		d.Name,
		d.DatabaseType,
		d.DatabaseEdition,
		int64(d.CreatedAt),
		int64(updated),
	)
	if err != nil {
		return fmt.Errorf("upsert diagram: %w", err)
	}

	for _, c := range ChildCollections {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE diagram_id = ?`, c), d.ID); err != nil {
			return fmt.Errorf("clear %s: %w", c, err)
		}
	}

	if err := insertChildren(ctx, tx, s.log, CollectionTables, d.ID, d.Tables,
		func(t diagram.Table) string { return t.ID }); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, s.log, CollectionRelationships, d.ID, d.Relationships,
		func(r diagram.Relationship) string { return r.ID }); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, s.log, CollectionDependencies, d.ID, d.Dependencies,
		func(dep diagram.Dependency) string { return dep.ID }); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, s.log, CollectionAreas, d.ID, d.Areas,
		func(a diagram.Area) string { return a.ID }); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, s.log, CollectionNotes, d.ID, d.Notes,
		func(n diagram.Note) string { return n.ID }); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, s.log, CollectionCustomTypes, d.ID, d.CustomTypes,
		func(ct diagram.CustomType) string { return ct.ID }); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// nextUpdatedAt returns the clock's time in milliseconds, or one past the
// diagram's stored updatedAt when the clock has not moved beyond it.
func (s *Store) nextUpdatedAt(ctx context.Context, tx *sql.Tx, id string) (diagram.Millis, error) {
	now := diagram.FromTime(s.clock.Now())

	var prev int64
	err := tx.QueryRowContext(ctx, `SELECT updated_at FROM diagrams WHERE id = ?`, id).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return now, nil
	case err != nil:
		return 0, fmt.Errorf("read updated_at: %w", err)
	}
	if now <= diagram.Millis(prev) {
		return diagram.Millis(prev + 1), nil
	}
	return now, nil
}

// DeleteFull removes the diagram id and every child it owns in one
// transaction. Returns NotFound if the diagram does not exist.
func (s *Store) DeleteFull(ctx context.Context, id string) error {
	if err := s.checkSchema(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "delete diagram: begin tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "delete diagram "+id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "delete diagram "+id)
	}
	if n == 0 {
		return apperr.Newf(apperr.CodeNotFound, "diagram %s not found", id)
	}

	for _, c := range ChildCollections {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE diagram_id = ?`, c), id); err != nil {
			return apperr.Wrap(err, apperr.CodeTransactionFailure, "delete diagram "+id+": clear "+c)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM config WHERE key = ? AND value = ?
	`, defaultDiagramKey, id); err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "delete diagram "+id+": clear default")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "delete diagram "+id+": commit")
	}

	s.notify(WriteEvent{Op: OpDelete, DiagramID: id})
	return nil
}

// SetDefaultDiagramID stores the default-diagram pointer.
func (s *Store) SetDefaultDiagramID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, defaultDiagramKey, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTransactionFailure, "set default diagram")
	}

	s.notify(WriteEvent{Op: OpConfig, DiagramID: id})
	return nil
}

// checkSchema fails with SchemaMismatch if any collection is missing.
func (s *Store) checkSchema(ctx context.Context) error {
	cat, err := loadCatalog(ctx, s.db)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "check schema")
	}

	required := append([]string{CollectionDiagrams}, ChildCollections...)
	for _, c := range required {
		if !cat.tables[c] {
			return apperr.Newf(apperr.CodeSchemaMismatch, "collection %s is missing", c).
				WithMeta("collection", c)
		}
	}
	return nil
}
