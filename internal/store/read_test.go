package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/roach88/chartsync/internal/apperr"
)

func TestReadFull_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := createTestDiagram("d1", 3)
	in.DatabaseEdition = "supabase"
	if err := s.WriteFull(ctx, in); err != nil {
		t.Fatalf("WriteFull() failed: %v", err)
	}

	got, err := s.ReadFull(ctx, "d1")
	if err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}

	in.Normalize()
	want, _ := json.Marshal(in)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Errorf("round trip mismatch\nwant: %s\nhave: %s", want, have)
	}
}

func TestReadFull_PreservesChildOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := createTestDiagram("d1", 5)
	// reverse so insertion order differs from id order
	for i, j := 0, len(in.Tables)-1; i < j; i, j = i+1, j-1 {
		in.Tables[i], in.Tables[j] = in.Tables[j], in.Tables[i]
	}
	if err := s.WriteFull(ctx, in); err != nil {
		t.Fatalf("WriteFull() failed: %v", err)
	}

	got, err := s.ReadFull(ctx, "d1")
	if err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}
	for i := range in.Tables {
		if got.Tables[i].ID != in.Tables[i].ID {
			t.Errorf("table %d = %s, want %s", i, got.Tables[i].ID, in.Tables[i].ID)
		}
	}
}

func TestReadFull_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadFull(context.Background(), "missing")
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReadFull_EmptyCollections(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := createTestDiagram("d1", 0)
	in.Areas, in.Notes, in.CustomTypes = nil, nil, nil
	if err := s.WriteFull(ctx, in); err != nil {
		t.Fatalf("WriteFull() failed: %v", err)
	}

	got, err := s.ReadFull(ctx, "d1")
	if err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}
	if got.Tables == nil || got.Relationships == nil || got.Notes == nil || got.CustomTypes == nil {
		t.Error("empty collections should be empty slices, not nil")
	}
}

func TestReadFull_FallsBackToScanWithoutOwnerIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteFull(ctx, createTestDiagram("d1", 2)); err != nil {
		t.Fatalf("WriteFull(d1) failed: %v", err)
	}
	if err := s.WriteFull(ctx, createTestDiagram("d2", 4)); err != nil {
		t.Fatalf("WriteFull(d2) failed: %v", err)
	}

	for _, c := range ChildCollections {
		if _, err := s.db.Exec(`DROP INDEX ` + ownerIndex(c)); err != nil {
			t.Fatalf("drop index on %s: %v", c, err)
		}
	}

	got, err := s.ReadFull(ctx, "d1")
	if err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}
	if len(got.Tables) != 2 {
		t.Errorf("expected 2 tables for d1, got %d", len(got.Tables))
	}
	for _, tbl := range got.Tables {
		if tbl.ID != "d1-t0" && tbl.ID != "d1-t1" {
			t.Errorf("unexpected table %s in d1", tbl.ID)
		}
	}
	if len(got.Notes) != 1 {
		t.Errorf("expected 1 note for d1, got %d", len(got.Notes))
	}
}

func TestReadFull_MissingCollectionReadsEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteFull(ctx, createTestDiagram("d1", 1)); err != nil {
		t.Fatalf("WriteFull() failed: %v", err)
	}
	if _, err := s.db.Exec(`DROP TABLE db_custom_types`); err != nil {
		t.Fatalf("drop collection: %v", err)
	}

	got, err := s.ReadFull(ctx, "d1")
	if err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}
	if len(got.CustomTypes) != 0 {
		t.Errorf("expected no custom types, got %d", len(got.CustomTypes))
	}
	if len(got.Tables) != 1 {
		t.Errorf("expected 1 table, got %d", len(got.Tables))
	}
}

func TestListSummaries(t *testing.T) {
	s, clk := createTestStoreWithClock(t)
	ctx := context.Background()

	empty, err := s.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSummaries() failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}

	old := createTestDiagram("old", 2)
	recent := createTestDiagram("recent", 1)
	if err := s.WriteFull(ctx, old); err != nil {
		t.Fatalf("WriteFull(old) failed: %v", err)
	}
	clk.Advance(time.Second)
	if err := s.WriteFull(ctx, recent); err != nil {
		t.Fatalf("WriteFull(recent) failed: %v", err)
	}

	list, err := s.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSummaries() failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].ID != "recent" || list[1].ID != "old" {
		t.Errorf("order = [%s %s], want [recent old]", list[0].ID, list[1].ID)
	}
	if list[1].TableCount != 2 {
		t.Errorf("old table count = %d, want 2", list[1].TableCount)
	}
}

func TestGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteFull(ctx, createTestDiagram("d1", 3)); err != nil {
		t.Fatalf("WriteFull() failed: %v", err)
	}

	sum, err := s.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if sum.TableCount != 3 || sum.UpdatedAt != 2000 {
		t.Errorf("unexpected summary %+v", sum)
	}

	if _, err := s.Get(ctx, "nope"); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDefaultDiagramID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.DefaultDiagramID(ctx)
	if err != nil {
		t.Fatalf("DefaultDiagramID() failed: %v", err)
	}
	if id != "" {
		t.Errorf("unset pointer should be empty, got %q", id)
	}

	for _, want := range []string{"d1", "d2"} {
		if err := s.SetDefaultDiagramID(ctx, want); err != nil {
			t.Fatalf("SetDefaultDiagramID(%s) failed: %v", want, err)
		}
		got, err := s.DefaultDiagramID(ctx)
		if err != nil {
			t.Fatalf("DefaultDiagramID() failed: %v", err)
		}
		if got != want {
			t.Errorf("default = %q, want %q", got, want)
		}
	}
}
