package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/chartsync/internal/diagram"
	"github.com/roach88/chartsync/internal/testutil"
)

// createTestStore creates a new file-backed store for testing. Its clock
// reads 2000ms, the updatedAt of createTestDiagram.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := createTestStoreWithClock(t)
	return s
}

func createTestStoreWithClock(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock(time.UnixMilli(2000))
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clk))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clk
}

// createTestDiagram creates a diagram with n tables, each with one field and
// one index, plus one entity of every other kind. Child ids are prefixed
// with the diagram id so several diagrams can share a store.
func createTestDiagram(id string, n int) *diagram.Diagram {
	d := &diagram.Diagram{
		ID:           id,
		Name:         "diagram " + id,
		DatabaseType: "postgresql",
		CreatedAt:    1000,
		UpdatedAt:    2000,
	}
	for i := 0; i < n; i++ {
		tid := fmt.Sprintf("%s-t%d", id, i)
		fid := tid + "-f0"
		f := diagram.Field{ID: fid, CreatedAt: 1000}
		_ = f.SetAttr("name", "id")
		d.Tables = append(d.Tables, diagram.Table{
			ID:        tid,
			Name:      fmt.Sprintf("table_%d", i),
			X:         float64(i * 100),
			Fields:    []diagram.Field{f},
			Indexes:   []diagram.Index{{ID: tid + "-i0", Name: "pk", FieldIDs: []string{fid}}},
			CreatedAt: 1000,
		})
	}
	if n > 0 {
		t0 := d.Tables[0]
		d.Relationships = []diagram.Relationship{{
			ID: id + "-r0", SourceTableID: t0.ID, SourceFieldID: t0.Fields[0].ID,
			TargetTableID: t0.ID, TargetFieldID: t0.Fields[0].ID,
		}}
		d.Dependencies = []diagram.Dependency{{ID: id + "-dep0", TableID: t0.ID, DependentTableID: t0.ID}}
	}
	d.Areas = []diagram.Area{{ID: id + "-a0", Name: "area", Width: 10, Height: 10}}
	d.Notes = []diagram.Note{{ID: id + "-n0", Content: "note"}}
	d.CustomTypes = []diagram.CustomType{{ID: id + "-c0", Name: "mood", Kind: diagram.KindEnum, Values: []string{"ok"}}}
	return d
}
