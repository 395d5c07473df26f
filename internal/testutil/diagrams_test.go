package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopDiagram_ReferencesResolve(t *testing.T) {
	d := ShopDiagram("shop")

	fields := map[string]map[string]bool{}
	for _, tbl := range d.Tables {
		fields[tbl.ID] = map[string]bool{}
		for _, f := range tbl.Fields {
			fields[tbl.ID][f.ID] = true
		}
		for _, idx := range tbl.Indexes {
			for _, fid := range idx.FieldIDs {
				assert.True(t, fields[tbl.ID][fid], "index %s field %s", idx.ID, fid)
			}
		}
	}
	for _, r := range d.Relationships {
		require.Contains(t, fields, r.SourceTableID)
		require.Contains(t, fields, r.TargetTableID)
		assert.True(t, fields[r.SourceTableID][r.SourceFieldID])
		assert.True(t, fields[r.TargetTableID][r.TargetFieldID])
	}
	for _, dep := range d.Dependencies {
		assert.Contains(t, fields, dep.TableID)
		assert.Contains(t, fields, dep.DependentTableID)
	}
	assert.Equal(t, "id", d.Tables[0].Fields[0].Name())
}

func TestShopDiagram_FreshCopies(t *testing.T) {
	a := ShopDiagram("a")
	b := ShopDiagram("a")
	a.Tables[0].Name = "changed"
	a.Tables[0].Indexes[0].FieldIDs[0] = "changed"
	assert.Equal(t, "users", b.Tables[0].Name)
	assert.Equal(t, "users.id", b.Tables[0].Indexes[0].FieldIDs[0])
}
