package clone

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/diagram"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func nowFn() time.Time { return fixedNow }

func field(id, name string) diagram.Field {
	f := diagram.Field{ID: id, CreatedAt: 100}
	_ = f.SetAttr("name", name)
	_ = f.SetAttr("type", map[string]string{"id": "int", "name": "int"})
	return f
}

// sampleDiagram builds a graph that touches every entity kind and every
// reference kind.
func sampleDiagram() *diagram.Diagram {
	order := 1
	return &diagram.Diagram{
		ID:           "d1",
		Name:         "shop",
		DatabaseType: "postgresql",
		CreatedAt:    10,
		UpdatedAt:    20,
		Tables: []diagram.Table{
			{
				ID: "users", Name: "users", Schema: "public", X: 1, Y: 2,
				ParentAreaID: "core", CreatedAt: 100,
				Fields:       []diagram.Field{field("users.id", "id"), field("users.email", "email")},
				Indexes: []diagram.Index{
					{ID: "users.pk", Name: "users_pk", Unique: true, FieldIDs: []string{"users.id"}, CreatedAt: 100},
				},
			},
			{
				ID: "orders", Name: "orders", X: 300, Y: 2, CreatedAt: 100,
				Fields: []diagram.Field{field("orders.id", "id"), field("orders.user_id", "user_id")},
				Indexes: []diagram.Index{
					{ID: "orders.idx", Name: "orders_user", FieldIDs: []string{"orders.user_id", "orders.id"}, CreatedAt: 100},
				},
			},
			{ID: "active_users", Name: "active_users", IsView: true, CreatedAt: 100},
		},
		Relationships: []diagram.Relationship{
			{
				ID: "rel", Name: "orders_users",
				SourceTableID: "orders", SourceFieldID: "orders.user_id",
				TargetTableID: "users", TargetFieldID: "users.id",
				SourceCardinality: "many", TargetCardinality: "one", CreatedAt: 100,
			},
		},
		Dependencies: []diagram.Dependency{
			{ID: "dep", TableID: "users", DependentTableID: "active_users", CreatedAt: 100},
		},
		Areas: []diagram.Area{{ID: "core", Name: "core", Width: 500, Height: 400, Color: "#abc", Order: &order}},
		Notes: []diagram.Note{{ID: "note", Content: "todo: billing", Width: 100, Height: 50, Color: "#ff0"}},
		CustomTypes: []diagram.CustomType{
			{ID: "status", Name: "order_status", Kind: diagram.KindEnum, Values: []string{"new", "paid"}},
		},
	}
}

// assertClosed checks that every reference in d resolves within d.
func assertClosed(t *testing.T, d *diagram.Diagram) {
	t.Helper()

	tables := map[string]map[string]bool{}
	for _, tbl := range d.Tables {
		fields := map[string]bool{}
		for _, f := range tbl.Fields {
			fields[f.ID] = true
		}
		tables[tbl.ID] = fields
	}
	areas := map[string]bool{}
	for _, a := range d.Areas {
		areas[a.ID] = true
	}

	for _, tbl := range d.Tables {
		if tbl.ParentAreaID != "" {
			assert.True(t, areas[tbl.ParentAreaID], "table %s parent area %s", tbl.ID, tbl.ParentAreaID)
		}
		for _, idx := range tbl.Indexes {
			for _, fid := range idx.FieldIDs {
				assert.True(t, tables[tbl.ID][fid], "index %s field %s", idx.ID, fid)
			}
		}
	}
	for _, r := range d.Relationships {
		require.Contains(t, tables, r.SourceTableID)
		require.Contains(t, tables, r.TargetTableID)
		assert.True(t, tables[r.SourceTableID][r.SourceFieldID], "relationship %s source field", r.ID)
		assert.True(t, tables[r.TargetTableID][r.TargetFieldID], "relationship %s target field", r.ID)
	}
	for _, dep := range d.Dependencies {
		assert.Contains(t, tables, dep.TableID)
		assert.Contains(t, tables, dep.DependentTableID)
	}
}

func childIDs(d *diagram.Diagram) []string {
	var ids []string
	for _, t := range d.Tables {
		ids = append(ids, t.ID)
		for _, f := range t.Fields {
			ids = append(ids, f.ID)
		}
		for _, i := range t.Indexes {
			ids = append(ids, i.ID)
		}
	}
	for _, r := range d.Relationships {
		ids = append(ids, r.ID)
	}
	for _, dep := range d.Dependencies {
		ids = append(ids, dep.ID)
	}
	for _, a := range d.Areas {
		ids = append(ids, a.ID)
	}
	for _, n := range d.Notes {
		ids = append(ids, n.ID)
	}
	for _, c := range d.CustomTypes {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestClone_SequentialRoundTrip(t *testing.T) {
	first, err := Clone(sampleDiagram(), FreshSequential, WithRootID("root"), WithNow(nowFn))
	require.NoError(t, err)

	second, err := Clone(first.Diagram, FreshSequential, WithRootID("root"), WithNow(nowFn))
	require.NoError(t, err)

	assert.Equal(t, first.Diagram, second.Diagram)
	assert.Empty(t, second.Diagnostics)
}

func TestClone_SequentialNumbering(t *testing.T) {
	res, err := Clone(sampleDiagram(), FreshSequential, WithNow(nowFn))
	require.NoError(t, err)

	d := res.Diagram
	// tables then their fields and indexes, in traversal order
	assert.Equal(t, "0", d.Tables[0].ID)
	assert.Equal(t, "1", d.Tables[0].Fields[0].ID)
	assert.Equal(t, "2", d.Tables[0].Fields[1].ID)
	assert.Equal(t, "3", d.Tables[0].Indexes[0].ID)
	assert.Equal(t, "4", d.Tables[1].ID)
	assert.Equal(t, "8", d.Tables[2].ID)
	assert.Equal(t, "9", d.Relationships[0].ID)
	assert.Equal(t, "10", d.Dependencies[0].ID)
	assert.Equal(t, "11", d.Areas[0].ID)
	assert.Equal(t, "12", d.Notes[0].ID)
	assert.Equal(t, "13", d.CustomTypes[0].ID)

	assert.Regexp(t, `^diagram_[0-9a-z]{26}$`, d.ID)
	assert.Equal(t, "11", d.Tables[0].ParentAreaID)
	assert.Equal(t, []string{"1"}, d.Tables[0].Indexes[0].FieldIDs)
	assert.Equal(t, []string{"6", "5"}, d.Tables[1].Indexes[0].FieldIDs)
}

func TestClone_ReferenceClosure(t *testing.T) {
	for _, policy := range []Policy{FreshRandom, FreshSequential, PreserveRoot} {
		t.Run(policy.String(), func(t *testing.T) {
			g := sampleDiagram()
			g.Tables[0].ParentAreaID = "missing-area"
			g.Tables[1].Indexes[0].FieldIDs = []string{"orders.id", "users.id"}
			g.Relationships = append(g.Relationships, diagram.Relationship{
				ID: "bad", SourceTableID: "users", SourceFieldID: "users.id",
				TargetTableID: "t99", TargetFieldID: "f99",
			})
			g.Dependencies = append(g.Dependencies, diagram.Dependency{
				ID: "bad-dep", TableID: "nope", DependentTableID: "users",
			})

			res, err := Clone(g, policy, WithNow(nowFn))
			require.NoError(t, err)
			assertClosed(t, res.Diagram)

			assert.Len(t, res.Diagram.Relationships, 1)
			assert.Len(t, res.Diagram.Dependencies, 1)
			assert.Empty(t, res.Diagram.Tables[0].ParentAreaID)
			assert.Len(t, res.Diagram.Tables[1].Indexes[0].FieldIDs, 1)
			assert.Equal(t, 2, res.Dropped())
		})
	}
}

func TestClone_PreserveRoot(t *testing.T) {
	g := sampleDiagram()
	res, err := Clone(g, PreserveRoot, WithRootID("ignored"), WithNow(nowFn))
	require.NoError(t, err)

	assert.Equal(t, "d1", res.Diagram.ID)
	assert.Equal(t, "d1", res.IDs["d1"])

	original := map[string]bool{}
	for _, id := range childIDs(g) {
		original[id] = true
	}
	for _, id := range childIDs(res.Diagram) {
		assert.False(t, original[id], "child id %s was reused", id)
	}
}

func TestClone_PreserveRootScenario(t *testing.T) {
	g := &diagram.Diagram{
		ID: "d1",
		Tables: []diagram.Table{
			{ID: "t1", Fields: []diagram.Field{{ID: "f1"}}},
		},
		Relationships: []diagram.Relationship{
			{ID: "r1", SourceTableID: "t1", SourceFieldID: "f1", TargetTableID: "t1", TargetFieldID: "f1"},
		},
	}

	res, err := Clone(g, PreserveRoot)
	require.NoError(t, err)

	d := res.Diagram
	assert.Equal(t, "d1", d.ID)
	assert.NotEqual(t, "t1", d.Tables[0].ID)
	require.Len(t, d.Relationships, 1)
	assert.Equal(t, d.Tables[0].ID, d.Relationships[0].SourceTableID)
	assert.Equal(t, d.Tables[0].ID, d.Relationships[0].TargetTableID)
	assert.Equal(t, d.Tables[0].Fields[0].ID, d.Relationships[0].SourceFieldID)
}

func TestClone_DropsRelationshipToMissingTable(t *testing.T) {
	g := &diagram.Diagram{
		ID: "d1",
		Tables: []diagram.Table{
			{ID: "t1", Fields: []diagram.Field{{ID: "f1"}}},
		},
		Relationships: []diagram.Relationship{
			{ID: "r1", SourceTableID: "t1", SourceFieldID: "f1", TargetTableID: "t99", TargetFieldID: "f1"},
		},
	}

	core, logs := observer.New(zapcore.WarnLevel)
	res, err := Clone(g, PreserveRoot, WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.Empty(t, res.Diagram.Relationships)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, Diagnostic{
		Kind: "relationship", ID: "r1", Ref: "targetTableId", Target: "t99", Outcome: OutcomeDropped,
	}, res.Diagnostics[0])
	assert.True(t, apperr.IsCode(res.Diagnostics[0].Err(), apperr.CodeReferenceUnresolved))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "unresolved reference", entry.Message)
	assert.Equal(t, "t99", entry.ContextMap()["target"])
}

func TestClone_FieldMustBelongToReferencedTable(t *testing.T) {
	g := sampleDiagram()
	g.Relationships[0].SourceFieldID = "users.email"

	res, err := Clone(g, FreshRandom)
	require.NoError(t, err)

	assert.Empty(t, res.Diagram.Relationships)
	assert.Equal(t, "sourceFieldId", res.Diagnostics[0].Ref)
}

func TestClone_IndexLosingAllFieldsIsDropped(t *testing.T) {
	g := sampleDiagram()
	g.Tables[0].Indexes = append(g.Tables[0].Indexes,
		diagram.Index{ID: "ghost", Name: "ghost_idx", FieldIDs: []string{"gone"}},
		diagram.Index{ID: "empty", Name: "empty_idx", FieldIDs: []string{}},
	)

	res, err := Clone(g, FreshSequential, WithNow(nowFn))
	require.NoError(t, err)

	idx := res.Diagram.Tables[0].Indexes
	require.Len(t, idx, 2)
	assert.Equal(t, "users_pk", idx[0].Name)
	assert.Equal(t, "empty_idx", idx[1].Name)

	outcomes := []Outcome{}
	for _, d := range res.Diagnostics {
		outcomes = append(outcomes, d.Outcome)
	}
	assert.Equal(t, []Outcome{OutcomeRemoved, OutcomeDropped}, outcomes)
}

func TestClone_Timestamps(t *testing.T) {
	g := sampleDiagram()
	g.Tables[1].CreatedAt = 0
	g.Relationships[0].CreatedAt = 0

	res, err := Clone(g, FreshRandom, WithNow(nowFn))
	require.NoError(t, err)

	now := diagram.FromTime(fixedNow)
	d := res.Diagram
	assert.Equal(t, now, d.CreatedAt)
	assert.Equal(t, now, d.UpdatedAt)
	assert.Equal(t, diagram.Millis(100), d.Tables[0].CreatedAt)
	assert.Equal(t, now, d.Tables[1].CreatedAt)
	assert.Equal(t, now, d.Relationships[0].CreatedAt)
	assert.Equal(t, diagram.Millis(100), d.Tables[0].Fields[0].CreatedAt)
}

func TestClone_DoesNotModifyInput(t *testing.T) {
	g := sampleDiagram()
	before, err := json.Marshal(g)
	require.NoError(t, err)

	res, err := Clone(g, FreshRandom)
	require.NoError(t, err)

	*res.Diagram.Areas[0].Order = 99
	require.NoError(t, res.Diagram.Tables[0].Fields[0].SetAttr("name", "changed"))
	res.Diagram.CustomTypes[0].Values[0] = "changed"

	after, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestClone_FixedGenerator(t *testing.T) {
	g := &diagram.Diagram{
		ID:     "d1",
		Tables: []diagram.Table{{ID: "t1", Fields: []diagram.Field{{ID: "f1"}}}},
		Notes:  []diagram.Note{{ID: "n1"}},
	}

	res, err := Clone(g, PreserveRoot, WithIDGenerator(NewFixedGenerator("T", "F", "N")))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"d1": "d1", "t1": "T", "f1": "F", "n1": "N"}, res.IDs)
}

func TestClone_Malformed(t *testing.T) {
	_, err := Clone(nil, FreshRandom)
	assert.True(t, apperr.IsMalformedPayload(err))

	_, err = Clone(&diagram.Diagram{Name: "no id"}, FreshRandom)
	assert.True(t, apperr.IsMalformedPayload(err))

	_, err = Clone(&diagram.Diagram{ID: "d1"}, Policy(42))
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))
}

func TestClone_EmptyDiagramHasEmptyCollections(t *testing.T) {
	res, err := Clone(&diagram.Diagram{ID: "d1", Name: "blank"}, PreserveRoot)
	require.NoError(t, err)

	out, err := json.Marshal(res.Diagram)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"tables":[]`)
	assert.Contains(t, string(out), `"customTypes":[]`)
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "fresh-random", FreshRandom.String())
	assert.Equal(t, "fresh-sequential", FreshSequential.String())
	assert.Equal(t, "preserve-root", PreserveRoot.String())
	assert.Equal(t, "policy(7)", Policy(7).String())
}
