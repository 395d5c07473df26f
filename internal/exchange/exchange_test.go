package exchange

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/clone"
	"github.com/roach88/chartsync/internal/testutil"
)

func TestExport_Golden(t *testing.T) {
	data, err := Export(testutil.ShopDiagram("shop"))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "shop_export", data)
}

func TestExport_Reproducible(t *testing.T) {
	a, err := Export(testutil.ShopDiagram("shop"))
	require.NoError(t, err)
	b, err := Export(testutil.ShopDiagram("shop"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestExport_StampsMissingChildTimestamps(t *testing.T) {
	d := testutil.ShopDiagram("shop")
	d.Tables[0].CreatedAt = 0

	data, err := Export(d)
	require.NoError(t, err)

	back, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureUpdated, back.Tables[0].CreatedAt)
}

func TestExport_Nil(t *testing.T) {
	_, err := Export(nil)
	assert.True(t, apperr.IsMalformedPayload(err))
}

func TestImport_RoundTrip(t *testing.T) {
	data, err := Export(testutil.ShopDiagram("shop"))
	require.NoError(t, err)

	d, err := Import(data)
	require.NoError(t, err)
	assert.NotEqual(t, "shop", d.ID)

	d.ID = "shop"
	d.CreatedAt = testutil.FixtureCreated
	d.UpdatedAt = testutil.FixtureUpdated
	again, err := Export(d)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestImport_FreshIDs(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	data, err := Export(testutil.ShopDiagram("shop"))
	require.NoError(t, err)

	d, err := Import(data, clone.WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	assert.Equal(t, "Shop", d.Name)
	assert.Equal(t, now.UnixMilli(), int64(d.CreatedAt))
	require.Len(t, d.Tables, 3)
	for _, tbl := range d.Tables {
		assert.NotContains(t, []string{"0", "4", "8"}, tbl.ID)
	}

	require.Len(t, d.Relationships, 1)
	rel := d.Relationships[0]
	assert.Equal(t, d.Tables[1].ID, rel.SourceTableID)
	assert.Equal(t, d.Tables[1].Fields[1].ID, rel.SourceFieldID)
	assert.Equal(t, d.Tables[0].ID, rel.TargetTableID)
	assert.Equal(t, d.Tables[0].Fields[0].ID, rel.TargetFieldID)
	assert.Equal(t, d.Areas[0].ID, d.Tables[0].ParentAreaID)
	assert.Equal(t, []string{d.Tables[0].Fields[0].ID}, d.Tables[0].Indexes[0].FieldIDs)
}

func TestImport_KeepsUnknownFieldAttributes(t *testing.T) {
	doc := `{
		"id": "x",
		"name": "Legacy",
		"databaseType": "mysql",
		"editorVersion": 7,
		"tables": [{
			"id": "t",
			"name": "t",
			"x": 0,
			"y": 0,
			"fields": [{"id": "f", "name": "a", "nullable": true, "collation": "utf8mb4_bin"}]
		}]
	}`
	d, err := Import([]byte(doc))
	require.NoError(t, err)
	require.Len(t, d.Tables, 1)
	require.Len(t, d.Tables[0].Fields, 1)

	var nullable bool
	ok, err := d.Tables[0].Fields[0].Attr("nullable", &nullable)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, nullable)

	var collation string
	_, err = d.Tables[0].Fields[0].Attr("collation", &collation)
	require.NoError(t, err)
	assert.Equal(t, "utf8mb4_bin", collation)

	assert.Empty(t, d.Relationships)
	assert.NotNil(t, d.Relationships)
}

func TestImport_DropsDanglingRelationship(t *testing.T) {
	doc := `{
		"id": "x",
		"name": "Broken",
		"tables": [{"id": "t", "name": "t", "fields": [{"id": "f", "name": "a"}]}],
		"relationships": [{
			"id": "r",
			"sourceTableId": "t",
			"sourceFieldId": "f",
			"targetTableId": "gone",
			"targetFieldId": "f"
		}]
	}`
	d, err := Import([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, d.Tables, 1)
	assert.Empty(t, d.Relationships)
}

func TestImport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"id": "x",`},
		{"array root", `[]`},
		{"missing id", `{"name": "n"}`},
		{"missing name", `{"id": "x"}`},
		{"empty id", `{"id": "", "name": "n"}`},
		{"numeric name", `{"id": "x", "name": 3}`},
		{"table not an object", `{"id": "x", "name": "n", "tables": [5]}`},
		{"tables not a list", `{"id": "x", "name": "n", "tables": {"a": 1}}`},
		{"field not an object", `{"id": "x", "name": "n", "tables": [{"id": "t", "fields": ["a"]}]}`},
		{"index field ids not strings", `{"id": "x", "name": "n", "tables": [{"id": "t", "indexes": [{"id": "i", "fieldIds": [1]}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, apperr.IsMalformedPayload(err), "got %v", err)
		})
	}
}

func TestValidate_AcceptsMinimalDocument(t *testing.T) {
	assert.NoError(t, Validate([]byte(`{"id": "x", "name": "n"}`)))
	assert.NoError(t, Validate([]byte(`{"id": "x", "name": "n", "tables": null}`)))
}
