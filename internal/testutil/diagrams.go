package testutil

import (
	"github.com/roach88/chartsync/internal/diagram"
)

// Fixed timestamps used by the fixtures.
const (
	FixtureCreated diagram.Millis = 1700000000000
	FixtureUpdated diagram.Millis = 1700000600000
)

// NewField builds a field with the given name and type attributes.
func NewField(id, name, typ string) diagram.Field {
	f := diagram.Field{ID: id, CreatedAt: FixtureCreated}
	_ = f.SetAttr("name", name)
	_ = f.SetAttr("type", map[string]string{"id": typ, "name": typ})
	return f
}

// ShopDiagram returns a small but complete diagram: two tables joined by a
// relationship, a view depending on one of them, an area holding the
// tables, a note and an enum.
//
// Entity ids are stable and unprefixed; use it with one diagram per store.
func ShopDiagram(id string) *diagram.Diagram {
	d := &diagram.Diagram{
		ID:           id,
		Name:         "Shop",
		DatabaseType: "postgresql",
		Tables: []diagram.Table{
			{
				ID:     "users",
				Name:   "users",
				Schema: "public",
				Fields: []diagram.Field{
					NewField("users.id", "id", "bigint"),
					NewField("users.email", "email", "varchar"),
				},
				Indexes: []diagram.Index{
					{ID: "users.pk", Name: "users_pkey", Unique: true, IsPrimaryKey: true, FieldIDs: []string{"users.id"}, CreatedAt: FixtureCreated},
				},
				ParentAreaID: "core",
				CreatedAt:    FixtureCreated,
			},
			{
				ID:     "orders",
				Name:   "orders",
				Schema: "public",
				X:      300,
				Fields: []diagram.Field{
					NewField("orders.id", "id", "bigint"),
					NewField("orders.user_id", "user_id", "bigint"),
				},
				Indexes: []diagram.Index{
					{ID: "orders.by_user", Name: "orders_user_idx", FieldIDs: []string{"orders.user_id"}, CreatedAt: FixtureCreated},
				},
				ParentAreaID: "core",
				CreatedAt:    FixtureCreated,
			},
			{
				ID:     "active_users",
				Name:   "active_users",
				Schema: "public",
				Y:      300,
				IsView: true,
				Fields: []diagram.Field{
					NewField("active_users.id", "id", "bigint"),
				},
				CreatedAt: FixtureCreated,
			},
		},
		Relationships: []diagram.Relationship{{
			ID:                "orders_users",
			Name:              "orders_user_id_fk",
			SourceTableID:     "orders",
			SourceFieldID:     "orders.user_id",
			TargetTableID:     "users",
			TargetFieldID:     "users.id",
			SourceCardinality: "many",
			TargetCardinality: "one",
			CreatedAt:         FixtureCreated,
		}},
		Dependencies: []diagram.Dependency{{
			ID:               "active_users_dep",
			TableID:          "users",
			DependentTableID: "active_users",
			CreatedAt:        FixtureCreated,
		}},
		Areas: []diagram.Area{{ID: "core", Name: "Core", X: -20, Y: -20, Width: 700, Height: 250, Color: "#b067e9"}},
		Notes: []diagram.Note{{ID: "todo", Content: "partition orders by month", X: 400, Y: 300, Width: 200, Height: 100, Color: "#ffe374"}},
		CustomTypes: []diagram.CustomType{{
			ID:     "order_status",
			Schema: "public",
			Name:   "order_status",
			Kind:   diagram.KindEnum,
			Values: []string{"pending", "paid", "shipped"},
		}},
		CreatedAt: FixtureCreated,
		UpdatedAt: FixtureUpdated,
	}
	return d
}
