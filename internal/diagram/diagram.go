package diagram

// Diagram is the root aggregate. A Diagram value with its child slices
// populated is the full entity graph exchanged with the store, the cloner
// and the remote.
type Diagram struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	DatabaseType    string         `json:"databaseType"`
	DatabaseEdition string         `json:"databaseEdition,omitempty"`
	Tables          []Table        `json:"tables"`
	Relationships   []Relationship `json:"relationships"`
	Dependencies    []Dependency   `json:"dependencies"`
	Areas           []Area         `json:"areas"`
	Notes           []Note         `json:"notes"`
	CustomTypes     []CustomType   `json:"customTypes"`
	CreatedAt       Millis         `json:"createdAt"`
	UpdatedAt       Millis         `json:"updatedAt"`
}

// Table is a database table or view. Fields and indexes are inline children.
type Table struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Schema             string   `json:"schema,omitempty"`
	X                  float64  `json:"x"`
	Y                  float64  `json:"y"`
	Width              *float64 `json:"width,omitempty"`
	Color              string   `json:"color,omitempty"`
	IsView             bool     `json:"isView"`
	IsMaterializedView bool     `json:"isMaterializedView,omitempty"`
	Comments           string   `json:"comments,omitempty"`
	Order              *int     `json:"order,omitempty"`
	Expanded           *bool    `json:"expanded,omitempty"`
	ParentAreaID       string   `json:"parentAreaId,omitempty"`
	Fields             []Field  `json:"fields"`
	Indexes            []Index  `json:"indexes"`
	CreatedAt          Millis   `json:"createdAt"`
}

// Index covers an ordered list of fields of its owning table.
type Index struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Unique       bool     `json:"unique"`
	FieldIDs     []string `json:"fieldIds"`
	Type         string   `json:"type,omitempty"`
	IsPrimaryKey bool     `json:"isPrimaryKey,omitempty"`
	CreatedAt    Millis   `json:"createdAt"`
}

// Relationship links a source field to a target field.
type Relationship struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	SourceSchema      string `json:"sourceSchema,omitempty"`
	SourceTableID     string `json:"sourceTableId"`
	TargetSchema      string `json:"targetSchema,omitempty"`
	TargetTableID     string `json:"targetTableId"`
	SourceFieldID     string `json:"sourceFieldId"`
	TargetFieldID     string `json:"targetFieldId"`
	SourceCardinality string `json:"sourceCardinality,omitempty"`
	TargetCardinality string `json:"targetCardinality,omitempty"`
	CreatedAt         Millis `json:"createdAt"`
}

// Dependency records that a view depends on a table.
type Dependency struct {
	ID               string `json:"id"`
	Schema           string `json:"schema,omitempty"`
	TableID          string `json:"tableId"`
	DependentSchema  string `json:"dependentSchema,omitempty"`
	DependentTableID string `json:"dependentTableId"`
	CreatedAt        Millis `json:"createdAt"`
}

// Area is a visual grouping rectangle. Tables join one via ParentAreaID.
type Area struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Order  *int    `json:"order,omitempty"`
}

// Note is a free-text sticky note.
type Note struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Color   string  `json:"color"`
	Order   *int    `json:"order,omitempty"`
}

// CustomType kinds.
const (
	KindEnum      = "enum"
	KindComposite = "composite"
)

// CustomType is a user-defined enum or composite type.
type CustomType struct {
	ID     string            `json:"id"`
	Schema string            `json:"schema,omitempty"`
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Values []string          `json:"values,omitempty"`
	Fields []CustomTypeField `json:"fields,omitempty"`
	Order  *int              `json:"order,omitempty"`
}

// CustomTypeField is one member of a composite custom type.
type CustomTypeField struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

// Summary is the list view of a stored diagram.
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DatabaseType string `json:"databaseType"`
	TableCount   int    `json:"tableCount"`
	CreatedAt    Millis `json:"createdAt"`
	UpdatedAt    Millis `json:"updatedAt"`
}

// Normalize replaces nil child slices with empty ones so the graph always
// serializes with every collection present.
func (d *Diagram) Normalize() {
	if d.Tables == nil {
		d.Tables = []Table{}
	}
	if d.Relationships == nil {
		d.Relationships = []Relationship{}
	}
	if d.Dependencies == nil {
		d.Dependencies = []Dependency{}
	}
	if d.Areas == nil {
		d.Areas = []Area{}
	}
	if d.Notes == nil {
		d.Notes = []Note{}
	}
	if d.CustomTypes == nil {
		d.CustomTypes = []CustomType{}
	}
	for i := range d.Tables {
		if d.Tables[i].Fields == nil {
			d.Tables[i].Fields = []Field{}
		}
		if d.Tables[i].Indexes == nil {
			d.Tables[i].Indexes = []Index{}
		}
		for j := range d.Tables[i].Indexes {
			if d.Tables[i].Indexes[j].FieldIDs == nil {
				d.Tables[i].Indexes[j].FieldIDs = []string{}
			}
		}
	}
}

// Summarize builds the list view of d.
func (d *Diagram) Summarize() Summary {
	return Summary{
		ID:           d.ID,
		Name:         d.Name,
		DatabaseType: d.DatabaseType,
		TableCount:   len(d.Tables),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
