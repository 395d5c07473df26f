package diagram

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnmarshalJSON decodes a relationship. Older documents carry a single
// "type" such as "one_to_many" instead of the two cardinalities; each
// missing cardinality is taken from the first and last words of it.
func (r *Relationship) UnmarshalJSON(data []byte) error {
	type plain Relationship
	var raw struct {
		plain
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("relationship: %w", err)
	}
	*r = Relationship(raw.plain)

	if raw.Type == "" {
		return nil
	}
	parts := strings.Split(raw.Type, "_")
	if r.SourceCardinality == "" {
		r.SourceCardinality = parts[0]
	}
	if r.TargetCardinality == "" && len(parts) > 1 {
		r.TargetCardinality = parts[len(parts)-1]
	}
	return nil
}

// UnmarshalJSON decodes a custom type. Older documents name the type in
// "type" rather than "name".
func (ct *CustomType) UnmarshalJSON(data []byte) error {
	type plain CustomType
	var raw struct {
		plain
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("custom type: %w", err)
	}
	*ct = CustomType(raw.plain)
	if ct.Name == "" {
		ct.Name = raw.Type
	}
	return nil
}
