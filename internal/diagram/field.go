package diagram

import (
	"encoding/json"
	"fmt"
)

// Field is a table column. Only its identity and creation time are
// interpreted here; every other attribute (name, type, nullable, defaults,
// and anything a newer editor adds) is carried through verbatim in Attrs.
type Field struct {
	ID        string
	CreatedAt Millis
	Attrs     map[string]json.RawMessage
}

// Attr decodes the named attribute into v. It reports whether the attribute
// was present.
func (f Field) Attr(name string, v any) (bool, error) {
	raw, ok := f.Attrs[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("field %s attr %s: %w", f.ID, name, err)
	}
	return true, nil
}

// SetAttr encodes v as the named attribute.
func (f *Field) SetAttr(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("field %s attr %s: %w", f.ID, name, err)
	}
	if f.Attrs == nil {
		f.Attrs = map[string]json.RawMessage{}
	}
	f.Attrs[name] = raw
	return nil
}

// Name is a convenience accessor for the "name" attribute.
func (f Field) Name() string {
	var name string
	_, _ = f.Attr("name", &name)
	return name
}

// Clone returns a copy of f whose Attrs map is not shared with f.
func (f Field) Clone() Field {
	out := Field{ID: f.ID, CreatedAt: f.CreatedAt}
	if f.Attrs != nil {
		out.Attrs = make(map[string]json.RawMessage, len(f.Attrs))
		for k, v := range f.Attrs {
			out.Attrs[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// MarshalJSON writes the attributes merged with id and createdAt, keys sorted.
func (f Field) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(f.Attrs)+2)
	for k, v := range f.Attrs {
		obj[k] = v
	}

	id, err := json.Marshal(f.ID)
	if err != nil {
		return nil, err
	}
	obj["id"] = id

	if !f.CreatedAt.IsZero() {
		ts, err := f.CreatedAt.MarshalJSON()
		if err != nil {
			return nil, err
		}
		obj["createdAt"] = ts
	} else {
		delete(obj, "createdAt")
	}

	return json.Marshal(obj)
}

// UnmarshalJSON splits id and createdAt out of the object and keeps the rest.
func (f *Field) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("field: %w", err)
	}

	*f = Field{}
	if raw, ok := obj["id"]; ok {
		if err := json.Unmarshal(raw, &f.ID); err != nil {
			return fmt.Errorf("field id: %w", err)
		}
		delete(obj, "id")
	}
	if raw, ok := obj["createdAt"]; ok {
		if err := f.CreatedAt.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("field %s: %w", f.ID, err)
		}
		delete(obj, "createdAt")
	}
	if len(obj) > 0 {
		f.Attrs = obj
	}
	return nil
}
