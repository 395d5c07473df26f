package exchange

import (
	_ "embed"
	"encoding/json"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/clone"
	"github.com/roach88/chartsync/internal/diagram"
)

//go:embed schema.cue
var schemaSource string

// Export renders d as indented JSON with sequential child ids.
//
// The root id, createdAt and updatedAt are carried over unchanged. Children
// without a createdAt are stamped with d.UpdatedAt so the output does not
// depend on the wall clock. Options are passed to the cloner after the
// defaults and may override them.
func Export(d *diagram.Diagram, opts ...clone.Option) ([]byte, error) {
	if d == nil {
		return nil, apperr.New(apperr.CodeMalformedPayload, "export: nil diagram")
	}

	base := []clone.Option{
		clone.WithRootID(d.ID),
		clone.WithNow(d.UpdatedAt.Time),
	}
	res, err := clone.Clone(d, clone.FreshSequential, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	out := res.Diagram
	out.CreatedAt = d.CreatedAt
	out.UpdatedAt = d.UpdatedAt

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "export: encode diagram")
	}
	return append(data, '\n'), nil
}

// Import validates data and returns it as a new diagram with fresh random
// ids throughout, root included.
func Import(data []byte, opts ...clone.Option) (*diagram.Diagram, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var d diagram.Diagram
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeMalformedPayload, "import: decode diagram")
	}
	if d.ID == "" || d.Name == "" {
		return nil, apperr.New(apperr.CodeMalformedPayload, "import: id and name are required")
	}

	res, err := clone.Clone(&d, clone.FreshRandom, opts...)
	if err != nil {
		return nil, err
	}
	return res.Diagram, nil
}

// Validate checks data against the diagram document schema.
func Validate(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "import: compile schema")
	}

	expr, err := cuejson.Extract("diagram.json", data)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeMalformedPayload, "import: invalid json")
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return apperr.Wrap(err, apperr.CodeMalformedPayload, "import: invalid json")
	}

	v := schema.LookupPath(cue.ParsePath("#Diagram")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return apperr.New(apperr.CodeMalformedPayload, "import: "+strings.TrimSpace(errors.Details(err, nil)))
	}
	return nil
}
