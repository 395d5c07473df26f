package clone

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/diagram"
	"github.com/roach88/chartsync/internal/logger"
)

// Policy selects how identifiers are assigned during a clone.
type Policy int

const (
	// FreshRandom gives every entity, the root included, a new random id.
	FreshRandom Policy = iota

	// FreshSequential numbers every child entity from 0 in traversal order.
	// The root gets a new random id. Used for reproducible export.
	FreshSequential

	// PreserveRoot keeps the root id and gives every child a new random id.
	// Used on sync push and pull.
	PreserveRoot
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case FreshRandom:
		return "fresh-random"
	case FreshSequential:
		return "fresh-sequential"
	case PreserveRoot:
		return "preserve-root"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Outcome is what the cloner did with an unresolved reference.
type Outcome string

const (
	// OutcomeDropped: the owning entity was removed from the output.
	OutcomeDropped Outcome = "dropped"

	// OutcomeCleared: the optional reference was unset.
	OutcomeCleared Outcome = "cleared"

	// OutcomeRemoved: the entry was removed from a reference list.
	OutcomeRemoved Outcome = "removed"
)

// Diagnostic describes one reference the cloner could not resolve.
type Diagnostic struct {
	Kind    string  `json:"kind"`
	ID      string  `json:"id"`
	Ref     string  `json:"ref"`
	Target  string  `json:"target"`
	Outcome Outcome `json:"outcome"`
}

// Err renders the diagnostic as a ReferenceUnresolved error.
func (d Diagnostic) Err() error {
	return apperr.Newf(apperr.CodeReferenceUnresolved,
		"%s %s: %s %q unresolved, %s", d.Kind, d.ID, d.Ref, d.Target, d.Outcome).
		WithMeta("outcome", string(d.Outcome))
}

// Result is the output of Clone.
type Result struct {
	Diagram *diagram.Diagram

	// IDs maps every original id to its replacement, root included.
	IDs map[string]string

	// Diagnostics lists every unresolved reference, in traversal order.
	Diagnostics []Diagnostic
}

// Dropped returns the number of entities removed from the output.
func (r *Result) Dropped() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Outcome == OutcomeDropped {
			n++
		}
	}
	return n
}

type options struct {
	gen    IDGenerator
	rootID string
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a clone.
type Option func(*options)

// WithIDGenerator overrides the child id generator chosen by the policy.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.gen = g }
}

// WithRootID fixes the new root id for the fresh policies.
// PreserveRoot ignores it.
func WithRootID(id string) Option {
	return func(o *options) { o.rootID = id }
}

// WithNow sets the clock used for clone timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger reports diagnostics at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Clone copies d into a structurally identical graph with new identifiers
// and every cross-entity reference rewritten.
//
// Ids are assigned in a fixed order: tables, then each table's fields and
// indexes, relationships, dependencies, areas, notes, custom types. All ids
// are assigned before any reference is rewritten. References that do not
// resolve never survive into the output:
//   - Table.parentAreaId is cleared
//   - Index.fieldIds entries are removed; an index left empty is dropped
//   - Relationships and dependencies are dropped
//
// Field references resolve within the referenced table only.
//
// The input is never modified.
func Clone(d *diagram.Diagram, policy Policy, opts ...Option) (*Result, error) {
	if d == nil {
		return nil, apperr.New(apperr.CodeMalformedPayload, "clone: nil diagram")
	}
	if d.ID == "" {
		return nil, apperr.New(apperr.CodeMalformedPayload, "clone: diagram id is empty")
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.gen == nil {
		switch policy {
		case FreshSequential:
			o.gen = NewSequentialGenerator()
		case FreshRandom, PreserveRoot:
			o.gen = RandomGenerator{}
		default:
			return nil, apperr.Newf(apperr.CodeInvalid, "clone: unknown policy %s", policy)
		}
	}

	c := &cloner{
		src:    d,
		gen:    o.gen,
		now:    diagram.FromTime(o.now()),
		log:    logger.OrNop(o.logger),
		ids:    map[string]string{},
		tables: map[string]string{},
		fields: map[string]map[string]string{},
		areas:  map[string]string{},
	}

	rootID := d.ID
	if policy != PreserveRoot {
		rootID = o.rootID
		if rootID == "" {
			rootID = RandomDiagramID()
		}
	}
	c.ids[d.ID] = rootID

	out := &diagram.Diagram{
		ID:              rootID,
		Name:            d.Name,
		DatabaseType:    d.DatabaseType,
		DatabaseEdition: d.DatabaseEdition,
		CreatedAt:       c.now,
		UpdatedAt:       c.now,
	}

	c.assign(out)
	c.rewrite(out)
	out.Normalize()

	return &Result{Diagram: out, IDs: c.ids, Diagnostics: c.diags}, nil
}

type cloner struct {
	src *diagram.Diagram
	gen IDGenerator
	now diagram.Millis
	log *zap.Logger

	ids    map[string]string
	tables map[string]string
	fields map[string]map[string]string // old table id -> old field id -> new
	areas  map[string]string
	diags  []Diagnostic
}

func (c *cloner) next(old string) string {
	id := c.gen.Generate()
	if old != "" {
		c.ids[old] = id
	}
	return id
}

func (c *cloner) stamp(m diagram.Millis) diagram.Millis {
	if m.IsZero() {
		return c.now
	}
	return m
}

// assign copies every entity with its new id. References still hold old ids.
func (c *cloner) assign(out *diagram.Diagram) {
	out.Tables = make([]diagram.Table, 0, len(c.src.Tables))
	for _, t := range c.src.Tables {
		nt := t
		nt.ID = c.next(t.ID)
		nt.Width = copyPtr(t.Width)
		nt.Order = copyPtr(t.Order)
		nt.Expanded = copyPtr(t.Expanded)
		nt.CreatedAt = c.stamp(t.CreatedAt)
		c.tables[t.ID] = nt.ID

		fm := make(map[string]string, len(t.Fields))
		nt.Fields = make([]diagram.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			nf := f.Clone()
			nf.ID = c.next(f.ID)
			nf.CreatedAt = c.stamp(f.CreatedAt)
			fm[f.ID] = nf.ID
			nt.Fields = append(nt.Fields, nf)
		}
		c.fields[t.ID] = fm

		nt.Indexes = make([]diagram.Index, 0, len(t.Indexes))
		for _, idx := range t.Indexes {
			ni := idx
			ni.ID = c.next(idx.ID)
			ni.FieldIDs = append([]string(nil), idx.FieldIDs...)
			ni.CreatedAt = c.stamp(idx.CreatedAt)
			nt.Indexes = append(nt.Indexes, ni)
		}

		out.Tables = append(out.Tables, nt)
	}

	out.Relationships = make([]diagram.Relationship, 0, len(c.src.Relationships))
	for _, r := range c.src.Relationships {
		nr := r
		nr.ID = c.next(r.ID)
		nr.CreatedAt = c.stamp(r.CreatedAt)
		out.Relationships = append(out.Relationships, nr)
	}

	out.Dependencies = make([]diagram.Dependency, 0, len(c.src.Dependencies))
	for _, dep := range c.src.Dependencies {
		nd := dep
		nd.ID = c.next(dep.ID)
		nd.CreatedAt = c.stamp(dep.CreatedAt)
		out.Dependencies = append(out.Dependencies, nd)
	}

	out.Areas = make([]diagram.Area, 0, len(c.src.Areas))
	for _, a := range c.src.Areas {
		na := a
		na.ID = c.next(a.ID)
		na.Order = copyPtr(a.Order)
		c.areas[a.ID] = na.ID
		out.Areas = append(out.Areas, na)
	}

	out.Notes = make([]diagram.Note, 0, len(c.src.Notes))
	for _, n := range c.src.Notes {
		nn := n
		nn.ID = c.next(n.ID)
		nn.Order = copyPtr(n.Order)
		out.Notes = append(out.Notes, nn)
	}

	out.CustomTypes = make([]diagram.CustomType, 0, len(c.src.CustomTypes))
	for _, ct := range c.src.CustomTypes {
		nc := ct
		nc.ID = c.next(ct.ID)
		nc.Values = append([]string(nil), ct.Values...)
		nc.Fields = append([]diagram.CustomTypeField(nil), ct.Fields...)
		nc.Order = copyPtr(ct.Order)
		out.CustomTypes = append(out.CustomTypes, nc)
	}
}

// rewrite resolves every reference through the recorded mappings.
// out.Tables is index-aligned with the source tables at this point.
func (c *cloner) rewrite(out *diagram.Diagram) {
	for i := range out.Tables {
		src := c.src.Tables[i]
		t := &out.Tables[i]

		if src.ParentAreaID != "" {
			if id, ok := c.areas[src.ParentAreaID]; ok {
				t.ParentAreaID = id
			} else {
				t.ParentAreaID = ""
				c.report("table", src.ID, "parentAreaId", src.ParentAreaID, OutcomeCleared)
			}
		}

		fm := c.fields[src.ID]
		kept := t.Indexes[:0]
		for j, idx := range t.Indexes {
			srcIdx := src.Indexes[j]
			resolved := make([]string, 0, len(srcIdx.FieldIDs))
			for _, fid := range srcIdx.FieldIDs {
				if id, ok := fm[fid]; ok {
					resolved = append(resolved, id)
					continue
				}
				c.report("index", srcIdx.ID, "fieldIds", fid, OutcomeRemoved)
			}
			if len(resolved) == 0 && len(srcIdx.FieldIDs) > 0 {
				c.report("index", srcIdx.ID, "fieldIds", "", OutcomeDropped)
				continue
			}
			idx.FieldIDs = resolved
			kept = append(kept, idx)
		}
		t.Indexes = kept
	}

	rels := out.Relationships[:0]
	for i, r := range out.Relationships {
		src := c.src.Relationships[i]
		ref, target, ok := c.resolveRelationship(&r, src)
		if !ok {
			c.report("relationship", src.ID, ref, target, OutcomeDropped)
			continue
		}
		rels = append(rels, r)
	}
	out.Relationships = rels

	deps := out.Dependencies[:0]
	for i, dep := range out.Dependencies {
		src := c.src.Dependencies[i]
		tid, ok := c.tables[src.TableID]
		if !ok {
			c.report("dependency", src.ID, "tableId", src.TableID, OutcomeDropped)
			continue
		}
		did, ok := c.tables[src.DependentTableID]
		if !ok {
			c.report("dependency", src.ID, "dependentTableId", src.DependentTableID, OutcomeDropped)
			continue
		}
		dep.TableID = tid
		dep.DependentTableID = did
		deps = append(deps, dep)
	}
	out.Dependencies = deps
}

// resolveRelationship rewrites r in place. On failure it returns the first
// reference that did not resolve.
func (c *cloner) resolveRelationship(r *diagram.Relationship, src diagram.Relationship) (string, string, bool) {
	st, ok := c.tables[src.SourceTableID]
	if !ok {
		return "sourceTableId", src.SourceTableID, false
	}
	tt, ok := c.tables[src.TargetTableID]
	if !ok {
		return "targetTableId", src.TargetTableID, false
	}
	sf, ok := c.fields[src.SourceTableID][src.SourceFieldID]
	if !ok {
		return "sourceFieldId", src.SourceFieldID, false
	}
	tf, ok := c.fields[src.TargetTableID][src.TargetFieldID]
	if !ok {
		return "targetFieldId", src.TargetFieldID, false
	}
	r.SourceTableID, r.TargetTableID = st, tt
	r.SourceFieldID, r.TargetFieldID = sf, tf
	return "", "", true
}

func (c *cloner) report(kind, id, ref, target string, outcome Outcome) {
	d := Diagnostic{Kind: kind, ID: id, Ref: ref, Target: target, Outcome: outcome}
	c.diags = append(c.diags, d)
	c.log.Warn("unresolved reference",
		zap.String("diagram_id", c.src.ID),
		zap.String("kind", kind),
		zap.String("id", id),
		zap.String("ref", ref),
		zap.String("target", target),
		zap.String("outcome", string(outcome)),
	)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
