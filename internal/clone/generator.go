package clone

import (
	"strconv"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces entity identifiers during a clone.
type IDGenerator interface {
	Generate() string
}

// RandomGenerator generates time-sortable random identifiers.
//
// Identifiers are lower-cased ULIDs: a millisecond timestamp followed by 80
// bits of randomness, 26 characters.
//
// Thread-safety: RandomGenerator is stateless and safe for concurrent use.
type RandomGenerator struct{}

// Generate returns a new lower-cased ULID.
func (RandomGenerator) Generate() string {
	return strings.ToLower(ulid.Make().String())
}

// RandomDiagramID returns a fresh root identifier of the form diagram_<ulid>.
func RandomDiagramID() string {
	return "diagram_" + RandomGenerator{}.Generate()
}

// SequentialGenerator returns "0", "1", "2", ... in order.
//
// One generator is scoped to one clone invocation; sharing it across clones
// breaks reproducibility of the output.
type SequentialGenerator struct {
	mu   sync.Mutex
	next int
}

// NewSequentialGenerator creates a counter starting at 0.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{}
}

// Generate returns the next integer as a string.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := strconv.Itoa(g.next)
	g.next++
	return id
}

// FixedGenerator returns predetermined identifiers for testing.
//
// Example:
//
//	gen := NewFixedGenerator("t-new", "f-new")
//	gen.Generate() // "t-new"
//	gen.Generate() // "f-new"
//	gen.Generate() // panic: all ids exhausted
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, so a test that under-provisions ids
// fails loudly instead of producing duplicates.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
