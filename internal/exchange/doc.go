// Package exchange reads and writes standalone diagram documents.
//
// Export produces reproducible JSON: children are renumbered 0, 1, 2, ...
// in traversal order, the root keeps its id and timestamps, and two exports
// of the same content are byte-identical.
//
// Import validates a document against an embedded CUE schema before
// decoding it, then clones it under fresh random ids so an imported diagram
// never collides with one already in the store.
//
// # Critical Patterns
//
// Validation failures are MalformedPayload errors and carry the CUE error
// text. Dangling references inside a valid document are not failures; the
// cloner drops or clears them and logs a warning.
package exchange
