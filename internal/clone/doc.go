// Package clone copies a diagram entity graph under a controlled identifier
// policy, rewriting every cross-entity reference.
//
// Every time a diagram crosses a boundary (export, import, sync push, sync
// pull) it is cloned, so identifiers are never trusted to be stable across a
// round trip.
//
// # Policies
//
//   - FreshRandom: new ULID-based ids everywhere, root included
//   - FreshSequential: children numbered 0, 1, 2, ... for reproducible export
//   - PreserveRoot: root id kept, children get new random ids
//
// # Reference closure
//
// The output never holds a dangling reference. Optional references
// (Table.parentAreaId) are cleared; required ones (relationship and
// dependency endpoints) cause the owning entity to be dropped; unresolved
// index field ids are removed. Each case is recorded in Result.Diagnostics
// and logged; none of them is an error.
//
// # Fingerprints
//
// Fingerprint hashes the canonical sequential clone of a diagram with
// SHA-256 under a domain prefix. The sync session uses it to skip pushes of
// unchanged content.
package clone
