// Package testutil holds shared test helpers: a manually advanced clock and
// diagram fixtures.
package testutil
