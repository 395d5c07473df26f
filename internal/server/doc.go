// Package server implements the diagram sync API consumed by
// internal/remote.
//
// Routes live under /sync/api. Every diagram route requires a bearer token
// and only the user's most recently issued token is accepted.
//
// # Versions
//
// A push always records a new version; a sync overwrites the latest version
// in place. Deleting a diagram drops its versions and soft-deletes the
// record; the next push or sync revives it at version 1. Only the newest
// VersionLimit versions are kept.
//
// Stored documents are the request body minus the description, version and
// server_id keys. The pull endpoints add version (and server_id for
// pull-all) back.
package server
