// Package syncer keeps a local diagram in step with the sync server.
//
// A Session watches local writes, debounces them, and pushes a preserve-root
// clone of the active diagram through the remote client:
//
//	idle -> pending -> syncing -> synced|error -> idle
//
// # Critical Patterns
//
// Debounce is trailing: every mutation replaces the single timer, so a burst
// of writes produces one push once the burst has been quiet for the debounce
// delay.
//
// At most one push is in flight. A timer that expires during a push is
// deferred and runs once the push finishes; a manual SyncNow during a push
// is ignored.
//
// Timer-driven pushes are de-duplicated by content fingerprint: if the
// diagram is unchanged since the last successful push, no request is sent.
// Manual syncs always send.
//
// Nothing retries on its own. A failed push moves to error and back to idle;
// the next mutation or a manual sync tries again. An Unauthorized failure
// also stops scheduling until Authenticate succeeds and fires
// OnUnauthorized.
//
// Writes from another process are picked up by a Poller, which compares the
// diagram's updatedAt on an interval.
package syncer
