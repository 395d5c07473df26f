package syncer

import "time"

// State is the sync state of a session.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateError   State = "error"
)

// Trigger records what started a sync.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
)

// Status is a point-in-time snapshot of a session.
type Status struct {
	State         State
	DiagramID     string
	AutoSync      bool
	Authenticated bool
	// Dirty is set when a mutation was observed but not yet pushed.
	Dirty        bool
	LastError    error
	LastSyncedAt time.Time
	// LastVersion is the server version acknowledged by the last push.
	LastVersion int
}
