package remote

import "github.com/roach88/chartsync/internal/diagram"

// User is the authenticated account.
type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SyncResult acknowledges a sync, push or snapshot.
type SyncResult struct {
	Message   string `json:"message"`
	DiagramID string `json:"diagram_id"`
	Version   int    `json:"version"`
	IsNew     bool   `json:"is_new,omitempty"`
}

// DiagramInfo is the server-side metadata of a diagram.
type DiagramInfo struct {
	ID           uint   `json:"id"`
	DiagramID    string `json:"diagram_id"`
	Name         string `json:"name"`
	DatabaseType string `json:"database_type"`
	Version      int    `json:"version"`
	TableCount   int    `json:"table_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// VersionInfo describes one stored version.
type VersionInfo struct {
	ID          uint   `json:"id"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// Pulled is a diagram as returned by the pull endpoints, annotated with the
// version it came from.
type Pulled struct {
	diagram.Diagram
	Version  int  `json:"version"`
	ServerID uint `json:"server_id,omitempty"`
}

type pushRequest struct {
	*diagram.Diagram
	Description string `json:"description,omitempty"`
}
