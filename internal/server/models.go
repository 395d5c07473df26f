package server

import (
	"time"

	"gorm.io/gorm"
)

// User is an account. CurrentToken holds the only session token accepted
// for the user; logging in again invalidates the previous one.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Password     string `gorm:"not null"`
	Name         string
	CurrentToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Diagram is the server-side record of a diagram. DiagramID is the client's
// id, unique per user. Deleted diagrams are soft-deleted and revived by the
// next push.
type Diagram struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"not null;uniqueIndex:idx_user_diagram"`
	DiagramID       string `gorm:"not null;uniqueIndex:idx_user_diagram"`
	Name            string `gorm:"not null"`
	DatabaseType    string
	DatabaseEdition string
	Version         int `gorm:"not null;default:1"`
	TableCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// DiagramVersion is one stored revision of a diagram's JSON document.
type DiagramVersion struct {
	ID          uint   `gorm:"primaryKey"`
	DiagramID   uint   `gorm:"not null;index:idx_diagram_version"`
	Version     int    `gorm:"not null;index:idx_diagram_version"`
	Data        string `gorm:"type:text;not null"`
	Description string
	CreatedAt   time.Time
}
