package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReportStatus represents the triage state of a report.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusResolved   ReportStatus = "resolved"
	ReportStatusClosed     ReportStatus = "closed"
)

// ReportStatuses lists every accepted status in workflow order.
var ReportStatuses = []ReportStatus{
	ReportStatusPending,
	ReportStatusInProgress,
	ReportStatusResolved,
	ReportStatusClosed,
}

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	for _, v := range ReportStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Report is a problem report filed by a user against a game server.
// AuthorUsername is populated only by queries that join users.
type Report struct {
	bun.BaseModel `bun:"table:reports,alias:r" json:"-"`

	ID             int64        `bun:"id,pk,autoincrement" json:"id"`
	UserID         int64        `bun:"user_id,notnull" json:"user_id"`
	Title          string       `bun:"title,notnull" json:"title"`
	Description    string       `bun:"description,notnull" json:"description"`
	ServerName     *string      `bun:"server_name" json:"server_name"`
	Status         ReportStatus `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time    `bun:"updated_at,notnull" json:"updated_at"`
	AuthorUsername string       `bun:"author_username,scanonly" json:"author_username,omitempty"`
}
