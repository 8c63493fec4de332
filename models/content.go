package models

import (
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

var pageNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,99}$`)

// ValidPageName reports whether name is a URL-safe page slug.
func ValidPageName(name string) bool {
	return pageNameRe.MatchString(name)
}

// PageContent is an admin-editable page served to readers by name.
// Version starts at 1 and grows by one on every update.
type PageContent struct {
	bun.BaseModel `bun:"table:page_content,alias:p" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	PageName  string    `bun:"page_name,notnull" json:"page_name"`
	Title     *string   `bun:"title" json:"title"`
	Content   string    `bun:"content,notnull" json:"content"`
	Version   int       `bun:"version,notnull" json:"version"`
	IsActive  bool      `bun:"is_active,notnull" json:"is_active"`
	UpdatedBy *int64    `bun:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// PageSummary is the listing projection used by the admin page index.
type PageSummary struct {
	ID        int64     `bun:"id" json:"id"`
	PageName  string    `bun:"page_name" json:"page_name"`
	Title     *string   `bun:"title" json:"title"`
	IsActive  bool      `bun:"is_active" json:"is_active"`
	Version   int       `bun:"version" json:"version"`
	UpdatedAt time.Time `bun:"updated_at" json:"updated_at"`
}

// PageContentHistory is an append-only snapshot of a page taken right before
// an update overwrote it. Version is the version that was replaced.
type PageContentHistory struct {
	bun.BaseModel `bun:"table:page_content_history,alias:h" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	PageID    int64     `bun:"page_id,notnull" json:"page_id"`
	Content   string    `bun:"content_text,notnull" json:"content"`
	Version   int       `bun:"version,notnull" json:"version"`
	CreatedBy *int64    `bun:"created_by" json:"-"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`

	// CreatedByUsername is resolved through a join; nil when the author was deleted.
	CreatedByUsername *string `bun:"created_by_username,scanonly" json:"created_by"`
}
