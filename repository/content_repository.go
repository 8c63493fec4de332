package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"serverPortal/internal/db"
	"serverPortal/models"
)

// ContentRepository stores pages and their append-only history.
type ContentRepository struct {
	db *bun.DB

	// afterSnapshot runs inside the update transaction once the history row
	// is written and before the guarded UPDATE.
	afterSnapshot func(ctx context.Context, tx bun.Tx) error
}

func NewContentRepository(db *bun.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// PageUpdate is the payload of a content update. A nil Title keeps the
// current title and an empty one clears it.
type PageUpdate struct {
	Title   *string
	Content string
}

// Create inserts a page at version 1. A taken page name yields db.ErrDuplicate.
func (r *ContentRepository) Create(ctx context.Context, p *models.PageContent) (*models.PageContent, error) {
	if p == nil {
		return nil, errors.New("page is nil")
	}
	now := time.Now().UTC()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return nil, db.MapDBError(err)
	}
	return p, nil
}

// GetByName returns the page regardless of its active flag, or (nil, nil).
func (r *ContentRepository) GetByName(ctx context.Context, name string) (*models.PageContent, error) {
	return r.getByName(ctx, name, false)
}

// GetActiveByName returns the page only when it is active, or (nil, nil).
func (r *ContentRepository) GetActiveByName(ctx context.Context, name string) (*models.PageContent, error) {
	return r.getByName(ctx, name, true)
}

func (r *ContentRepository) getByName(ctx context.Context, name string, activeOnly bool) (*models.PageContent, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p models.PageContent
	q := r.db.NewSelect().Model(&p).Where("page_name = ?", name)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Update snapshots the current content into history and writes the new
// content at version+1, all in one transaction. actorID <= 0 records no author.
// Returns ErrNotFound when the page does not exist and ErrVersionConflict when
// the row moved underneath the guarded UPDATE.
func (r *ContentRepository) Update(ctx context.Context, name string, u PageUpdate, actorID int64) (*models.PageContent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var actor *int64
	if actorID > 0 {
		actor = &actorID
	}

	var out models.PageContent
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var cur models.PageContent
		sel := tx.NewSelect().
			Model(&cur).
			Column("id", "version", "content", "title").
			Where("page_name = ?", name).
			Limit(1)
		// SQLite has no row locks; its single pooled connection serializes writers.
		if tx.Dialect().Name() != dialect.SQLite {
			sel = sel.For("UPDATE")
		}
		if err := sel.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		snap := &models.PageContentHistory{
			PageID:    cur.ID,
			Content:   cur.Content,
			Version:   cur.Version,
			CreatedBy: actor,
			CreatedAt: now,
		}
		if _, err := tx.NewInsert().Model(snap).Exec(ctx); err != nil {
			if errors.Is(db.MapDBError(err), db.ErrDuplicate) {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert history: %w", err)
		}

		if r.afterSnapshot != nil {
			if err := r.afterSnapshot(ctx, tx); err != nil {
				return err
			}
		}

		upd := tx.NewUpdate().
			Model((*models.PageContent)(nil)).
			Set("content = ?", u.Content).
			Set("version = ?", cur.Version+1).
			Set("updated_by = ?", actor).
			Set("updated_at = ?", now).
			Where("id = ?", cur.ID).
			Where("version = ?", cur.Version)
		if u.Title != nil {
			if *u.Title == "" {
				upd = upd.Set("title = NULL")
			} else {
				upd = upd.Set("title = ?", *u.Title)
			}
		}
		res, err := upd.Exec(ctx)
		if err != nil {
			return fmt.Errorf("update page: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrVersionConflict
		}

		return tx.NewSelect().Model(&out).Where("id = ?", cur.ID).Limit(1).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the page. Its history rows are kept.
func (r *ContentRepository) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.NewDelete().Model((*models.PageContent)(nil)).Where("page_name = ?", name).Exec(ctx)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// History lists snapshots of a page, newest version first.
func (r *ContentRepository) History(ctx context.Context, pageID int64) ([]models.PageContentHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.PageContentHistory{}
	err := r.db.NewSelect().
		Model(&out).
		ColumnExpr("h.*").
		ColumnExpr("u.username AS created_by_username").
		Join("LEFT JOIN users AS u ON u.id = h.created_by").
		Where("h.page_id = ?", pageID).
		OrderExpr("h.version DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns a summary of every page, active or not, ordered by name.
func (r *ContentRepository) ListAll(ctx context.Context) ([]models.PageSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.PageSummary{}
	err := r.db.NewSelect().
		Model((*models.PageContent)(nil)).
		Column("id", "page_name", "title", "is_active", "version", "updated_at").
		OrderExpr("page_name ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ContentRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.db.NewSelect().Model((*models.PageContent)(nil)).Count(ctx)
}
