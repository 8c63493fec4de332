package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"serverPortal/models"
)

// ReportRepository is the core repository for Report entities.
type ReportRepository struct {
	db *bun.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *bun.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ListReportsParams filters and pages the report listing.
type ListReportsParams struct {
	Status *models.ReportStatus
	Limit  int
	Offset int
}

// ReportUpdate carries a partial update; nil fields are left untouched.
type ReportUpdate struct {
	Title       *string
	Description *string
	ServerName  *string
	Status      *models.ReportStatus
}

// Empty reports whether the update changes nothing.
func (u ReportUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.ServerName == nil && u.Status == nil
}

func (r *ReportRepository) withAuthor(q *bun.SelectQuery) *bun.SelectQuery {
	return q.ColumnExpr("r.*").
		ColumnExpr("u.username AS author_username").
		Join("JOIN users AS u ON u.id = r.user_id")
}

// Create inserts a new report. Status defaults to 'pending'.
// The stored row is read back with its author name.
func (r *ReportRepository) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	if rep == nil {
		return nil, errors.New("report is nil")
	}
	if rep.Status == "" {
		rep.Status = models.ReportStatusPending
	}
	now := time.Now().UTC()
	rep.CreatedAt, rep.UpdatedAt = now, now

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.db.NewInsert().Model(rep).Exec(ctx); err != nil {
		return nil, err
	}
	out, err := r.GetByID(ctx, rep.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("created report not found: id=%d", rep.ID)
	}
	return out, nil
}

// GetByID fetches a report joined with its author, or (nil, nil) when absent.
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rep models.Report
	err := r.withAuthor(r.db.NewSelect().Model(&rep)).Where("r.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

// List returns reports newest first, optionally restricted to one status.
func (r *ReportRepository) List(ctx context.Context, p ListReportsParams) ([]models.Report, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.Report{}
	q := r.withAuthor(r.db.NewSelect().Model(&out))
	if p.Status != nil {
		q = q.Where("r.status = ?", string(*p.Status))
	}
	err := q.OrderExpr("r.created_at DESC, r.id DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the supplied fields and returns the refreshed report.
func (r *ReportRepository) Update(ctx context.Context, id int64, u ReportUpdate) (*models.Report, error) {
	if u.Empty() {
		return nil, errors.New("empty report update")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := r.db.NewUpdate().Model((*models.Report)(nil)).Where("id = ?", id)
	if u.Title != nil {
		q = q.Set("title = ?", *u.Title)
	}
	if u.Description != nil {
		q = q.Set("description = ?", *u.Description)
	}
	if u.ServerName != nil {
		// An empty server name clears the column.
		if *u.ServerName == "" {
			q = q.Set("server_name = NULL")
		} else {
			q = q.Set("server_name = ?", *u.ServerName)
		}
	}
	if u.Status != nil {
		q = q.Set("status = ?", string(*u.Status))
	}
	q = q.Set("updated_at = ?", time.Now().UTC())

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOneRow(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.NewDelete().Model((*models.Report)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.db.NewSelect().Model((*models.Report)(nil)).Count(ctx)
}
