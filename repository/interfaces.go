package repository

import (
	"context"
	"errors"

	"serverPortal/models"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means the page changed between read and write inside an update.
	ErrVersionConflict = errors.New("page version changed concurrently")
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	UpdateRole(ctx context.Context, id int64, role models.Role) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// ReportRepositoryI defines operations on Report entities.
type ReportRepositoryI interface {
	Create(ctx context.Context, r *models.Report) (*models.Report, error)
	GetByID(ctx context.Context, id int64) (*models.Report, error)
	List(ctx context.Context, p ListReportsParams) ([]models.Report, error)
	Update(ctx context.Context, id int64, u ReportUpdate) (*models.Report, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// ContentRepositoryI defines operations on PageContent and its history.
type ContentRepositoryI interface {
	Create(ctx context.Context, p *models.PageContent) (*models.PageContent, error)
	GetByName(ctx context.Context, name string) (*models.PageContent, error)
	GetActiveByName(ctx context.Context, name string) (*models.PageContent, error)
	Update(ctx context.Context, name string, u PageUpdate, actorID int64) (*models.PageContent, error)
	Delete(ctx context.Context, name string) error
	History(ctx context.Context, pageID int64) ([]models.PageContentHistory, error)
	ListAll(ctx context.Context) ([]models.PageSummary, error)
	Count(ctx context.Context) (int, error)
}

var (
	_ UserRepositoryI    = (*UserRepository)(nil)
	_ ReportRepositoryI  = (*ReportRepository)(nil)
	_ ContentRepositoryI = (*ContentRepository)(nil)
)
