package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"serverPortal/internal/db"
	"serverPortal/internal/testutil"
	"serverPortal/models"
)

func newPage(t *testing.T, repo *ContentRepository, name, content string) *models.PageContent {
	t.Helper()
	p, err := repo.Create(context.Background(), &models.PageContent{
		PageName: name,
		Title:    strPtr("Title of " + name),
		Content:  content,
		IsActive: true,
	})
	require.NoError(t, err)
	return p
}

func TestContentRepository_CreateThenFetchRoundTrips(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentroundtrip")
	repo := NewContentRepository(d)
	ctx := context.Background()

	created := newPage(t, repo, "rules", "<p>Be nice</p>")
	assert.Equal(t, 1, created.Version)

	got, err := repo.GetActiveByName(ctx, "rules")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "<p>Be nice</p>", got.Content)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Title of rules", *got.Title)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.IsActive)

	_, err = repo.Create(ctx, &models.PageContent{PageName: "rules", Content: "again", IsActive: true})
	assert.ErrorIs(t, err, db.ErrDuplicate)
}

func TestContentRepository_InactivePageIsHiddenFromReaders(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentinactive")
	repo := NewContentRepository(d)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.PageContent{PageName: "draft", Content: "wip", IsActive: false})
	require.NoError(t, err)

	active, err := repo.GetActiveByName(ctx, "draft")
	require.NoError(t, err)
	assert.Nil(t, active)

	page, err := repo.GetByName(ctx, "draft")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.False(t, page.IsActive)
}

func TestContentRepository_UpdateIncrementsVersionAndSnapshots(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentupdate")
	repo := NewContentRepository(d)
	ctx := context.Background()
	admin := testutil.InsertUser(t, d, "root", models.RoleAdmin, "secret1")

	page := newPage(t, repo, "about", "v1 body")

	up, err := repo.Update(ctx, "about", PageUpdate{Content: "v2 body"}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Version)
	assert.Equal(t, "v2 body", up.Content)
	require.NotNil(t, up.Title, "omitted title is kept")
	assert.Equal(t, "Title of about", *up.Title)
	require.NotNil(t, up.UpdatedBy)
	assert.Equal(t, admin.ID, *up.UpdatedBy)

	up, err = repo.Update(ctx, "about", PageUpdate{Title: strPtr("About us"), Content: "v3 body"}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, up.Version)
	assert.Equal(t, "About us", *up.Title)

	hist, err := repo.History(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 2, hist[0].Version)
	assert.Equal(t, "v2 body", hist[0].Content)
	assert.Equal(t, 1, hist[1].Version)
	assert.Equal(t, "v1 body", hist[1].Content)
	require.NotNil(t, hist[0].CreatedByUsername)
	assert.Equal(t, "root", *hist[0].CreatedByUsername)

	_, err = repo.Update(ctx, "nope", PageUpdate{Content: "x"}, admin.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentRepository_ConcurrentUpdatesGetDistinctVersions(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentconcurrent")
	repo := NewContentRepository(d)
	admin := testutil.InsertUser(t, d, "root", models.RoleAdmin, "secret1")
	page := newPage(t, repo, "news", "v1")

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions []int
		errs     []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := repo.Update(context.Background(), "news", PageUpdate{Content: "edit"}, admin.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			versions = append(versions, p.Version)
		}()
	}
	wg.Wait()
	require.Empty(t, errs)

	sort.Ints(versions)
	want := make([]int, writers)
	for i := range want {
		want[i] = i + 2
	}
	assert.Equal(t, want, versions)

	hist, err := repo.History(context.Background(), page.ID)
	require.NoError(t, err)
	require.Len(t, hist, writers)
	for i, h := range hist {
		assert.Equal(t, writers-i, h.Version)
	}

	final, err := repo.GetByName(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, writers+1, final.Version)
}

func TestContentRepository_FailureAfterSnapshotRollsBack(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentrollback")
	repo := NewContentRepository(d)
	ctx := context.Background()
	page := newPage(t, repo, "faq", "original")

	boom := errors.New("boom")
	repo.afterSnapshot = func(context.Context, bun.Tx) error { return boom }

	_, err := repo.Update(ctx, "faq", PageUpdate{Content: "changed"}, 0)
	require.ErrorIs(t, err, boom)

	hist, err := repo.History(ctx, page.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)

	got, err := repo.GetByName(ctx, "faq")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Content)
	assert.Equal(t, 1, got.Version)

	// The next update goes through cleanly at version 2.
	repo.afterSnapshot = nil
	up, err := repo.Update(ctx, "faq", PageUpdate{Content: "changed"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Version)
	assert.Nil(t, up.UpdatedBy)
}

func TestContentRepository_MovedRowIsAVersionConflict(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentmoved")
	repo := NewContentRepository(d)
	ctx := context.Background()
	page := newPage(t, repo, "news", "v1")

	// Another writer bumps the version between the snapshot and the guarded UPDATE.
	repo.afterSnapshot = func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.PageContent)(nil)).
			Set("version = version + 1").
			Where("id = ?", page.ID).
			Exec(ctx)
		return err
	}

	_, err := repo.Update(ctx, "news", PageUpdate{Content: "v2"}, 0)
	require.ErrorIs(t, err, ErrVersionConflict)

	hist, err := repo.History(ctx, page.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)

	got, err := repo.GetByName(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "v1", got.Content)
}

func TestContentRepository_TakenHistoryVersionIsAVersionConflict(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contenttakenversion")
	repo := NewContentRepository(d)
	ctx := context.Background()
	page := newPage(t, repo, "events", "v1")

	// A snapshot of version 1 already exists, as if a concurrent update got there first.
	_, err := d.NewInsert().Model(&models.PageContentHistory{
		PageID:    page.ID,
		Content:   "v1",
		Version:   1,
		CreatedAt: page.CreatedAt,
	}).Exec(ctx)
	require.NoError(t, err)

	_, err = repo.Update(ctx, "events", PageUpdate{Content: "v2"}, 0)
	require.ErrorIs(t, err, ErrVersionConflict)

	hist, err := repo.History(ctx, page.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	got, err := repo.GetByName(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "v1", got.Content)
}

func TestContentRepository_DeleteKeepsHistoryAndListAll(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "contentdelete")
	repo := NewContentRepository(d)
	ctx := context.Background()

	newPage(t, repo, "zeta", "z")
	doomed := newPage(t, repo, "alpha", "a1")
	_, err := repo.Update(ctx, "alpha", PageUpdate{Content: "a2"}, 0)
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].PageName)
	assert.Equal(t, 2, all[0].Version)
	assert.Equal(t, "zeta", all[1].PageName)

	require.NoError(t, repo.Delete(ctx, "alpha"))
	assert.ErrorIs(t, repo.Delete(ctx, "alpha"), ErrNotFound)

	hist, err := repo.History(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
