package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverPortal/internal/testutil"
	"serverPortal/models"
	"serverPortal/repository"
)

func TestContent_CreateAndFetchPublicly(t *testing.T) {
	a := newTestAPI(t, "httpcontentcreate")
	_, adminTok := a.userWithToken(t, "root", models.RoleAdmin)
	_, userTok := a.userWithToken(t, "alice", models.RoleUser)

	rec := a.do(t, http.MethodGet, "/api/content/rules", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	page := map[string]any{"pageName": "rules", "title": "Rules", "content": "<p>Be nice</p>"}
	rec = a.do(t, http.MethodPost, "/api/content/page", page, userTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/content/page", page, adminTok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := testutil.DecodeJSON(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["version"])

	rec = a.do(t, http.MethodPost, "/api/content/page", page, adminTok)
	assert.Equal(t, http.StatusConflict, rec.Code)

	for name, body := range map[string]map[string]any{
		"no content": {"pageName": "faq"},
		"no name":    {"content": "x"},
		"bad name":   {"pageName": "Bad Name!", "content": "x"},
		"leading -":  {"pageName": "-faq", "content": "x"},
	} {
		rec = a.do(t, http.MethodPost, "/api/content/page", body, adminTok)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	rec = a.do(t, http.MethodGet, "/api/content/rules", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	body := testutil.DecodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	data = body["data"].(map[string]any)
	assert.Equal(t, "Rules", data["title"])
	assert.Equal(t, "<p>Be nice</p>", data["content"])
	assert.Equal(t, float64(1), data["version"])
}

func TestContent_UpdateKeepsHistory(t *testing.T) {
	a := newTestAPI(t, "httpcontentupdate")
	_, adminTok := a.userWithToken(t, "root", models.RoleAdmin)

	rec := a.do(t, http.MethodPost, "/api/content/page", map[string]any{"pageName": "about", "title": "About", "content": "first"}, adminTok)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/content/about", map[string]any{"content": "   "}, adminTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPut, "/api/content/missing", map[string]any{"content": "x"}, adminTok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/content/about", map[string]any{"content": "second"}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := testutil.DecodeJSON(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["version"])
	assert.Equal(t, "second", data["content"])
	assert.Equal(t, "About", data["title"], "title omitted means unchanged")

	rec = a.do(t, http.MethodGet, "/api/content/about/history", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := testutil.DecodeJSON(t, rec)["data"].([]any)
	require.Len(t, hist, 1)
	h := hist[0].(map[string]any)
	assert.Equal(t, float64(1), h["version"])
	assert.Equal(t, "first", h["content"])
	assert.Equal(t, "root", h["created_by"])

	rec = a.do(t, http.MethodGet, "/api/content/missing/history", nil, adminTok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContent_DeleteAndListAll(t *testing.T) {
	a := newTestAPI(t, "httpcontentdelete")
	_, adminTok := a.userWithToken(t, "root", models.RoleAdmin)

	for _, name := range []string{"news", "faq"} {
		rec := a.do(t, http.MethodPost, "/api/content/page", map[string]any{"pageName": name, "content": "body"}, adminTok)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/api/content/admin/all", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	all := testutil.DecodeJSON(t, rec)["data"].([]any)
	require.Len(t, all, 2)
	assert.Equal(t, "faq", all[0].(map[string]any)["page_name"])
	assert.NotContains(t, all[0].(map[string]any), "content")

	rec = a.do(t, http.MethodDelete, "/api/content/faq", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/content/faq", nil, adminTok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/content/faq", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// racingContent loses every update to a concurrent writer.
type racingContent struct {
	repository.ContentRepositoryI
}

func (racingContent) Update(context.Context, string, repository.PageUpdate, int64) (*models.PageContent, error) {
	return nil, repository.ErrVersionConflict
}

func TestContent_LostUpdateIsConflict(t *testing.T) {
	a := newTestAPI(t, "httpcontentconflict", func(d *Deps) {
		d.Content = racingContent{ContentRepositoryI: d.Content}
	})
	_, adminTok := a.userWithToken(t, "root", models.RoleAdmin)

	rec := a.do(t, http.MethodPut, "/api/content/rules", map[string]any{"content": "new"}, adminTok)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "The page was changed by someone else, please retry", testutil.DecodeJSON(t, rec)["error"])
}
