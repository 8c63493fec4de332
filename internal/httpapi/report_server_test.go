package httpapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverPortal/internal/testutil"
	"serverPortal/models"
)

func createReport(t *testing.T, a *testAPI, token string) int64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/reports", map[string]any{
		"title":       "Server crash",
		"description": "The server crashes on join",
		"server_name": "eu-1",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rep := testutil.DecodeJSON(t, rec)["report"].(map[string]any)
	return int64(rep["id"].(float64))
}

func TestReports_RequireAuthentication(t *testing.T) {
	a := newTestAPI(t, "httpreportsauth")
	rec := a.do(t, http.MethodGet, "/api/reports", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reports", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReports_CreateValidation(t *testing.T) {
	a := newTestAPI(t, "httpreportsvalid")
	_, tok := a.userWithToken(t, "alice", models.RoleUser)

	for name, body := range map[string]map[string]any{
		"missing":    {"title": "Hello world"},
		"short":      {"title": "Bad", "description": "Long enough text"},
		"short desc": {"title": "Long title", "description": "short"},
		"blank":      {"title": "      ", "description": "Long enough text"},
	} {
		rec := a.do(t, http.MethodPost, "/api/reports", body, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestReports_CreateListGet(t *testing.T) {
	a := newTestAPI(t, "httpreportslist")
	_, tok := a.userWithToken(t, "alice", models.RoleUser)

	id := createReport(t, a, tok)

	rec := a.do(t, http.MethodGet, "/api/reports", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body := testutil.DecodeJSON(t, rec)
	assert.Equal(t, float64(1), body["count"])
	first := body["reports"].([]any)[0].(map[string]any)
	assert.Equal(t, "pending", first["status"])
	assert.Equal(t, "alice", first["author_username"])
	assert.Equal(t, "eu-1", first["server_name"])

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/reports/%d", id), nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Server crash", testutil.DecodeJSON(t, rec)["report"].(map[string]any)["title"])

	rec = a.do(t, http.MethodGet, "/api/reports/9999", nil, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/reports/abc", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reports?status=resolved", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), testutil.DecodeJSON(t, rec)["count"])

	for _, q := range []string{"status=bogus", "limit=-1", "offset=x"} {
		rec = a.do(t, http.MethodGet, "/api/reports?"+q, nil, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReports_OwnershipAndStatusRules(t *testing.T) {
	a := newTestAPI(t, "httpreportsowner")
	_, ownerTok := a.userWithToken(t, "owner", models.RoleUser)
	_, otherTok := a.userWithToken(t, "other", models.RoleUser)
	_, adminTok := a.userWithToken(t, "admin", models.RoleAdmin)

	id := createReport(t, a, ownerTok)
	path := fmt.Sprintf("/api/reports/%d", id)

	// Non-owner non-admin cannot touch it.
	rec := a.do(t, http.MethodPut, path, map[string]any{"title": "Hijacked title"}, otherTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodDelete, path, nil, otherTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Owner may edit allowed fields.
	rec = a.do(t, http.MethodPut, path, map[string]any{"title": "Server crash again"}, ownerTok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := testutil.DecodeJSON(t, rec)["report"].(map[string]any)
	assert.Equal(t, "Server crash again", rep["title"])
	assert.Equal(t, "The server crashes on join", rep["description"])

	// A non-admin status change is forbidden regardless of other fields.
	rec = a.do(t, http.MethodPut, path, map[string]any{"status": "closed", "title": "Also a new title"}, ownerTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Validation after permission checks.
	rec = a.do(t, http.MethodPut, path, map[string]any{"status": "done"}, adminTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPut, path, map[string]any{"description": "short"}, ownerTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPut, path, map[string]any{}, ownerTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPut, "/api/reports/9999", map[string]any{"title": "Whatever title"}, ownerTok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPut, path, map[string]any{"status": "in_progress"}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_progress", testutil.DecodeJSON(t, rec)["report"].(map[string]any)["status"])

	rec = a.do(t, http.MethodDelete, path, nil, adminTok)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodDelete, path, nil, adminTok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Register, log in, file a report, have an admin resolve it, then check the
// author cannot change the status back.
func TestScenario_ReportLifecycle(t *testing.T) {
	a := newTestAPI(t, "httpscenario")
	_, adminTok := a.userWithToken(t, "root", models.RoleAdmin)

	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/auth/login", map[string]any{"username": "alice", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	aliceTok := testutil.DecodeJSON(t, rec)["token"].(string)

	id := createReport(t, a, aliceTok)
	path := fmt.Sprintf("/api/reports/%d", id)

	rec = a.do(t, http.MethodGet, path, nil, aliceTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", testutil.DecodeJSON(t, rec)["report"].(map[string]any)["status"])

	rec = a.do(t, http.MethodPut, path, map[string]any{"status": "resolved"}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "resolved", testutil.DecodeJSON(t, rec)["report"].(map[string]any)["status"])

	rec = a.do(t, http.MethodPut, path, map[string]any{"status": "pending"}, aliceTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, path, nil, aliceTok)
	assert.Equal(t, "resolved", testutil.DecodeJSON(t, rec)["report"].(map[string]any)["status"])
}
