package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"serverPortal/internal/auth"
	"serverPortal/internal/i18n"
	"serverPortal/internal/testutil"
	"serverPortal/models"
	"serverPortal/repository"
)

type testAPI struct {
	h       http.Handler
	db      *bun.DB
	users   *repository.UserRepository
	reports *repository.ReportRepository
	content *repository.ContentRepository
	issuer  *auth.Issuer
}

func newTestAPI(t *testing.T, name string, tweak ...func(*Deps)) *testAPI {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	tr, err := i18n.New()
	if err != nil {
		t.Fatalf("i18n: %v", err)
	}
	iss, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	a := &testAPI{
		db:      d,
		users:   repository.NewUserRepository(d),
		reports: repository.NewReportRepository(d),
		content: repository.NewContentRepository(d),
		issuer:  iss,
	}
	deps := Deps{
		DB:         d,
		Users:      a.users,
		Reports:    a.reports,
		Content:    a.content,
		Issuer:     iss,
		Translator: tr,
		Logger:     zap.NewNop(),
	}
	for _, f := range tweak {
		f(&deps)
	}
	a.h, err = NewHandler(deps)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, testutil.NewRequest(t, method, path, body, token))
	return rec
}

// userWithToken inserts an account and returns it with a valid token.
func (a *testAPI) userWithToken(t *testing.T, username string, role models.Role) (*models.User, string) {
	t.Helper()
	u := testutil.InsertUser(t, a.db, username, role, "secret1")
	tok, err := a.issuer.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, tok
}
