// Package httpapi is the JSON HTTP surface of the portal: routing, the
// middleware chain, request validation and server lifecycle.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"serverPortal/internal/apperr"
	"serverPortal/internal/auth"
	"serverPortal/internal/i18n"
	"serverPortal/models"
	"serverPortal/repository"
)

// Deps are the collaborators the handlers need. Nothing is global.
type Deps struct {
	DB         *bun.DB
	Users      repository.UserRepositoryI
	Reports    repository.ReportRepositoryI
	Content    repository.ContentRepositoryI
	Issuer     *auth.Issuer
	Translator *i18n.Translator
	Logger     *zap.Logger

	// Dev adds internal error details to 500 responses.
	Dev        bool
	StaticDir  string
	CORSOrigin string
}

func (d Deps) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("httpapi: DB is required")
	case d.Users == nil || d.Reports == nil || d.Content == nil:
		return errors.New("httpapi: repositories are required")
	case d.Issuer == nil:
		return errors.New("httpapi: token issuer is required")
	case d.Translator == nil:
		return errors.New("httpapi: translator is required")
	}
	return nil
}

// NewHandler wires routes and middleware into one http.Handler.
func NewHandler(d Deps) (http.Handler, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	rs := &responder{tr: d.Translator, logger: d.Logger, dev: d.Dev}
	authn := auth.NewAuthenticator(d.Issuer, d.Users, rs.fail)

	user := func(h http.HandlerFunc) http.Handler {
		return authn.Authenticate(authn.RequireRole(models.RoleUser)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authn.Authenticate(authn.RequireRole(models.RoleAdmin)(h))
	}

	hs := &HealthServer{responder: rs, DB: d.DB}
	as := &AuthServer{responder: rs, Users: d.Users, Issuer: d.Issuer}
	rps := &ReportServer{responder: rs, Reports: d.Reports}
	ads := &AdminServer{responder: rs, Users: d.Users, Reports: d.Reports, Content: d.Content}
	cs := &ContentServer{responder: rs, Content: d.Content}

	router := mux.NewRouter()
	router.HandleFunc("/health", hs.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", as.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", as.handleLogin).Methods(http.MethodPost)

	api.Handle("/reports", user(rps.handleList)).Methods(http.MethodGet)
	api.Handle("/reports", user(rps.handleCreate)).Methods(http.MethodPost)
	api.Handle("/reports/{id}", user(rps.handleGet)).Methods(http.MethodGet)
	api.Handle("/reports/{id}", user(rps.handleUpdate)).Methods(http.MethodPut)
	api.Handle("/reports/{id}", user(rps.handleDelete)).Methods(http.MethodDelete)

	api.Handle("/admin/users", admin(ads.handleListUsers)).Methods(http.MethodGet)
	api.Handle("/admin/stats", admin(ads.handleStats)).Methods(http.MethodGet)
	api.Handle("/admin/users/{id}/role", admin(ads.handleUpdateRole)).Methods(http.MethodPut)
	api.Handle("/admin/users/{id}", admin(ads.handleDeleteUser)).Methods(http.MethodDelete)

	api.Handle("/content/admin/all", admin(cs.handleListAll)).Methods(http.MethodGet)
	api.Handle("/content/page", admin(cs.handleCreate)).Methods(http.MethodPost)
	api.HandleFunc("/content/{pageName}", cs.handleGet).Methods(http.MethodGet)
	api.Handle("/content/{pageName}", admin(cs.handleUpdate)).Methods(http.MethodPut)
	api.Handle("/content/{pageName}", admin(cs.handleDelete)).Methods(http.MethodDelete)
	api.Handle("/content/{pageName}/history", admin(cs.handleHistory)).Methods(http.MethodGet)

	router.NotFoundHandler = notFound(rs, d.StaticDir)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": rs.msg(r, "common.method_not_allowed")})
	})

	var h http.Handler = router
	h = handlers.CompressHandler(h)
	h = withCORS(d.CORSOrigin, h)
	h = withSecurityHeaders(h)
	h = withContentLanguage(d.Translator, h)
	h = rs.withRecovery(h)
	h = withAccessLog(d.Logger, h)
	h = withRequestID(h)
	return h, nil
}

// notFound answers unknown API routes with JSON and everything else from
// the static directory, when one is configured.
func notFound(rs *responder, staticDir string) http.Handler {
	var files http.Handler
	if staticDir != "" {
		files = http.FileServer(http.Dir(staticDir))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isAPI := r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
		if files != nil && !isAPI {
			files.ServeHTTP(w, r)
			return
		}
		rs.fail(w, r, apperr.NotFound("common.route_not_found"))
	})
}

// withContentLanguage announces the language the response messages use.
func withContentLanguage(tr *i18n.Translator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Language", tr.Negotiate(r.Header.Get("Accept-Language")).String())
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r)
	})
}

// StartHTTP listens on addr and serves h in the background. It returns the
// bound address and a shutdown function that drains in-flight requests.
func StartHTTP(addr string, h http.Handler, logger *zap.Logger) (string, func(context.Context) error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = ":3000"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	return lis.Addr().String(), func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		if err != nil {
			_ = srv.Close()
		}
		<-done
		return err
	}, nil
}
