package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"serverPortal/internal/apperr"
	"serverPortal/internal/auth"
	"serverPortal/internal/db"
	"serverPortal/models"
	"serverPortal/repository"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// AuthServer handles registration and login.
type AuthServer struct {
	*responder
	Users  repository.UserRepositoryI
	Issuer *auth.Issuer
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *registerRequest) validate() error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		return apperr.Validation("auth.register_fields_required")
	case utf8.RuneCountInString(req.Username) < minUsernameLen:
		return apperr.Validation("auth.username_too_short")
	case !emailRe.MatchString(req.Email):
		return apperr.Validation("auth.invalid_email")
	case utf8.RuneCountInString(req.Password) < minPasswordLen:
		return apperr.Validation("auth.password_too_short")
	case len(req.Password) > auth.MaxPasswordBytes:
		return apperr.Validation("auth.password_too_long")
	}
	return nil
}

func (s *AuthServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	taken, err := s.Users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if taken {
		s.fail(w, r, apperr.Conflict("auth.user_exists"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Users.Create(ctx, &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, db.ErrDuplicate) {
			err = apperr.Conflict("auth.user_exists")
		}
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": s.msg(r, "auth.registered"),
		"user":    u,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *AuthServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		s.fail(w, r, apperr.Validation("auth.login_fields_required"))
		return
	}

	u, err := s.Users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Unknown user and wrong password are indistinguishable to the client.
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.fail(w, r, apperr.Unauthorized("auth.invalid_credentials"))
		return
	}

	token, err := s.Issuer.Issue(u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": s.msg(r, "auth.logged_in"),
		"token":   token,
		"user":    u,
	})
}
