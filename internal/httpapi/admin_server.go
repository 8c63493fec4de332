package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"serverPortal/internal/apperr"
	"serverPortal/internal/auth"
	"serverPortal/models"
	"serverPortal/repository"
)

const defaultUserPageSize = 100

// AdminServer handles user management and portal statistics. Routes are admin-only.
type AdminServer struct {
	*responder
	Users   repository.UserRepositoryI
	Reports repository.ReportRepositoryI
	Content repository.ContentRepositoryI
}

func (s *AdminServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultUserPageSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	users, err := s.Users.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

func (s *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.Users.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reports, err := s.Reports.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pages, err := s.Content.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"totalUsers":   users,
		"totalReports": reports,
		"totalPages":   pages,
	})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *AdminServer) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	role := models.Role(strings.TrimSpace(req.Role))
	if !role.Valid() {
		s.fail(w, r, apperr.Validation("admin.invalid_role").WithData(map[string]any{
			"Allowed": strings.Join([]string{string(models.RoleUser), string(models.RoleAdmin)}, ", "),
		}))
		return
	}
	if id == p.ID {
		s.fail(w, r, apperr.Validation("admin.own_role"))
		return
	}

	ctx := r.Context()
	if err := s.Users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = apperr.NotFound("admin.user_not_found")
		}
		s.fail(w, r, err)
		return
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if u == nil {
		s.fail(w, r, apperr.NotFound("admin.user_not_found"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": s.msg(r, "admin.role_updated"),
		"user":    u,
	})
}

func (s *AdminServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if id == p.ID {
		s.fail(w, r, apperr.Validation("admin.delete_self"))
		return
	}
	if err := s.Users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = apperr.NotFound("admin.user_not_found")
		}
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": s.msg(r, "admin.user_deleted")})
}
