package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"serverPortal/internal/apperr"
	"serverPortal/internal/auth"
	"serverPortal/internal/db"
	"serverPortal/models"
	"serverPortal/repository"
)

// ContentServer serves pages publicly and lets admins edit them.
type ContentServer struct {
	*responder
	Content repository.ContentRepositoryI
}

func pageNotFound() error { return apperr.NotFound("content.page_not_found") }

func (s *ContentServer) handleGet(w http.ResponseWriter, r *http.Request) {
	page, err := s.Content.GetActiveByName(r.Context(), mux.Vars(r)["pageName"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if page == nil {
		s.fail(w, r, pageNotFound())
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": page})
}

func (s *ContentServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := s.Content.GetByName(ctx, mux.Vars(r)["pageName"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if page == nil {
		s.fail(w, r, pageNotFound())
		return
	}
	hist, err := s.Content.History(ctx, page.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": hist})
}

type updatePageRequest struct {
	Title   *string `json:"title"`
	Content string  `json:"content"`
}

func (s *ContentServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req updatePageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.fail(w, r, apperr.Validation("content.content_required"))
		return
	}
	upd := repository.PageUpdate{Content: req.Content}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		upd.Title = &t
	}

	page, err := s.Content.Update(r.Context(), mux.Vars(r)["pageName"], upd, p.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.fail(w, r, pageNotFound())
		return
	case errors.Is(err, repository.ErrVersionConflict):
		s.fail(w, r, &apperr.Error{Kind: apperr.KindConflict, MessageID: "content.version_conflict", Err: err})
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": s.msg(r, "content.updated"),
		"data":    page,
	})
}

type createPageRequest struct {
	PageName string  `json:"pageName"`
	Title    *string `json:"title"`
	Content  string  `json:"content"`
}

func (s *ContentServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req createPageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(req.PageName)
	if name == "" || strings.TrimSpace(req.Content) == "" {
		s.fail(w, r, apperr.Validation("content.create_fields_required"))
		return
	}
	if !models.ValidPageName(name) {
		s.fail(w, r, apperr.Validation("content.invalid_page_name"))
		return
	}

	page := &models.PageContent{
		PageName:  name,
		Content:   req.Content,
		IsActive:  true,
		UpdatedBy: &p.ID,
	}
	if req.Title != nil {
		if t := strings.TrimSpace(*req.Title); t != "" {
			page.Title = &t
		}
	}
	created, err := s.Content.Create(r.Context(), page)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			err = apperr.Conflict("content.page_exists").WithData(map[string]any{"Name": name})
		}
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": s.msg(r, "content.created"),
		"data":    created,
	})
}

func (s *ContentServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Content.Delete(r.Context(), mux.Vars(r)["pageName"]); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = pageNotFound()
		}
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": s.msg(r, "content.deleted"),
	})
}

func (s *ContentServer) handleListAll(w http.ResponseWriter, r *http.Request) {
	pages, err := s.Content.ListAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": pages})
}
