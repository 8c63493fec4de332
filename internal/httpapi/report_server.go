package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"serverPortal/internal/apperr"
	"serverPortal/internal/auth"
	"serverPortal/models"
	"serverPortal/repository"
)

const (
	minTitleLen       = 5
	minDescriptionLen = 10

	defaultReportLimit = 50
	maxReportLimit     = 100
)

// ReportServer handles the report endpoints. Every route requires a principal.
type ReportServer struct {
	*responder
	Reports repository.ReportRepositoryI
}

func allowedStatuses() string {
	names := make([]string, len(models.ReportStatuses))
	for i, s := range models.ReportStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func invalidStatus() error {
	return apperr.Validation("report.invalid_status").WithData(map[string]any{"Allowed": allowedStatuses()})
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("common.invalid_id")
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("report.invalid_pagination")
	}
	return n, nil
}

func (s *ReportServer) handleList(w http.ResponseWriter, r *http.Request) {
	var p repository.ListReportsParams
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st := models.ReportStatus(raw)
		if !st.Valid() {
			s.fail(w, r, invalidStatus())
			return
		}
		p.Status = &st
	}
	limit, err := queryInt(r, "limit", defaultReportLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if limit == 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	p.Limit, p.Offset = limit, offset

	reports, err := s.Reports.List(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

// load fetches the report named by the route or fails with NotFound.
func (s *ReportServer) load(r *http.Request) (*models.Report, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	rep, err := s.Reports.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, apperr.NotFound("report.not_found")
	}
	return rep, nil
}

func (s *ReportServer) handleGet(w http.ResponseWriter, r *http.Request) {
	rep, err := s.load(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"report": rep})
}

type createReportRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ServerName  *string `json:"server_name"`
}

func (s *ReportServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req createReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	desc := strings.TrimSpace(req.Description)
	switch {
	case title == "" || desc == "":
		s.fail(w, r, apperr.Validation("report.fields_required"))
		return
	case utf8.RuneCountInString(title) < minTitleLen:
		s.fail(w, r, apperr.Validation("report.title_too_short"))
		return
	case utf8.RuneCountInString(desc) < minDescriptionLen:
		s.fail(w, r, apperr.Validation("report.description_too_short"))
		return
	}

	rep := &models.Report{
		UserID:      p.ID,
		Title:       title,
		Description: desc,
		Status:      models.ReportStatusPending,
	}
	if req.ServerName != nil {
		if name := strings.TrimSpace(*req.ServerName); name != "" {
			rep.ServerName = &name
		}
	}
	created, err := s.Reports.Create(r.Context(), rep)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": s.msg(r, "report.created"),
		"report":  created,
	})
}

type updateReportRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ServerName  *string `json:"server_name"`
	Status      *string `json:"status"`
}

// checkUpdate applies the update rules in order: ownership, status
// privilege, status value, field lengths, then emptiness.
func checkUpdate(p *auth.Principal, rep *models.Report, req updateReportRequest) (repository.ReportUpdate, error) {
	var u repository.ReportUpdate
	if rep.UserID != p.ID && !p.IsAdmin() {
		return u, apperr.Forbidden("report.not_owner")
	}
	if req.Status != nil {
		if !p.IsAdmin() {
			return u, apperr.Forbidden("report.status_admin_only")
		}
		st := models.ReportStatus(strings.TrimSpace(*req.Status))
		if !st.Valid() {
			return u, invalidStatus()
		}
		u.Status = &st
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if utf8.RuneCountInString(t) < minTitleLen {
			return u, apperr.Validation("report.title_too_short")
		}
		u.Title = &t
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if utf8.RuneCountInString(d) < minDescriptionLen {
			return u, apperr.Validation("report.description_too_short")
		}
		u.Description = &d
	}
	if req.ServerName != nil {
		n := strings.TrimSpace(*req.ServerName)
		u.ServerName = &n
	}
	if u.Empty() {
		return u, apperr.Validation("common.no_fields")
	}
	return u, nil
}

func (s *ReportServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	rep, err := s.load(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	upd, err := checkUpdate(p, rep, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.Reports.Update(r.Context(), rep.ID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = apperr.NotFound("report.not_found")
		}
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": s.msg(r, "report.updated"),
		"report":  out,
	})
}

func (s *ReportServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	rep, err := s.load(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rep.UserID != p.ID && !p.IsAdmin() {
		s.fail(w, r, apperr.Forbidden("report.not_owner"))
		return
	}
	if err := s.Reports.Delete(r.Context(), rep.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = apperr.NotFound("report.not_found")
		}
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": s.msg(r, "report.deleted")})
}
