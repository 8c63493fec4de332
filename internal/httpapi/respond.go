package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"serverPortal/internal/apperr"
	"serverPortal/internal/i18n"
)

// maxBodyBytes caps JSON request bodies. Page content is the largest payload.
const maxBodyBytes = 2 << 20

// responder renders localized JSON responses and errors.
type responder struct {
	tr     *i18n.Translator
	logger *zap.Logger
	dev    bool
}

func (rs *responder) localizer(r *http.Request) *i18n.Localizer {
	return rs.tr.Localizer(r.Header.Get("Accept-Language"))
}

// msg translates a message ID for the caller's language.
func (rs *responder) msg(r *http.Request, id string) string {
	return rs.localizer(r).T(id, nil)
}

// fail writes err as {"error": <localized message>}. Unclassified errors are
// 500s; in development their cause is added as "detail".
func (rs *responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	status := ae.Kind.HTTPStatus()
	body := map[string]any{"error": rs.localizer(r).T(ae.MessageID, ae.Data)}
	if rs.dev && ae.Err != nil {
		body["detail"] = ae.Err.Error()
	}

	fields := []zap.Field{
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed", fields...)
	} else {
		rs.logger.Debug("request rejected", fields...)
	}
	respondJSON(w, status, body)
}

// respondJSON sends payload as JSON with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// decodeJSON reads a JSON body into dst. Malformed or oversized bodies are
// validation errors; an empty body decodes as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &apperr.Error{Kind: apperr.KindValidation, MessageID: "common.invalid_body", Err: err}
	}
	return nil
}
