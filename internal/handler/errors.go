package handler

import (
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/studydeck/internal/i18n"
	"github.com/pavelanni/studydeck/internal/llm"
	"github.com/pavelanni/studydeck/internal/model"
	"github.com/pavelanni/studydeck/internal/pdftext"
	"github.com/pavelanni/studydeck/internal/session"
	"github.com/pavelanni/studydeck/internal/store"
	"github.com/pavelanni/studydeck/internal/study"
)

var (
	errBadRequest        = errors.New("bad request")
	errSpeechUnavailable = errors.New("speech synthesis not configured")
)

// errorMapping ties a sentinel error to a status code and a message ID.
// The first match wins, so more specific errors come first.
var errorMapping = []struct {
	err    error
	status int
	msgID  string
}{
	{pdftext.ErrNotPDF, http.StatusUnsupportedMediaType, "ErrNotPDF"},
	{study.ErrNoDocuments, http.StatusUnprocessableEntity, "ErrNoDocuments"},
	{study.ErrNoText, http.StatusUnprocessableEntity, "ErrNoText"},
	{study.ErrWrongStage, http.StatusConflict, "ErrWrongStage"},
	{study.ErrNoSource, http.StatusNotFound, "ErrNoSource"},
	{study.ErrNotAnswered, http.StatusConflict, "ErrNotAnswered"},
	{study.ErrStaleItem, http.StatusConflict, "ErrStaleItem"},
	{session.ErrFinished, http.StatusConflict, "ErrExamFinished"},
	{session.ErrAlreadyAnswered, http.StatusConflict, "ErrAlreadyAnswered"},
	{session.ErrWrongMode, http.StatusConflict, "ErrWrongMode"},
	{session.ErrInvalidChoice, http.StatusBadRequest, "ErrInvalidChoice"},
	{model.ErrInvalidSettings, http.StatusBadRequest, "ErrInvalidSettings"},
	{llm.ErrMissingAPIKey, http.StatusServiceUnavailable, "ErrMissingAPIKey"},
	{llm.ErrNoValidItems, http.StatusBadGateway, "ErrNoValidItems"},
	{study.ErrGeneration, http.StatusBadGateway, "ErrGeneration"},
	{store.ErrNotFound, http.StatusNotFound, "ErrNotFound"},
	{errBadRequest, http.StatusBadRequest, "ErrBadRequest"},
	{errSpeechUnavailable, http.StatusNotImplemented, "ErrSpeechUnavailable"},
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func classify(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.msgID
		}
	}
	return http.StatusInternalServerError, "ErrInternal"
}

// writeError maps err to a status code and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := classify(err)
	resp := errorResponse{Error: appT(r, msgID), Code: msgID}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: appT(r, msgID), Code: msgID})
}

func appT(r *http.Request, msgID string) string {
	return appI18n.T(r.Context(), msgID)
}
