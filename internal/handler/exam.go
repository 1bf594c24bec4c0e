package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studydeck/internal/model"
)

func (h *Handler) handleExamState(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// handleStartExam generates the exam synchronously. Concurrent state polls
// see the generating stage meanwhile.
func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	st := ws.State().Settings
	if err := decodeJSON(r, &st); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if err := ws.Start(r.Context(), st); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws.State())
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	if err := ws.Restart(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// itemRequest names the item the client is looking at. Actions for an
// item that is no longer current are refused or ignored.
type itemRequest struct {
	Index int `json:"index"`
}

type answerRequest struct {
	itemRequest
	Selected []int  `json:"selected"`
	Answer   string `json:"answer"`
}

// handleAnswer takes choice indices for test items and free text for open
// items.
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	var (
		o   model.Outcome
		err error
	)
	if ws.State().Settings.Type == model.TypeOpen {
		o, err = ws.SubmitAnswer(r.Context(), req.Index, req.Answer)
	} else {
		o, err = ws.SubmitChoices(req.Index, req.Selected)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOutcome(w, r, o)
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	o, err := ws.Reveal(req.Index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOutcome(w, r, o)
}

// writeOutcome answers with the outcome and the updated state. The source
// file is withheld unless the user asked to see it.
func (h *Handler) writeOutcome(w http.ResponseWriter, r *http.Request, o model.Outcome) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	state := ws.State()
	if !state.Settings.ShowSourceFile {
		o.SourceFile = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": o, "state": state})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if err := ws.Advance(req.Index); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// handleTimeout records a countdown that ran out on the client. The index
// guards against expiring an item the client has not seen yet.
func (h *Handler) handleTimeout(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if err := ws.Timeout(req.Index); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// handleSummary returns the outcome report as JSON, or as an HTML fragment
// when the client asks for text/html or passes format=html. The per-item
// outcomes are left out unless the summary was requested in the settings.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	sum, err := ws.Summary()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	settings := ws.State().Settings
	showSource := settings.ShowSourceFile
	if !showSource {
		for i := range sum.Outcomes {
			sum.Outcomes[i].SourceFile = ""
		}
	}

	if r.URL.Query().Get("format") == "html" || strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := summaryView(sum, settings.ShowSummary, showSource).Render(r.Context(), w); err != nil {
			slog.Error("render error", "error", err)
		}
		return
	}
	if !settings.ShowSummary {
		sum.Outcomes = nil
	}
	writeJSON(w, http.StatusOK, sum)
}

type sourceLinkResponse struct {
	URL  string `json:"url"`
	Page int    `json:"page"`
}

// handleSourceLink issues a one-shot URL that opens the current item's
// source document at its page.
func (h *Handler) handleSourceLink(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	token, page, err := ws.SourceLink()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sourceLinkResponse{
		URL:  fmt.Sprintf("%s#page=%d", h.path("/api/sources/"+token), page),
		Page: page,
	})
}

// handleSource serves the PDF behind a source link. A link is valid once and
// only for the workspace it was issued to.
func (h *Handler) handleSource(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	target, ok := h.study.Links().Resolve(chi.URLParam(r, "token"))
	if !ok || target.Owner != ws.Owner() {
		h.writeStatus(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	user := model.UserFromContext(r.Context())
	doc, err := h.store.GetDocument(user.ID, target.DocumentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.store.GetDocumentData(user.ID, target.DocumentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write source document", "error", err)
	}
}
