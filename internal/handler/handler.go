// Package handler exposes the study workspace over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studydeck/internal/model"
	"github.com/pavelanni/studydeck/internal/speech"
	"github.com/pavelanni/studydeck/internal/store"
	"github.com/pavelanni/studydeck/internal/study"
)

// maxUploadBytes bounds a single upload request.
const maxUploadBytes = 64 << 20

// Synthesizer renders an utterance to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, u speech.Utterance) (io.ReadCloser, error)
}

// Config holds HTTP-level settings.
type Config struct {
	BasePath      string
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	study  *study.Manager
	synth  Synthesizer
	config Config
}

// New creates a Handler. synth may be nil, in which case clients read items
// aloud with their own speech engine.
func New(s *store.Store, m *study.Manager, synth Synthesizer, cfg Config) *Handler {
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")
	return &Handler{store: s, study: m, synth: synth, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(h.csrfMiddleware)

		r.Post("/logout", h.handleLogout)

		r.Route("/api", func(r chi.Router) {
			r.Get("/me", h.handleMe)

			r.Get("/documents", h.handleListDocuments)
			r.Post("/documents", h.handleUpload)
			r.Delete("/documents/{docID}", h.handleDeleteDocument)
			r.Post("/documents/continue", h.handleContinue)
			r.Post("/documents/back", h.handleBack)
			r.Get("/distribution", h.handleDistribution)

			r.Get("/exam", h.handleExamState)
			r.Post("/exam", h.handleStartExam)
			r.Delete("/exam", h.handleRestart)
			r.Post("/exam/restart", h.handleRestart)
			r.Post("/exam/answer", h.handleAnswer)
			r.Post("/exam/reveal", h.handleReveal)
			r.Post("/exam/next", h.handleNext)
			r.Post("/exam/timeout", h.handleTimeout)
			r.Get("/exam/summary", h.handleSummary)
			r.Post("/exam/source", h.handleSourceLink)
			r.Get("/sources/{token}", h.handleSource)

			r.Get("/speech", h.handleSpeechPending)
			r.Get("/speech/{id}/audio", h.handleSpeechAudio)
			r.Post("/speech/{id}/done", h.handleSpeechDone)

			r.Get("/results", h.handleResults)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/users", h.handleListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{userID}/active", h.handleSetUserActive)
				r.Get("/results", h.handleExportResults)
			})
		})
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	return h.path("/")
}

// workspace returns the authenticated user's workspace. It writes the error
// response itself when it returns nil.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) *study.Workspace {
	user := model.UserFromContext(r.Context())
	ws, err := h.study.Get(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return nil
	}
	return ws
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userView(*user))
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	results, err := h.store.ListResults(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []model.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}
