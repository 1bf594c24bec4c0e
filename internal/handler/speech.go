package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studydeck/internal/speech"
)

type speechPendingResponse struct {
	Utterances []speech.Utterance `json:"utterances"`
	Audio      bool               `json:"audio"`
}

// handleSpeechPending lists what the exam wants read aloud. Audio reports
// whether the server can render it; otherwise the client speaks the text.
func (h *Handler) handleSpeechPending(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	writeJSON(w, http.StatusOK, speechPendingResponse{
		Utterances: ws.Speech().Pending(),
		Audio:      h.synth != nil,
	})
}

func (h *Handler) handleSpeechAudio(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	if h.synth == nil {
		h.writeError(w, r, errSpeechUnavailable)
		return
	}
	u, ok := ws.Speech().Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeStatus(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}

	audio, err := h.synth.Synthesize(r.Context(), u)
	if err != nil {
		slog.Error("speech synthesis failed", "id", u.ID, "error", err)
		ws.Speech().Done(u.ID, err)
		h.writeStatus(w, r, http.StatusBadGateway, "ErrSpeechUnavailable")
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, audio); err != nil {
		slog.Warn("failed to stream speech audio", "id", u.ID, "error", err)
	}
}

type speechDoneRequest struct {
	Error string `json:"error"`
}

// handleSpeechDone resolves an utterance once the client has finished
// playing it, or failed to.
func (h *Handler) handleSpeechDone(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	var req speechDoneRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, errBadRequest)
			return
		}
	}
	var playErr error
	if req.Error != "" {
		playErr = errors.New(req.Error)
	}
	if !ws.Speech().Done(chi.URLParam(r, "id"), playErr) {
		h.writeStatus(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
