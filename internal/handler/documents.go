package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studydeck/internal/corpus"
	"github.com/pavelanni/studydeck/internal/pdftext"
	"github.com/pavelanni/studydeck/internal/study"
)

type uploadRejection struct {
	Name  string `json:"name"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

type uploadResponse struct {
	Documents []study.DocumentView `json:"documents"`
	Rejected  []uploadRejection    `json:"rejected,omitempty"`
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	writeJSON(w, http.StatusOK, ws.State().Documents)
}

// handleUpload stores every file of a multipart "files" field. Files that
// are not PDFs are reported back without failing the whole upload.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.writeError(w, r, fmt.Errorf("%w: no files", errBadRequest))
		return
	}

	resp := uploadResponse{Documents: []study.DocumentView{}}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		doc, err := ws.AddFile(fh.Filename, data)
		if errors.Is(err, pdftext.ErrNotPDF) {
			_, code := classify(err)
			resp.Rejected = append(resp.Rejected, uploadRejection{Name: fh.Filename, Error: appT(r, code), Code: code})
			continue
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		slog.Info("document uploaded", "name", doc.Name, "pages", doc.PageCount, "has_text", doc.HasText())
		resp.Documents = append(resp.Documents, study.DocumentView{Document: doc, Readable: doc.HasText()})
	}

	status := http.StatusCreated
	if len(resp.Documents) == 0 {
		status = http.StatusUnsupportedMediaType
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "docID"), 10, 64)
	if err != nil {
		h.writeError(w, r, errBadRequest)
		return
	}
	if err := ws.RemoveFile(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleContinue(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	if err := ws.Continue(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	if err := ws.Back(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// handleDistribution previews how ?total=N items spread over the documents.
func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(w, r)
	if ws == nil {
		return
	}
	total, err := strconv.Atoi(r.URL.Query().Get("total"))
	if err != nil || total < 1 {
		h.writeError(w, r, errBadRequest)
		return
	}
	dist := ws.Distribution(total)
	if dist == nil {
		dist = []corpus.Entry{}
	}
	writeJSON(w, http.StatusOK, dist)
}
