// Package study holds the per-user workspace that moves from uploaded
// documents through settings and generation to a running exam.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pavelanni/studydeck/internal/corpus"
	"github.com/pavelanni/studydeck/internal/model"
	"github.com/pavelanni/studydeck/internal/pdftext"
	"github.com/pavelanni/studydeck/internal/session"
	"github.com/pavelanni/studydeck/internal/sourcelink"
	"github.com/pavelanni/studydeck/internal/speech"
)

// Stage is the step a workspace is in.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageSettings   Stage = "settings"
	StageGenerating Stage = "generating"
	StageExam       Stage = "exam"
)

var (
	ErrWrongStage  = errors.New("operation not available at this stage")
	ErrNoDocuments = errors.New("no documents uploaded")
	ErrNoText      = errors.New("uploaded documents contain no text")
	ErrNoSource    = errors.New("item has no resolvable source document")
	ErrNotAnswered = errors.New("current item has not been answered")
	ErrGeneration  = errors.New("generate exam")
	ErrStaleItem   = errors.New("request targets an item that is no longer current")
)

// Generator produces exam items from a corpus.
type Generator interface {
	Generate(ctx context.Context, st model.Settings, corpusText string) ([]model.Item, error)
}

// Repository is the persistence a workspace needs.
type Repository interface {
	InsertDocument(d model.Document, data []byte) (int64, error)
	ListDocuments(userID int64) ([]model.Document, error)
	DeleteDocument(userID, id int64) error
	InsertResult(r model.Result) (int64, error)
	SaveUserSettings(userID int64, st model.Settings) error
	LoadUserSettings(userID int64) (model.Settings, error)
}

// Workspace is one user's study state. All methods are safe for concurrent
// use; exam transitions are serialized.
type Workspace struct {
	userID int64
	owner  string
	repo   Repository
	gen    Generator
	eval   session.Evaluator
	links  *sourcelink.Registry
	speech *speech.Queue
	now    func() time.Time

	mu       sync.Mutex
	stage    Stage
	settings model.Settings
	docs     []model.Document
	sess     *session.Session
	saved    bool
	lastErr  string
}

func newWorkspace(userID int64, deps Config) (*Workspace, error) {
	w := &Workspace{
		userID: userID,
		owner:  strconv.FormatInt(userID, 10),
		repo:   deps.Repo,
		gen:    deps.Generator,
		eval:   deps.Evaluator,
		links:  deps.Links,
		speech: speech.NewQueue(),
		now:    deps.Now,
		stage:  StageUpload,
	}
	if w.now == nil {
		w.now = time.Now
	}

	docs, err := w.repo.ListDocuments(userID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	w.docs = docs
	st, err := w.repo.LoadUserSettings(userID)
	if err != nil {
		slog.Warn("failed to load saved settings, using defaults", "user_id", userID, "error", err)
	}
	w.settings = st
	return w, nil
}

// Speech returns the queue the exam session reads items into.
func (w *Workspace) Speech() *speech.Queue { return w.speech }

// AddFile validates and extracts an uploaded PDF and stores it. Files that
// are not PDFs are rejected with pdftext.ErrNotPDF. An image-only PDF is
// stored; the returned document then reports HasText false.
func (w *Workspace) AddFile(name string, data []byte) (model.Document, error) {
	name = filepath.Base(name)
	pages, err := pdftext.ExtractBytes(name, data)
	if err != nil && !errors.Is(err, pdftext.ErrNoText) {
		return model.Document{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageUpload && w.stage != StageSettings {
		return model.Document{}, ErrWrongStage
	}

	doc := model.Document{
		UserID:     w.userID,
		Name:       name,
		Pages:      pages,
		PageCount:  len(pages),
		Size:       int64(len(data)),
		UploadedAt: w.now(),
	}
	id, err := w.repo.InsertDocument(doc, data)
	if err != nil {
		return model.Document{}, fmt.Errorf("store document: %w", err)
	}
	doc.ID = id
	w.docs = append(w.docs, doc)
	if !doc.HasText() {
		slog.Warn("uploaded document has no text", "user_id", w.userID, "name", name)
	}
	return doc, nil
}

// RemoveFile deletes an uploaded document. Removing the last document with
// text returns the workspace to the upload stage.
func (w *Workspace) RemoveFile(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageUpload && w.stage != StageSettings {
		return ErrWrongStage
	}
	if err := w.repo.DeleteDocument(w.userID, id); err != nil {
		return err
	}
	for i, d := range w.docs {
		if d.ID == id {
			w.docs = append(w.docs[:i], w.docs[i+1:]...)
			break
		}
	}
	if w.checkText() != nil {
		w.stage = StageUpload
	}
	return nil
}

// Documents returns the uploaded documents in upload order.
func (w *Workspace) Documents() []model.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Document(nil), w.docs...)
}

// Corpus returns the aggregated text of all uploaded documents.
func (w *Workspace) Corpus() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.corpus()
}

// Documents without text are left out of the corpus.
func (w *Workspace) corpus() string {
	sources := make([]corpus.Source, 0, len(w.docs))
	for _, d := range w.docs {
		if !d.HasText() {
			continue
		}
		sources = append(sources, corpus.Source{Name: d.Name, Pages: d.Pages})
	}
	return corpus.Build(sources)
}

// Distribution returns how total items would be spread across the
// documents. It is empty with fewer than two documents.
func (w *Workspace) Distribution(total int) []corpus.Entry {
	return corpus.ComputeDistribution(w.Corpus(), total)
}

func (w *Workspace) checkText() error {
	if len(w.docs) == 0 {
		return ErrNoDocuments
	}
	for _, d := range w.docs {
		if d.HasText() {
			return nil
		}
	}
	return ErrNoText
}

// Continue moves from upload to settings. It fails while no document has
// extractable text.
func (w *Workspace) Continue() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.stage {
	case StageSettings:
		return nil
	case StageUpload:
	default:
		return ErrWrongStage
	}
	if err := w.checkText(); err != nil {
		return err
	}
	w.stage = StageSettings
	return nil
}

// Back returns from settings to upload.
func (w *Workspace) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageSettings {
		return ErrWrongStage
	}
	w.stage = StageUpload
	return nil
}

// Start validates st, generates items and opens an exam session. The lock
// is released while the generator runs so the workspace can report the
// generating stage. On failure the workspace returns to settings.
func (w *Workspace) Start(ctx context.Context, st model.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.stage != StageSettings {
		w.mu.Unlock()
		return ErrWrongStage
	}
	if err := w.checkText(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.settings = st
	w.stage = StageGenerating
	w.lastErr = ""
	text := w.corpus()
	w.mu.Unlock()

	if err := w.repo.SaveUserSettings(w.userID, st); err != nil {
		slog.Warn("failed to save settings", "user_id", w.userID, "error", err)
	}

	slog.Info("generating exam", "user_id", w.userID, "type", st.Type, "count", st.QuestionCount)
	items, err := w.gen.Generate(ctx, st, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		w.sess, err = session.New(items, session.Options{
			Settings:  st,
			Evaluator: w.eval,
			Speaker:   w.speech,
			Now:       w.now,
		})
	}
	if err != nil {
		slog.Error("exam generation failed", "user_id", w.userID, "error", err)
		w.stage = StageSettings
		w.lastErr = err.Error()
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	w.stage = StageExam
	w.saved = false
	slog.Info("exam started", "user_id", w.userID, "items", len(items))
	return nil
}

// Restart abandons the exam and returns to settings. Uploaded files are
// kept; pending speech and outstanding source links are dropped.
func (w *Workspace) Restart() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage == StageGenerating {
		return ErrWrongStage
	}
	w.reset()
	if w.checkText() == nil {
		w.stage = StageSettings
	} else {
		w.stage = StageUpload
	}
	return nil
}

func (w *Workspace) reset() {
	if w.sess != nil {
		w.sess.Close()
	}
	w.sess = nil
	w.saved = false
	w.lastErr = ""
	w.speech.Cancel()
	if n := w.links.Release(w.owner); n > 0 {
		slog.Debug("released source links", "user_id", w.userID, "count", n)
	}
}

// exam runs fn on the active session after applying any expired countdown.
// A session that has just finished is persisted.
func (w *Workspace) exam(fn func(s *session.Session) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageExam || w.sess == nil {
		return ErrWrongStage
	}
	w.sess.ExpireIfDue(w.now())
	err := fn(w.sess)
	w.finish()
	return err
}

func (w *Workspace) finish() {
	if w.saved || !w.sess.Finished() {
		return
	}
	names := make([]string, 0, len(w.docs))
	for _, d := range w.docs {
		names = append(names, d.Name)
	}
	r := model.Result{
		UserID:    w.userID,
		Settings:  w.sess.Settings(),
		Summary:   w.sess.Summary(),
		Documents: names,
		CreatedAt: w.now(),
	}
	if _, err := w.repo.InsertResult(r); err != nil {
		slog.Error("failed to save result", "user_id", w.userID, "error", err)
		return
	}
	w.saved = true
	slog.Info("exam finished", "user_id", w.userID, "grade", r.Summary.Grade, "passed", r.Summary.Passed)
}

// item runs fn when index still names the current item. A countdown that
// expired on the server moves the session on first, so input meant for the
// expired item is rejected with ErrStaleItem instead of landing on the next.
func (w *Workspace) item(index int, fn func(s *session.Session) error) error {
	return w.exam(func(s *session.Session) error {
		if !s.Finished() && s.Index() != index {
			return ErrStaleItem
		}
		return fn(s)
	})
}

// SubmitChoices answers test item index.
func (w *Workspace) SubmitChoices(index int, selected []int) (model.Outcome, error) {
	var o model.Outcome
	err := w.item(index, func(s *session.Session) (err error) {
		o, err = s.SubmitChoices(selected)
		return err
	})
	return o, err
}

// SubmitAnswer grades a typed answer to open item index.
func (w *Workspace) SubmitAnswer(ctx context.Context, index int, answer string) (model.Outcome, error) {
	var o model.Outcome
	err := w.item(index, func(s *session.Session) (err error) {
		o, err = s.SubmitAnswer(ctx, answer)
		return err
	})
	return o, err
}

// Reveal shows the hidden terms of cloze item index.
func (w *Workspace) Reveal(index int) (model.Outcome, error) {
	var o model.Outcome
	err := w.item(index, func(s *session.Session) (err error) {
		o, err = s.Reveal()
		return err
	})
	return o, err
}

// Advance moves past item index.
func (w *Workspace) Advance(index int) error {
	return w.item(index, func(s *session.Session) error {
		return s.Advance()
	})
}

// Timeout expires item index when it is still the pending current item and
// a countdown is running. A countdown that already expired on the server is
// not applied twice.
func (w *Workspace) Timeout(index int) error {
	return w.exam(func(s *session.Session) error {
		if s.Finished() || s.Index() != index {
			return nil
		}
		if _, ok := s.Deadline(); !ok {
			return nil
		}
		if _, err := s.Timeout(); err != nil && !errors.Is(err, session.ErrAlreadyAnswered) {
			return err
		}
		return nil
	})
}

// Summary returns the outcome report of the current exam.
func (w *Workspace) Summary() (model.Summary, error) {
	var sum model.Summary
	err := w.exam(func(s *session.Session) error {
		sum = s.Summary()
		return nil
	})
	return sum, err
}

// SourceLink issues a one-shot link token to the source page of the current
// item's outcome and returns it with the page number. It fails with
// ErrNoSource when the attribution names no uploaded document.
func (w *Workspace) SourceLink() (token string, page int, err error) {
	err = w.exam(func(s *session.Session) error {
		o, ok := s.LastOutcome()
		if !ok {
			return ErrNotAnswered
		}
		a, ok := corpus.ParseAttribution(o.SourceFile)
		if !ok {
			return ErrNoSource
		}
		names := make([]string, len(w.docs))
		for i, d := range w.docs {
			names[i] = d.Name
		}
		idx, ok := corpus.ResolveDocument(a.Name, names)
		if !ok {
			slog.Warn("source document not found", "user_id", w.userID, "source", o.SourceFile)
			return ErrNoSource
		}
		page = a.Page
		token = w.links.Acquire(w.owner, w.docs[idx].ID, page)
		return nil
	})
	return token, page, err
}

// Owner is the key the workspace's source links are issued under.
func (w *Workspace) Owner() string { return w.owner }

// Close drops the exam and every resource held for it.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}
