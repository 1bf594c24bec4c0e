package study

import (
	"time"

	"github.com/pavelanni/studydeck/internal/cloze"
	"github.com/pavelanni/studydeck/internal/model"
	"github.com/pavelanni/studydeck/internal/session"
)

// State is what the client renders for a workspace.
type State struct {
	Stage     Stage          `json:"stage"`
	Settings  model.Settings `json:"settings"`
	Documents []DocumentView `json:"documents"`
	Error     string         `json:"error,omitempty"`
	Exam      *ExamState     `json:"exam,omitempty"`
}

// DocumentView is an uploaded document without its text.
type DocumentView struct {
	model.Document
	Readable bool `json:"has_text"`
}

// ExamState describes the running exam. Answers are only included once the
// current item has been answered or revealed.
type ExamState struct {
	Index     int               `json:"index"`
	Total     int               `json:"total"`
	Finished  bool              `json:"finished"`
	ItemState session.ItemState `json:"item_state"`
	Score     float64           `json:"score"`
	Item      *ItemView         `json:"item,omitempty"`
	Outcome   *model.Outcome    `json:"outcome,omitempty"`
	Deadline  *time.Time        `json:"deadline,omitempty"`
	Remaining int               `json:"remaining_seconds,omitempty"`
}

// ItemView is the client-safe rendering of an item.
type ItemView struct {
	Kind            model.ExamType  `json:"kind"`
	Question        string          `json:"question,omitempty"`
	Options         []string        `json:"options,omitempty"`
	MultipleCorrect bool            `json:"multiple_correct,omitempty"`
	CorrectIndices  []int           `json:"correct_indices,omitempty"`
	Explanation     string          `json:"explanation,omitempty"`
	SourceQuote     string          `json:"source_quote,omitempty"`
	Masked          string          `json:"masked,omitempty"`
	Blanks          int             `json:"blanks,omitempty"`
	Segments        []cloze.Segment `json:"segments,omitempty"`
	ModelAnswer     string          `json:"model_answer,omitempty"`
	SourceFile      string          `json:"source_file,omitempty"`
}

// State returns a snapshot of the workspace. A countdown that has run out is
// applied first.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := State{
		Stage:     w.stage,
		Settings:  w.settings,
		Documents: make([]DocumentView, 0, len(w.docs)),
		Error:     w.lastErr,
	}
	for _, d := range w.docs {
		st.Documents = append(st.Documents, DocumentView{Document: d, Readable: d.HasText()})
	}
	if w.stage == StageExam && w.sess != nil {
		now := w.now()
		w.sess.ExpireIfDue(now)
		w.finish()
		st.Exam = examState(w.sess, now)
	}
	return st
}

func examState(s *session.Session, now time.Time) *ExamState {
	es := &ExamState{
		Index:     s.Index(),
		Total:     s.Len(),
		Finished:  s.Finished(),
		ItemState: s.ItemState(),
		Score:     s.Score(),
	}
	if es.Finished {
		return es
	}
	if dl, ok := s.Deadline(); ok {
		es.Deadline = &dl
		es.Remaining = int(s.Remaining(now).Round(time.Second) / time.Second)
	}
	answered := false
	if o, ok := s.LastOutcome(); ok {
		if !s.Settings().ShowSourceFile {
			o.SourceFile = ""
		}
		es.Outcome = &o
		answered = true
	}
	if it, ok := s.Current(); ok {
		es.Item = itemView(it, answered, s.Settings())
	}
	return es
}

func itemView(it model.Item, answered bool, st model.Settings) *ItemView {
	v := &ItemView{Kind: it.Kind}
	switch it.Kind {
	case model.TypeTest:
		v.Question = it.Test.Question
		v.Options = it.Test.Options
		v.MultipleCorrect = st.AllowMultipleCorrect
		if answered {
			v.CorrectIndices = it.Test.CorrectIndices
			v.Explanation = it.Test.Explanation
			v.SourceQuote = it.Test.SourceQuote
		}
	case model.TypeCloze:
		segs := cloze.Split(it.Cloze.FullText, it.Cloze.HiddenWords)
		v.Masked = cloze.Mask(segs, "")
		v.Blanks = cloze.HiddenCount(segs)
		if answered {
			v.Segments = segs
		}
	case model.TypeOpen:
		v.Question = it.Open.Question
		if answered {
			v.ModelAnswer = it.Open.ModelAnswer
		}
	}
	if answered && st.ShowSourceFile {
		v.SourceFile = it.SourceFile
	}
	return v
}
