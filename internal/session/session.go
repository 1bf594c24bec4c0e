// Package session implements the exam state machines for test, cloze and
// open-answer modes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/studydeck/internal/cloze"
	"github.com/pavelanni/studydeck/internal/model"
	"github.com/pavelanni/studydeck/internal/speech"
)

var (
	ErrNoItems         = errors.New("session has no items")
	ErrFinished        = errors.New("session finished")
	ErrAlreadyAnswered = errors.New("item already answered")
	ErrWrongMode       = errors.New("operation not valid for this exam type")
	ErrInvalidChoice   = errors.New("invalid option selection")
)

// EvaluationFallback is the feedback recorded when the grader fails.
const EvaluationFallback = "The answer could not be evaluated."

// Evaluator grades open answers.
type Evaluator interface {
	Evaluate(ctx context.Context, item model.OpenItem, answer string, benevolence model.Benevolence) (model.Evaluation, error)
}

// ItemState is the sub-state of the current item.
type ItemState string

const (
	ItemUnanswered ItemState = "unanswered"
	ItemAnswered   ItemState = "answered"
	ItemHidden     ItemState = "hidden"
	ItemRevealed   ItemState = "revealed"
)

// Options configures a Session.
type Options struct {
	Settings  model.Settings
	Evaluator Evaluator      // required for open mode
	Speaker   speech.Speaker // nil disables read-aloud
	Now       func() time.Time
}

// Session walks through a fixed list of items. It is not safe for
// concurrent use; callers serialize access.
type Session struct {
	settings model.Settings
	items    []model.Item
	eval     Evaluator
	speaker  speech.Speaker
	now      func() time.Time

	index    int
	finished bool
	answered bool
	score    float64
	outcomes []model.Outcome
	deadline time.Time
}

// New starts a session on the first item.
func New(items []model.Item, opts Options) (*Session, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for i, it := range items {
		if it.Kind != opts.Settings.Type {
			return nil, fmt.Errorf("item %d is %s, session is %s: %w", i, it.Kind, opts.Settings.Type, ErrWrongMode)
		}
	}
	if opts.Settings.Type == model.TypeOpen && opts.Evaluator == nil {
		return nil, errors.New("open sessions need an evaluator")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Speaker == nil {
		opts.Speaker = speech.Discard{}
	}

	s := &Session{
		settings: opts.Settings,
		items:    slices.Clone(items),
		eval:     opts.Evaluator,
		speaker:  opts.Speaker,
		now:      opts.Now,
	}
	s.enterItem()
	return s, nil
}

// Settings returns the settings the session was created with.
func (s *Session) Settings() model.Settings { return s.settings }

// Index returns the position of the current item.
func (s *Session) Index() int { return s.index }

// Len returns the number of items.
func (s *Session) Len() int { return len(s.items) }

// Finished reports whether every item has been passed.
func (s *Session) Finished() bool { return s.finished }

// Score returns the accumulated raw score.
func (s *Session) Score() float64 { return s.score }

// Current returns the current item; ok is false once finished.
func (s *Session) Current() (model.Item, bool) {
	if s.finished {
		return model.Item{}, false
	}
	return s.items[s.index], true
}

// ItemState returns the sub-state of the current item.
func (s *Session) ItemState() ItemState {
	review := s.settings.Type == model.TypeCloze
	switch {
	case review && s.answered:
		return ItemRevealed
	case review:
		return ItemHidden
	case s.answered:
		return ItemAnswered
	default:
		return ItemUnanswered
	}
}

// LastOutcome returns the outcome recorded for the current item, if any.
func (s *Session) LastOutcome() (model.Outcome, bool) {
	if !s.answered || len(s.outcomes) == 0 {
		return model.Outcome{}, false
	}
	return s.outcomes[len(s.outcomes)-1], true
}

// Deadline returns the countdown deadline of the current item. ok is false
// when there is no time limit or the item is no longer pending.
func (s *Session) Deadline() (time.Time, bool) {
	if s.deadline.IsZero() {
		return time.Time{}, false
	}
	return s.deadline, true
}

// Remaining returns the time left on the countdown, zero when expired or
// when there is no countdown running.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.deadline.IsZero() || !now.Before(s.deadline) {
		return 0
	}
	return s.deadline.Sub(now)
}

func (s *Session) checkPending(mode model.ExamType) error {
	if s.finished {
		return ErrFinished
	}
	if s.settings.Type != mode {
		return ErrWrongMode
	}
	if s.answered {
		return ErrAlreadyAnswered
	}
	return nil
}

// SubmitChoices answers the current test item with the selected option
// indices. An empty selection is a valid, wrong answer.
func (s *Session) SubmitChoices(selected []int) (model.Outcome, error) {
	if err := s.checkPending(model.TypeTest); err != nil {
		return model.Outcome{}, err
	}
	item := s.items[s.index].Test
	sel := normalize(selected)
	if len(sel) > 1 && !s.settings.AllowMultipleCorrect {
		return model.Outcome{}, fmt.Errorf("%w: single choice item", ErrInvalidChoice)
	}
	var picked []string
	for _, i := range sel {
		if i < 0 || i >= len(item.Options) {
			return model.Outcome{}, fmt.Errorf("%w: option %d out of range", ErrInvalidChoice, i)
		}
		picked = append(picked, item.Options[i])
	}

	correct := IsCorrect(sel, item.CorrectIndices)
	o := s.newOutcome()
	o.UserAnswer = strings.Join(picked, "; ")
	o.Selected = sel
	o.Correct = correct
	o.Points = Points(correct, s.settings.NegativeMarking)
	o.Feedback = item.Explanation
	s.record(o)
	return o, nil
}

// SubmitAnswer grades a typed answer to the current open item. A grader
// failure is recorded as a zero score with fallback feedback.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (model.Outcome, error) {
	if err := s.checkPending(model.TypeOpen); err != nil {
		return model.Outcome{}, err
	}
	item := *s.items[s.index].Open
	answer = strings.TrimSpace(answer)

	o := s.newOutcome()
	o.UserAnswer = answer
	ev, err := s.eval.Evaluate(ctx, item, answer, s.settings.Benevolence)
	if err != nil {
		slog.Error("answer evaluation failed", "index", s.index, "error", err)
		ev = model.Evaluation{Score: 0, Feedback: EvaluationFallback}
	}
	o.Correct = ev.Score >= 1
	if o.Correct {
		o.Points = 1
	}
	o.Feedback = ev.Feedback
	s.record(o)
	return o, nil
}

// Reveal shows the hidden terms of the current cloze item.
func (s *Session) Reveal() (model.Outcome, error) {
	if err := s.checkPending(model.TypeCloze); err != nil {
		return model.Outcome{}, err
	}
	o := s.newOutcome()
	s.record(o)
	return o, nil
}

// Advance moves to the next item, or finishes the session after the last
// one. Advancing past a pending item skips it with zero credit.
func (s *Session) Advance() error {
	if s.finished {
		return ErrFinished
	}
	if !s.answered {
		s.record(s.newOutcome())
	}
	s.next()
	return nil
}

// Timeout records a zero-credit "timed out" outcome for the pending item and
// advances, as a skip would.
func (s *Session) Timeout() (model.Outcome, error) {
	if s.finished {
		return model.Outcome{}, ErrFinished
	}
	if s.answered {
		return model.Outcome{}, ErrAlreadyAnswered
	}
	o := s.newOutcome()
	o.UserAnswer = model.TimedOutAnswer
	o.TimedOut = true
	s.record(o)
	s.next()
	return o, nil
}

// ExpireIfDue fires Timeout when the countdown has run out at now. It
// reports whether a timeout was recorded.
func (s *Session) ExpireIfDue(now time.Time) bool {
	if s.finished || s.answered || s.deadline.IsZero() || now.Before(s.deadline) {
		return false
	}
	_, err := s.Timeout()
	return err == nil
}

// Summary reports the outcomes recorded so far and the resulting grade.
func (s *Session) Summary() model.Summary {
	sum := model.Summary{
		Type:     s.settings.Type,
		Total:    len(s.items),
		Score:    s.score,
		Outcomes: slices.Clone(s.outcomes),
	}
	if s.settings.Type != model.TypeCloze {
		sum.Graded = true
		sum.Grade = Grade(s.score, len(s.items))
		sum.Passed = Passed(sum.Grade)
	}
	return sum
}

// Close cancels any speech still pending.
func (s *Session) Close() {
	s.speaker.Cancel()
}

func (s *Session) newOutcome() model.Outcome {
	it := s.items[s.index]
	return model.Outcome{
		Index:      s.index,
		Kind:       it.Kind,
		Prompt:     it.Prompt(),
		Expected:   it.Expected(),
		SourceFile: it.SourceFile,
	}
}

func (s *Session) record(o model.Outcome) {
	s.outcomes = append(s.outcomes, o)
	s.score += o.Points
	s.answered = true
	s.deadline = time.Time{}
}

func (s *Session) next() {
	s.speaker.Cancel()
	if s.index+1 >= len(s.items) {
		s.finished = true
		s.deadline = time.Time{}
		return
	}
	s.index++
	s.enterItem()
}

func (s *Session) enterItem() {
	s.answered = false
	s.deadline = time.Time{}
	if s.settings.TimeLimit > 0 {
		s.deadline = s.now().Add(time.Duration(s.settings.TimeLimit) * time.Second)
	}
	if s.settings.AutoRead {
		text := announcement(s.items[s.index])
		if text != "" {
			// Completion is not awaited; advancing cancels what is still playing.
			_ = s.speaker.Speak(context.Background(), speech.Utterance{Text: text, Voice: s.settings.VoiceURI})
		}
	}
}

// announcement is the text read aloud when an item is shown.
func announcement(it model.Item) string {
	switch it.Kind {
	case model.TypeTest:
		if it.Test == nil {
			return ""
		}
		parts := append([]string{it.Test.Question}, it.Test.Options...)
		return strings.Join(parts, ". ")
	case model.TypeCloze:
		if it.Cloze == nil {
			return ""
		}
		// Read the sentence with its blanks, not the answer.
		return cloze.Mask(cloze.Split(it.Cloze.FullText, it.Cloze.HiddenWords), "...")
	default:
		return it.Prompt()
	}
}
