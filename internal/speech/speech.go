// Package speech provides the read-aloud capability used by exam sessions.
package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCanceled resolves utterances dropped by Cancel.
var ErrCanceled = errors.New("speech canceled")

// Utterance is a piece of text to read aloud.
type Utterance struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Speaker reads utterances aloud. The returned channel receives exactly one
// value, nil once playback has finished or the reason it did not, and is
// then closed.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) <-chan error
	Cancel()
}

func resolve(done chan error, err error) {
	done <- err
	close(done)
}

type pending struct {
	u        Utterance
	done     chan error
	resolved chan struct{}
}

func (p *pending) finish(err error) {
	resolve(p.done, err)
	close(p.resolved)
}

// Queue is the server-side Speaker. Utterances wait until the browser has
// fetched and played them and reports completion through Done.
type Queue struct {
	mu    sync.Mutex
	items []*pending
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Speak enqueues u and returns its completion future.
func (q *Queue) Speak(ctx context.Context, u Utterance) <-chan error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	p := &pending{u: u, done: make(chan error, 1), resolved: make(chan struct{})}

	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.Done(u.ID, ctx.Err())
			case <-p.resolved:
			}
		}()
	}
	return p.done
}

// Pending lists the utterances not yet completed, oldest first.
func (q *Queue) Pending() []Utterance {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Utterance, 0, len(q.items))
	for _, p := range q.items {
		out = append(out, p.u)
	}
	return out
}

// Get returns a pending utterance by ID.
func (q *Queue) Get(id string) (Utterance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.items {
		if p.u.ID == id {
			return p.u, true
		}
	}
	return Utterance{}, false
}

// Done resolves the utterance with err and removes it from the queue. It
// reports false if the ID is unknown or already resolved.
func (q *Queue) Done(id string, err error) bool {
	q.mu.Lock()
	var found *pending
	for i, p := range q.items {
		if p.u.ID == id {
			found = p
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	if found == nil {
		return false
	}
	found.finish(err)
	return true
}

// Cancel resolves every pending utterance with ErrCanceled.
func (q *Queue) Cancel() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, p := range items {
		p.finish(ErrCanceled)
	}
}

// Engine is a speech engine that can only be polled for its speaking state.
type Engine interface {
	Start(u Utterance) error
	Speaking() bool
	Stop()
}

// PollingSpeaker adapts an Engine without completion events to Speaker by
// polling Speaking at a fixed interval. It is a compatibility shim for
// engines that cannot report completion; prefer a Speaker that resolves
// directly. The server drives speech through Queue, so no engine shipped
// here uses it yet.
type PollingSpeaker struct {
	engine   Engine
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewPollingSpeaker creates a PollingSpeaker. A non-positive interval
// defaults to 100ms.
func NewPollingSpeaker(e Engine, interval time.Duration) *PollingSpeaker {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &PollingSpeaker{engine: e, interval: interval, stop: make(chan struct{})}
}

// Speak starts u on the engine and polls until it stops speaking.
func (s *PollingSpeaker) Speak(ctx context.Context, u Utterance) <-chan error {
	done := make(chan error, 1)
	if err := s.engine.Start(u); err != nil {
		resolve(done, err)
		return done
	}

	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.engine.Stop()
				resolve(done, ctx.Err())
				return
			case <-stop:
				resolve(done, ErrCanceled)
				return
			case <-ticker.C:
				if !s.engine.Speaking() {
					resolve(done, nil)
					return
				}
			}
		}
	}()
	return done
}

// Cancel stops the engine and resolves every in-flight utterance.
func (s *PollingSpeaker) Cancel() {
	s.mu.Lock()
	close(s.stop)
	s.stop = make(chan struct{})
	s.mu.Unlock()
	s.engine.Stop()
}

// Discard is a Speaker that completes immediately without output.
type Discard struct{}

// Speak resolves at once.
func (Discard) Speak(context.Context, Utterance) <-chan error {
	done := make(chan error, 1)
	resolve(done, nil)
	return done
}

// Cancel does nothing.
func (Discard) Cancel() {}
