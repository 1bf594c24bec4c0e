// Package sourcelink hands out short-lived links to uploaded documents.
// A link is valid until it is opened once or its owner releases it.
package sourcelink

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Target is what a link points at.
type Target struct {
	Owner      string
	DocumentID int64
	Page       int
	IssuedAt   time.Time
}

// Registry tracks the outstanding links. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	mu      sync.Mutex
	links   map[string]Target
	byOwner map[string]map[string]struct{}
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry creates a registry. Links older than ttl stop resolving; a
// non-positive ttl keeps them until used or released.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		links:   make(map[string]Target),
		byOwner: make(map[string]map[string]struct{}),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Acquire issues a link token for a page of a document.
func (r *Registry) Acquire(owner string, docID int64, page int) string {
	token := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[token] = Target{Owner: owner, DocumentID: docID, Page: page, IssuedAt: r.now()}
	set, ok := r.byOwner[owner]
	if !ok {
		set = make(map[string]struct{})
		r.byOwner[owner] = set
	}
	set[token] = struct{}{}
	return token
}

// Resolve returns the target of token and revokes it.
func (r *Registry) Resolve(token string) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.links[token]
	if !ok {
		return Target{}, false
	}
	r.revoke(token, t.Owner)
	if r.ttl > 0 && r.now().Sub(t.IssuedAt) > r.ttl {
		return Target{}, false
	}
	return t, true
}

// Release revokes every link issued to owner and returns how many there
// were.
func (r *Registry) Release(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byOwner[owner]
	for token := range set {
		delete(r.links, token)
	}
	delete(r.byOwner, owner)
	return len(set)
}

// Len returns the number of outstanding links.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

func (r *Registry) revoke(token, owner string) {
	delete(r.links, token)
	if set, ok := r.byOwner[owner]; ok {
		delete(set, token)
		if len(set) == 0 {
			delete(r.byOwner, owner)
		}
	}
}
