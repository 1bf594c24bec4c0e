package study

import (
	"fmt"
	"sync"
	"time"

	"github.com/pavelanni/studydeck/internal/session"
	"github.com/pavelanni/studydeck/internal/sourcelink"
)

// Config holds the dependencies shared by all workspaces.
type Config struct {
	Repo      Repository
	Generator Generator
	Evaluator session.Evaluator
	Links     *sourcelink.Registry
	Now       func() time.Time
}

// Manager keeps one workspace per user.
type Manager struct {
	cfg Config

	mu         sync.Mutex
	workspaces map[int64]*Workspace
}

// NewManager creates a Manager. A nil Links registry gets a fresh one.
func NewManager(cfg Config) *Manager {
	if cfg.Links == nil {
		cfg.Links = sourcelink.NewRegistry(0)
	}
	return &Manager{cfg: cfg, workspaces: make(map[int64]*Workspace)}
}

// Links returns the registry source links are issued from.
func (m *Manager) Links() *sourcelink.Registry { return m.cfg.Links }

// Get returns the workspace of a user, loading it on first use.
func (m *Manager) Get(userID int64) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workspaces[userID]; ok {
		return w, nil
	}
	w, err := newWorkspace(userID, m.cfg)
	if err != nil {
		return nil, fmt.Errorf("open workspace for user %d: %w", userID, err)
	}
	m.workspaces[userID] = w
	return w, nil
}

// Drop closes and forgets a user's workspace. Uploaded files stay stored.
func (m *Manager) Drop(userID int64) {
	m.mu.Lock()
	w, ok := m.workspaces[userID]
	delete(m.workspaces, userID)
	m.mu.Unlock()
	if ok {
		w.Close()
	}
}

// Len returns the number of open workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}
