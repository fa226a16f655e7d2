// Package session keeps the signed-in user's bearer token. A Manager is
// created once per process and handed to whatever needs the token.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"clinic-booking/internal/model"
)

var ErrNoSession = errors.New("not signed in")

type Session struct {
	Token    string     `json:"token"`
	UserID   string     `json:"userId"`
	Role     model.Role `json:"role"`
	DoctorID string     `json:"doctorId,omitempty"`
}

// Store persists the session between runs. Load returns ErrNoSession when
// nothing is stored.
type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

type Manager struct {
	store Store

	mu     sync.Mutex
	cur    *Session
	loaded bool
}

func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store}
}

// Begin installs a new session after login. Only doctors keep a DoctorID.
func (m *Manager) Begin(ctx context.Context, s Session) error {
	if s.Token == "" {
		return fmt.Errorf("session: empty token")
	}
	if s.Role != model.RoleDoctor {
		s.DoctorID = ""
	} else if s.DoctorID == "" {
		s.DoctorID = s.UserID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(ctx, &s); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	m.cur, m.loaded = &s, true
	return nil
}

// Current returns a copy of the active session or ErrNoSession.
func (m *Manager) Current(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		s, err := m.store.Load(ctx)
		if err != nil && !errors.Is(err, ErrNoSession) {
			return Session{}, fmt.Errorf("session: load: %w", err)
		}
		m.cur, m.loaded = s, true
	}
	if m.cur == nil || m.cur.Token == "" {
		return Session{}, ErrNoSession
	}
	return *m.cur, nil
}

// End clears the session in memory and in the store.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur, m.loaded = nil, true
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu sync.Mutex
	s  *Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, ErrNoSession
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.s = &cp
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
