package terminal

import (
	"fmt"
	"sync"

	"github.com/hydraterm/hydraterm/internal/apperr"
	"github.com/hydraterm/hydraterm/terminal/models"
)

var ErrNotFound = fmt.Errorf("session %w", apperr.ErrNotFound)

// Repository keeps connected merchant sessions in memory for the lifetime
// of the process.
type Repository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewRepository() *Repository {
	return &Repository{
		sessions: make(map[string]*models.Session),
	}
}

func (r *Repository) CreateSession(session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	r.sessions[session.ID] = session
	return nil
}

// GetSession returns a copy of the stored session.
func (r *Repository) GetSession(id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *Repository) SetRequest(id string, req models.MerchantRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	req = req.Clone()
	s.Request = &req
	return nil
}

func (r *Repository) DeleteSession(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *Repository) CountSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
