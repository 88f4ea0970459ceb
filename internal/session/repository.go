package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
)

// Repository persists sessions. Update runs fn against the stored session and
// writes the result back atomically; an error from fn aborts the write.
// DeleteExpired removes sessions last updated before the cutoff and reports
// how many were removed.
type Repository interface {
	Create(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// InMemoryRepository is used for tests and single-instance deployments.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewInMemoryRepository(seed ...Session) *InMemoryRepository {
	repo := &InMemoryRepository{sessions: make(map[string]Session, len(seed))}
	for _, s := range seed {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (r *InMemoryRepository) Create(_ context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return Session{}, ErrExists
	}
	r.sessions[s.ID] = clone(s)
	return s, nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return clone(s), nil
}

func (r *InMemoryRepository) Update(_ context.Context, id string, fn func(*Session) error) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s = clone(s)
	if err := fn(&s); err != nil {
		return Session{}, err
	}
	r.sessions[id] = s
	return clone(s), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *InMemoryRepository) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(before) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many sessions are stored.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// clone copies the slices and maps a caller could otherwise mutate behind the lock.
func clone(s Session) Session {
	if s.Dashboard.Meals != nil {
		meals := make([]recommendation.Meal, len(s.Dashboard.Meals))
		copy(meals, s.Dashboard.Meals)
		s.Dashboard.Meals = meals
	}
	if s.Dashboard.Pending != nil {
		pending := make(map[int]int, len(s.Dashboard.Pending))
		for k, v := range s.Dashboard.Pending {
			pending[k] = v
		}
		s.Dashboard.Pending = pending
	}
	if s.Height != nil {
		h := *s.Height
		s.Height = &h
	}
	if s.Weight != nil {
		w := *s.Weight
		s.Weight = &w
	}
	return s
}
