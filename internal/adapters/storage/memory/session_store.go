package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mduval/tutor-agent/internal/domain"
)

// SessionStore is an in-memory domain.SessionStore for dev and tests. It
// honors the same ordering contract as the Firestore store: listings come
// back newest CreatedAt first, insertion order breaking ties.
type SessionStore struct {
	mu       sync.RWMutex
	order    []domain.SessionID
	sessions map[domain.SessionID]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}

	cp := *session
	s.sessions[session.ID] = &cp
	s.order = append(s.order, session.ID)
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	cp := *sess
	return &cp, nil
}

func (s *SessionStore) ListSessionsByOwner(ctx context.Context, owner domain.UserID) ([]*domain.Session, error) {
	return s.list(owner, func(*domain.Session) bool { return true })
}

func (s *SessionStore) FindSessionsByTitle(ctx context.Context, owner domain.UserID, title string) ([]*domain.Session, error) {
	return s.list(owner, func(sess *domain.Session) bool { return sess.Title == title })
}

func (s *SessionStore) list(owner domain.UserID, keep func(*domain.Session) bool) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Session
	// newest insertion first, then a stable sort by CreatedAt desc
	for i := len(s.order) - 1; i >= 0; i-- {
		sess, ok := s.sessions[s.order[i]]
		if !ok || sess.Owner != owner || !keep(sess) {
			continue
		}
		cp := *sess
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *SessionStore) DeleteSession(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}
