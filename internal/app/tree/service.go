package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mduval/tutor-agent/internal/domain"
	"github.com/mduval/tutor-agent/internal/observability"
)

var (
	ErrEmptyTitle = errors.New("session title is required")
	// ErrOwnerMismatch is returned when a child session names a parent that
	// belongs to a different owner.
	ErrOwnerMismatch = errors.New("parent session belongs to a different owner")
)

// Service owns session identity and parent linkage. Addressing policy is
// stable-id navigation: Create always allocates a fresh id and duplicate
// titles under the same parent are permitted.
type Service struct {
	sessions domain.SessionStore
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides session id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(sessions domain.SessionStore, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a new session for owner. When parentID is non-nil the
// parent must exist and belong to the same owner; the linkage is fixed for
// the life of the session.
func (s *Service) Create(ctx context.Context, owner domain.UserID, title string, parentID *domain.SessionID) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	log := observability.LoggerFromContext(ctx).With("owner", owner, "title", title)

	if parentID != nil {
		parent, err := s.sessions.GetSession(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("resolving parent %s: %w", *parentID, err)
		}
		if parent.Owner != owner {
			return nil, ErrOwnerMismatch
		}
	}

	session := &domain.Session{
		ID:        domain.SessionID(s.newID()),
		Owner:     owner,
		Title:     title,
		ParentID:  parentID,
		CreatedAt: s.now().UTC(),
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	log.Info("session created", "session_id", session.ID, "root", session.Root())
	return session, nil
}

// List returns the owner's sessions, newest first.
func (s *Service) List(ctx context.Context, owner domain.UserID) ([]*domain.Session, error) {
	return s.sessions.ListSessionsByOwner(ctx, owner)
}

// FindByTitle returns the owner's sessions with an exact title, newest first.
func (s *Service) FindByTitle(ctx context.Context, owner domain.UserID, title string) ([]*domain.Session, error) {
	return s.sessions.FindSessionsByTitle(ctx, owner, title)
}

// Get resolves a session by id.
func (s *Service) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.sessions.GetSession(ctx, id)
}

// Delete removes the session record. Children are neither reparented nor
// deleted; they stay in storage and drop out of the rendered forest.
func (s *Service) Delete(ctx context.Context, id domain.SessionID) error {
	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info("session deleted", "session_id", id)
	return nil
}
