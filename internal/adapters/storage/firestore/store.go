package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mduval/tutor-agent/internal/domain"
)

const (
	sessionsCollection = "sessions"
	messagesCollection = "chat_history"
)

// Store implements domain.SessionStore and domain.MessageStore on two flat
// Firestore collections, "sessions" and "chat_history". Timestamps are
// server-assigned on insert.
type Store struct {
	client *firestore.Client
}

func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection(sessionsCollection)
}

func (s *Store) messagesCol() *firestore.CollectionRef {
	return s.client.Collection(messagesCollection)
}

// ─────────────────────────────────────────
// Firestore documents
// ─────────────────────────────────────────

type sessionDoc struct {
	Owner     string    `firestore:"owner"`
	Title     string    `firestore:"title"`
	ParentID  *string   `firestore:"parent_id"`
	CreatedAt time.Time `firestore:"created_at,serverTimestamp"`
}

type messageDoc struct {
	SessionID string    `firestore:"session_id"`
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	Timestamp time.Time `firestore:"timestamp,serverTimestamp"`
}

func toSession(id domain.SessionID, doc sessionDoc) *domain.Session {
	var parentID *domain.SessionID
	if doc.ParentID != nil {
		p := domain.SessionID(*doc.ParentID)
		parentID = &p
	}
	return &domain.Session{
		ID:        id,
		Owner:     domain.UserID(doc.Owner),
		Title:     doc.Title,
		ParentID:  parentID,
		CreatedAt: doc.CreatedAt,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	var parentID *string
	if session.ParentID != nil {
		v := string(*session.ParentID)
		parentID = &v
	}

	doc := sessionDoc{
		Owner:    string(session.Owner),
		Title:    session.Title,
		ParentID: parentID,
		// zero CreatedAt lets the serverTimestamp tag assign it
	}

	if _, err := s.sessionsCol().Doc(string(session.ID)).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionsCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}

	return toSession(id, doc), nil
}

func (s *Store) ListSessionsByOwner(ctx context.Context, owner domain.UserID) ([]*domain.Session, error) {
	q := s.sessionsCol().
		Where("owner", "==", string(owner)).
		OrderBy("created_at", firestore.Desc)
	return s.querySessions(ctx, q)
}

func (s *Store) FindSessionsByTitle(ctx context.Context, owner domain.UserID, title string) ([]*domain.Session, error) {
	q := s.sessionsCol().
		Where("owner", "==", string(owner)).
		Where("title", "==", title).
		OrderBy("created_at", firestore.Desc)
	return s.querySessions(ctx, q)
}

func (s *Store) querySessions(ctx context.Context, q firestore.Query) ([]*domain.Session, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore session query: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}

		out = append(out, toSession(domain.SessionID(snap.Ref.ID), doc))
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	// Delete is idempotent at the Firestore level; no existence check.
	// Messages of the session stay behind, matching the store contract.
	if _, err := s.sessionsCol().Doc(string(id)).Delete(ctx); err != nil {
		return fmt.Errorf("firestore DeleteSession: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		SessionID: string(msg.SessionID),
		Role:      string(msg.Role),
		Content:   msg.Content,
	}

	if _, err := s.messagesCol().Doc(string(msg.ID)).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) ListMessagesBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	q := s.messagesCol().
		Where("session_id", "==", string(sessionID)).
		OrderBy("timestamp", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListMessagesBySession: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, &domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			SessionID: sessionID,
			Role:      domain.Role(doc.Role),
			Content:   doc.Content,
			Timestamp: doc.Timestamp,
		})
	}
	return out, nil
}
