package domain

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by stores for reads of missing or deleted
// sessions. Callers must treat it as "no active session", not as a crash.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore defines session persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	// ListSessionsByOwner returns the owner's sessions, newest CreatedAt first.
	ListSessionsByOwner(ctx context.Context, owner UserID) ([]*Session, error)
	// FindSessionsByTitle narrows the listing to an exact title, same order.
	FindSessionsByTitle(ctx context.Context, owner UserID, title string) ([]*Session, error)
	DeleteSession(ctx context.Context, id SessionID) error
}

// MessageStore defines message persistence.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	// ListMessagesBySession returns the session's messages, oldest first.
	ListMessagesBySession(ctx context.Context, sessionID SessionID) ([]*Message, error)
}

// PersonaGateway is the uniform interface to the five model-backed tutoring
// roles. Each call is single-shot and stateless between calls except for the
// history the caller supplies. Implementations absorb backend quota failures
// and unknown-model rejections into human-readable reply text; callers do
// not distinguish a degraded reply from a real one.
type PersonaGateway interface {
	// Plan asks the Planner for a numbered study outline for a fresh topic.
	Plan(ctx context.Context, goal, documentText string) (string, error)
	// Explain asks the Explainer to answer the current question, steered by
	// the cached plan (or a placeholder when no plan exists).
	Explain(ctx context.Context, history []*Message, question, plan string) (string, error)
	// Quiz asks the Examiner for a short comprehension check.
	Quiz(ctx context.Context, history []*Message) (string, error)
	// Encourage asks the Coach for method advice and motivation.
	Encourage(ctx context.Context, history []*Message) (string, error)
	// Summarize asks the Scribe for a revision sheet or a fusion recap.
	Summarize(ctx context.Context, history []*Message, mode SummaryMode) (string, error)
}
