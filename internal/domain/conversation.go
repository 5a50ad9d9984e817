package domain

// Session is a named study topic. A session with a ParentID is a sub-topic
// of another session owned by the same user; sessions form a forest.
// Identity and parent linkage are fixed at creation and never mutated.
type Session struct {
	ID        SessionID
	Owner     UserID
	Title     string
	ParentID  *SessionID
	CreatedAt Timestamp
}

// Root reports whether the session is a top-level topic.
func (s *Session) Root() bool {
	return s.ParentID == nil
}

// Message is one turn of a session's conversation. Messages are append-only
// and totally ordered by Timestamp within their session.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Content   string
	Timestamp Timestamp
}
