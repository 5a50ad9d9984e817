package turn

import "github.com/mduval/tutor-agent/internal/domain"

// State is the interactive view a single client holds between turns: which
// session is active, its loaded messages, the cached Planner output, and any
// attached document text. Turn handlers take a State and return the updated
// one; nothing here is ambient or shared.
type State struct {
	Owner           domain.UserID
	ActiveSessionID domain.SessionID
	Messages        []*domain.Message
	Plan            string
	DocumentText    string
}

// NewState returns the post-login state for owner: no active session, no
// plan, no messages.
func NewState(owner domain.UserID) State {
	return State{Owner: owner}
}

// Active reports whether a session is selected.
func (s State) Active() bool {
	return s.ActiveSessionID != ""
}

// clearActive drops the active pointer and everything scoped to it.
func (s State) clearActive() State {
	s.ActiveSessionID = ""
	s.Messages = nil
	s.Plan = ""
	return s
}
