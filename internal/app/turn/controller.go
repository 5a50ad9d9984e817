package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mduval/tutor-agent/internal/app/tree"
	"github.com/mduval/tutor-agent/internal/domain"
	"github.com/mduval/tutor-agent/internal/observability"
)

// NoPlanPlaceholder is what the Explainer receives when no Planner output is
// cached for the active session.
const NoPlanPlaceholder = "Open context, no structured plan."

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrEmptyMessage    = errors.New("message text is required")
	// ErrNoParent is returned when merge is requested on a root session.
	ErrNoParent = errors.New("session has no parent to merge into")
	// ErrUnknownSpecialist is returned for an unrecognized trigger kind.
	ErrUnknownSpecialist = errors.New("unknown specialist")
)

var specialistLabels = map[domain.Specialist]string{
	domain.SpecialistQuiz:  "### **EXAMINER**",
	domain.SpecialistCoach: "### **COACH**",
	domain.SpecialistFiche: "### **SCRIBE**",
}

// Controller decides, per user turn, which persona is authoritative and
// applies the result. It owns the ephemeral plan cache carried in State.
type Controller struct {
	tree     *tree.Service
	messages domain.MessageStore
	gateway  domain.PersonaGateway
	now      func() time.Time
	newID    func() string

	// planRootOnly gates the Planner to the first message of root sessions;
	// sub-topics inherit structure from their parent and go straight to the
	// Explainer. Policy, not a platform constraint.
	planRootOnly bool
}

type Option func(*Controller)

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides message id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// WithPlannerForChildren lifts the root-only gate so sub-topics also get an
// initial plan.
func WithPlannerForChildren() Option {
	return func(c *Controller) { c.planRootOnly = false }
}

func NewController(treeSvc *tree.Service, messages domain.MessageStore, gateway domain.PersonaGateway, opts ...Option) *Controller {
	c := &Controller{
		tree:         treeSvc,
		messages:     messages,
		gateway:      gateway,
		now:          time.Now,
		newID:        uuid.NewString,
		planRootOnly: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Select makes a session the active one, loading its messages fresh and
// resetting the plan cache — even when reselecting the current session. A
// stale id clears the active pointer instead of failing hard.
func (c *Controller) Select(ctx context.Context, st State, id domain.SessionID) (State, error) {
	session, err := c.tree.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return st.clearActive(), domain.ErrSessionNotFound
		}
		return st, err
	}
	// A foreign session is indistinguishable from a missing one; the
	// caller's own view stays intact.
	if session.Owner != st.Owner {
		return st, domain.ErrSessionNotFound
	}

	msgs, err := c.messages.ListMessagesBySession(ctx, id)
	if err != nil {
		return st, fmt.Errorf("loading messages for %s: %w", id, err)
	}

	st.ActiveSessionID = id
	st.Messages = msgs
	st.Plan = ""
	return st, nil
}

// AttachDocument stores extracted document text on the client state for the
// Planner to use as context. The gateway bounds how much of it is sent.
func (c *Controller) AttachDocument(st State, text string) State {
	st.DocumentText = text
	return st
}

// HandleChat runs a plain chat turn: the user message is appended first (so
// it is persisted before any model call), then either the Planner (first
// stored message of a root session, nothing cached) or the Explainer
// produces the reply.
func (c *Controller) HandleChat(ctx context.Context, st State, text string) (State, error) {
	if !st.Active() {
		return st, ErrNoActiveSession
	}
	if strings.TrimSpace(text) == "" {
		return st, ErrEmptyMessage
	}

	session, err := c.tree.Get(ctx, st.ActiveSessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return st.clearActive(), domain.ErrSessionNotFound
		}
		return st, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"owner", st.Owner,
	)

	st, err = c.append(ctx, st, domain.RoleUser, text)
	if err != nil {
		log.Error("failed to append user message", "error", err)
		return st, err
	}

	var reply string
	if c.wantsPlan(st, session) {
		log.Info("dispatching to planner")
		reply, err = c.gateway.Plan(ctx, text, st.DocumentText)
		if err != nil {
			log.Error("planner failed", "error", err)
			return st, err
		}
		st.Plan = reply
	} else {
		plan := st.Plan
		if plan == "" {
			plan = NoPlanPlaceholder
		}
		// History excludes the message just appended; it travels separately
		// as the current turn's question.
		history := st.Messages[:len(st.Messages)-1]
		log.Info("dispatching to explainer", "history_len", len(history))
		reply, err = c.gateway.Explain(ctx, history, text, plan)
		if err != nil {
			log.Error("explainer failed", "error", err)
			return st, err
		}
	}

	st, err = c.append(ctx, st, domain.RoleAssistant, reply)
	if err != nil {
		log.Error("failed to append reply", "error", err)
		return st, err
	}

	log.Info("chat turn completed")
	return st, nil
}

// HandleSpecialist runs a one-shot persona over the full current history and
// appends its labeled output on the current session.
func (c *Controller) HandleSpecialist(ctx context.Context, st State, kind domain.Specialist) (State, error) {
	if !st.Active() {
		return st, ErrNoActiveSession
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", st.ActiveSessionID,
		"specialist", kind,
	)

	var (
		text string
		err  error
	)
	switch kind {
	case domain.SpecialistQuiz:
		text, err = c.gateway.Quiz(ctx, st.Messages)
	case domain.SpecialistCoach:
		text, err = c.gateway.Encourage(ctx, st.Messages)
	case domain.SpecialistFiche:
		text, err = c.gateway.Summarize(ctx, st.Messages, domain.SummaryFiche)
	default:
		return st, fmt.Errorf("%w: %q", ErrUnknownSpecialist, kind)
	}
	if err != nil {
		log.Error("specialist failed", "error", err)
		return st, err
	}

	st, err = c.append(ctx, st, domain.RoleAssistant, specialistLabels[kind]+"\n"+text)
	if err != nil {
		return st, err
	}

	log.Info("specialist turn completed")
	return st, nil
}

// HandleMerge publishes the active sub-topic's summary upward: the Scribe
// fuses the entire current history, the summary lands as an assistant
// message on the parent session, and the parent becomes active. The child's
// record and messages are left untouched.
//
// The two effects are separate store operations, summary first, so an
// interruption can at worst lose the context switch, never the summary.
func (c *Controller) HandleMerge(ctx context.Context, st State) (State, error) {
	if !st.Active() {
		return st, ErrNoActiveSession
	}

	session, err := c.tree.Get(ctx, st.ActiveSessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return st.clearActive(), domain.ErrSessionNotFound
		}
		return st, err
	}
	if session.ParentID == nil {
		return st, ErrNoParent
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"parent_id", *session.ParentID,
	)
	log.Info("merging sub-topic into parent")

	summary, err := c.gateway.Summarize(ctx, st.Messages, domain.SummaryFusion)
	if err != nil {
		log.Error("fusion summary failed", "error", err)
		return st, err
	}

	content := fmt.Sprintf("**MODULE COMPLETE: %s**\n\n%s", session.Title, summary)
	msg := &domain.Message{
		ID:        domain.MessageID(c.newID()),
		SessionID: *session.ParentID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: c.now().UTC(),
	}
	if err := c.messages.AppendMessage(ctx, msg); err != nil {
		log.Error("failed to publish summary on parent", "error", err)
		return st, err
	}

	st, err = c.Select(ctx, st, *session.ParentID)
	if err != nil {
		return st, err
	}

	log.Info("merge completed")
	return st, nil
}

// Timeline returns a session and its full message history without touching
// the client state.
func (c *Controller) Timeline(ctx context.Context, id domain.SessionID) (*domain.Session, []*domain.Message, error) {
	session, err := c.tree.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := c.messages.ListMessagesBySession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return session, msgs, nil
}

// DeleteSession removes one of the caller's sessions. Deleting the active
// session clears the active pointer; deleting any other session leaves the
// state untouched.
func (c *Controller) DeleteSession(ctx context.Context, st State, id domain.SessionID) (State, error) {
	session, err := c.tree.Get(ctx, id)
	if err != nil {
		return st, err
	}
	if session.Owner != st.Owner {
		return st, domain.ErrSessionNotFound
	}
	if err := c.tree.Delete(ctx, id); err != nil {
		return st, err
	}
	if st.ActiveSessionID == id {
		st = st.clearActive()
	}
	return st, nil
}

func (c *Controller) wantsPlan(st State, session *domain.Session) bool {
	if len(st.Messages) > 1 || st.Plan != "" {
		return false
	}
	if c.planRootOnly && !session.Root() {
		return false
	}
	return true
}

func (c *Controller) append(ctx context.Context, st State, role domain.Role, content string) (State, error) {
	msg := &domain.Message{
		ID:        domain.MessageID(c.newID()),
		SessionID: st.ActiveSessionID,
		Role:      role,
		Content:   content,
		Timestamp: c.now().UTC(),
	}
	if err := c.messages.AppendMessage(ctx, msg); err != nil {
		return st, err
	}
	st.Messages = append(st.Messages[:len(st.Messages):len(st.Messages)], msg)
	return st, nil
}
