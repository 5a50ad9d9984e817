package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mduval/tutor-agent/internal/app/clientstate"
	"github.com/mduval/tutor-agent/internal/app/tree"
	"github.com/mduval/tutor-agent/internal/app/turn"
	"github.com/mduval/tutor-agent/internal/auth"
	"github.com/mduval/tutor-agent/internal/domain"
	"github.com/mduval/tutor-agent/internal/observability"
)

type Server struct {
	auth   *auth.Authenticator
	tree   *tree.Service
	ctrl   *turn.Controller
	states *clientstate.Registry
}

func NewServer(authn *auth.Authenticator, treeSvc *tree.Service, ctrl *turn.Controller, states *clientstate.Registry) http.Handler {
	s := &Server{
		auth:   authn,
		tree:   treeSvc,
		ctrl:   ctrl,
		states: states,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	// /sessions            → GET: forest, POST: create
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}        → GET: session + messages, DELETE: remove
	// /sessions/{id}/select → POST: make active
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// Turn endpoints, all acting on the caller's active session.
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/specialist", s.handleSpecialist)
	mux.HandleFunc("/merge", s.handleMerge)
	mux.HandleFunc("/document", s.handleDocument)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type treeNodeResponse struct {
	Session  sessionResponse    `json:"session"`
	Children []treeNodeResponse `json:"children,omitempty"`
}

type stateResponse struct {
	ActiveSessionID string `json:"active_session_id,omitempty"`
	PlanCached      bool   `json:"plan_cached"`
	MessageCount    int    `json:"message_count"`
}

type createSessionRequest struct {
	Owner    string  `json:"owner"`
	Title    string  `json:"title"`
	ParentID *string `json:"parent_id,omitempty"`
}

type chatRequest struct {
	Owner string `json:"owner"`
	Text  string `json:"text"`
}

type specialistRequest struct {
	Owner string `json:"owner"`
	Kind  string `json:"kind"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

type documentRequest struct {
	Owner string `json:"owner"`
	Text  string `json:"text"`
}

type turnResponse struct {
	Messages []messageResponse `json:"messages"`
	State    stateResponse     `json:"state"`
}

// ─────────────────────────────────────────────
// Auth and client state
// ─────────────────────────────────────────────

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if !s.auth.Verify(req.Username, req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	owner := domain.UserID(strings.ToLower(strings.TrimSpace(req.Username)))
	st := turn.NewState(owner)
	s.states.Put(owner, st)

	writeJSON(w, http.StatusOK, map[string]any{
		"username": string(owner),
		"state":    toStateResponse(st),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	s.states.Delete(domain.UserID(req.Owner))
	w.WriteHeader(http.StatusNoContent)
}

// requireState resolves the caller's client state; a missing entry means the
// client never logged in (or its view expired).
func (s *Server) requireState(w http.ResponseWriter, owner string) (turn.State, bool) {
	if owner == "" {
		badRequest(w, "owner is required")
		return turn.State{}, false
	}
	st, ok := s.states.Get(domain.UserID(owner))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return turn.State{}, false
	}
	return st, true
}

// ─────────────────────────────────────────────
// Session CRUD and tree
// ─────────────────────────────────────────────

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSessions(w, r)
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if _, ok := s.requireState(w, owner); !ok {
		return
	}

	var (
		sessions []*domain.Session
		err      error
	)
	if title := r.URL.Query().Get("title"); title != "" {
		sessions, err = s.tree.FindByTitle(r.Context(), domain.UserID(owner), title)
	} else {
		sessions, err = s.tree.List(r.Context(), domain.UserID(owner))
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	forest := tree.BuildForest(sessions)
	writeJSON(w, http.StatusOK, map[string]any{
		"roots": toTreeResponse(forest, forest.Roots),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	st, ok := s.requireState(w, req.Owner)
	if !ok {
		return
	}

	var parentID *domain.SessionID
	if req.ParentID != nil && *req.ParentID != "" {
		id := domain.SessionID(*req.ParentID)
		parentID = &id
	}

	session, err := s.tree.Create(r.Context(), domain.UserID(req.Owner), req.Title, parentID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	// Creating a session switches to it, with a fresh view and no plan.
	st, err = s.ctrl.Select(r.Context(), st, session.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	s.states.Put(st.Owner, st)

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": toSessionResponse(session),
		"state":   toStateResponse(st),
	})
}

func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		case http.MethodDelete:
			s.handleDeleteSession(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "select" && r.Method == http.MethodPost {
		s.handleSelectSession(w, r, id)
		return
	}

	http.NotFound(w, r)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	owner := r.URL.Query().Get("owner")
	if _, ok := s.requireState(w, owner); !ok {
		return
	}

	session, msgs, err := s.ctrl.Timeline(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if session.Owner != domain.UserID(owner) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":  toSessionResponse(session),
		"messages": toMessagesResponse(msgs),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	st, ok := s.requireState(w, r.URL.Query().Get("owner"))
	if !ok {
		return
	}

	st, err := s.ctrl.DeleteSession(r.Context(), st, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.states.Put(st.Owner, st)

	writeJSON(w, http.StatusOK, map[string]any{"state": toStateResponse(st)})
}

func (s *Server) handleSelectSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	st, ok := s.requireState(w, req.Owner)
	if !ok {
		return
	}

	st, err := s.ctrl.Select(r.Context(), st, id)
	// A stale id resets the active pointer; persist that before reporting.
	s.states.Put(st.Owner, st)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":    toStateResponse(st),
		"messages": toMessagesResponse(st.Messages),
	})
}

// ─────────────────────────────────────────────
// Turn endpoints
// ─────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	st, ok := s.requireState(w, req.Owner)
	if !ok {
		return
	}

	st, err := s.ctrl.HandleChat(r.Context(), st, req.Text)
	s.states.Put(st.Owner, st)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lastTurn(st, 2))
}

func (s *Server) handleSpecialist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req specialistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	st, ok := s.requireState(w, req.Owner)
	if !ok {
		return
	}

	st, err := s.ctrl.HandleSpecialist(r.Context(), st, domain.Specialist(req.Kind))
	s.states.Put(st.Owner, st)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lastTurn(st, 1))
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	st, ok := s.requireState(w, req.Owner)
	if !ok {
		return
	}

	st, err := s.ctrl.HandleMerge(r.Context(), st)
	s.states.Put(st.Owner, st)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":    toStateResponse(st),
		"messages": toMessagesResponse(st.Messages),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	st, ok := s.requireState(w, req.Owner)
	if !ok {
		return
	}

	st = s.ctrl.AttachDocument(st, req.Text)
	s.states.Put(st.Owner, st)

	writeJSON(w, http.StatusOK, map[string]any{"state": toStateResponse(st)})
}

// ─────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	var parentID *string
	if s.ParentID != nil {
		v := string(*s.ParentID)
		parentID = &v
	}
	return sessionResponse{
		ID:        string(s.ID),
		Owner:     string(s.Owner),
		Title:     s.Title,
		ParentID:  parentID,
		CreatedAt: s.CreatedAt,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toTreeResponse(f tree.Forest, list []*domain.Session) []treeNodeResponse {
	out := make([]treeNodeResponse, 0, len(list))
	for _, s := range list {
		out = append(out, treeNodeResponse{
			Session:  toSessionResponse(s),
			Children: toTreeResponse(f, f.ChildrenOf(s.ID)),
		})
	}
	return out
}

func toStateResponse(st turn.State) stateResponse {
	return stateResponse{
		ActiveSessionID: string(st.ActiveSessionID),
		PlanCached:      st.Plan != "",
		MessageCount:    len(st.Messages),
	}
}

// lastTurn returns the trailing n messages of the active view plus the state.
func lastTurn(st turn.State, n int) turnResponse {
	msgs := st.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return turnResponse{
		Messages: toMessagesResponse(msgs),
		State:    toStateResponse(st),
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, turn.ErrNoActiveSession),
		errors.Is(err, turn.ErrEmptyMessage),
		errors.Is(err, turn.ErrUnknownSpecialist),
		errors.Is(err, turn.ErrNoParent),
		errors.Is(err, tree.ErrEmptyTitle),
		errors.Is(err, tree.ErrOwnerMismatch):
		badRequest(w, err.Error())
	default:
		internalError(w, r, err)
	}
}

// ─────────────────────────────────────────────
// HTTP helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
