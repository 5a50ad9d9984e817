package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/mduval/tutor-agent/internal/adapters/http"
	"github.com/mduval/tutor-agent/internal/adapters/llm"
	"github.com/mduval/tutor-agent/internal/adapters/storage/memory"
	"github.com/mduval/tutor-agent/internal/app/clientstate"
	"github.com/mduval/tutor-agent/internal/app/tree"
	"github.com/mduval/tutor-agent/internal/app/turn"
	"github.com/mduval/tutor-agent/internal/auth"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	sessions := memory.NewSessionStore()
	messages := memory.NewMessageStore()
	gateway := llm.NewMockGateway()
	treeSvc := tree.NewService(sessions)
	ctrl := turn.NewController(treeSvc, messages, gateway)
	states := clientstate.NewRegistry(time.Hour)
	authn := auth.New(map[string]string{"alice": "s3cret", "bob": "hunter2"})

	return httpadapter.NewServer(authn, treeSvc, ctrl, states)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func login(t *testing.T, h http.Handler) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"username": "Alice",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func loginAs(t *testing.T, h http.Handler, username, password string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func createSessionFor(t *testing.T, h http.Handler, owner, title string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/sessions", map[string]any{
		"owner": owner,
		"title": title,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Session.ID)
	return resp.Session.ID
}

func createSession(t *testing.T, h http.Handler, title string, parentID string) string {
	t.Helper()

	body := map[string]any{"owner": "alice", "title": title}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	rec := doJSON(t, h, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Session.ID)
	return resp.Session.ID
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEndpointsRequireLogin(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]string{
		"owner": "alice",
		"text":  "hello",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSessionAndChatFlow(t *testing.T) {
	h := newTestServer(t)
	login(t, h)

	id := createSession(t, h, "Linear algebra", "")

	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]string{
		"owner": "alice",
		"text":  "I want to learn matrices",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		State struct {
			ActiveSessionID string `json:"active_session_id"`
			PlanCached      bool   `json:"plan_cached"`
		} `json:"state"`
	}
	decode(t, rec, &resp)

	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "assistant", resp.Messages[1].Role)
	assert.Equal(t, id, resp.State.ActiveSessionID)
	// first message of a root session goes through the Planner
	assert.True(t, resp.State.PlanCached)
}

func TestSessionTreeListing(t *testing.T) {
	h := newTestServer(t)
	login(t, h)

	rootID := createSession(t, h, "Linear algebra", "")
	createSession(t, h, "Determinants", rootID)

	rec := doJSON(t, h, http.MethodGet, "/sessions?owner=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Roots []struct {
			Session struct {
				ID string `json:"id"`
			} `json:"session"`
			Children []struct {
				Session struct {
					Title string `json:"title"`
				} `json:"session"`
			} `json:"children"`
		} `json:"roots"`
	}
	decode(t, rec, &resp)

	require.Len(t, resp.Roots, 1)
	assert.Equal(t, rootID, resp.Roots[0].Session.ID)
	require.Len(t, resp.Roots[0].Children, 1)
	assert.Equal(t, "Determinants", resp.Roots[0].Children[0].Session.Title)
}

func TestMergeFlow(t *testing.T) {
	h := newTestServer(t)
	login(t, h)

	rootID := createSession(t, h, "Linear algebra", "")
	createSession(t, h, "Determinants", rootID)

	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]string{
		"owner": "alice",
		"text":  "Explain cofactors",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/merge", map[string]string{"owner": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State struct {
			ActiveSessionID string `json:"active_session_id"`
		} `json:"state"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, rec, &resp)

	assert.Equal(t, rootID, resp.State.ActiveSessionID)
	require.Len(t, resp.Messages, 1)
	assert.Contains(t, resp.Messages[0].Content, "Determinants")
}

func TestSpecialistEndpoint(t *testing.T) {
	h := newTestServer(t)
	login(t, h)
	createSession(t, h, "Linear algebra", "")

	rec := doJSON(t, h, http.MethodPost, "/specialist", map[string]string{
		"owner": "alice",
		"kind":  "quiz",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Messages, 1)
	assert.Contains(t, resp.Messages[0].Content, "EXAMINER")
}

func TestSpecialistRejectsUnknownKind(t *testing.T) {
	h := newTestServer(t)
	login(t, h)
	createSession(t, h, "Linear algebra", "")

	rec := doJSON(t, h, http.MethodPost, "/specialist", map[string]string{
		"owner": "alice",
		"kind":  "juggler",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteActiveSessionClearsState(t *testing.T) {
	h := newTestServer(t)
	login(t, h)

	id := createSession(t, h, "Linear algebra", "")

	rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/sessions/%s?owner=alice", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State struct {
			ActiveSessionID string `json:"active_session_id"`
		} `json:"state"`
	}
	decode(t, rec, &resp)
	assert.Empty(t, resp.State.ActiveSessionID)
}

func TestSelectStaleSessionReturnsNotFound(t *testing.T) {
	h := newTestServer(t)
	login(t, h)
	createSession(t, h, "Linear algebra", "")

	rec := doJSON(t, h, http.MethodPost, "/sessions/ghost/select", map[string]string{"owner": "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForeignSessionsAreMasked(t *testing.T) {
	h := newTestServer(t)
	loginAs(t, h, "bob", "hunter2")
	bobsID := createSessionFor(t, h, "bob", "Chemistry")

	login(t, h)
	createSessionFor(t, h, "alice", "Linear algebra")

	// another user's session reads, selects, and deletes like a missing one
	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/sessions/%s?owner=alice", bobsID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/sessions/%s/select", bobsID), map[string]string{"owner": "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/sessions/%s?owner=alice", bobsID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// bob's session and timeline are untouched
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/sessions/%s?owner=bob", bobsID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocumentAttachment(t *testing.T) {
	h := newTestServer(t)
	login(t, h)
	createSession(t, h, "Linear algebra", "")

	rec := doJSON(t, h, http.MethodPost, "/document", map[string]string{
		"owner": "alice",
		"text":  "chapter one ...",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the document context flows into the Planner on the next chat turn;
	// covered in depth by the controller tests
	rec = doJSON(t, h, http.MethodPost, "/chat", map[string]string{
		"owner": "alice",
		"text":  "I want to learn matrices",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}
