package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/agent"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/store"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// scriptedSession feeds canned replies to the agent loop.
type scriptedSession struct {
	replies []*llm.Reply
	opened  *int
}

func (s *scriptedSession) next() (*llm.Reply, error) {
	if len(s.replies) == 0 {
		return &llm.Reply{TextFragments: []string{"ok"}}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptedSession) Send(ctx context.Context, text string) (*llm.Reply, error) {
	return s.next()
}

func (s *scriptedSession) SendFunctionResponse(ctx context.Context, name string, response map[string]any) (*llm.Reply, error) {
	return s.next()
}

type testEnv struct {
	server  *httptest.Server
	store   *store.Store
	token   string
	userID  string
	session *scriptedSession
	opens   int
}

func newTestEnv(t *testing.T, replies ...*llm.Reply) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{store: st}
	env.session = &scriptedSession{replies: replies}

	registry := tools.NewRegistry(st)
	loop := agent.NewWithOpener(st, registry, func(system string, history []llm.Content, decls []llm.FunctionDeclaration) agent.ModelSession {
		env.opens++
		return env.session
	}, nil)

	am := auth.NewManager("test-secret", time.Hour)
	srv := NewServer("127.0.0.1", 0, st, loop, am, nil)
	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(env.server.Close)

	// One registered user for authed tests.
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user, err := st.CreateUser(context.Background(), "user@example.com", hash, "Test User")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	env.userID = user.ID

	token, err := am.Issue(user.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	env.token = token

	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	var health map[string]string
	resp := env.do(t, "GET", "/health", nil, &health)
	if resp.StatusCode != http.StatusOK || health["status"] != "healthy" {
		t.Errorf("health = %d %v", resp.StatusCode, health)
	}

	resp = env.do(t, "GET", "/v1/version", nil, &map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("version status = %d", resp.StatusCode)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	env.token = "" // register/login are unauthenticated

	var reg struct {
		User  *store.User `json:"user"`
		Token string      `json:"token"`
	}
	resp := env.do(t, "POST", "/v1/auth/register", map[string]string{
		"email":    "new@example.com",
		"password": "hunter22",
		"name":     "Newcomer",
	}, &reg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	if reg.Token == "" || reg.User == nil || reg.User.Email != "new@example.com" {
		t.Errorf("register response = %+v", reg)
	}

	resp = env.do(t, "POST", "/v1/auth/register", map[string]string{
		"email":    "new@example.com",
		"password": "other",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d", resp.StatusCode)
	}

	var login struct {
		Token string `json:"token"`
	}
	resp = env.do(t, "POST", "/v1/auth/login", map[string]string{
		"email":    "new@example.com",
		"password": "hunter22",
	}, &login)
	if resp.StatusCode != http.StatusOK || login.Token == "" {
		t.Errorf("login = %d %+v", resp.StatusCode, login)
	}

	resp = env.do(t, "POST", "/v1/auth/login", map[string]string{
		"email":    "new@example.com",
		"password": "wrong",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	env.token = ""

	resp := env.do(t, "GET", "/v1/tasks", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	env.token = "not-a-real-token"
	resp = env.do(t, "GET", "/v1/tasks", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)

	var created store.Task
	resp := env.do(t, "POST", "/v1/tasks", map[string]any{
		"title":       "Buy milk",
		"description": "2 liters",
		"priority":    "high",
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if created.ID == "" || created.Priority != "high" {
		t.Errorf("created = %+v", created)
	}

	var listing struct {
		Tasks []*store.Task `json:"tasks"`
	}
	env.do(t, "GET", "/v1/tasks", nil, &listing)
	if len(listing.Tasks) != 1 || listing.Tasks[0].Title != "Buy milk" {
		t.Errorf("listing = %+v", listing.Tasks)
	}

	var toggled store.Task
	env.do(t, "PATCH", "/v1/tasks/"+created.ID+"/toggle", nil, &toggled)
	if !toggled.Completed {
		t.Error("toggle did not complete the task")
	}

	listing.Tasks = nil
	env.do(t, "GET", "/v1/tasks?status=pending", nil, &listing)
	if len(listing.Tasks) != 0 {
		t.Errorf("pending listing = %+v", listing.Tasks)
	}

	resp = env.do(t, "DELETE", "/v1/tasks/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp = env.do(t, "DELETE", "/v1/tasks/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestTaskSearch(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/v1/tasks", map[string]any{"title": "Buy milk"}, nil)
	env.do(t, "POST", "/v1/tasks", map[string]any{"title": "Call dentist"}, nil)

	var listing struct {
		Tasks []*store.Task `json:"tasks"`
	}
	env.do(t, "GET", "/v1/tasks?search=milk", nil, &listing)
	if len(listing.Tasks) != 1 || listing.Tasks[0].Title != "Buy milk" {
		t.Errorf("search results = %+v", listing.Tasks)
	}
}

func TestChatTurn(t *testing.T) {
	env := newTestEnv(t, &llm.Reply{TextFragments: []string{"Hello! How can I help with your tasks?"}})

	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	resp := env.do(t, "POST", "/v1/conversations", map[string]string{"title": "Chat"}, &created)
	if resp.StatusCode != http.StatusCreated || created.ConversationID == "" {
		t.Fatalf("create conversation = %d %+v", resp.StatusCode, created)
	}

	var chat chatResponse
	resp = env.do(t, "POST", "/v1/conversations/"+created.ConversationID+"/messages", map[string]string{
		"message": "hi",
	}, &chat)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	if !chat.Success || chat.Response != "Hello! How can I help with your tasks?" {
		t.Errorf("chat = %+v", chat)
	}
	if chat.ConversationID != created.ConversationID {
		t.Errorf("conversation id = %q", chat.ConversationID)
	}

	var msgs struct {
		Messages []*store.Message `json:"messages"`
	}
	env.do(t, "GET", "/v1/conversations/"+created.ConversationID+"/messages", nil, &msgs)
	if len(msgs.Messages) != 2 {
		t.Fatalf("persisted %d messages, want user+assistant", len(msgs.Messages))
	}
	if msgs.Messages[0].Role != store.RoleUser || msgs.Messages[1].Role != store.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs.Messages[0].Role, msgs.Messages[1].Role)
	}
}

func TestChatTurnMalformedConversationID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/v1/conversations/not-a-uuid/messages", map[string]string{
		"message": "hi",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if env.opens != 0 {
		t.Error("model session opened for malformed conversation id")
	}
}

func TestConversationDeleteRemovesMessages(t *testing.T) {
	env := newTestEnv(t, &llm.Reply{TextFragments: []string{"noted"}})

	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	env.do(t, "POST", "/v1/conversations", map[string]string{"title": "doomed"}, &created)
	env.do(t, "POST", "/v1/conversations/"+created.ConversationID+"/messages", map[string]string{"message": "hi"}, nil)

	resp := env.do(t, "DELETE", "/v1/conversations/"+created.ConversationID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = env.do(t, "GET", "/v1/conversations/"+created.ConversationID+"/messages", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("messages after delete status = %d, want 404", resp.StatusCode)
	}
}
