package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/store"
)

// fakeLog is an in-memory conversation log.
type fakeLog struct {
	messages  []*store.Message
	appendErr error
	nextID    int
}

func (f *fakeLog) AppendMessage(ctx context.Context, conversationID, role, content string) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.messages = append(f.messages, &store.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
	return id, nil
}

func (f *fakeLog) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	return f.messages, nil
}

// fakeSession returns scripted replies in order. After the script runs
// out it returns an empty reply.
type fakeSession struct {
	replies   []*llm.Reply
	err       error
	sent      []string
	responses []map[string]any
}

func (f *fakeSession) next() (*llm.Reply, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return &llm.Reply{}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeSession) Send(ctx context.Context, text string) (*llm.Reply, error) {
	f.sent = append(f.sent, text)
	return f.next()
}

func (f *fakeSession) SendFunctionResponse(ctx context.Context, name string, response map[string]any) (*llm.Reply, error) {
	f.responses = append(f.responses, response)
	return f.next()
}

// fakeDispatcher records dispatched calls and returns a fixed result.
type fakeDispatcher struct {
	calls  []string
	result string
}

func (f *fakeDispatcher) Declarations() []llm.FunctionDeclaration { return nil }

func (f *fakeDispatcher) Dispatch(ctx context.Context, userID, name string, args map[string]any) string {
	f.calls = append(f.calls, name)
	return f.result
}

func newTestLoop(log *fakeLog, disp *fakeDispatcher, sess *fakeSession) (*Loop, *[]llm.Content) {
	var seenHistory []llm.Content
	open := func(system string, history []llm.Content, decls []llm.FunctionDeclaration) ModelSession {
		seenHistory = history
		return sess
	}
	return NewWithOpener(log, disp, open, nil), &seenHistory
}

func textReply(text string) *llm.Reply {
	return &llm.Reply{TextFragments: []string{text}}
}

func callReply(name string, args map[string]any) *llm.Reply {
	return &llm.Reply{FunctionCalls: []llm.FunctionCall{{Name: name, Args: args}}}
}

func TestProcessToolCallTurn(t *testing.T) {
	log := &fakeLog{}
	disp := &fakeDispatcher{result: "Successfully added task 'call mom' to your list."}
	sess := &fakeSession{replies: []*llm.Reply{
		callReply("add_task", map[string]any{"title": "call mom"}),
		textReply("I've added \"call mom\" to your tasks."),
	}}
	loop, _ := newTestLoop(log, disp, sess)

	res, err := loop.Process(context.Background(), "c1", "u1", "add a task to call mom tomorrow")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Success || res.Response != "I've added \"call mom\" to your tasks." {
		t.Errorf("result = %+v", res)
	}

	if len(disp.calls) != 1 || disp.calls[0] != "add_task" {
		t.Errorf("dispatched = %v", disp.calls)
	}
	if len(sess.responses) != 1 || sess.responses[0]["result"] != disp.result {
		t.Errorf("function responses = %v", sess.responses)
	}

	// Both sides of the turn persisted, user first.
	if len(log.messages) != 2 {
		t.Fatalf("persisted %d messages", len(log.messages))
	}
	if log.messages[0].Role != store.RoleUser || log.messages[1].Role != store.RoleAssistant {
		t.Errorf("roles = %s, %s", log.messages[0].Role, log.messages[1].Role)
	}
	if log.messages[1].Content != res.Response {
		t.Errorf("persisted assistant content = %q", log.messages[1].Content)
	}
}

func TestProcessSendsMessageVerbatim(t *testing.T) {
	log := &fakeLog{}
	sess := &fakeSession{replies: []*llm.Reply{textReply("done")}}
	loop, _ := newTestLoop(log, &fakeDispatcher{}, sess)

	// Urdu text with an embedded task index. The index must survive the
	// trip to the model untouched.
	msg := "ٹاسک مکمل کریں ٹاسک نمبر 2"
	if _, err := loop.Process(context.Background(), "c1", "u1", msg); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(sess.sent) != 1 || sess.sent[0] != msg {
		t.Errorf("sent = %q, want %q", sess.sent, msg)
	}
	if log.messages[0].Content != msg {
		t.Errorf("persisted user content = %q, want %q", log.messages[0].Content, msg)
	}
}

func TestProcessUserPersistFailureIsFatal(t *testing.T) {
	log := &fakeLog{appendErr: errors.New("disk full")}
	sess := &fakeSession{}
	loop, _ := newTestLoop(log, &fakeDispatcher{}, sess)

	if _, err := loop.Process(context.Background(), "c1", "u1", "hello"); err == nil {
		t.Fatal("expected error")
	}
	if len(sess.sent) != 0 {
		t.Error("model was called despite persistence failure")
	}
}

func TestProcessModelErrorBecomesMessage(t *testing.T) {
	log := &fakeLog{}
	sess := &fakeSession{err: &llm.APIError{Kind: llm.KindRateLimited, StatusCode: 429, Message: "quota"}}
	loop, _ := newTestLoop(log, &fakeDispatcher{}, sess)

	res, err := loop.Process(context.Background(), "c1", "u1", "hello")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Response != quotaMessage {
		t.Errorf("response = %q", res.Response)
	}
	if len(log.messages) != 2 || log.messages[1].Content != quotaMessage {
		t.Errorf("classified message not persisted: %v", log.messages)
	}
}

func TestProcessFallbackWhenNoText(t *testing.T) {
	log := &fakeLog{}
	sess := &fakeSession{replies: []*llm.Reply{{}}}
	loop, _ := newTestLoop(log, &fakeDispatcher{}, sess)

	res, err := loop.Process(context.Background(), "c1", "u1", "hello")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Response != fallbackResponse {
		t.Errorf("response = %q", res.Response)
	}
}

func TestProcessToolRoundCeiling(t *testing.T) {
	log := &fakeLog{}
	disp := &fakeDispatcher{result: "ok"}

	// A session that always asks for another tool call.
	replies := make([]*llm.Reply, 0, maxToolRounds+2)
	for i := 0; i < maxToolRounds+2; i++ {
		replies = append(replies, callReply("list_tasks", nil))
	}
	sess := &fakeSession{replies: replies}
	loop, _ := newTestLoop(log, disp, sess)

	res, err := loop.Process(context.Background(), "c1", "u1", "loop forever")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(disp.calls) != maxToolRounds {
		t.Errorf("dispatched %d tool calls, want ceiling of %d", len(disp.calls), maxToolRounds)
	}
	if res.Response != fallbackResponse {
		t.Errorf("response = %q", res.Response)
	}
}

func TestProcessFirstCallOnly(t *testing.T) {
	log := &fakeLog{}
	disp := &fakeDispatcher{result: "ok"}
	sess := &fakeSession{replies: []*llm.Reply{
		{FunctionCalls: []llm.FunctionCall{
			{Name: "add_task", Args: map[string]any{"title": "a"}},
			{Name: "delete_task", Args: map[string]any{"task_id": "1"}},
		}},
		textReply("done"),
	}}
	loop, _ := newTestLoop(log, disp, sess)

	if _, err := loop.Process(context.Background(), "c1", "u1", "do two things"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(disp.calls) != 1 || disp.calls[0] != "add_task" {
		t.Errorf("dispatched = %v, want first call only", disp.calls)
	}
}

func TestProcessHistoryMapping(t *testing.T) {
	log := &fakeLog{}
	// Prior turn already in the log.
	log.AppendMessage(context.Background(), "c1", store.RoleUser, "earlier question")
	log.AppendMessage(context.Background(), "c1", store.RoleAssistant, "earlier answer")

	sess := &fakeSession{replies: []*llm.Reply{textReply("ok")}}
	loop, seenHistory := newTestLoop(log, &fakeDispatcher{}, sess)

	if _, err := loop.Process(context.Background(), "c1", "u1", "new question"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	h := *seenHistory
	if len(h) != 2 {
		t.Fatalf("history = %d turns, want prior turn only", len(h))
	}
	if h[0].Role != llm.RoleUser || h[0].Parts[0].Text != "earlier question" {
		t.Errorf("history[0] = %+v", h[0])
	}
	if h[1].Role != llm.RoleModel || h[1].Parts[0].Text != "earlier answer" {
		t.Errorf("history[1] = %+v, want assistant mapped to model", h[1])
	}

	// The new message travels as the live turn, not as history.
	if len(sess.sent) != 1 || sess.sent[0] != "new question" {
		t.Errorf("sent = %v", sess.sent)
	}
}

func TestProcessSequentialTurnsSeeEachOther(t *testing.T) {
	log := &fakeLog{}
	disp := &fakeDispatcher{}

	sess1 := &fakeSession{replies: []*llm.Reply{textReply("first answer")}}
	loop1, _ := newTestLoop(log, disp, sess1)
	if _, err := loop1.Process(context.Background(), "c1", "u1", "first"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sess2 := &fakeSession{replies: []*llm.Reply{textReply("second answer")}}
	loop2, seenHistory := newTestLoop(log, disp, sess2)
	if _, err := loop2.Process(context.Background(), "c1", "u1", "second"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(*seenHistory) != 2 {
		t.Errorf("second turn saw %d history turns, want the full first exchange", len(*seenHistory))
	}
}
