// Package agent orchestrates one conversational turn: persist the user
// message, replay history into a model session, resolve tool calls, and
// persist the assistant's answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskdeck/taskdeck/internal/language"
	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/store"
)

const systemInstruction = `You are a helpful productivity assistant focused on helping users manage their tasks.
You can help users add, list, complete, update, and delete tasks.
Stay focused on task management and productivity.
If asked about other topics, politely redirect to task management.
Respond in the same language as the user (support English, Urdu, and Roman Urdu).`

const fallbackResponse = "I couldn't generate a response. How else can I help you with your tasks?"

// maxToolRounds bounds the tool-call resolution loop. A model that
// keeps asking for tools past this many rounds gets cut off and its
// last textual output (or the fallback) is used.
const maxToolRounds = 8

// ConversationLog is the slice of the store the loop persists through.
type ConversationLog interface {
	AppendMessage(ctx context.Context, conversationID, role, content string) (string, error)
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// ModelSession is one open chat with the model.
type ModelSession interface {
	Send(ctx context.Context, text string) (*llm.Reply, error)
	SendFunctionResponse(ctx context.Context, name string, response map[string]any) (*llm.Reply, error)
}

// SessionOpener creates a fresh model session for a turn.
type SessionOpener func(system string, history []llm.Content, decls []llm.FunctionDeclaration) ModelSession

// Dispatcher executes tool calls on behalf of a user.
type Dispatcher interface {
	Declarations() []llm.FunctionDeclaration
	Dispatch(ctx context.Context, userID, name string, args map[string]any) string
}

// Result is the outcome of one agent turn.
type Result struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// Loop runs agent turns. It is stateless between calls; everything is
// rebuilt from the conversation log each time.
type Loop struct {
	log      ConversationLog
	registry Dispatcher
	open     SessionOpener
	logger   *slog.Logger
}

// New creates a loop backed by a Gemini client.
func New(log ConversationLog, registry Dispatcher, client *llm.GeminiClient, model string, logger *slog.Logger) *Loop {
	l := NewWithOpener(log, registry, func(system string, history []llm.Content, decls []llm.FunctionDeclaration) ModelSession {
		return client.StartSession(model, system, history, decls)
	}, logger)
	return l
}

// NewWithOpener creates a loop with a custom session opener.
func NewWithOpener(log ConversationLog, registry Dispatcher, open SessionOpener, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		log:      log,
		registry: registry,
		open:     open,
		logger:   logger,
	}
}

// Process runs one agent turn. The user message is persisted before any
// model call; if that fails the turn fails with no model call made.
// Model failures never propagate: they are classified into a readable
// assistant message. Persistence failures are fatal to the turn.
func (l *Loop) Process(ctx context.Context, conversationID, userID, userMessage string) (*Result, error) {
	userMsgID, err := l.log.AppendMessage(ctx, conversationID, store.RoleUser, userMessage)
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := l.history(ctx, conversationID, userMsgID)
	if err != nil {
		return nil, fmt.Errorf("rebuild history: %w", err)
	}

	l.logger.Debug("processing turn",
		"conversation_id", conversationID,
		"language", language.Detect(userMessage),
	)

	sess := l.open(systemInstruction, history, l.registry.Declarations())

	// The model sees the message exactly as persisted, so history replay
	// on later turns matches what it was sent.
	response := l.converse(ctx, sess, userID, userMessage)

	if _, err := l.log.AppendMessage(ctx, conversationID, store.RoleAssistant, response); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	return &Result{Success: true, Response: response}, nil
}

// history rebuilds the model-format history from the log, excluding the
// just-appended user message (it is sent as the new turn instead).
func (l *Loop) history(ctx context.Context, conversationID, excludeID string) ([]llm.Content, error) {
	msgs, err := l.log.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var contents []llm.Content
	for _, m := range msgs {
		if m.ID == excludeID {
			continue
		}
		role := llm.RoleUser
		if m.Role == store.RoleAssistant {
			role = llm.RoleModel
		}
		contents = append(contents, llm.Content{
			Role:  role,
			Parts: []llm.Part{{Text: m.Content}},
		})
	}
	return contents, nil
}

// Loop states for tool-call resolution.
const (
	awaitingModel = iota
	dispatchingTool
	turnDone
)

// converse drives the model through the bounded tool-call loop and
// returns the assistant's final text. Model errors are classified into
// user-facing text here.
func (l *Loop) converse(ctx context.Context, sess ModelSession, userID, text string) string {
	reply, err := sess.Send(ctx, text)
	if err != nil {
		return classifyModelError(err)
	}

	state := awaitingModel
	for round := 0; state != turnDone; {
		switch state {
		case awaitingModel:
			if len(reply.FunctionCalls) == 0 {
				state = turnDone
				break
			}
			if round >= maxToolRounds {
				l.logger.Warn("tool round ceiling reached", "ceiling", maxToolRounds)
				state = turnDone
				break
			}
			state = dispatchingTool

		case dispatchingTool:
			// One call per round; extra simultaneous calls in the same
			// reply are ignored.
			call := reply.FunctionCalls[0]
			l.logger.Debug("dispatching tool", "tool", call.Name)
			out := l.registry.Dispatch(ctx, userID, call.Name, call.Args)

			reply, err = sess.SendFunctionResponse(ctx, call.Name, map[string]any{"result": out})
			if err != nil {
				return classifyModelError(err)
			}
			round++
			state = awaitingModel
		}
	}

	if final := reply.Text(); final != "" {
		return final
	}
	return fallbackResponse
}
