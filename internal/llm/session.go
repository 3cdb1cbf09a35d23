package llm

import "context"

// Session is a stateful chat over a stateless client. It accumulates
// history locally; nothing is persisted.
type Session struct {
	client  *GeminiClient
	model   string
	system  string
	tools   []FunctionDeclaration
	history []Content
}

// StartSession opens a chat session seeded with prior history. The
// history slice is copied so the caller may reuse it.
func (c *GeminiClient) StartSession(model, system string, history []Content, tools []FunctionDeclaration) *Session {
	h := make([]Content, len(history))
	copy(h, history)
	return &Session{
		client:  c,
		model:   model,
		system:  system,
		tools:   tools,
		history: h,
	}
}

// Send appends a user text turn and returns the model's reply.
func (s *Session) Send(ctx context.Context, text string) (*Reply, error) {
	return s.send(ctx, Content{Role: RoleUser, Parts: []Part{{Text: text}}})
}

// SendFunctionResponse returns a tool result to the model and gets its
// next reply.
func (s *Session) SendFunctionResponse(ctx context.Context, name string, response map[string]any) (*Reply, error) {
	return s.send(ctx, Content{Role: RoleUser, Parts: []Part{{
		FunctionResponse: &FunctionResponse{Name: name, Response: response},
	}}})
}

func (s *Session) send(ctx context.Context, content Content) (*Reply, error) {
	s.history = append(s.history, content)

	reply, err := s.client.GenerateContent(ctx, s.model, s.system, s.history, s.tools)
	if err != nil {
		return nil, err
	}

	s.history = append(s.history, replyContent(reply))
	return reply, nil
}

// History returns the accumulated turns, including the seed history.
func (s *Session) History() []Content {
	return s.history
}

// replyContent converts a reply back into a history turn.
func replyContent(r *Reply) Content {
	c := Content{Role: RoleModel}
	for _, t := range r.TextFragments {
		c.Parts = append(c.Parts, Part{Text: t})
	}
	for i := range r.FunctionCalls {
		fc := r.FunctionCalls[i]
		c.Parts = append(c.Parts, Part{FunctionCall: &fc})
	}
	return c
}
