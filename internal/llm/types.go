// Package llm provides the Gemini client and provider-neutral chat types.
package llm

import (
	"errors"
	"fmt"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Model roles. Gemini uses "model" where other providers say
// "assistant"; conversion happens at the wire boundary.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Content is one turn of model input or output.
type Content struct {
	Role  string
	Parts []Part
}

// Part is a fragment of a content turn. Exactly one field is set.
type Part struct {
	Text             string
	FunctionCall     *FunctionCall
	FunctionResponse *FunctionResponse
}

// FunctionCall is the model asking for a tool invocation.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// FunctionResponse carries a tool's result back to the model.
type FunctionResponse struct {
	Name     string
	Response map[string]any
}

// FunctionDeclaration describes a callable tool to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Reply is the unified model response. Wire format conversion happens
// at the provider boundary (gemini.go).
type Reply struct {
	TextFragments []string
	FunctionCalls []FunctionCall
	FinishReason  string
	InputTokens   int
	OutputTokens  int
}

// Text joins the reply's text fragments.
func (r *Reply) Text() string {
	var out string
	for _, f := range r.TextFragments {
		out += f
	}
	return out
}

// ErrorKind classifies API failures so callers can react without
// string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindUnauthenticated
	KindUnreachable
)

// APIError is a failure reported by or while reaching the model API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gemini API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini API error: %s", e.Message)
}

// AsAPIError unwraps err into an *APIError if one is in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
