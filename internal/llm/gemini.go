package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskdeck/taskdeck/internal/httpkit"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient is a client for the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(apiKey string, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	// Responses with tool calls can take a while before headers arrive.
	// Use a generous response header timeout and rely on ctx deadlines
	// for overall timeout control.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: geminiBaseURL,
		logger:  logger.With("provider", "gemini"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// Gemini request/response wire types

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent sends one model request and returns the unified reply.
func (c *GeminiClient) GenerateContent(ctx context.Context, model string, system string, history []Content, tools []FunctionDeclaration) (*Reply, error) {
	req := geminiRequest{
		Contents: convertToGemini(history),
	}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if len(tools) > 0 {
		req.Tools = []geminiTool{{FunctionDeclarations: tools}}
	}

	c.logger.Debug("preparing request",
		"model", model,
		"contents", len(req.Contents),
		"tools", len(tools),
		"system_len", len(system),
	)

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Kind: KindUnreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, classifyStatus(resp.StatusCode, errBody)
	}

	var wireResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := convertFromGemini(&wireResp)

	c.logger.Debug("response received",
		"finish_reason", result.FinishReason,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"function_calls", len(result.FunctionCalls),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Text())

	return result, nil
}

// classifyStatus maps an HTTP error status to a typed APIError.
func classifyStatus(status int, body string) *APIError {
	msg := body
	var parsed geminiErrorBody
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	kind := KindUnknown
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindUnauthenticated
	case status >= 500:
		kind = KindUnreachable
	}

	return &APIError{Kind: kind, StatusCode: status, Message: msg}
}

// convertToGemini converts neutral contents to the wire format.
func convertToGemini(contents []Content) []geminiContent {
	result := make([]geminiContent, 0, len(contents))
	for _, c := range contents {
		wc := geminiContent{Role: c.Role}
		for _, p := range c.Parts {
			switch {
			case p.FunctionCall != nil:
				wc.Parts = append(wc.Parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			case p.FunctionResponse != nil:
				wc.Parts = append(wc.Parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}})
			default:
				wc.Parts = append(wc.Parts, geminiPart{Text: p.Text})
			}
		}
		result = append(result, wc)
	}
	return result
}

// convertFromGemini converts a wire response to the unified reply.
// Only the first candidate is considered.
func convertFromGemini(resp *geminiResponse) *Reply {
	result := &Reply{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
	if len(resp.Candidates) == 0 {
		return result
	}

	cand := resp.Candidates[0]
	result.FinishReason = cand.FinishReason
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			result.FunctionCalls = append(result.FunctionCalls, FunctionCall{
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			})
		case p.Text != "":
			result.TextFragments = append(result.TextFragments, p.Text)
		}
	}
	return result
}
