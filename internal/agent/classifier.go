package agent

import (
	"strings"

	"github.com/taskdeck/taskdeck/internal/llm"
)

// User-facing failure messages. The first three categories hide the raw
// error; anything unclassified passes through verbatim.
const (
	quotaMessage   = "Daily API quota reached. Please try again later."
	authMessage    = "AUTH_ERROR: Your API key is invalid or not activated."
	networkMessage = "NETWORK_ERROR: I cannot reach the model provider. Please check your internet connection."
)

// classifyModelError turns a model failure into the assistant's reply.
// Typed API errors are matched on kind first; errors that cross opaque
// boundaries fall back to ordered substring heuristics.
func classifyModelError(err error) string {
	if apiErr, ok := llm.AsAPIError(err); ok {
		switch apiErr.Kind {
		case llm.KindRateLimited:
			return quotaMessage
		case llm.KindUnauthenticated:
			return authMessage
		case llm.KindUnreachable:
			return networkMessage
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return quotaMessage
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api_key_invalid"):
		return authMessage
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") || strings.Contains(msg, "timeout") || strings.Contains(msg, "dns"):
		return networkMessage
	}
	return err.Error()
}
