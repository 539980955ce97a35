package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nbcore/notebookcore/internal/coordinator"
)

// ToolCallDelta is the passthrough frame the LLM tool-call driver
// (an external collaborator, not implemented by this core) forwards
// verbatim over the same SSE channel as broadcast events. This core
// never inspects call_id or delta; it just relays whatever the driver
// hands it.
type ToolCallDelta struct {
	CallID string `json:"call_id"`
	Delta  string `json:"delta"`
}

// ToolCallSource is implemented by the external tool-call driver. A nil
// source (the default) means this deployment has no LLM driver wired in
// and the SSE channel carries only notebook broadcast events.
type ToolCallSource interface {
	ToolCallDeltas(notebookID string) <-chan ToolCallDelta
}

// SSEHandlers implements the unidirectional streaming surface for
// clients that can't hold a WebSocket open (tool-call driven sessions).
// Grounded on gin's SSEvent helper (backed by gin-contrib/sse, already
// part of the teacher's dependency set via its own gin.Engine); the
// teacher's own HandleStreamLogs/HandleWatchExecution are unimplemented
// stubs, so there is no teacher streaming body to adapt here.
type SSEHandlers struct {
	registry *coordinator.Registry
	tools    ToolCallSource
}

func NewSSEHandlers(registry *coordinator.Registry, tools ToolCallSource) *SSEHandlers {
	return &SSEHandlers{registry: registry, tools: tools}
}

// HandleStream handles GET /notebooks/{id}/events.
func (h *SSEHandlers) HandleStream(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	notebookID := legacyNotebookID(userID, c.Param("id"))

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	sub := co.Subscribe()
	defer co.Unsubscribe(sub)

	var deltas <-chan ToolCallDelta
	if h.tools != nil {
		deltas = h.tools.ToolCallDeltas(notebookID)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w http.ResponseWriter) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case delta, ok := <-deltas:
			if !ok {
				deltas = nil
				return true
			}
			c.SSEvent("tool_call_delta", delta)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
