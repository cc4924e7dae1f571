package delivery

import (
	"net/http"
	"sync"

	"design-assistant-backend/internal/chat/usecase"

	"github.com/gin-gonic/gin"
)

// ChatHandler streams chat answers over SSE
type ChatHandler struct {
	chatUsecase *usecase.ChatUsecase
}

func NewChatHandler(chatUsecase *usecase.ChatUsecase) *ChatHandler {
	return &ChatHandler{chatUsecase: chatUsecase}
}

// ChatRequest is one user message
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chat answers one message as a stream of SSE events:
// start, message, citations, done (or error).
// POST /api/tasks/:key/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	// Writes are serialized: the sink may be called from the handler
	// goroutine only today, but the lock keeps that a local invariant.
	var mu sync.Mutex
	emit := func(event string, data interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		c.SSEvent(event, data)
		c.Writer.Flush()
		return nil
	}

	// Errors are already surfaced to the client as an error event; the
	// stream just ends here.
	_ = h.chatUsecase.StreamChat(c.Request.Context(), c.Param("key"), req.Message, emit)
}
