package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biopaper-tutor/internal/service"
)

// ChatHandler conecta POST /api/chat con el relay de completions.
type ChatHandler struct {
	logger *zap.Logger
	relay  *service.RelayService
}

func NewChatHandler(logger *zap.Logger, relay *service.RelayService) *ChatHandler {
	return &ChatHandler{logger: logger, relay: relay}
}

// Chat maneja POST /api/chat. Los errores previos al stream salen como JSON;
// una vez enviados los headers solo queda el frame de error.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, _ := GetIdentity(c)
	ctx := c.Request.Context()
	stream, err := h.relay.Start(ctx, user, req)
	if err != nil {
		respondError(c, h.logger, err, "chat failed")
		return
	}
	defer stream.Close()

	w := newSSEWriter(c.Writer)
	w.start()
	c.Writer.Flush()
	if err := stream.Pump(ctx, w); err != nil {
		h.logger.Debug("chat stream ended with error", zap.Error(err))
	}
}
