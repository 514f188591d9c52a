package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biopaper-tutor/internal/service"
)

// ConversationHandler expone el CRUD de conversaciones del usuario autenticado.
type ConversationHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
}

func NewConversationHandler(logger *zap.Logger, conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{logger: logger, conversations: conversations}
}

// List maneja GET /api/conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	user, _ := GetIdentity(c)
	convs, err := h.conversations.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch conversations")
		return
	}
	c.JSON(http.StatusOK, convs)
}

// Create maneja POST /api/conversations. El body es opcional.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid create conversation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, _ := GetIdentity(c)
	conv, err := h.conversations.Create(c.Request.Context(), user.ID, req.Title)
	if err != nil {
		respondError(c, h.logger, err, "failed to create conversation")
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Delete maneja DELETE /api/conversations/:id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	user, _ := GetIdentity(c)
	if err := h.conversations.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		respondError(c, h.logger, err, "failed to delete conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Messages maneja GET /api/conversations/:id/messages.
func (h *ConversationHandler) Messages(c *gin.Context) {
	user, _ := GetIdentity(c)
	views, err := h.conversations.GetMessageViews(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch conversation messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}
