package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyspace/internal/service"
)

// MessageHandler mantiene dependencias para endpoints de mensajeria.
type MessageHandler struct {
	logger        *zap.Logger
	messagingServ *service.MessagingService
}

// NewMessageHandler crea una instancia de MessageHandler con dependencias necesarias.
func NewMessageHandler(logger *zap.Logger, messagingServ *service.MessagingService) *MessageHandler {
	return &MessageHandler{
		logger:        logger,
		messagingServ: messagingServ,
	}
}

// SendMessage maneja POST /messages/send.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
		Content    string `json:"content" binding:"required"`
		VenueID    string `json:"venue_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.messagingServ.SendMessage(c.Request.Context(), claims.UserID, service.SendMessageInput{
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		VenueID:    req.VenueID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReceiverNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
		case errors.Is(err, service.ErrMessageInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("send message failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListConversations maneja GET /messages/conversations.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	feed, err := h.messagingServ.BuildFeed(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("build feed failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list conversations"})
		return
	}

	c.JSON(http.StatusOK, feed)
}

// ListMessages maneja GET /messages/conversations/:id/messages.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	messages, err := h.messagingServ.ListMessages(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to view this conversation"})
		default:
			h.logger.Error("list messages failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		}
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkMessageRead maneja PUT /messages/:id/read.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	err := h.messagingServ.MarkMessageRead(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, service.ErrNotReceiver):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
		default:
			h.logger.Error("mark message read failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark message read"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// MarkConversationRead maneja PUT /messages/conversations/:id/read.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	marked, err := h.messagingServ.MarkConversationRead(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		h.logger.Error("mark conversation read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark conversation read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "marked_read": marked})
}

// UnreadCount maneja GET /messages/unread-count.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	count, err := h.messagingServ.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("unread count failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// StartConversation maneja POST /messages/conversations/start.
func (h *MessageHandler) StartConversation(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		ParticipantID string `json:"participant_id"`
		VenueID       string `json:"venue_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid start conversation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	summary, err := h.messagingServ.StartConversation(c.Request.Context(), claims.UserID, req.ParticipantID, req.VenueID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrParticipantRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id required"})
		case errors.Is(err, service.ErrReceiverNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		default:
			h.logger.Error("start conversation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start conversation"})
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}
