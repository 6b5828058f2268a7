package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"studyspace/internal/repository"
)

// NotificationHandler expone las notificaciones in-app del usuario. No hay
// logica de negocio detras, el handler consume el repositorio directo.
type NotificationHandler struct {
	logger        *zap.Logger
	notifications repository.NotificationRepository
}

func NewNotificationHandler(logger *zap.Logger, notifications repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{
		logger:        logger,
		notifications: notifications,
	}
}

// List maneja GET /notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	notifications, err := h.notifications.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead maneja PUT /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		h.logger.Error("mark notification read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notification read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
