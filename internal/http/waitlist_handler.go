package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyspace/internal/service"
)

// WaitlistHandler mantiene dependencias para endpoints de lista de espera.
type WaitlistHandler struct {
	logger       *zap.Logger
	waitlistServ *service.WaitlistService
}

func NewWaitlistHandler(logger *zap.Logger, waitlistServ *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{
		logger:       logger,
		waitlistServ: waitlistServ,
	}
}

// Join maneja POST /waitlist.
func (h *WaitlistHandler) Join(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		CabinID       string `json:"cabin_id" binding:"required"`
		ReadingRoomID string `json:"reading_room_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid waitlist join request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	entry, err := h.waitlistServ.Join(c.Request.Context(), claims.UserID, req.CabinID, req.ReadingRoomID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCabinNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "cabin not found"})
		case errors.Is(err, service.ErrCabinAvailable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cabin is available, you can book it directly"})
		case errors.Is(err, service.ErrAlreadyWaitlisted):
			c.JSON(http.StatusBadRequest, gin.H{"error": "already in waitlist for this cabin"})
		case errors.Is(err, service.ErrWaitlistBadRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("waitlist join failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join waitlist"})
		}
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListMine maneja GET /waitlist/me.
func (h *WaitlistHandler) ListMine(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	entries, err := h.waitlistServ.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("waitlist list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list waitlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Leave maneja DELETE /waitlist/:id.
func (h *WaitlistHandler) Leave(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if err := h.waitlistServ.Leave(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		if errors.Is(err, service.ErrWaitlistEntryGone) {
			c.JSON(http.StatusNotFound, gin.H{"error": "waitlist entry not found"})
			return
		}
		h.logger.Error("waitlist leave failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave waitlist"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ReleaseCabin maneja PUT /cabins/:id/release (solo admins).
func (h *WaitlistHandler) ReleaseCabin(c *gin.Context) {
	notified, err := h.waitlistServ.ReleaseCabin(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCabinNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cabin not found"})
			return
		}
		h.logger.Error("cabin release failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not release cabin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "notified": notified})
}
