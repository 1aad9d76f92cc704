package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todonotify/internal/delivery"
	"todonotify/internal/model"
	"todonotify/internal/notifier"
)

const defaultHistoryLimit = 50

type HistoryReader interface {
	Page(ctx context.Context, userID int64, limit, offset int) (notifier.HistoryPage, error)
	Stats(ctx context.Context, userID int64) (notifier.Stats, error)
	Clear(ctx context.Context, userID int64, olderThanDays int) (int64, error)
}

type TestSender interface {
	SendTest(ctx context.Context, userID int64, kind model.Kind) (delivery.Result, error)
}

type NotificationHandler struct {
	history HistoryReader
	sender  TestSender
	logger  *zap.Logger
}

func NewNotificationHandler(history HistoryReader, sender TestSender, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{history: history, sender: sender, logger: logger}
}

// GetHistory handles GET /api/notifications/history
func (h *NotificationHandler) GetHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	limit, err := intQuery(c, "limit", defaultHistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}

	page, err := h.history.Page(c.Request.Context(), userID, limit, offset)
	if errors.Is(err, notifier.ErrInvalidPage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load notification history", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get notification history"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetStats handles GET /api/notifications/stats
func (h *NotificationHandler) GetStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.history.Stats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load notification stats", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get notification statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

type clearHistoryRequest struct {
	OlderThanDays *int `json:"older_than_days"`
}

// ClearHistory handles DELETE /api/notifications/history. Without
// older_than_days every record is removed.
func (h *NotificationHandler) ClearHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req clearHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	days := 0
	if req.OlderThanDays != nil {
		days = *req.OlderThanDays
	}

	cleared, err := h.history.Clear(c.Request.Context(), userID, days)
	if errors.Is(err, notifier.ErrInvalidRetention) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to clear notification history", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear notification history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleared_count": cleared})
}

type sendTestRequest struct {
	Type model.Kind `json:"type"`
}

// SendTest handles POST /api/notifications/test
func (h *NotificationHandler) SendTest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	req := sendTestRequest{Type: model.KindDueSoon}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.sender.SendTest(c.Request.Context(), userID, req.Type)
	switch {
	case errors.Is(err, notifier.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, model.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Failed to send test notification", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send test notification"})
		return
	}

	if !res.Success {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to send test notification: %s", res.Error),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    fmt.Sprintf("Test %s notification sent successfully", req.Type),
		"message_id": res.MessageID,
	})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
