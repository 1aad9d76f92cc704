package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todonotify/internal/model"
)

type PreferenceService interface {
	GetOrCreate(ctx context.Context, userID int64) (*model.Preference, error)
	Update(ctx context.Context, userID int64, patch model.PreferencePatch) (*model.Preference, error)
}

type PreferenceHandler struct {
	prefs  PreferenceService
	logger *zap.Logger
}

func NewPreferenceHandler(prefs PreferenceService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, logger: logger}
}

// Get handles GET /api/preferences
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	pref, err := h.prefs.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load preferences", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get preferences"})
		return
	}
	c.JSON(http.StatusOK, pref)
}

// Update handles PUT /api/preferences. Omitted fields keep their value.
func (h *PreferenceHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var patch model.PreferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.apply(c, userID, patch)
}

type subscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint"`
	} `json:"subscription"`
}

// Subscribe handles POST /api/notifications/subscribe. Push delivery is not
// implemented; the subscription only switches browser notifications on.
func (h *PreferenceHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Subscription.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription data"})
		return
	}

	on := true
	h.apply(c, userID, model.PreferencePatch{BrowserEnabled: &on})
}

func (h *PreferenceHandler) apply(c *gin.Context, userID int64, patch model.PreferencePatch) {
	pref, err := h.prefs.Update(c.Request.Context(), userID, patch)
	if errors.Is(err, model.ErrInvalidPreference) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to update preferences", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, pref)
}
