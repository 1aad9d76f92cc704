package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"todonotify/internal/api"
	"todonotify/pkg/otel"
	"todonotify/pkg/rbac"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Notifications *api.NotificationHandler
	Preferences   *api.PreferenceHandler
	Admin         *api.AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	h Handlers,
	jwtSecret string,
	ready func(ctx context.Context) error,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), otel.GinMiddleware(), TraceMiddleware(), MetricsMiddleware(), LoggingMiddleware(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/api")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		n := auth.Group("/notifications")
		n.GET("/history", RequirePermission(rbac.PermissionReadNotifications), h.Notifications.GetHistory)
		n.GET("/stats", RequirePermission(rbac.PermissionReadNotifications), h.Notifications.GetStats)
		n.DELETE("/history", RequirePermission(rbac.PermissionClearNotifications), h.Notifications.ClearHistory)
		n.POST("/test", RequirePermission(rbac.PermissionSendTest), h.Notifications.SendTest)
		n.POST("/subscribe", RequirePermission(rbac.PermissionWritePreferences), h.Preferences.Subscribe)

		auth.GET("/preferences", RequirePermission(rbac.PermissionReadNotifications), h.Preferences.Get)
		auth.PUT("/preferences", RequirePermission(rbac.PermissionWritePreferences), h.Preferences.Update)

		admin := auth.Group("/admin", RequirePermission(rbac.PermissionRunPasses))
		admin.POST("/passes/:pass", h.Admin.RunPass)
		admin.GET("/jobs", h.Admin.Jobs)
	}

	return &Router{Engine: r}
}

func (r *Router) Handler() http.Handler {
	return r.Engine
}
