package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/gateway/handler"
	"github.com/pagseguro-reconciler/internal/gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	auth config.AuthConfig,
	metricsHandler http.Handler,
	notificationHandler *handler.NotificationHandler,
	orderHandler *handler.OrderHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	// PagSeguro posts to the URL configured in its account panel
	r.POST("/notifications", notificationHandler.Receive)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/notifications", notificationHandler.Receive)

		orders := v1.Group("/orders", middleware.Authenticate(logger, []byte(auth.JWTSecret), auth.JWTIssuer))
		{
			orders.GET("/:reference", middleware.RequireRole(middleware.RoleViewer), orderHandler.GetByReference)
			orders.GET("/:reference/reconciliations", middleware.RequireRole(middleware.RoleViewer), orderHandler.GetReconciliations)
			orders.POST("/:reference/reconcile", middleware.RequireRole(middleware.RoleOperator), orderHandler.Reconcile)
		}

		reconciliations := v1.Group("/reconciliations", middleware.Authenticate(logger, []byte(auth.JWTSecret), auth.JWTIssuer))
		reconciliations.GET("/:event_id", middleware.RequireRole(middleware.RoleViewer), orderHandler.GetReconciliation)
	}

	r.GET("/metrics", gin.WrapH(metricsHandler))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
