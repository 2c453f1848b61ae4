package restapi

import (
	"net/http"
	"time"

	"portfolio_tracker/internal/infrastructure/configloader"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(h *PortfolioHandler, cfg *configloader.Config, zapLogger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.Use(ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
		zapLogger.Info("Prometheus metrics endpoint enabled", zap.String("path", cfg.Metrics.Path))
	}

	// Группа для API v1
	v1 := router.Group("/api/v1")
	{
		tokens := v1.Group("/tokens")
		tokens.GET("", h.ListTokens)
		tokens.POST("", h.AddToken)
		tokens.GET("/:address", h.GetToken)
		tokens.DELETE("/:address", h.RemoveToken)
		tokens.PUT("/:address/entry", h.UpdateEntryPrice)
		tokens.POST("/:address/refresh", h.RefreshToken)
		tokens.PUT("/:address/note", h.SetNote)
		tokens.DELETE("/:address/note", h.RemoveNote)

		groups := v1.Group("/groups")
		groups.GET("", h.ListGroups)
		groups.POST("", h.CreateGroup)
		groups.GET("/:id/tokens", h.GetGroup)
		groups.PATCH("/:id", h.UpdateGroup)
		groups.DELETE("/:id", h.RemoveGroup)
		groups.POST("/:id/tokens", h.AddTokenToGroup)
		groups.DELETE("/:id/tokens/:address", h.RemoveTokenFromGroup)
	}

	return router
}
