package api

import (
	"github.com/gin-gonic/gin"

	"smartrag-console/internal/api/middleware"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Liveness of this process plus the backend collaborator
	r.GET("/healthz", h.Health)

	group := r.Group("/api")
	h.RegisterRoutes(group)

	return r
}
