package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mindpex/sanctum/auth"
	"github.com/mindpex/sanctum/pkg/log"
)

// NewRouter assembles the full HTTP surface: auth routes at the root and
// chat routes under /api/v1.
func NewRouter(mode string, authHandler *auth.Handler, authMW *auth.Middleware, chat *ChatHandler) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), CORS(), RequestLogger())

	authHandler.RegisterRoutes(r, authMW)
	chat.RegisterRoutes(r.Group("/api/v1"))
	return r
}

// CORS allows the browser widget to call from any origin, matching the
// permissive policy the auth service has always shipped with.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger records one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Infow("HTTP request",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
}
