package rest

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nbcore/notebookcore/internal/application/auth"
	"github.com/nbcore/notebookcore/internal/coordinator"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
	"github.com/nbcore/notebookcore/internal/infrastructure/websocket"
)

// Deps bundles every collaborator the router needs. Grounded on the
// teacher's pkg/server.Server component-layer struct, trimmed down:
// this deployment has one storage backend and one domain (notebooks),
// not the teacher's dozen-odd repositories and subsystems.
type Deps struct {
	Config   ServerConfig
	Logger   *logger.Logger
	Registry *coordinator.Registry
	Auth     *auth.Service
	JWT      *auth.JWTService
	Tools    ToolCallSource // optional, nil unless an LLM driver is wired in

	// Redis backs distributed rate limiting when present. Nil falls
	// back to the in-process limiter, matching a single-instance
	// deployment with no shared cache.
	Redis             redis.UniversalClient
	EnableRateLimit   bool
	APIRateLimit      int
	APIRateWindow     time.Duration
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	LoginLockout      time.Duration
}

// ServerConfig is the subset of config.ServerConfig the router reads.
type ServerConfig struct {
	Debug              bool
	MaxBodySize        int64
	CORS               bool
	CORSAllowedOrigins []string
}

// NewRouter builds the gin.Engine for notebookcore's REST, WebSocket,
// and SSE surfaces. Grounded on the teacher's pkg/server/routes.go
// setupRoutes/setupAPIv1Routes structure: global middleware first, then
// route groups, auth-gated groups getting RequireAuth.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	loggingMiddleware := NewLoggingMiddleware(deps.Logger)
	recoveryMiddleware := NewRecoveryMiddleware(deps.Logger)
	bodySizeMiddleware := NewBodySizeMiddleware(deps.Logger, deps.Config.MaxBodySize)
	authMiddleware := NewAuthMiddleware(deps.JWT)

	router.Use(recoveryMiddleware.Recovery())
	router.Use(loggingMiddleware.RequestLogger())
	router.Use(bodySizeMiddleware.LimitBodySize())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	if deps.Config.CORS {
		router.Use(corsMiddleware(deps.Config.CORSAllowedOrigins, deps.Config.Debug))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	var apiLimiter interface{ Middleware() gin.HandlerFunc }
	var loginLimiter interface{ Middleware() gin.HandlerFunc }
	if deps.EnableRateLimit {
		if deps.Redis != nil {
			apiLimiter = NewRedisRateLimiter(deps.Redis, "ratelimit:api:", deps.APIRateLimit, deps.APIRateWindow, deps.LoginLockout)
			loginLimiter = NewRedisLoginRateLimiter(deps.Redis, deps.LoginMaxAttempts, deps.LoginWindow, deps.LoginLockout)
		} else {
			apiLimiter = NewRateLimiter(deps.APIRateLimit, deps.APIRateWindow, deps.LoginLockout)
			loginLimiter = NewLoginRateLimiter(deps.LoginMaxAttempts, deps.LoginWindow, deps.LoginLockout)
		}
	}

	authHandlers := NewAuthHandlers(deps.Auth)
	authGroup := router.Group("/auth")
	if loginLimiter != nil {
		authGroup.Use(loginLimiter.Middleware())
	}
	{
		authGroup.POST("/register", authHandlers.HandleRegister)
		authGroup.POST("/login", authHandlers.HandleLogin)
		authGroup.GET("/me", authMiddleware.RequireAuth(), authHandlers.HandleGetMe)
	}

	notebookHandlers := NewNotebookHandlers(deps.Registry)
	notebooks := router.Group("/notebooks")
	notebooks.Use(authMiddleware.RequireAuth())
	if apiLimiter != nil {
		notebooks.Use(apiLimiter.Middleware())
	}
	{
		notebooks.GET("", notebookHandlers.HandleListNotebooks)
		notebooks.POST("", notebookHandlers.HandleCreateNotebook)
		notebooks.GET("/:id", notebookHandlers.HandleGetNotebook)
		notebooks.GET("/:id/state", notebookHandlers.HandleGetState)
		notebooks.PUT("/:id/db_config", notebookHandlers.HandleSetDBConfig)
		notebooks.POST("/:id/cells", notebookHandlers.HandleCreateCell)
		notebooks.PUT("/:id/cells/:cell_id", notebookHandlers.HandleUpdateCell)
		notebooks.DELETE("/:id/cells/:cell_id", notebookHandlers.HandleDeleteCell)
		notebooks.POST("/:id/cells/:cell_id/run", notebookHandlers.HandleRunCell)
		notebooks.GET("/:id/events", NewSSEHandlers(deps.Registry, deps.Tools).HandleStream)
	}

	wsHandler := websocket.NewHandler(deps.Registry, deps.Logger)
	ws := router.Group("/notebooks")
	ws.Use(authMiddleware.OptionalAuth())
	{
		ws.GET("/:id/ws", func(c *gin.Context) {
			userID, ok := GetUserID(c)
			if !ok {
				respondAPIError(c, ErrUnauthorized)
				return
			}
			wsHandler.ServeWS(c, userID)
		})
	}

	return router
}

// corsMiddleware mirrors the teacher's inline CORS handling in
// setupRoutes: wildcard only in debug mode with no explicit allowlist,
// otherwise origin-set matching.
func corsMiddleware(allowedOrigins []string, debug bool) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0 && debug
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			if _, ok := originSet[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
