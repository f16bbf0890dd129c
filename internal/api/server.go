package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/auth"
	"satellite-trading-bot/internal/events"
	"satellite-trading-bot/internal/logging"
	"satellite-trading-bot/internal/orders"
	"satellite-trading-bot/internal/risk"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the admin HTTP surface: status, config tuning, breaker reset,
// and a WebSocket event stream. All operational state lives in the bot; the
// server only reads it and forwards control actions.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	riskMgr     *risk.Manager
	tracker     *orders.GroupTracker
	eventBus    *events.EventBus
	authService *auth.Service
	authEnabled bool
	rateLimiter *RateLimiter
	log         *logging.Logger
	startedAt   time.Time
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	riskMgr *risk.Manager,
	tracker *orders.GroupTracker,
	eventBus *events.EventBus,
	authService *auth.Service, // Can be nil if auth is disabled
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogMiddleware(logging.WithComponent("api")))

	corsConfig := cors.DefaultConfig()
	origins := strings.TrimSpace(cfg.Server.AllowedOrigins)
	if origins == "" || origins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		cfg:         cfg,
		riskMgr:     riskMgr,
		tracker:     tracker,
		eventBus:    eventBus,
		authService: authService,
		authEnabled: authService != nil && authService.IsConfigured(),
		rateLimiter: NewRateLimiter(60, time.Minute),
		log:         logging.WithComponent("api"),
		startedAt:   time.Now(),
	}

	server.setupRoutes()

	if eventBus != nil {
		InitWebSocket(eventBus)
	}

	return server
}

// requestLogMiddleware logs every request with a trace ID so one admin action
// can be followed across the log stream. Clients may supply their own via the
// X-Trace-ID header.
func requestLogMiddleware(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Writer.Header().Set("X-Trace-ID", traceID)

		c.Next()

		log.WithTraceID(traceID).WithDuration(time.Since(start)).Info("Request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP())
	}
}

// rateLimitMiddleware rate limits requests by endpoint path.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint. Please slow down.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Login is public; everything under /api requires a token once auth
	// is configured.
	if s.authEnabled {
		s.router.POST("/api/auth/login", s.handleLogin)
	}
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": s.authEnabled})
	})

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	if s.authEnabled {
		api.Use(auth.Middleware(s.authService))
	}

	{
		api.GET("/status", s.handleStatus)
		api.GET("/positions", s.handleGetPositions)
		api.GET("/risk", s.handleGetRisk)
		api.POST("/risk/breaker/reset", s.handleResetBreaker)

		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleUpdateConfig)
	}

	// WebSocket event stream
	s.router.GET("/ws", s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting HTTP server", "addr", addr, "auth_enabled", s.authEnabled)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
