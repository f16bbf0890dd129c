package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin authenticates the admin operator and returns an access token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		authErr, ok := err.(auth.AuthError)
		if !ok {
			authErr = auth.ErrInvalidCredentials
		}
		s.log.Warn("Login rejected", "username", req.Username, "code", authErr.Code)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   authErr.Code,
			"message": authErr.Message,
		})
		return
	}

	s.log.Info("Admin login", "username", req.Username)
	c.JSON(http.StatusOK, pair)
}

// handleStatus returns a combined view of the bot: risk ledger, open
// satellite positions, and the tunable config snapshot.
func (s *Server) handleStatus(c *gin.Context) {
	params := s.cfg.Snapshot()

	successResponse(c, gin.H{
		"time":           time.Now().UTC().Format(time.RFC3339),
		"risk":           s.riskMgr.Metrics(),
		"open_positions": s.tracker.Count(),
		"pairs":          s.cfg.Engine.Pairs,
		"core_assets":    params.Allocation.CoreAssets,
	})
}

// handleGetPositions returns the tracked protective order groups.
func (s *Server) handleGetPositions(c *gin.Context) {
	successResponse(c, s.tracker.All())
}

// handleGetRisk returns the daily risk ledger and breaker state.
func (s *Server) handleGetRisk(c *gin.Context) {
	successResponse(c, s.riskMgr.Metrics())
}

// handleResetBreaker manually clears a tripped circuit breaker.
func (s *Server) handleResetBreaker(c *gin.Context) {
	if err := s.riskMgr.ResetBreaker(); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("Circuit breaker reset via API")
	successResponse(c, s.riskMgr.Metrics())
}

// handleGetConfig returns the current tunable parameters and the list of
// keys that accept live updates.
func (s *Server) handleGetConfig(c *gin.Context) {
	successResponse(c, gin.H{
		"params":       s.cfg.Snapshot(),
		"mutable_keys": config.MutableKeys(),
	})
}

type configUpdateRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// handleUpdateConfig applies a single validated parameter change. Unknown
// keys and out-of-domain values are rejected without touching the config.
func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "key and value are required")
		return
	}

	if err := s.cfg.ApplyUpdate(req.Key, req.Value); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("Config updated via API", "key", req.Key, "value", req.Value)
	if s.eventBus != nil {
		s.eventBus.PublishConfigUpdated(req.Key, req.Value, "api")
	}

	successResponse(c, gin.H{"key": req.Key, "value": req.Value})
}
