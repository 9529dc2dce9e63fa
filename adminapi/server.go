package adminapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/middleware"
)

const defaultRecentLimit = 50

var errNilResolver = errors.New("adminapi: caller resolver required")

// Server routes admin requests to an engine.
type Server struct {
	engine  *goOverlay.Engine
	resolve middleware.Resolver
	limits  *clientLimiters
	metrics http.Handler
	logger  *slog.Logger
	now     func() time.Time
	router  *gin.Engine
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithClock replaces the clock used by the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the router. Rate limits come from the engine's Admin config; a
// zero RateLimit disables limiting.
func New(engine *goOverlay.Engine, resolve middleware.Resolver, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, goOverlay.ErrEngineNotReady
	}
	if resolve == nil {
		return nil, errNilResolver
	}

	s := &Server{
		engine:  engine,
		resolve: resolve,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg := engine.Config().Admin; cfg.RateLimit > 0 {
		s.limits = newClientLimiters(cfg.RateLimit, cfg.Burst, s.now)
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests, s.rateLimit)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api", s.requireAdmin)
	{
		api.GET("/me", s.whoami)
		api.GET("/members", s.listMembers)
		api.PATCH("/members/:id", s.updateProfile)
		api.DELETE("/members/:id", s.markDeleted)
		api.GET("/members/:id/suspension", s.getSuspension)
		api.POST("/members/:id/suspension", s.suspend)
		api.DELETE("/members/:id/suspension", s.endSuspension)
		api.GET("/members/:id/activity", s.memberActivity)
		api.GET("/suspensions", s.listSuspensions)
		api.POST("/deletions", s.markDeletedBulk)
		api.GET("/activity", s.recentActivity)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

/*
====================================
MIDDLEWARE
====================================
*/

func (s *Server) logRequests(c *gin.Context) {
	start := s.now()
	c.Next()
	s.logger.Debug("adminapi: request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"client_ip", c.ClientIP(),
		"duration", s.now().Sub(start))
}

func (s *Server) rateLimit(c *gin.Context) {
	if !s.limits.Allow(c.ClientIP()) {
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	caller, ok := s.resolve(c.Request)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()
	if code, msg := middleware.Admit(ctx, s.engine, caller); code != 0 {
		c.AbortWithStatusJSON(code, gin.H{"error": msg})
		return
	}
	if !s.engine.IsAdmin(caller.Role) {
		s.logger.Info("adminapi: non-admin caller refused", "user_id", caller.UserID.String(), "role", caller.Role)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": goOverlay.ErrPermissionDenied.Error()})
		return
	}
	c.Request = c.Request.WithContext(middleware.WithCaller(ctx, caller, c.ClientIP()))
	c.Next()
}

/*
====================================
HANDLERS
====================================
*/

func (s *Server) whoami(c *gin.Context) {
	caller, _ := middleware.CallerFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"userId": caller.UserID, "role": caller.Role})
}

func (s *Server) listMembers(c *gin.Context) {
	members, err := s.engine.ListMembers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) getSuspension(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.CheckSuspension(c.Request.Context(), memberID(c)))
}

func (s *Server) suspend(c *gin.Context) {
	var input struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	rec, err := s.engine.Suspend(c.Request.Context(), memberID(c), strings.TrimSpace(input.Reason))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) endSuspension(c *gin.Context) {
	if err := s.engine.EndSuspension(c.Request.Context(), memberID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listSuspensions(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.ListSuspensions(c.Request.Context()))
}

func (s *Server) markDeleted(c *gin.Context) {
	if err := s.engine.MarkDeleted(c.Request.Context(), memberID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markDeletedBulk(c *gin.Context) {
	var input struct {
		IDs []identity.ID `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := s.engine.MarkDeletedBulk(c.Request.Context(), input.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) memberActivity(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Activity(c.Request.Context(), memberID(c)))
}

func (s *Server) recentActivity(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.engine.RecentActivity(c.Request.Context(), limit))
}

func (s *Server) updateProfile(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := s.engine.UpdateProfile(c.Request.Context(), memberID(c), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func memberID(c *gin.Context) identity.ID {
	return identity.ID(strings.TrimSpace(c.Param("id")))
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Warn("adminapi: request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goOverlay.ErrIdentityRequired):
		return http.StatusBadRequest
	case errors.Is(err, goOverlay.ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, goOverlay.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, goOverlay.ErrDirectoryRequired):
		return http.StatusNotImplemented
	case errors.Is(err, goOverlay.ErrDirectoryUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, goOverlay.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
