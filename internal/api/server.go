package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/audit"
	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/middleware"
	"github.com/clinical-ddx-server/internal/service"
)

// clientClosedRequest is the nginx convention for a request the caller
// abandoned before the pipeline finished.
const clientClosedRequest = 499

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	pipeline      *service.Pipeline
	auditStore    audit.Store
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, pipeline *service.Pipeline, auditStore audit.Store, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AccessLogger(logger))

	server := &Server{
		configManager: configManager,
		pipeline:      pipeline,
		auditStore:    auditStore,
		logger:        logger,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine, primarily for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/diagnose", s.handleDiagnose)
		v1.GET("/audit/:id", s.handleGetAuditRecord)
		v1.GET("/audit", s.handleListAuditRecords)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	})
}

// handleDiagnose runs the differential diagnosis pipeline for one request
func (s *Server) handleDiagnose(c *gin.Context) {
	requestID := c.GetString("request_id")

	var req domain.DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewPipelineError(
			domain.ErrInvalidInput, "malformed request body", err.Error(), requestID))
		return
	}
	if req.RequestID == "" {
		req.RequestID = requestID
	}

	start := time.Now()
	result, err := s.pipeline.Diagnose(c.Request.Context(), &req)
	if err != nil {
		var pipelineErr *domain.PipelineError
		if errors.As(err, &pipelineErr) {
			if pipelineErr.Code == domain.ErrCancelled {
				c.JSON(clientClosedRequest, pipelineErr)
				return
			}
			c.JSON(http.StatusInternalServerError, pipelineErr)
			return
		}
		c.JSON(http.StatusInternalServerError, domain.NewPipelineError(
			domain.ErrInternalServer, "diagnosis pipeline failed", err.Error(), req.RequestID))
		return
	}

	s.saveAuditRecord(c.Request.Context(), result)

	s.logger.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"state":      result.State,
		"diagnoses":  len(result.Diagnoses),
		"duration":   time.Since(start),
	}).Info("Diagnosis request completed")

	c.JSON(http.StatusOK, result)
}

// saveAuditRecord persists the result best-effort; a failed save never
// fails the diagnosis response.
func (s *Server) saveAuditRecord(ctx context.Context, result *domain.DiagnoseResult) {
	if s.auditStore == nil {
		return
	}

	record, err := audit.NewRecord(result)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", result.RequestID).
			Warn("Failed to build audit record")
		return
	}
	if err := s.auditStore.Save(ctx, record); err != nil {
		s.logger.WithError(err).WithField("request_id", result.RequestID).
			Warn("Failed to save audit record")
	}
}

// handleGetAuditRecord retrieves a single audit record by ID
func (s *Server) handleGetAuditRecord(c *gin.Context) {
	requestID := c.GetString("request_id")

	if s.auditStore == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewPipelineError(
			domain.ErrAuditStore, "audit store not configured", "", requestID))
		return
	}

	record, err := s.auditStore.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewPipelineError(
			domain.ErrAuditStore, "failed to retrieve audit record", err.Error(), requestID))
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, domain.NewPipelineError(
			domain.ErrInvalidInput, "audit record not found", c.Param("id"), requestID))
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleListAuditRecords lists audit records newest first
func (s *Server) handleListAuditRecords(c *gin.Context) {
	requestID := c.GetString("request_id")

	if s.auditStore == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewPipelineError(
			domain.ErrAuditStore, "audit store not configured", "", requestID))
		return
	}

	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, err := s.auditStore.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewPipelineError(
			domain.ErrAuditStore, "failed to list audit records", err.Error(), requestID))
		return
	}

	total, err := s.auditStore.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewPipelineError(
			domain.ErrAuditStore, "failed to count audit records", err.Error(), requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
