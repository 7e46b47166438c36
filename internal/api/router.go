package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/hoarderwatch/internal/history"
	"github.com/shapedtime/hoarderwatch/internal/verify"
)

// Server represents the REST API server
type Server struct {
	router      *gin.Engine
	verifier    verify.Service
	runner      *verify.Runner
	historyRepo *history.Repository // Optional: probe history queries
}

// NewServer creates a new API server
func NewServer(verifier verify.Service, runner *verify.Runner) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		verifier: verifier,
		runner:   runner,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetHistoryRepository configures probe history queries
func (s *Server) SetHistoryRepository(repo *history.Repository) {
	s.historyRepo = repo
	slog.Info("Probe history queries configured")
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(func(c *gin.Context) {
		c.Next()
		slog.Info("API request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	})

	// CORS for development
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// Recordings and verdicts
	api.GET("/recordings", s.listRecordings)
	api.GET("/recordings/:id/verdict", s.getVerdict)
	api.GET("/recordings/:id/history", s.getProbeHistory)
	api.POST("/recordings/:id/reprobe", s.reprobeRecording)

	// Verification passes
	api.POST("/verify", s.triggerPass)

	// Status
	api.GET("/status", s.getStatus)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Error response helper
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
