package ui

import (
	"context"
	"net/http"
	"time"

	"botscan/internal"
	sse "botscan/internal/api"
	"botscan/internal/container"
	"botscan/internal/export"
	"botscan/internal/feedback"
	"botscan/internal/history"
	"botscan/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type reportExporter interface {
	Export(view session.View, format export.Format) (*export.Artifact, error)
}

// Server is the HTTP surface over the session manager
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	sessions  *session.Manager
	hub       *sse.SSEHub
	feedback  *feedback.Controller
	exporter  reportExporter
	history   *history.Recorder
	gatherer  prometheus.Gatherer
	noticeTTL time.Duration
	logger    *internal.Logger
}

// NewServer creates the server and registers every route
func NewServer(c *container.Container) *Server {
	if c.Config.Server.GinMode != "" {
		gin.SetMode(c.Config.Server.GinMode)
	}

	s := &Server{
		router:    gin.New(),
		sessions:  c.Sessions,
		hub:       c.SSEHub,
		feedback:  c.Feedback,
		exporter:  c.Exporter,
		history:   c.History,
		noticeTTL: c.Config.Session.NoticeTTL,
		logger:    c.Logger.Named("HTTP"),
	}
	if c.Config.Metrics.Enabled {
		s.gatherer = c.Registry
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.HandleHealth())
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	api.POST("/sessions", s.HandleCreateSession())
	api.GET("/history/:username", s.HandleHistory())

	sessions := api.Group("/sessions/:id", s.loadSession())
	sessions.GET("", s.HandleGetSession())
	sessions.DELETE("", s.HandleDeleteSession())
	sessions.POST("/analyze", s.HandleAnalyze())
	sessions.POST("/reset", s.HandleReset())
	sessions.GET("/events", s.HandleEvents())
	sessions.POST("/feedback", s.HandleFeedback())
	sessions.GET("/export", s.HandleExport())
}

// Handler exposes the router, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting botscan on http://%s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Open
// event streams end when the hub is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
