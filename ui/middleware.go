package ui

import (
	"net/http"
	"time"

	"botscan/internal/errors"
	"botscan/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		s.logger.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// loadSession resolves :id to its orchestrator
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := s.sessions.Get(c.Param("id"))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionKey, o)
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Orchestrator {
	return c.MustGet(sessionKey).(*session.Orchestrator)
}

// statusFor maps an error code to its HTTP status
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeNotReady:
		return http.StatusConflict
	case errors.CodeFeedbackFailure, errors.CodeExternalService, errors.CodeLookupFailure, errors.CodeReportFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": errors.UserMessage(err), "code": errors.GetCode(err)})
}
