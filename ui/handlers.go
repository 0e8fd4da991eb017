package ui

import (
	"fmt"
	"net/http"
	"strconv"

	"botscan/internal/errors"
	"botscan/internal/export"
	"botscan/internal/feedback"
	"botscan/internal/session"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 20

// HandleHealth reports liveness and the history backend
func (s *Server) HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"sessions": s.sessions.Len(),
			"history":  s.history.Backend(),
		})
	}
}

// HandleCreateSession opens a session and starts its boot narration
func (s *Server) HandleCreateSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, o := s.sessions.Create()
		o.Boot()
		c.JSON(http.StatusCreated, o.Snapshot())
		s.logger.Debug("session %s opened", id)
	}
}

func (s *Server) HandleGetSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, currentSession(c).Snapshot())
	}
}

func (s *Server) HandleDeleteSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		o := currentSession(c)
		s.sessions.Remove(o.ID())
		s.hub.Disconnect(o.ID())
		c.Status(http.StatusNoContent)
	}
}

type analyzeRequest struct {
	Username string `json:"username"`
}

// HandleAnalyze starts a new generation. The pipeline runs in the
// background; progress arrives over the event stream.
func (s *Server) HandleAnalyze() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.ValidationError("invalid request body"))
			return
		}

		o := currentSession(c)
		g, err := o.StartAnalysis(c.Request.Context(), req.Username)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"session_id": o.ID(), "generation": g, "state": o.CurrentState()})
	}
}

func (s *Server) HandleReset() gin.HandlerFunc {
	return func(c *gin.Context) {
		o := currentSession(c)
		o.Reset()
		c.JSON(http.StatusOK, o.Snapshot())
	}
}

func (s *Server) HandleEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.hub.HandleSSE(currentSession(c))(c)
	}
}

// HandleFeedback submits the form. The username and prediction default to
// the session's current account and verdict. A failed submission echoes the
// draft back unchanged.
func (s *Server) HandleFeedback() gin.HandlerFunc {
	return func(c *gin.Context) {
		var draft feedback.Draft
		if err := c.ShouldBindJSON(&draft); err != nil {
			respondError(c, errors.ValidationError("invalid request body"))
			return
		}

		o := currentSession(c)
		st := o.CurrentState()
		draft.SessionID = o.ID()
		if draft.Username == "" {
			draft.Username = st.Username
		}
		if draft.Prediction == "" && st.Kind == session.KindReady {
			draft.Prediction = st.Classification.Label()
		}

		ack, err := s.feedback.Submit(c.Request.Context(), &draft)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": errors.UserMessage(err), "code": errors.GetCode(err), "draft": draft})
			return
		}
		o.ShowNotice(feedback.SuccessNotice, s.noticeTTL)
		c.JSON(http.StatusOK, gin.H{"message": ack.Message, "notice": feedback.SuccessNotice})
	}
}

// HandleExport renders the session's report as a download
func (s *Server) HandleExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			respondError(c, err)
			return
		}

		o := currentSession(c)
		view := o.Snapshot()
		if err := export.CheckReady(view); err != nil {
			respondError(c, err)
			return
		}

		o.NarrateExport(view.State.Generation, string(format), false)
		artifact, err := s.exporter.Export(view, format)
		if err != nil {
			respondError(c, err)
			return
		}
		o.NarrateExport(view.State.Generation, string(format), true)

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
	}
}

// HandleHistory returns recent scans and aggregate statistics for a username
func (s *Server) HandleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				respondError(c, errors.ValidationError("limit must be a positive integer"))
				return
			}
			limit = n
		}

		scans, err := s.history.Recent(c.Request.Context(), username, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := s.history.Summary(c.Request.Context(), username)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": summary, "scans": scans, "backend": s.history.Backend()})
	}
}
