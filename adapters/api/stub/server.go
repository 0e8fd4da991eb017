// Package stub serves a fake remote analysis service for development and
// tests. Routes mirror the reference API under /api.
package stub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"botscan/internal/testkit"
	"botscan/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Failure is a canned error response
type Failure struct {
	Status  int
	Message string
}

// Server is an in-memory remote analysis service
type Server struct {
	router chi.Router

	mu             sync.Mutex
	profiles       map[string]models.Profile
	reports        map[string]models.Report
	lookupFailures map[string]Failure
	reportFailures map[string]Failure
	feedbackFail   *Failure
	feedback       []models.FeedbackRecord
	delay          time.Duration
	autoProfiles   bool
}

// New creates a stub. With autoProfiles, unknown usernames get a generated
// profile instead of a 404.
func New(autoProfiles bool) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		profiles:       make(map[string]models.Profile),
		reports:        make(map[string]models.Report),
		lookupFailures: make(map[string]Failure),
		reportFailures: make(map[string]Failure),
		autoProfiles:   autoProfiles,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Post("/generate-report", s.handleGenerateReport)
		r.Post("/feedback", s.handleFeedback)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) AddProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[key(p.ScreenName)] = p
}

// SetReport fixes the report returned for username
func (s *Server) SetReport(username string, r models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[key(username)] = r
}

func (s *Server) FailLookup(username string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupFailures[key(username)] = f
}

func (s *Server) FailReport(username string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportFailures[key(username)] = f
}

// FailFeedback makes feedback submissions fail; nil restores success
func (s *Server) FailFeedback(f *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbackFail = f
}

// SetDelay makes every response wait d
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Feedback returns every feedback record received
func (s *Server) Feedback() []models.FeedbackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FeedbackRecord, len(s.feedback))
	copy(out, s.feedback)
	return out
}

func (s *Server) wait(r *http.Request) {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-r.Context().Done():
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	s.wait(r)
	var req struct {
		ScreenName string `json:"screen_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ScreenName) == "" {
		writeError(w, http.StatusBadRequest, "Missing username")
		return
	}

	s.mu.Lock()
	failure, failed := s.lookupFailures[key(req.ScreenName)]
	profile, known := s.profiles[key(req.ScreenName)]
	s.mu.Unlock()

	if failed {
		writeError(w, failure.Status, failure.Message)
		return
	}
	if !known {
		if !s.autoProfiles {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		profile = testkit.Profile(req.ScreenName)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userData":     profile,
		"analysisDate": time.Now().Format("2006-01-02 15:04:05"),
	})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	s.wait(r)
	var req struct {
		UserData *models.Profile `json:"userData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserData == nil {
		writeError(w, http.StatusBadRequest, "No user data provided")
		return
	}

	s.mu.Lock()
	failure, failed := s.reportFailures[key(req.UserData.ScreenName)]
	report, fixed := s.reports[key(req.UserData.ScreenName)]
	s.mu.Unlock()

	if failed {
		writeError(w, failure.Status, failure.Message)
		return
	}
	if !fixed {
		report = testkit.ReportFor(*req.UserData)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Report generated successfully",
		"report":  report,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	s.wait(r)
	var record models.FeedbackRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	failure := s.feedbackFail
	if failure == nil {
		s.feedback = append(s.feedback, record)
	}
	s.mu.Unlock()

	if failure != nil {
		writeError(w, failure.Status, failure.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback submitted successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
