package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botscan/adapters/api"
	"botscan/adapters/api/stub"
	"botscan/internal"
	"botscan/internal/config"
	"botscan/internal/container"
	"botscan/internal/errors"
	"botscan/internal/export"
	"botscan/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	remote *stub.Server
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	remote := stub.New(true)
	remoteSrv := httptest.NewServer(remote)
	t.Cleanup(remoteSrv.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", GinMode: "test"},
		Remote: config.RemoteConfig{URL: remoteSrv.URL + "/api", Timeout: 5 * time.Second, Burst: 1},
		Session: config.SessionConfig{
			NarrationScale: 0,
			NoticeTTL:      time.Minute,
			TTL:            time.Hour,
			SweepInterval:  time.Minute,
		},
		Metrics:  config.MetricsConfig{Enabled: true},
		LogLevel: "ERROR",
	}
	client := api.NewClient(api.ClientConfig{BaseURL: cfg.Remote.URL, Timeout: cfg.Remote.Timeout}, internal.NewLogger(internal.LogLevelError))
	c, err := container.New(context.Background(), cfg, container.WithService(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	return &fixture{remote: remote, server: NewServer(c)}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var view session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view.SessionID
}

func (f *fixture) view(t *testing.T, id string) session.View {
	t.Helper()
	w := f.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func (f *fixture) analyze(t *testing.T, id, username string) session.View {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", `{"username":"`+username+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var view session.View
	require.Eventually(t, func() bool {
		view = f.view(t, id)
		return view.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":"memory"`)
}

func TestServer_AnalyzeToReady(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	view := f.analyze(t, id, "alice")
	require.Equal(t, session.KindReady, view.State.Kind)
	assert.Equal(t, "alice", view.State.Username)
	assert.Empty(t, view.ErrorBanner)
	require.NotEmpty(t, view.Log)
	assert.Contains(t, view.Log[len(view.Log)-1].Text, "HUMAN")
}

func TestServer_LookupFailureShowsBanner(t *testing.T) {
	f := newFixture(t)
	f.remote.FailLookup("bob", stub.Failure{Status: http.StatusTooManyRequests, Message: "rate limited"})
	id := f.createSession(t)

	view := f.analyze(t, id, "bob")
	require.Equal(t, session.KindFailed, view.State.Kind)
	assert.Equal(t, session.StageLookup, view.State.Stage)
	assert.Equal(t, "rate limited", view.ErrorBanner)
}

func TestServer_AnalyzeValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", `{"username":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, session.KindIdle, f.view(t, id).State.Kind)

	w = f.do(t, http.MethodPost, "/api/sessions/not-a-uuid/analyze", `{"username":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/api/sessions/00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ExportRequiresReady(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	w := f.do(t, http.MethodGet, "/api/sessions/"+id+"/export?format=markdown", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	f.analyze(t, id, "bot42")
	w = f.do(t, http.MethodGet, "/api/sessions/"+id+"/export?format=markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bot42-report.md")
	assert.Contains(t, w.Body.String(), "BOT")

	log := f.view(t, id).Log
	require.GreaterOrEqual(t, len(log), 2)
	assert.Equal(t, "GENERATING MARKDOWN REPORT...", log[len(log)-2].Text)
	assert.Equal(t, "MARKDOWN EXPORT COMPLETE", log[len(log)-1].Text)

	w = f.do(t, http.MethodGet, "/api/sessions/"+id+"/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type renderFunc func(view session.View, format export.Format) (*export.Artifact, error)

func (f renderFunc) Export(view session.View, format export.Format) (*export.Artifact, error) {
	return f(view, format)
}

func TestServer_ExportNarratesStartBeforeRendering(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	f.analyze(t, id, "alice")
	o, err := f.server.sessions.Get(id)
	require.NoError(t, err)

	var atRender []session.LogEntry
	f.server.exporter = renderFunc(func(view session.View, format export.Format) (*export.Artifact, error) {
		atRender = o.Snapshot().Log
		return nil, errors.InternalError("render failed")
	})

	w := f.do(t, http.MethodGet, "/api/sessions/"+id+"/export?format=html", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	require.NotEmpty(t, atRender)
	assert.Equal(t, "GENERATING HTML REPORT...", atRender[len(atRender)-1].Text)

	log := f.view(t, id).Log
	assert.Equal(t, "GENERATING HTML REPORT...", log[len(log)-1].Text)
	for _, entry := range log {
		assert.NotEqual(t, "HTML EXPORT COMPLETE", entry.Text)
	}
}

func TestServer_FeedbackFlow(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	f.analyze(t, id, "alice")
	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/api/history/alice", "")
		return strings.Contains(w.Body.String(), `"scans":1`)
	}, 5*time.Second, 10*time.Millisecond)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/feedback", `{"verdict":"accurate","comment":"looks right"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "FEEDBACK RECEIVED // THANK YOU FOR YOUR INPUT", f.view(t, id).Notice)

	received := f.remote.Feedback()
	require.Len(t, received, 1)
	assert.Equal(t, "alice", received[0].Username)
	assert.Equal(t, "HUMAN", received[0].Prediction)

	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/api/history/alice", "")
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"feedback_count":1`)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_FeedbackFailureKeepsDraft(t *testing.T) {
	f := newFixture(t)
	f.remote.FailFeedback(&stub.Failure{Status: http.StatusBadRequest, Message: "database unavailable"})
	id := f.createSession(t)
	f.analyze(t, id, "alice")
	before := f.view(t, id)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/feedback", `{"verdict":"inaccurate","comment":"wrong"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var body struct {
		Error string            `json:"error"`
		Draft map[string]string `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "database unavailable", body.Error)
	assert.Equal(t, "inaccurate", body.Draft["verdict"])
	assert.Equal(t, "wrong", body.Draft["comment"])

	after := f.view(t, id)
	assert.Equal(t, before.State, after.State, "feedback never touches analysis state")
	assert.Empty(t, after.Notice)
}

func TestServer_FeedbackValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/feedback", `{"username":"alice","verdict":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "verdict must be one of")
	assert.Empty(t, f.remote.Feedback())
}

func TestServer_ResetAndDelete(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	f.analyze(t, id, "alice")

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := f.view(t, id)
	assert.Equal(t, session.KindIdle, view.State.Kind)
	assert.Empty(t, view.Log)

	w = f.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	f.analyze(t, id, "alice")

	w := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "botscan_session_analyses_started_total 1")
}
