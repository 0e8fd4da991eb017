package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"botscan/internal"
	"botscan/internal/clock"
	"botscan/internal/errors"
	"botscan/internal/metrics"
	"botscan/models"
	"botscan/ports"
)

// EventType classifies published events
type EventType string

const (
	EventState  EventType = "state"
	EventLog    EventType = "log"
	EventNotice EventType = "notice"
	EventReset  EventType = "reset"
)

// Event is a change to a session's visible view
type Event struct {
	Type       EventType  `json:"type"`
	SessionID  string     `json:"session_id"`
	Generation Generation `json:"generation"`
	State      *State     `json:"state,omitempty"`
	Entry      *LogEntry  `json:"entry,omitempty"`
	Banner     string     `json:"banner,omitempty"`
	Notice     string     `json:"notice,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Publisher receives events in the order they happen. Publish is called
// with the orchestrator's lock held, so it must not block or call back
// into the orchestrator.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(event Event) { f(event) }

// MultiPublisher fans an event out to several publishers
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}

// View is what a rendering layer needs to draw a session
type View struct {
	SessionID   string     `json:"session_id"`
	State       State      `json:"state"`
	Log         []LogEntry `json:"log"`
	ErrorBanner string     `json:"error_banner,omitempty"`
	Notice      string     `json:"notice,omitempty"`
}

// Options configures an Orchestrator. Service is required.
type Options struct {
	SessionID string
	Service   ports.AnalysisService
	Clock     clock.Clock
	Script    *Script
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *internal.Logger
}

// Orchestrator drives one session's lookup then report pipeline. Every
// start or reset mints a new generation; results, timers and notices of
// older generations are dropped at the point they would be applied.
type Orchestrator struct {
	mu        sync.Mutex
	id        string
	service   ports.AnalysisService
	clock     clock.Clock
	script    Script
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *internal.Logger
	log       *DiagnosticLog

	gen         Generation
	state       State
	banner      string
	notice      string
	noticeSeq   uint64
	noticeTimer clock.Timer
	lastActive  time.Time
	closed      bool

	pipelines sync.WaitGroup
}

// NewOrchestrator creates an idle orchestrator at generation zero
func NewOrchestrator(opts Options) *Orchestrator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	script := DefaultScript()
	if opts.Script != nil {
		script = *opts.Script
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}

	o := &Orchestrator{
		id:        opts.SessionID,
		service:   opts.Service,
		clock:     clk,
		script:    script,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger.Named("Session"),
		log:       NewDiagnosticLog(clk),
	}
	now := clk.Now()
	o.state = Idle(0, now)
	o.lastActive = now

	o.log.setDeliver(o.deliverScheduled)
	o.log.OnDiscard(func(g Generation, text string) {
		o.metrics.StaleCompletion("timer")
		o.logger.Trace("session %s: dropped line %q of generation %d", o.id, text, g)
	})
	return o
}

// ID returns the session id the orchestrator was created with
func (o *Orchestrator) ID() string {
	return o.id
}

// StartAnalysis begins a new generation for username and returns it. The
// pipeline runs in the background; ctx is used for its values only, so
// cancelling it does not stop the remote calls.
func (o *Orchestrator) StartAnalysis(ctx context.Context, username string) (Generation, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.ValidationError("username is required")
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0, errors.InternalError("session is closed")
	}
	g := o.advanceGenerationLocked()
	o.setStateLocked(Scanning(username, g, o.clock.Now()))
	o.narrateLocked(g, o.script.Start, username, "")
	o.pipelines.Add(1)
	o.mu.Unlock()

	o.metrics.AnalysisStarted()
	o.logger.Info("session %s: analysis %d started for %s", o.id, g, username)

	go o.run(context.WithoutCancel(ctx), g, username)
	return g, nil
}

func (o *Orchestrator) run(ctx context.Context, g Generation, username string) {
	defer o.pipelines.Done()

	started := time.Now()
	profile, err := o.service.LookupProfile(ctx, username)
	o.metrics.ObserveRemote("lookup", started, err)
	if err != nil {
		o.fail(g, username, StageLookup, errors.LookupFailure(err))
		return
	}
	if profile == nil {
		o.fail(g, username, StageLookup, errors.LookupFailure(errors.ServiceError("empty profile")))
		return
	}

	loaded := *profile
	if !o.advance(g, "lookup", func(now time.Time) State {
		return ProfileLoaded(username, g, loaded, now)
	}) {
		return
	}

	started = time.Now()
	report, err := o.service.GenerateReport(ctx, &loaded)
	o.metrics.ObserveRemote("report", started, err)
	if err != nil {
		o.fail(g, username, StageReport, errors.ReportFailure(err))
		return
	}
	if report == nil {
		o.fail(g, username, StageReport, errors.ReportFailure(errors.ServiceError("empty report")))
		return
	}

	finished := *report
	if o.advance(g, "report", func(now time.Time) State {
		return Ready(username, g, loaded, finished, now)
	}) {
		o.metrics.AnalysisFinished("ready")
		o.logger.Info("session %s: analysis %d ready, %s (bot %d / human %d)",
			o.id, g, finished.Classification(), finished.BotConfidence, finished.HumanConfidence)
	}
}

// advance applies a successful step of generation g. It returns false when
// g has been superseded.
func (o *Orchestrator) advance(g Generation, source string, next func(time.Time) State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if g != o.gen || o.closed {
		o.dropStaleLocked(g, source)
		return false
	}

	state := next(o.clock.Now())
	if !canAdvance(o.state.Kind, state.Kind) {
		o.logger.Error("session %s: refusing transition %s -> %s in generation %d", o.id, o.state.Kind, state.Kind, g)
		return false
	}
	o.setStateLocked(state)

	switch state.Kind {
	case KindProfileLoaded:
		o.narrateLocked(g, o.script.ProfileLoaded, state.Username, "")
	case KindReady:
		o.narrateLocked(g, o.script.Ready, state.Username, state.Classification)
	}
	return true
}

func (o *Orchestrator) fail(g Generation, username string, stage Stage, err *errors.AppError) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if g != o.gen || o.closed {
		o.dropStaleLocked(g, string(stage))
		return
	}
	if !canAdvance(o.state.Kind, KindFailed) {
		o.logger.Error("session %s: refusing failure from %s in generation %d", o.id, o.state.Kind, g)
		return
	}

	o.banner = err.Message
	o.setStateLocked(Failed(username, g, stage, err.Message, o.clock.Now()))
	o.narrateLocked(g, o.script.Failed, username, "")
	o.metrics.AnalysisFinished("failed_" + string(stage))
	o.logger.Warn("session %s: analysis %d failed at %s: %v", o.id, g, stage, err.Cause)
}

func (o *Orchestrator) dropStaleLocked(g Generation, source string) {
	o.metrics.StaleCompletion(source)
	o.logger.Debug("session %s: dropped %s result of generation %d (current %d)", o.id, source, g, o.gen)
}

// Reset returns to Idle under a new generation, clearing the log and banners
func (o *Orchestrator) Reset() Generation {
	o.mu.Lock()
	defer o.mu.Unlock()

	g := o.advanceGenerationLocked()
	o.setStateLocked(Idle(g, o.clock.Now()))
	return g
}

// advanceGenerationLocked mints the next generation and clears everything
// that belonged to the previous one.
func (o *Orchestrator) advanceGenerationLocked() Generation {
	o.gen++
	g := o.gen
	o.log.Restart(g)
	o.banner = ""
	o.clearNoticeLocked()
	o.lastActive = o.clock.Now()
	o.publishLocked(Event{Type: EventReset, Generation: g})
	return g
}

// Boot narrates the idle console start-up in the current generation. Any
// analysis or reset supersedes it.
func (o *Orchestrator) Boot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.state.Kind != KindIdle {
		return
	}
	o.narrateLocked(o.gen, o.script.Boot, "", "")
}

// Narrate appends an immediate line to generation g's log
func (o *Orchestrator) Narrate(g Generation, text string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.appendLocked(g, text)
}

// NarrateExport brackets an export with the script's export lines.
func (o *Orchestrator) NarrateExport(g Generation, format string, done bool) bool {
	text := o.script.ExportStarted
	if done {
		text = o.script.ExportDone
	}
	return o.Narrate(g, Render(text, "", "", format))
}

// ShowNotice displays a transient banner that clears itself after ttl. A
// newer notice, analysis or reset replaces it.
func (o *Orchestrator) ShowNotice(text string, ttl time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.clearNoticeLocked()
	o.notice = text
	o.noticeSeq++
	token := o.noticeSeq
	if ttl > 0 {
		o.noticeTimer = o.clock.AfterFunc(ttl, func() { o.expireNotice(token) })
	}
	o.publishLocked(Event{Type: EventNotice, Generation: o.gen, Notice: text})
}

func (o *Orchestrator) expireNotice(token uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.noticeSeq || o.notice == "" {
		return
	}
	o.notice = ""
	o.noticeTimer = nil
	o.publishLocked(Event{Type: EventNotice, Generation: o.gen})
}

func (o *Orchestrator) clearNoticeLocked() {
	if o.noticeTimer != nil {
		o.noticeTimer.Stop()
		o.noticeTimer = nil
	}
	o.noticeSeq++
	o.notice = ""
}

// CurrentState returns the live state
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentGeneration returns the live generation
func (o *Orchestrator) CurrentGeneration() Generation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen
}

// Snapshot returns a consistent copy of the whole view
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		SessionID:   o.id,
		State:       o.state,
		Log:         o.log.Entries(),
		ErrorBanner: o.banner,
		Notice:      o.notice,
	}
}

// LastActive is when a generation was last minted
func (o *Orchestrator) LastActive() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastActive
}

// Narrating reports whether narration lines are still scheduled
func (o *Orchestrator) Narrating() bool {
	return o.log.Pending() > 0
}

// Wait blocks until every started pipeline has returned
func (o *Orchestrator) Wait() {
	o.pipelines.Wait()
}

// Close stops all timers. Pipelines still running finish in the background
// and their results are discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.clearNoticeLocked()
	o.log.Close()
}

func (o *Orchestrator) setStateLocked(s State) {
	o.state = s
	o.publishLocked(Event{Type: EventState, Generation: s.Generation, State: &s, Banner: o.banner})
}

func (o *Orchestrator) narrateLocked(g Generation, lines []Line, username string, verdict models.Classification) {
	for _, line := range lines {
		text := Render(line.Text, username, verdict, "")
		if line.Offset <= 0 {
			o.appendLocked(g, text)
			continue
		}
		o.log.Schedule(g, text, line.Offset)
	}
}

func (o *Orchestrator) appendLocked(g Generation, text string) bool {
	if g != o.gen {
		o.dropStaleLocked(g, "timer")
		return false
	}
	entry, ok := o.log.AppendNow(g, text)
	if ok {
		o.publishLocked(Event{Type: EventLog, Generation: g, Entry: &entry})
	}
	return ok
}

// deliverScheduled is the log's timer callback
func (o *Orchestrator) deliverScheduled(g Generation, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appendLocked(g, text)
}

func (o *Orchestrator) publishLocked(event Event) {
	if o.publisher == nil {
		return
	}
	event.SessionID = o.id
	event.Timestamp = o.clock.Now()
	o.publisher.Publish(event)
}
