package session

import (
	"sync"
	"time"

	"botscan/internal/clock"
)

// LogEntry is one visible console line
type LogEntry struct {
	Generation Generation `json:"generation"`
	EmittedAt  time.Time  `json:"emitted_at"`
	Text       string     `json:"text"`
}

// DiagnosticLog is the time-ordered console narration of the current
// generation. Appends for any other generation are discarded, whether they
// come from AppendNow or a scheduled timer.
type DiagnosticLog struct {
	mu      sync.Mutex
	clock   clock.Clock
	current Generation
	entries []LogEntry
	timers  map[uint64]clock.Timer
	nextID  uint64
	closed  bool

	// deliver is called when a scheduled line comes due. The default
	// appends it directly; the orchestrator routes it through its own lock.
	deliver func(g Generation, text string)
	// discarded is told about every append refused for staleness.
	discarded func(g Generation, text string)
}

// NewDiagnosticLog creates an empty log at generation zero
func NewDiagnosticLog(clk clock.Clock) *DiagnosticLog {
	if clk == nil {
		clk = clock.Real{}
	}
	l := &DiagnosticLog{
		clock:  clk,
		timers: make(map[uint64]clock.Timer),
	}
	l.deliver = func(g Generation, text string) { l.AppendNow(g, text) }
	return l
}

// OnDiscard registers a callback for stale appends. It runs without the
// log's lock held.
func (l *DiagnosticLog) OnDiscard(fn func(g Generation, text string)) {
	l.mu.Lock()
	l.discarded = fn
	l.mu.Unlock()
}

func (l *DiagnosticLog) setDeliver(fn func(g Generation, text string)) {
	l.mu.Lock()
	l.deliver = fn
	l.mu.Unlock()
}

// Restart begins a fresh sequence for g. Earlier entries are dropped and
// pending timers are stopped; any that already fired will find their
// generation stale.
func (l *DiagnosticLog) Restart(g Generation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = g
	l.entries = nil
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

// Current returns the generation the log accepts
func (l *DiagnosticLog) Current() Generation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// AppendNow appends text if g is current. EmittedAt never goes backwards
// even if the clock does.
func (l *DiagnosticLog) AppendNow(g Generation, text string) (LogEntry, bool) {
	l.mu.Lock()
	if g != l.current || l.closed {
		discarded := l.discarded
		l.mu.Unlock()
		if discarded != nil {
			discarded(g, text)
		}
		return LogEntry{}, false
	}

	now := l.clock.Now()
	if n := len(l.entries); n > 0 && now.Before(l.entries[n-1].EmittedAt) {
		now = l.entries[n-1].EmittedAt
	}
	entry := LogEntry{Generation: g, EmittedAt: now, Text: text}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return entry, true
}

// Schedule appends text after delay if g is still current then. A
// non-positive delay appends immediately.
func (l *DiagnosticLog) Schedule(g Generation, text string, delay time.Duration) {
	if delay <= 0 {
		l.AppendNow(g, text)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || g != l.current {
		return
	}
	l.nextID++
	id := l.nextID
	l.timers[id] = l.clock.AfterFunc(delay, func() { l.fire(id, g, text) })
}

func (l *DiagnosticLog) fire(id uint64, g Generation, text string) {
	l.mu.Lock()
	delete(l.timers, id)
	deliver := l.deliver
	l.mu.Unlock()
	deliver(g, text)
}

// Pending counts scheduled lines that have not fired
func (l *DiagnosticLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Entries returns a copy of the visible sequence
func (l *DiagnosticLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Close stops all timers and refuses further appends
func (l *DiagnosticLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
