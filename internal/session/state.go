package session

import (
	"time"

	"botscan/models"
)

// Generation identifies one analysis attempt. Results tagged with a
// generation other than the current one are discarded.
type Generation uint64

// Kind tags a State
type Kind string

const (
	KindIdle          Kind = "idle"
	KindScanning      Kind = "scanning"
	KindProfileLoaded Kind = "profile_loaded"
	KindReady         Kind = "ready"
	KindFailed        Kind = "failed"
)

// Stage is where a failed pipeline stopped
type Stage string

const (
	StageLookup Stage = "lookup"
	StageReport Stage = "report"
)

// State is one immutable snapshot of a session. Fields beyond Kind and
// Generation are set only for the kinds that carry them:
//
//	Scanning       Username
//	ProfileLoaded  Username, Profile
//	Ready          Username, Profile, Report, Classification
//	Failed         Username, Stage, Message
type State struct {
	Kind           Kind                  `json:"kind"`
	Generation     Generation            `json:"generation"`
	Username       string                `json:"username,omitempty"`
	Profile        *models.Profile       `json:"profile,omitempty"`
	Report         *models.Report        `json:"report,omitempty"`
	Classification models.Classification `json:"classification,omitempty"`
	Stage          Stage                 `json:"stage,omitempty"`
	Message        string                `json:"message,omitempty"`
	EnteredAt      time.Time             `json:"entered_at"`
}

func Idle(g Generation, at time.Time) State {
	return State{Kind: KindIdle, Generation: g, EnteredAt: at}
}

func Scanning(username string, g Generation, at time.Time) State {
	return State{Kind: KindScanning, Generation: g, Username: username, EnteredAt: at}
}

func ProfileLoaded(username string, g Generation, profile models.Profile, at time.Time) State {
	return State{Kind: KindProfileLoaded, Generation: g, Username: username, Profile: &profile, EnteredAt: at}
}

func Ready(username string, g Generation, profile models.Profile, report models.Report, at time.Time) State {
	return State{
		Kind:           KindReady,
		Generation:     g,
		Username:       username,
		Profile:        &profile,
		Report:         &report,
		Classification: report.Classification(),
		EnteredAt:      at,
	}
}

func Failed(username string, g Generation, stage Stage, message string, at time.Time) State {
	return State{Kind: KindFailed, Generation: g, Username: username, Stage: stage, Message: message, EnteredAt: at}
}

// Terminal reports whether the generation's pipeline has finished
func (s State) Terminal() bool {
	return s.Kind == KindReady || s.Kind == KindFailed
}

// Busy reports whether a remote call is in flight for the generation
func (s State) Busy() bool {
	return s.Kind == KindScanning || s.Kind == KindProfileLoaded
}

// allowedWithinGeneration lists the transitions a pipeline may make without
// minting a new generation. Everything else goes through StartAnalysis or Reset.
var allowedWithinGeneration = map[Kind][]Kind{
	KindScanning:      {KindProfileLoaded, KindFailed},
	KindProfileLoaded: {KindReady, KindFailed},
}

func canAdvance(from, to Kind) bool {
	for _, k := range allowedWithinGeneration[from] {
		if k == to {
			return true
		}
	}
	return false
}
