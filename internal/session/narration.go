package session

import (
	"strings"
	"time"

	"botscan/models"
)

// Line is one narration entry, appended Offset after the phase it belongs
// to begins. A zero offset appends immediately.
type Line struct {
	Offset time.Duration
	Text   string
}

// Script is the console narration for each phase of a session. Texts may
// use {username}, {verdict} and {format} placeholders.
type Script struct {
	Boot          []Line
	Start         []Line
	ProfileLoaded []Line
	Ready         []Line
	Failed        []Line
	ExportStarted string
	ExportDone    string
}

// DefaultScript is the narration of the reference terminal UI
func DefaultScript() Script {
	return Script{
		Boot: []Line{
			{Offset: 500 * time.Millisecond, Text: "INITIALIZING SYSTEM..."},
			{Offset: 1500 * time.Millisecond, Text: "LOADING NEURAL NETWORK MODULES..."},
			{Offset: 3000 * time.Millisecond, Text: "CALIBRATING BOT DETECTION ALGORITHMS..."},
			{Offset: 5000 * time.Millisecond, Text: "REDDIT BOT DETECTOR V1.0 READY"},
			{Offset: 7500 * time.Millisecond, Text: "INPUT USERNAME TO BEGIN ANALYSIS"},
		},
		Start: []Line{
			{Offset: 0, Text: "INITIATING SCAN: {username}"},
			{Offset: 500 * time.Millisecond, Text: "RETRIEVING USER DATA..."},
			{Offset: 1000 * time.Millisecond, Text: "CONNECTING TO REDDIT API..."},
		},
		ProfileLoaded: []Line{
			{Offset: 1500 * time.Millisecond, Text: "USER DATA RETRIEVED SUCCESSFULLY"},
			{Offset: 2000 * time.Millisecond, Text: "GENERATING BEHAVIOR ANALYSIS..."},
		},
		Ready: []Line{
			{Offset: 2500 * time.Millisecond, Text: "ANALYSIS COMPLETE"},
			{Offset: 3000 * time.Millisecond, Text: "CONFIDENCE: {verdict} ACCOUNT DETECTED"},
		},
		Failed: []Line{
			{Offset: 1000 * time.Millisecond, Text: "ERROR IN ANALYSIS SEQUENCE"},
		},
		ExportStarted: "GENERATING {format} REPORT...",
		ExportDone:    "{format} EXPORT COMPLETE",
	}
}

// Scaled multiplies every offset by factor. A factor of zero makes all
// narration immediate.
func (s Script) Scaled(factor float64) Script {
	if factor == 1 {
		return s
	}
	scale := func(lines []Line) []Line {
		out := make([]Line, len(lines))
		for i, l := range lines {
			out[i] = Line{Offset: time.Duration(float64(l.Offset) * factor), Text: l.Text}
		}
		return out
	}
	s.Boot = scale(s.Boot)
	s.Start = scale(s.Start)
	s.ProfileLoaded = scale(s.ProfileLoaded)
	s.Ready = scale(s.Ready)
	s.Failed = scale(s.Failed)
	return s
}

// Render fills placeholders in text
func Render(text, username string, verdict models.Classification, format string) string {
	return strings.NewReplacer(
		"{username}", username,
		"{verdict}", verdict.Label(),
		"{format}", strings.ToUpper(format),
	).Replace(text)
}
