package main

import (
	"bytes"
	"testing"
	"time"

	"botscan/internal/session"
	"botscan/internal/testkit"
	"botscan/models"

	"github.com/stretchr/testify/assert"
)

func TestPrintSummary(t *testing.T) {
	report := models.Report{
		BotConfidence:   85,
		HumanConfidence: 15,
		ActivityScore:   72.5,
		BehaviorPatterns: []models.BehaviorPattern{
			{Name: "Posting cadence", IsSuspicious: true},
			{Name: "Reply latency", IsSuspicious: true},
			{Name: "Vocabulary", IsSuspicious: false},
		},
	}
	st := session.Ready("spambot", 1, testkit.Profile("spambot"), report, time.Now())

	var out bytes.Buffer
	printSummary(&out, st)

	assert.Contains(t, out.String(), "verdict:    BOT")
	assert.Contains(t, out.String(), "bot:        85%")
	assert.Contains(t, out.String(), "activity:   72.5")
	assert.Contains(t, out.String(), "suspicious: 2 pattern(s)")
}

func TestPrintSummary_NoSuspiciousPatterns(t *testing.T) {
	st := session.Ready("alice", 1, testkit.Profile("alice"), models.Report{BotConfidence: 10, HumanConfidence: 90}, time.Now())

	var out bytes.Buffer
	printSummary(&out, st)

	assert.Contains(t, out.String(), "verdict:    HUMAN")
	assert.NotContains(t, out.String(), "suspicious")
}
