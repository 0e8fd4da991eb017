package testkit

import (
	"fmt"
	"strings"

	"botscan/models"
)

// Profile builds a deterministic account. Usernames containing "bot" are
// flagged as automated.
func Profile(username string) models.Profile {
	isBot := strings.Contains(strings.ToLower(username), "bot")
	p := models.Profile{
		Name:         username,
		ScreenName:   username,
		CakeDay:      "2019-04-12",
		CommentKarma: 5210,
		PostKarma:    1380,
		ListedCount:  420,
		Verified:     true,
		IsBot:        isBot,
		Achievements: []string{"Verified Email", "Five-Year Club"},
		TrophyCase:   []string{"Place 2022"},
	}
	if isBot {
		p.CakeDay = "2024-11-02"
		p.CommentKarma = 48210
		p.PostKarma = 91
		p.ListedCount = 9800
		p.Verified = false
		p.Achievements = []string{}
		p.TrophyCase = []string{}
	}
	return p
}

// ReportFor mirrors the remote generator's fallback analysis for p
func ReportFor(p models.Profile) models.Report {
	total := p.ListedCount
	suspicious := min(total/100, 100)
	repeated := min(total/200, 50)
	bot := 25
	if p.IsBot {
		bot = 85
		suspicious = min(suspicious+20, 100)
		repeated = min(repeated+10, 50)
	}

	r := models.Report{
		BotConfidence:        bot,
		HumanConfidence:      100 - bot,
		ActivityScore:        6.2,
		SuspiciousActivities: suspicious,
		ModelMetrics:         models.ModelMetrics{Accuracy: 92, Precision: 94, Recall: 91},
		AnalysisResult:       "This account displays patterns typical of genuine human activity.",
		KeyIndicators:        "Normal posting frequency, varied content, typical activity hours, minimal automated behaviors.",
		AccountData: models.AccountData{
			TotalPosts:           p.PostKarma,
			TotalComments:        p.CommentKarma,
			AvgResponseTime:      45,
			SuspiciousActivities: suspicious,
			RepeatedPhrases:      repeated,
			SimilarAccounts:      1,
		},
		ActivityMetrics: []models.ActivityMetric{
			{Name: "Normal Activity", Value: 68, Color: "#22c55e"},
			{Name: "Repeated Content", Value: 22, Color: "#eab308"},
			{Name: "Suspicious Activity", Value: 10, Color: "#ef4444"},
		},
		BehaviorPatterns: []models.BehaviorPattern{
			{Name: "Content Variety", Description: "Natural variety in writing style and response patterns"},
			{Name: "Posting Frequency", Description: "Natural posting rhythm with variations in frequency"},
		},
		NormalActivity:     68,
		SuspiciousActivity: 10,
		RepeatedActivity:   22,
	}
	if p.IsBot {
		r.ActivityScore = 8.5
		r.AnalysisResult = "This account displays multiple indicators consistent with automated behavior."
		r.KeyIndicators = fmt.Sprintf("High posting frequency, repetitive content patterns, unusual activity hours, %d flagged actions.", suspicious)
		r.AccountData.AvgResponseTime = 12
		r.AccountData.SimilarAccounts = 8
		r.AccountData.ReportCount = 5
		r.ActivityMetrics[0].Value, r.ActivityMetrics[1].Value, r.ActivityMetrics[2].Value = 30, 40, 30
		r.NormalActivity, r.RepeatedActivity, r.SuspiciousActivity = 30, 40, 30
		for i := range r.BehaviorPatterns {
			r.BehaviorPatterns[i].IsSuspicious = true
		}
		r.BehaviorPatterns[0].Description = fmt.Sprintf("Low variety of content with %d repeated phrases detected", repeated)
		r.BehaviorPatterns[1].Description = fmt.Sprintf("Consistent high-frequency posting with %d total interactions", total)
	}
	return r
}
