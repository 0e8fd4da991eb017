package models

// Classification is the verdict derived from a report's two confidence scores
type Classification string

const (
	ClassificationHuman Classification = "human"
	ClassificationBot   Classification = "bot"
)

// Label is the upper-case form used in console narration
func (c Classification) Label() string {
	if c == ClassificationBot {
		return "BOT"
	}
	return "HUMAN"
}

// Default values for report fields the generator may leave out
const (
	DefaultAccuracy           = 92
	DefaultPrecision          = 94
	DefaultRecall             = 91
	DefaultActivityScore      = 50
	DefaultNormalActivity     = 60
	DefaultSuspiciousActivity = 20
	DefaultRepeatedActivity   = 20
)

// ModelMetrics describes the classifier's published quality
type ModelMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// BehaviorPattern is one observed behavior and whether it looks automated
type BehaviorPattern struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsSuspicious bool   `json:"isSuspicious"`
}

// ActivityMetric is one slice of the activity distribution
type ActivityMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// HourlyActivity is the activity level for one hour of the day
type HourlyActivity struct {
	Hour     int     `json:"hour"`
	Activity float64 `json:"activity"`
}

// AccountData holds the derived per-account counters
type AccountData struct {
	AccountAge           int     `json:"accountAge"`
	TotalPosts           int     `json:"totalPosts"`
	TotalComments        int     `json:"totalComments"`
	AvgResponseTime      float64 `json:"avgResponseTime"`
	SuspiciousActivities int     `json:"suspiciousActivities"`
	RepeatedPhrases      int     `json:"repeatedPhrases"`
	SimilarAccounts      int     `json:"similarAccounts"`
	ReportCount          int     `json:"reportCount"`
}

// ContentMetric is one axis of the content analysis
type ContentMetric struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// PhraseCount is a frequently repeated phrase
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// ContentStats summarizes the account's writing
type ContentStats struct {
	TotalWords    int           `json:"totalWords"`
	UniqueWords   int           `json:"uniqueWords"`
	AvgSentiment  float64       `json:"avgSentiment"`
	CommonPhrases []PhraseCount `json:"commonPhrases"`
}

// ContentAnalysis is the optional writing analysis block
type ContentAnalysis struct {
	Metrics []ContentMetric `json:"metrics"`
	Stats   ContentStats    `json:"stats"`
}

// Report is the generated behavior analysis for a profile. Confidence values
// are independent; they need not sum to 100.
type Report struct {
	BotConfidence        int               `json:"botConfidence"`
	HumanConfidence      int               `json:"humanConfidence"`
	ActivityScore        float64           `json:"activityScore"`
	SuspiciousActivities int               `json:"suspiciousActivities"`
	BehaviorPatterns     []BehaviorPattern `json:"behaviorPatterns"`
	ContentAnalysis      *ContentAnalysis  `json:"contentAnalysis,omitempty"`
	ModelMetrics         ModelMetrics      `json:"modelMetrics"`
	AnalysisResult       string            `json:"analysisResult"`
	KeyIndicators        string            `json:"keyIndicators"`
	AccountData          AccountData       `json:"accountData"`
	ActivityMetrics      []ActivityMetric  `json:"activityMetrics"`
	HourlyActivity       []HourlyActivity  `json:"hourlyActivity"`
	NormalActivity       float64           `json:"normalActivity"`
	SuspiciousActivity   float64           `json:"suspiciousActivity"`
	RepeatedActivity     float64           `json:"repeatedActivity"`

	// Older generators put the metrics at the top level.
	LegacyAccuracy  *float64 `json:"accuracy,omitempty"`
	LegacyPrecision *float64 `json:"precision,omitempty"`
	LegacyRecall    *float64 `json:"recall,omitempty"`
}

// ApplyDefaults normalizes a decoded report so consumers never see zero
// placeholders or out-of-range confidences.
func (r *Report) ApplyDefaults() {
	r.BotConfidence = clampConfidence(r.BotConfidence)
	r.HumanConfidence = clampConfidence(r.HumanConfidence)

	if r.LegacyAccuracy != nil && r.ModelMetrics.Accuracy == 0 {
		r.ModelMetrics.Accuracy = *r.LegacyAccuracy
	}
	if r.LegacyPrecision != nil && r.ModelMetrics.Precision == 0 {
		r.ModelMetrics.Precision = *r.LegacyPrecision
	}
	if r.LegacyRecall != nil && r.ModelMetrics.Recall == 0 {
		r.ModelMetrics.Recall = *r.LegacyRecall
	}
	r.LegacyAccuracy, r.LegacyPrecision, r.LegacyRecall = nil, nil, nil

	if r.ModelMetrics.Accuracy == 0 {
		r.ModelMetrics.Accuracy = DefaultAccuracy
	}
	if r.ModelMetrics.Precision == 0 {
		r.ModelMetrics.Precision = DefaultPrecision
	}
	if r.ModelMetrics.Recall == 0 {
		r.ModelMetrics.Recall = DefaultRecall
	}
	if r.ActivityScore == 0 {
		r.ActivityScore = DefaultActivityScore
	}
	if r.SuspiciousActivities == 0 {
		r.SuspiciousActivities = r.AccountData.SuspiciousActivities
	}
	if r.NormalActivity == 0 && r.SuspiciousActivity == 0 && r.RepeatedActivity == 0 {
		r.NormalActivity = DefaultNormalActivity
		r.SuspiciousActivity = DefaultSuspiciousActivity
		r.RepeatedActivity = DefaultRepeatedActivity
	}
	if r.BehaviorPatterns == nil {
		r.BehaviorPatterns = []BehaviorPattern{}
	}
	if r.ActivityMetrics == nil {
		r.ActivityMetrics = []ActivityMetric{}
	}
	if r.HourlyActivity == nil {
		r.HourlyActivity = []HourlyActivity{}
	}
}

// Classification picks the larger confidence; a tie counts as human.
func (r *Report) Classification() Classification {
	if r.HumanConfidence >= r.BotConfidence {
		return ClassificationHuman
	}
	return ClassificationBot
}

// SuspiciousPatterns counts behavior patterns flagged as suspicious
func (r *Report) SuspiciousPatterns() int {
	n := 0
	for _, p := range r.BehaviorPatterns {
		if p.IsSuspicious {
			n++
		}
	}
	return n
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
