package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Classification(t *testing.T) {
	tests := []struct {
		name  string
		bot   int
		human int
		want  Classification
	}{
		{name: "human wins", bot: 30, human: 70, want: ClassificationHuman},
		{name: "bot wins", bot: 81, human: 19, want: ClassificationBot},
		{name: "tie favors human", bot: 50, human: 50, want: ClassificationHuman},
		{name: "not complementary", bot: 40, human: 45, want: ClassificationHuman},
		{name: "both zero", bot: 0, human: 0, want: ClassificationHuman},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report{BotConfidence: tt.bot, HumanConfidence: tt.human}
			assert.Equal(t, tt.want, r.Classification())
		})
	}
}

func TestReport_ApplyDefaults(t *testing.T) {
	var r Report
	require.NoError(t, json.Unmarshal([]byte(`{"botConfidence": 140, "humanConfidence": -3}`), &r))
	r.ApplyDefaults()

	assert.Equal(t, 100, r.BotConfidence)
	assert.Equal(t, 0, r.HumanConfidence)
	assert.Equal(t, ModelMetrics{Accuracy: 92, Precision: 94, Recall: 91}, r.ModelMetrics)
	assert.Equal(t, float64(DefaultActivityScore), r.ActivityScore)
	assert.Equal(t, float64(DefaultNormalActivity), r.NormalActivity)
	assert.NotNil(t, r.BehaviorPatterns)
	assert.NotNil(t, r.HourlyActivity)
}

func TestReport_ApplyDefaultsFoldsLegacyMetrics(t *testing.T) {
	var r Report
	payload := `{"accuracy": 88, "precision": 90, "recall": 85, "botConfidence": 72, "humanConfidence": 28,
		"accountData": {"suspiciousActivities": 31}, "activityScore": 8.5}`
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	r.ApplyDefaults()

	assert.Equal(t, ModelMetrics{Accuracy: 88, Precision: 90, Recall: 85}, r.ModelMetrics)
	assert.Nil(t, r.LegacyAccuracy)
	assert.Equal(t, 31, r.SuspiciousActivities)
	assert.Equal(t, 8.5, r.ActivityScore)
	assert.Equal(t, ClassificationBot, r.Classification())
}

func TestProfile_ApplyDefaults(t *testing.T) {
	p := Profile{PostKarma: 10, CommentKarma: 5}
	p.ApplyDefaults("alice")

	assert.Equal(t, "alice", p.ScreenName)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, []string{}, p.Achievements)
	assert.Equal(t, 15, p.TotalKarma())
}

func TestVerdict_Valid(t *testing.T) {
	for _, v := range Verdicts {
		assert.True(t, v.Valid(), string(v))
	}
	assert.False(t, Verdict("maybe").Valid())
	assert.False(t, Verdict("").Valid())
}

func TestJSONB_ScanRoundTrip(t *testing.T) {
	src := JSONB[Profile]{V: Profile{Name: "Alice", ScreenName: "alice", Verified: true}}
	raw, err := src.Value()
	require.NoError(t, err)

	var dst JSONB[Profile]
	require.NoError(t, dst.Scan(raw))
	assert.Equal(t, src.V, dst.V)

	assert.Error(t, dst.Scan(42))
	assert.NoError(t, dst.Scan(nil))
}
