package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context-engine/internal/models"
)

func newTestScorer(now time.Time) *Scorer {
	s := New()
	s.now = func() time.Time { return now }
	return s
}

func TestScoreWithBreakdown_EmptySnapshot(t *testing.T) {
	s := New()

	b := s.ScoreWithBreakdown(map[string]interface{}{}, models.AgentCustomerSuccess)

	assert.Equal(t, 0.0, b.Completeness, "nothing expected is covered")
	assert.Equal(t, 0.0, b.AgentRelevance)
	assert.Equal(t, defaultRecency, b.Recency, "no timestamp falls back to the neutral default")
	assert.Equal(t, 1.0, b.DataQuality, "nothing to check means nothing failed")
	assert.InDelta(t, 0.25, b.Overall, 1e-9)
}

func TestScoreWithBreakdown_NilSnapshot(t *testing.T) {
	s := New()

	b := s.ScoreWithBreakdown(nil, models.AgentGeneral)
	assert.Equal(t, 0.0, b.Completeness)
	assert.Equal(t, 1.0, b.DataQuality)
}

func TestRecencyScore_HalfLife(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScorer(now)

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"fresh", 0, 1.0},
		{"one half-life", recencyHalfLife, 0.5},
		{"two half-lives", 2 * recencyHalfLife, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]interface{}{
				"last_updated": now.Add(-tt.age).Format(time.RFC3339),
			}
			b := s.ScoreWithBreakdown(data, models.AgentGeneral)
			assert.InDelta(t, tt.want, b.Recency, 1e-6)
		})
	}
}

func TestRecencyScore_UsesNewestTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScorer(now)

	data := map[string]interface{}{
		"last_updated":     now.Add(-90 * 24 * time.Hour).Format(time.RFC3339),
		"last_activity_at": now.Format(time.RFC3339),
	}
	b := s.ScoreWithBreakdown(data, models.AgentGeneral)
	assert.InDelta(t, 1.0, b.Recency, 1e-6)
}

func TestRecencyScore_FutureTimestampCapped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScorer(now)

	data := map[string]interface{}{
		"last_updated": now.Add(24 * time.Hour),
	}
	b := s.ScoreWithBreakdown(data, models.AgentGeneral)
	assert.Equal(t, 1.0, b.Recency)
}

func TestRecencyScore_UnparseableTimestampIgnored(t *testing.T) {
	s := New()

	data := map[string]interface{}{
		"last_updated": "not-a-date",
	}
	b := s.ScoreWithBreakdown(data, models.AgentGeneral)
	assert.Equal(t, defaultRecency, b.Recency)
}

func TestRecencyScore_UnixSeconds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScorer(now)

	data := map[string]interface{}{
		"updated_at": float64(now.Unix()),
	}
	b := s.ScoreWithBreakdown(data, models.AgentGeneral)
	assert.InDelta(t, 1.0, b.Recency, 1e-6)
}

func TestCompletenessScore_WeightedCoverage(t *testing.T) {
	s := New()

	// customer-success expects health_score(1.0), nps_score(0.8),
	// usage_trend(0.7), renewal_date(0.6), onboarding_complete(0.5).
	data := map[string]interface{}{
		"health_score": 82.0,
		"nps_score":    41.0,
	}
	b := s.ScoreWithBreakdown(data, models.AgentCustomerSuccess)
	assert.InDelta(t, 1.8/3.6, b.Completeness, 1e-9)
}

func TestCompletenessScore_EmptyValuesDoNotCount(t *testing.T) {
	s := New()

	data := map[string]interface{}{
		"health_score": nil,
		"nps_score":    "   ",
		"usage_trend":  []interface{}{},
	}
	b := s.ScoreWithBreakdown(data, models.AgentCustomerSuccess)
	assert.Equal(t, 0.0, b.Completeness)
}

func TestAgentRelevanceScore_TopFields(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		data map[string]interface{}
		want float64
	}{
		{
			"all three top fields",
			map[string]interface{}{
				"health_score": 90.0,
				"nps_score":    10.0,
				"usage_trend":  "rising",
			},
			1.0,
		},
		{
			"one of three",
			map[string]interface{}{"health_score": 90.0},
			1.0 / 3.0,
		},
		{
			"lower-weighted fields do not count",
			map[string]interface{}{"onboarding_complete": true},
			0.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := s.ScoreWithBreakdown(tt.data, models.AgentCustomerSuccess)
			assert.InDelta(t, tt.want, b.AgentRelevance, 1e-9)
		})
	}
}

func TestDataQualityScore_RangeViolation(t *testing.T) {
	s := New()

	good := s.ScoreWithBreakdown(map[string]interface{}{
		"health_score": 70.0,
		"nps_score":    30.0,
		"usage_trend":  "rising",
	}, models.AgentCustomerSuccess)
	bad := s.ScoreWithBreakdown(map[string]interface{}{
		"health_score": 170.0,
		"nps_score":    30.0,
		"usage_trend":  "rising",
	}, models.AgentCustomerSuccess)

	assert.Equal(t, 1.0, good.DataQuality)
	assert.Less(t, bad.DataQuality, good.DataQuality)
}

func TestDataQualityScore_PlaceholderStrings(t *testing.T) {
	s := New()

	clean := s.ScoreWithBreakdown(map[string]interface{}{
		"company_name":   "Acme Corp",
		"account_status": "active",
		"industry":       "manufacturing",
	}, models.AgentGeneral)
	dirty := s.ScoreWithBreakdown(map[string]interface{}{
		"company_name":   "TODO",
		"account_status": "unknown",
		"industry":       "manufacturing",
	}, models.AgentGeneral)

	assert.Equal(t, 1.0, clean.DataQuality)
	assert.Less(t, dirty.DataQuality, clean.DataQuality)

	// Placeholders embedded in a longer value still count.
	embedded := s.ScoreWithBreakdown(map[string]interface{}{
		"company_name":   "test-account",
		"account_status": "active",
		"industry":       "manufacturing",
	}, models.AgentGeneral)
	assert.Less(t, embedded.DataQuality, clean.DataQuality)
}

func TestDataQualityScore_MissingRequiredFields(t *testing.T) {
	s := New()

	// Non-empty snapshot missing all of the agent's top fields.
	b := s.ScoreWithBreakdown(map[string]interface{}{
		"favorite_color": "green",
	}, models.AgentSecurity)
	assert.Less(t, b.DataQuality, 1.0)
}

func TestScore_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScorer(now)

	data := map[string]interface{}{
		"health_score": 88.0,
		"nps_score":    52.0,
		"usage_trend":  "rising",
		"last_updated": now.Add(-time.Hour).Format(time.RFC3339),
	}

	first := s.Score(data, models.AgentCustomerSuccess)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Score(data, models.AgentCustomerSuccess))
	}
	require.GreaterOrEqual(t, first, 0.0)
	require.LessOrEqual(t, first, 1.0)
}

func TestScore_BoundedForAllAgentTypes(t *testing.T) {
	s := New()

	data := map[string]interface{}{
		"health_score":  95.0,
		"open_tickets":  3.0,
		"auth_events":   []interface{}{"login"},
		"usage_metrics": map[string]interface{}{"daily_active": 12.0},
	}
	for _, agentType := range models.AllAgentTypes() {
		score := s.Score(data, agentType)
		assert.GreaterOrEqual(t, score, 0.0, string(agentType))
		assert.LessOrEqual(t, score, 1.0, string(agentType))
	}
}
