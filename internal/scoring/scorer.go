package scoring

import (
	"math"
	"strings"
	"time"

	"context-engine/internal/models"
)

const (
	weightRecency        = 0.3
	weightCompleteness   = 0.3
	weightAgentRelevance = 0.3
	weightDataQuality    = 0.1

	// recencyHalfLife is the age at which the recency component decays to 0.5.
	recencyHalfLife = 30 * 24 * time.Hour

	// defaultRecency applies when the snapshot carries no usable timestamp.
	defaultRecency = 0.5

	// topRelevantFields is how many of the highest-weighted expected fields
	// the agent-relevance component checks for.
	topRelevantFields = 3
)

// Breakdown exposes the individual components behind a relevance score.
type Breakdown struct {
	Recency        float64 `json:"recency"`
	Completeness   float64 `json:"completeness"`
	AgentRelevance float64 `json:"agent_relevance"`
	DataQuality    float64 `json:"data_quality"`
	Overall        float64 `json:"overall"`
}

// Scorer rates how useful an aggregated snapshot is for a given agent type.
// Scores are in [0, 1]. The zero value is not usable; construct with New.
type Scorer struct {
	now func() time.Time
}

func New() *Scorer {
	return &Scorer{now: time.Now}
}

// Score returns the overall relevance of data for the agent type.
func (s *Scorer) Score(data map[string]interface{}, agentType models.AgentType) float64 {
	return s.ScoreWithBreakdown(data, agentType).Overall
}

// ScoreWithBreakdown computes the four scoring components and their weighted
// combination. The same snapshot always yields the same breakdown for a fixed
// clock; nothing here mutates data.
func (s *Scorer) ScoreWithBreakdown(data map[string]interface{}, agentType models.AgentType) Breakdown {
	b := Breakdown{
		Recency:        s.recencyScore(data),
		Completeness:   completenessScore(data, agentType),
		AgentRelevance: agentRelevanceScore(data, agentType),
		DataQuality:    dataQualityScore(data, agentType),
	}
	overall := weightRecency*b.Recency +
		weightCompleteness*b.Completeness +
		weightAgentRelevance*b.AgentRelevance +
		weightDataQuality*b.DataQuality
	b.Overall = clamp01(overall)
	return b
}

// recencyScore decays exponentially with the age of the newest timestamp in
// the snapshot, halving every recencyHalfLife. No timestamp means we cannot
// tell either way, which scores the neutral default.
func (s *Scorer) recencyScore(data map[string]interface{}) float64 {
	var newest time.Time
	for _, field := range timestampFields {
		raw, exists := data[field]
		if !exists {
			continue
		}
		ts, ok := parseTimestamp(raw)
		if !ok {
			continue
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	if newest.IsZero() {
		return defaultRecency
	}

	age := s.now().Sub(newest)
	if age <= 0 {
		return 1.0
	}
	return clamp01(math.Pow(0.5, float64(age)/float64(recencyHalfLife)))
}

// completenessScore is the weight-fraction of the agent's expected fields
// that are present with a meaningful value.
func completenessScore(data map[string]interface{}, agentType models.AgentType) float64 {
	expected := expectedFields[agentType]
	if len(expected) == 0 {
		return 0
	}

	var total, covered float64
	for _, fw := range expected {
		total += fw.Weight
		if fieldPresent(data, fw.Field) {
			covered += fw.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(covered / total)
}

// agentRelevanceScore is the presence fraction of the agent's top expected
// fields, unweighted.
func agentRelevanceScore(data map[string]interface{}, agentType models.AgentType) float64 {
	expected := expectedFields[agentType]
	if len(expected) == 0 {
		return 0
	}
	top := expected
	if len(top) > topRelevantFields {
		top = top[:topRelevantFields]
	}

	present := 0
	for _, fw := range top {
		if fieldPresent(data, fw.Field) {
			present++
		}
	}
	return float64(present) / float64(len(top))
}

// dataQualityScore runs cheap sanity checks over the snapshot: numeric range
// violations, placeholder-looking strings, and missing top expected fields.
// The score is the fraction of checks that pass; a snapshot with nothing to
// check scores 1.0.
func dataQualityScore(data map[string]interface{}, agentType models.AgentType) float64 {
	if len(data) == 0 {
		return 1.0
	}

	var checks, issues int

	for _, nr := range numericRanges {
		raw, exists := data[nr.Field]
		if !exists || raw == nil {
			continue
		}
		value, ok := asFloat(raw)
		if !ok {
			continue
		}
		checks++
		if value < nr.Min || value > nr.Max {
			issues++
		}
	}

	for _, raw := range data {
		str, ok := raw.(string)
		if !ok || str == "" {
			continue
		}
		checks++
		if looksLikePlaceholder(str) {
			issues++
		}
	}

	expected := expectedFields[agentType]
	top := expected
	if len(top) > topRelevantFields {
		top = top[:topRelevantFields]
	}
	for _, fw := range top {
		checks++
		if !fieldPresent(data, fw.Field) {
			issues++
		}
	}

	if checks == 0 {
		return 1.0
	}
	return clamp01(float64(checks-issues) / float64(checks))
}

// fieldPresent reports whether the field exists and carries a non-empty
// value.
func fieldPresent(data map[string]interface{}, field string) bool {
	raw, exists := data[field]
	if !exists || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case map[string]interface{}:
		return len(v) > 0
	case []interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// looksLikePlaceholder matches by substring, so decorated variants like
// "test-account" or "[TBD]" are flagged too.
func looksLikePlaceholder(value string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, placeholder := range placeholderValues {
		if strings.Contains(normalized, placeholder) {
			return true
		}
	}
	return false
}

// parseTimestamp accepts the timestamp shapes providers actually send:
// time.Time, RFC 3339 strings, and Unix seconds as JSON numbers.
func parseTimestamp(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts, true
		}
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			return ts, true
		}
		return time.Time{}, false
	case float64:
		if v <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(v), 0), true
	case int64:
		if v <= 0 {
			return time.Time{}, false
		}
		return time.Unix(v, 0), true
	case int:
		if v <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(v), 0), true
	default:
		return time.Time{}, false
	}
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
