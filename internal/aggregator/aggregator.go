package aggregator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"context-engine/internal/common/logging"
	"context-engine/internal/models"
)

// MetadataKey is the snapshot field carrying aggregation bookkeeping.
const MetadataKey = "_metadata"

// higherIsBetterFields always resolve scalar conflicts toward the larger
// number, regardless of which provider answered first.
var higherIsBetterFields = map[string]bool{
	"health_score":     true,
	"nps_score":        true,
	"engagement_score": true,
}

// Aggregator merges independent provider snapshots into one coherent
// snapshot with deterministic conflict resolution.
type Aggregator struct {
	logger logging.Logger
	now    func() time.Time
}

func New(logger logging.Logger) *Aggregator {
	return &Aggregator{
		logger: logger,
		now:    time.Now,
	}
}

// Aggregate merges the successful results in ascending latency order: faster
// providers are assumed fresher, so their values win ties and slower
// providers only fill gaps. The returned snapshot carries a MetadataKey
// entry recording which providers contributed, which failed, the summed
// latency, and when aggregation ran.
func (a *Aggregator) Aggregate(results []models.ProviderResult) map[string]interface{} {
	successes := make([]models.ProviderResult, 0, len(results))
	var failed []string
	var totalLatency time.Duration

	for _, result := range results {
		totalLatency += result.Latency
		if result.Status == models.ProviderStatusSuccess && result.Data != nil {
			successes = append(successes, result)
		} else if result.Status != models.ProviderStatusDisabled {
			failed = append(failed, result.ProviderName)
		}
	}

	sort.SliceStable(successes, func(i, j int) bool {
		if successes[i].Latency != successes[j].Latency {
			return successes[i].Latency < successes[j].Latency
		}
		return successes[i].ProviderName < successes[j].ProviderName
	})

	merged := make(map[string]interface{})
	used := make([]string, 0, len(successes))
	for _, result := range successes {
		a.mergeInto(merged, result.Data, result.ProviderName)
		used = append(used, result.ProviderName)
	}

	sort.Strings(failed)
	merged[MetadataKey] = map[string]interface{}{
		"providers_used":   used,
		"providers_failed": failed,
		"total_latency_ms": totalLatency.Milliseconds(),
		"aggregated_at":    a.now().UTC().Format(time.RFC3339),
	}

	return merged
}

// MergeWithPrevious backfills gaps in current from a previously aggregated
// snapshot, as long as previous is no older than maxAge. Current always wins
// conflicts. Staleness is judged by the aggregation timestamp previous
// carries in its metadata; a previous snapshot without one is treated as too
// old.
func (a *Aggregator) MergeWithPrevious(current, previous map[string]interface{}, maxAge time.Duration) map[string]interface{} {
	out := make(map[string]interface{}, len(current))
	for k, v := range current {
		out[k] = v
	}
	if previous == nil {
		return out
	}

	aggregatedAt, ok := aggregationTime(previous)
	if !ok || a.now().Sub(aggregatedAt) > maxAge {
		return out
	}

	fillGaps(out, previous)
	return out
}

// fillGaps copies keys from previous that current lacks, recursing into maps
// both sides have. Existing scalar values are never overwritten.
func fillGaps(current, previous map[string]interface{}) {
	for key, value := range previous {
		if key == MetadataKey {
			continue
		}
		existing, exists := current[key]
		if !exists || existing == nil {
			current[key] = value
			continue
		}
		if existingMap, ok := existing.(map[string]interface{}); ok {
			if valueMap, ok := value.(map[string]interface{}); ok {
				merged := make(map[string]interface{}, len(existingMap))
				for k, v := range existingMap {
					merged[k] = v
				}
				fillGaps(merged, valueMap)
				current[key] = merged
			}
		}
	}
}

// CalculateCompleteness reports, on a 0-100 scale, what share of the
// attempted providers actually contributed data. Disabled providers are not
// counted against completeness.
func CalculateCompleteness(results []models.ProviderResult) float64 {
	var attempted, succeeded int
	for _, result := range results {
		if result.Status == models.ProviderStatusDisabled {
			continue
		}
		attempted++
		if result.Status == models.ProviderStatusSuccess {
			succeeded++
		}
	}
	if attempted == 0 {
		return 0
	}
	return float64(succeeded) / float64(attempted) * 100
}

// CalculateFreshness buckets the age of a snapshot onto a 0-100 scale for
// dashboards: under 30s scores 100, dropping in stages to 10 past a day.
func (a *Aggregator) CalculateFreshness(aggregatedAt time.Time) float64 {
	if aggregatedAt.IsZero() {
		return 0
	}
	age := a.now().Sub(aggregatedAt)
	switch {
	case age < 30*time.Second:
		return 100
	case age < 5*time.Minute:
		return 90
	case age < time.Hour:
		return 70
	case age < 6*time.Hour:
		return 50
	case age < 24*time.Hour:
		return 30
	default:
		return 10
	}
}

// mergeInto folds src into dst key by key. dst holds values from faster
// providers.
func (a *Aggregator) mergeInto(dst, src map[string]interface{}, provider string) {
	for key, incoming := range src {
		existing, exists := dst[key]
		if !exists || existing == nil {
			// Copy containers so later merges never reach back into the
			// provider's own snapshot.
			dst[key] = copyValue(incoming)
			continue
		}
		if incoming == nil {
			continue
		}

		existingMap, existingIsMap := existing.(map[string]interface{})
		incomingMap, incomingIsMap := incoming.(map[string]interface{})
		if existingIsMap && incomingIsMap {
			a.mergeInto(existingMap, incomingMap, provider)
			continue
		}

		existingList, existingIsList := existing.([]interface{})
		incomingList, incomingIsList := incoming.([]interface{})
		if existingIsList && incomingIsList {
			dst[key] = dedupeConcat(existingList, copyValue(incomingList).([]interface{}))
			continue
		}

		dst[key] = a.resolveConflict(key, existing, incoming, provider)
	}
}

// resolveConflict picks between a value already merged (from a faster
// provider) and an incoming one from a slower provider.
func (a *Aggregator) resolveConflict(key string, existing, incoming interface{}, provider string) interface{} {
	if isEmptyValue(existing) && !isEmptyValue(incoming) {
		return incoming
	}
	if isEmptyValue(incoming) {
		return existing
	}

	if existingTS, ok := asTime(existing); ok {
		if incomingTS, ok := asTime(incoming); ok {
			if incomingTS.After(existingTS) {
				return incoming
			}
			return existing
		}
	}

	if higherWins(key) {
		existingNum, existingOK := asNumber(existing)
		incomingNum, incomingOK := asNumber(incoming)
		if existingOK && incomingOK {
			if incomingNum > existingNum {
				return incoming
			}
			return existing
		}
	}

	a.logger.Debug("Discarding conflicting value from slower provider",
		logging.String("field", key),
		logging.String("provider", provider),
		logging.String("discarded", fmt.Sprintf("%v", incoming)),
	)
	return existing
}

func higherWins(key string) bool {
	if higherIsBetterFields[key] {
		return true
	}
	return strings.HasSuffix(key, "_count") || strings.HasSuffix(key, "_total")
}

// dedupeConcat appends items from b that a does not already contain.
// Comparable items use a set; everything else falls back to a linear
// DeepEqual scan.
func dedupeConcat(a, b []interface{}) []interface{} {
	out := make([]interface{}, 0, len(a)+len(b))
	seen := make(map[interface{}]bool)
	var unhashable []interface{}

	add := func(item interface{}) {
		if item != nil && reflect.TypeOf(item).Comparable() {
			if seen[item] {
				return
			}
			seen[item] = true
		} else {
			for _, prev := range unhashable {
				if reflect.DeepEqual(prev, item) {
					return
				}
			}
			unhashable = append(unhashable, item)
		}
		out = append(out, item)
	}

	for _, item := range a {
		add(item)
	}
	for _, item := range b {
		add(item)
	}
	return out
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		// Lists are deduplicated wherever they enter the merged snapshot,
		// including ones only a single provider contributed.
		return dedupeConcat(out, nil)
	default:
		return value
	}
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}

func asTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func aggregationTime(snapshot map[string]interface{}) (time.Time, bool) {
	meta, ok := snapshot[MetadataKey].(map[string]interface{})
	if !ok {
		return time.Time{}, false
	}
	return asTime(meta["aggregated_at"])
}
