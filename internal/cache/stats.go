package cache

import "sync"

// Stats tracks process-wide cache counters. Counters are observability only;
// they are reset explicitly and never affect correctness.
type Stats struct {
	mu           sync.Mutex
	fastHits     uint64
	fastMisses   uint64
	sharedHits   uint64
	sharedMisses uint64
	evictions    uint64
	sets         uint64
	gets         uint64
}

// StatsSnapshot is a point-in-time copy of the counters with derived rates.
type StatsSnapshot struct {
	FastHits       uint64  `json:"fast_hits"`
	FastMisses     uint64  `json:"fast_misses"`
	SharedHits     uint64  `json:"shared_hits"`
	SharedMisses   uint64  `json:"shared_misses"`
	Evictions      uint64  `json:"evictions"`
	Sets           uint64  `json:"sets"`
	Gets           uint64  `json:"gets"`
	FastHitRate    float64 `json:"fast_hit_rate"`
	SharedHitRate  float64 `json:"shared_hit_rate"`
	OverallHitRate float64 `json:"overall_hit_rate"`
}

func (s *Stats) recordFastHit() {
	s.mu.Lock()
	s.fastHits++
	s.mu.Unlock()
}

func (s *Stats) recordFastMiss() {
	s.mu.Lock()
	s.fastMisses++
	s.mu.Unlock()
}

func (s *Stats) recordSharedHit() {
	s.mu.Lock()
	s.sharedHits++
	s.mu.Unlock()
}

func (s *Stats) recordSharedMiss() {
	s.mu.Lock()
	s.sharedMisses++
	s.mu.Unlock()
}

func (s *Stats) recordEviction() {
	s.mu.Lock()
	s.evictions++
	s.mu.Unlock()
}

func (s *Stats) recordSet() {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
}

func (s *Stats) recordGet() {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters with hit rates computed.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		FastHits:     s.fastHits,
		FastMisses:   s.fastMisses,
		SharedHits:   s.sharedHits,
		SharedMisses: s.sharedMisses,
		Evictions:    s.evictions,
		Sets:         s.sets,
		Gets:         s.gets,
	}

	snap.FastHitRate = rate(s.fastHits, s.fastHits+s.fastMisses)
	snap.SharedHitRate = rate(s.sharedHits, s.sharedHits+s.sharedMisses)
	snap.OverallHitRate = rate(s.fastHits+s.sharedHits, s.gets)

	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fastHits = 0
	s.fastMisses = 0
	s.sharedHits = 0
	s.sharedMisses = 0
	s.evictions = 0
	s.sets = 0
	s.gets = 0
}

func rate(hits, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
