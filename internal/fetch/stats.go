package fetch

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	host     string
	duration time.Duration
	failed   bool
	cached   bool
}

// LatencySnapshot aggregates the samples of one host.
type LatencySnapshot struct {
	Count     int     `json:"count"`
	Failures  int     `json:"failures"`
	CacheHits int     `json:"cache_hits"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
}

// StatsSnapshot is a point-in-time view of the rolling window.
type StatsSnapshot struct {
	Window string                     `json:"window"`
	Total  LatencySnapshot            `json:"total"`
	Hosts  map[string]LatencySnapshot `json:"hosts"`
}

// Stats keeps outbound request samples for a rolling window so the API can
// report which source is slow or failing.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 512),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one request. failed covers transport errors and non-2xx.
func (s *Stats) Record(host string, d time.Duration, failed, cached bool) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, host: host, duration: d, failed: failed, cached: cached})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())

	byHost := make(map[string][]sample)
	for _, sm := range s.samples {
		byHost[sm.host] = append(byHost[sm.host], sm)
	}
	snap := StatsSnapshot{
		Window: s.window.String(),
		Total:  aggregate(s.samples),
		Hosts:  make(map[string]LatencySnapshot, len(byHost)),
	}
	for host, samples := range byHost {
		snap.Hosts[host] = aggregate(samples)
	}
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			keep = append(keep, sm)
		}
	}
	s.samples = keep
}

func aggregate(samples []sample) LatencySnapshot {
	if len(samples) == 0 {
		return LatencySnapshot{}
	}
	out := LatencySnapshot{Count: len(samples)}
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, sm := range samples {
		ms := sm.duration.Milliseconds()
		values = append(values, ms)
		sum += ms
		if sm.failed {
			out.Failures++
		}
		if sm.cached {
			out.CacheHits++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	out.MinMs = values[0]
	out.MaxMs = values[len(values)-1]
	out.AvgMs = float64(sum) / float64(len(values))
	out.P50Ms = percentile(values, 50)
	out.P95Ms = percentile(values, 95)
	return out
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
