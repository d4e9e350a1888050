package fetch

import (
	"testing"
	"time"
)

func TestStatsSnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record("vbpl.vn", time.Duration(ms)*time.Millisecond, false, false)
	}

	snap := stats.Snapshot().Total
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
}

func TestStatsGroupsByHost(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record("vbpl.vn", 10*time.Millisecond, false, false)
	stats.Record("luatvietnam.vn", 30*time.Millisecond, true, false)
	stats.Record("luatvietnam.vn", time.Millisecond, false, true)

	snap := stats.Snapshot()
	if len(snap.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(snap.Hosts))
	}
	lv := snap.Hosts["luatvietnam.vn"]
	if lv.Count != 2 || lv.Failures != 1 || lv.CacheHits != 1 {
		t.Fatalf("unexpected luatvietnam aggregate: %+v", lv)
	}
	if snap.Total.Count != 3 {
		t.Fatalf("expected total count=3, got %d", snap.Total.Count)
	}
}

func TestStatsPrunesExpiredSamples(t *testing.T) {
	now := time.Now()
	stats := NewStats(time.Minute)
	stats.now = func() time.Time { return now }
	stats.Record("vbpl.vn", 100*time.Millisecond, false, false)

	now = now.Add(2 * time.Minute)
	if snap := stats.Snapshot(); snap.Total.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Total.Count)
	}

	stats.Record("vbpl.vn", 200*time.Millisecond, false, false)
	snap := stats.Snapshot().Total
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one fresh sample of 200ms, got %+v", snap)
	}
}

func TestStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record("vbpl.vn", -10*time.Millisecond, false, false)
	snap := stats.Snapshot().Total
	if snap.Count != 1 || snap.MaxMs != 0 {
		t.Fatalf("expected one clamped sample, got %+v", snap)
	}
}
