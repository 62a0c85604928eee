package temporal

import (
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// fakeClock provides a controllable millisecond clock for cache-age tests.
type fakeClock struct {
	ms int64
}

func (c *fakeClock) now() int64 { return c.ms }

func (c *fakeClock) advance(d time.Duration) { c.ms += d.Milliseconds() }

func newTestProcessor(t *testing.T, clock *fakeClock) *Processor {
	t.Helper()
	p, err := NewProcessor(DefaultProcessorConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	if clock != nil {
		p.now = clock.now
		p.detector.now = clock.now
	}
	return p
}

// stableQuietNotes produce low activity and a stable state: the preprocess
// branch.
func stableQuietNotes() []Note {
	return []Note{
		{Elapsed: i64(0), Score: f64(7), Observation: "splash screen"},
		{Elapsed: i64(5000), Score: f64(7), Observation: "menu idle"},
	}
}

// interactiveBurstNotes produce high activity with user interaction: the
// fast path.
func interactiveBurstNotes() []Note {
	notes := burstNotes(30, time.Second, 6)
	for i := range notes {
		notes[i].Step = "user clicked tile"
	}
	return notes
}

func TestProcessor_LowStableRunsPreprocess(t *testing.T) {
	p := newTestProcessor(t, &fakeClock{ms: 1_000_000})

	out, err := p.ProcessNotes(stableQuietNotes())
	if err != nil {
		t.Fatalf("ProcessNotes() error = %v", err)
	}
	if out.Source != SourcePreprocessed {
		t.Errorf("source = %v, want preprocessed", out.Source)
	}
	if out.Activity != ActivityLow {
		t.Errorf("activity = %v, want low", out.Activity)
	}
	if out.Aggregated == nil || out.MultiScale == nil || out.Patterns == nil {
		t.Errorf("preprocess output incomplete: %+v", out)
	}
	if p.cache == nil {
		t.Error("preprocess did not populate the cache slot")
	}
}

func TestProcessor_FastPathServesFreshCache(t *testing.T) {
	clock := &fakeClock{ms: 1_000_000}
	p := newTestProcessor(t, clock)

	notes := interactiveBurstNotes()

	// Warm the slot directly; the fast path must serve it without
	// recomputing.
	warm, err := p.computeAll(notes, ActivityHigh, SourcePreprocessed)
	if err != nil {
		t.Fatalf("computeAll() error = %v", err)
	}
	p.cache = &cacheSlot{
		aggregated:         warm.Aggregated,
		multiScale:         warm.MultiScale,
		pruned:             warm.Pruned,
		patterns:           warm.Patterns,
		lastPreprocessTime: clock.now(),
		noteCount:          len(notes),
	}
	clock.advance(2 * time.Second)

	out, err := p.ProcessNotes(notes)
	if err != nil {
		t.Fatalf("ProcessNotes() error = %v", err)
	}
	if out.Source != SourceCache {
		t.Errorf("source = %v, want cache", out.Source)
	}
	if out.Activity != ActivityHigh {
		t.Errorf("activity = %v, want high", out.Activity)
	}
	if got, want := out.Metadata.CacheAge, 2*time.Second; got != want {
		t.Errorf("cache age = %v, want %v", got, want)
	}
}

func TestProcessor_FastPathFallsThroughOnStaleCache(t *testing.T) {
	clock := &fakeClock{ms: 1_000_000}
	p := newTestProcessor(t, clock)
	notes := interactiveBurstNotes()

	p.cache = &cacheSlot{lastPreprocessTime: clock.now(), noteCount: len(notes)}
	clock.advance(10 * time.Second) // past the 5s TTL

	out, err := p.ProcessNotes(notes)
	if err != nil {
		t.Fatalf("ProcessNotes() error = %v", err)
	}
	if out.Source != SourceComputed {
		t.Errorf("source = %v, want computed (stale cache must not be served at face value)", out.Source)
	}
	// The fast path never refreshes the slot.
	if p.cache.lastPreprocessTime != 1_000_000 {
		t.Error("fast path must not refresh the cache slot")
	}
}

func TestProcessor_HybridComputesWithoutCaching(t *testing.T) {
	p := newTestProcessor(t, &fakeClock{ms: 1_000_000})

	// Medium activity: ten notes across four seconds, varying scores so the
	// state is unstable.
	notes := burstNotes(10, 4*time.Second, 5)
	for i := range notes {
		notes[i].Score = f64(float64(i%2) * 8)
	}

	out, err := p.ProcessNotes(notes)
	if err != nil {
		t.Fatalf("ProcessNotes() error = %v", err)
	}
	if out.Source != SourceComputed {
		t.Errorf("source = %v, want computed", out.Source)
	}
	if p.cache != nil {
		t.Error("hybrid compute must not populate the cache")
	}
}

func TestProcessor_CacheValidityBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		cached    int
		current   int
		wantValid bool
	}{
		{"fresh, same count", 0, 10, 10, true},
		{"age exactly at TTL", 5 * time.Second, 10, 10, true},
		{"age just past TTL", 5*time.Second + time.Millisecond, 10, 10, false},
		{"delta exactly 20%", time.Second, 8, 10, true},
		{"delta just past 20%", time.Second, 7, 10, false},
		{"count shrank within 20%", time.Second, 12, 10, true},
		{"count shrank past 20%", time.Second, 13, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{ms: 1_000_000}
			p := newTestProcessor(t, clock)
			p.cache = &cacheSlot{lastPreprocessTime: clock.now(), noteCount: tt.cached}
			clock.advance(tt.age)

			if got := p.cacheValidLocked(tt.current); got != tt.wantValid {
				t.Errorf("cacheValidLocked() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestProcessor_RefreshAsyncWarmsCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newTestProcessor(t, &fakeClock{ms: 1_000_000})
	p.RefreshAsync(stableQuietNotes())
	p.Wait()

	if p.cache == nil {
		t.Fatal("background refresh did not populate the cache")
	}
	if p.cache.noteCount != 2 {
		t.Errorf("cached note count = %d, want 2", p.cache.noteCount)
	}
	if p.preprocessing {
		t.Error("in-progress flag not reset after background refresh")
	}
}

func TestProcessor_RefreshAsyncSkipsWhileInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newTestProcessor(t, &fakeClock{ms: 1_000_000})

	// Hold the flag as if a pass were running; a new request must be
	// dropped, not queued.
	p.mu.Lock()
	p.preprocessing = true
	p.mu.Unlock()

	p.RefreshAsync(stableQuietNotes())
	p.Wait()

	if p.cache != nil {
		t.Error("skipped refresh must leave the cache slot untouched")
	}

	p.mu.Lock()
	p.preprocessing = false
	p.mu.Unlock()
}

func TestProcessor_BackgroundFailureLeavesCacheUntouched(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newTestProcessor(t, &fakeClock{ms: 1_000_000})
	prior := &cacheSlot{lastPreprocessTime: 999_000, noteCount: 3}
	p.cache = prior

	// Force the multi-scale pass to fail validation mid-pipeline.
	p.cfg.MultiScale.Scales = []time.Duration{-1}

	p.RefreshAsync(stableQuietNotes())
	p.Wait()

	if p.cache != prior {
		t.Error("failed refresh must not replace the cache slot")
	}
	if p.preprocessing {
		t.Error("in-progress flag not reset after failure")
	}
}

func TestNewProcessor_RejectsInvalidAggregation(t *testing.T) {
	cfg := DefaultProcessorConfig()
	cfg.Aggregation = Options{WindowSize: 10 * time.Second, DecayFactor: 2}
	if _, err := NewProcessor(cfg, nil); err == nil {
		t.Fatal("expected error for decay factor outside (0,1)")
	}
}
