package temporal

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Options controls window bucketing and decay weighting.
type Options struct {
	// WindowSize is the fixed duration of each bucket.
	WindowSize time.Duration
	// DecayFactor down-weights notes by session age; must be in (0,1).
	DecayFactor float64
}

// DefaultOptions returns the standard 10s window with 0.9 decay.
func DefaultOptions() Options {
	return Options{
		WindowSize:  10 * time.Second,
		DecayFactor: 0.9,
	}
}

// Validate rejects option values that would poison the arithmetic.
func (o Options) Validate() error {
	// Bucketing divides by whole milliseconds, so anything finer truncates
	// to a zero-width window.
	if o.WindowSize < time.Millisecond {
		return fmt.Errorf("temporal: window size must be at least 1ms, got %v", o.WindowSize)
	}
	if math.IsNaN(o.DecayFactor) || math.IsInf(o.DecayFactor, 0) {
		return fmt.Errorf("temporal: decay factor must be finite, got %v", o.DecayFactor)
	}
	if o.DecayFactor <= 0 || o.DecayFactor >= 1 {
		return fmt.Errorf("temporal: decay factor must be in (0,1), got %v", o.DecayFactor)
	}
	return nil
}

// WindowSummary is the compacted view of one time bucket.
type WindowSummary struct {
	Index        int     `json:"index"`
	TimeRange    string  `json:"timeRange"`
	NoteCount    int     `json:"noteCount"`
	AvgScore     float64 `json:"avgScore"`
	Observations string  `json:"observations"`
	WeightedAvg  float64 `json:"weightedAvg"`
}

// Result is the output of one aggregation pass.
type Result struct {
	Windows   []WindowSummary `json:"windows"`
	Summary   string          `json:"summary"`
	Coherence float64         `json:"coherence"`
	Conflicts []Conflict      `json:"conflicts"`
}

// window accumulates weighted notes for one bucket while aggregating.
type window struct {
	index         int
	weightedScore float64
	totalWeight   float64
	noteCount     int
	observations  []string
}

// Aggregate buckets notes into fixed windows, applies exponential decay
// weighting by session age, and derives coherence and conflicts from the
// window summaries. Notes without a time field are ignored. Fewer than two
// notes or windows yields a trivially coherent result.
func Aggregate(notes []Note, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	timed := timedNotes(notes)
	if len(timed) == 0 {
		return &Result{
			Windows:   []WindowSummary{},
			Summary:   "No gameplay notes available",
			Coherence: 1.0,
			Conflicts: []Conflict{},
		}, nil
	}

	startTime := nowMillis()
	if timed[0].Timestamp != nil {
		startTime = *timed[0].Timestamp
	}

	windowMs := opts.WindowSize.Milliseconds()
	buckets := map[int]*window{}
	maxIndex := 0
	for _, n := range timed {
		elapsed := n.elapsedSince(startTime)
		if elapsed < 0 {
			elapsed = 0
		}
		idx := int(elapsed / windowMs)
		w, ok := buckets[idx]
		if !ok {
			w = &window{index: idx}
			buckets[idx] = w
			if idx > maxIndex {
				maxIndex = idx
			}
		}
		// Decay is by elapsed session time, measured in window units. A
		// note's weight is fixed once computed; it does not re-decay as
		// wall-clock time passes after the session.
		weight := math.Pow(opts.DecayFactor, float64(elapsed)/float64(windowMs))
		w.weightedScore += n.score() * weight
		w.totalWeight += weight
		w.noteCount++
		if obs := strings.TrimSpace(n.Observation); obs != "" {
			w.observations = append(w.observations, obs)
		}
	}

	// Gaps are allowed in the bucket indexes; summaries compact them in
	// ascending window order.
	summaries := make([]WindowSummary, 0, len(buckets))
	for idx := 0; idx <= maxIndex; idx++ {
		w, ok := buckets[idx]
		if !ok {
			continue
		}
		avg := 0.0
		if w.totalWeight > 0 {
			avg = w.weightedScore / w.totalWeight
		}
		summaries = append(summaries, WindowSummary{
			Index:        idx,
			TimeRange:    windowTimeRange(idx, opts.WindowSize),
			NoteCount:    w.noteCount,
			AvgScore:     math.Round(avg),
			Observations: strings.Join(w.observations, "; "),
			WeightedAvg:  avg,
		})
	}

	res := &Result{
		Windows:   summaries,
		Coherence: Coherence(summaries),
		Conflicts: DetectConflicts(summaries),
	}
	res.Summary = fmt.Sprintf("%d notes across %d windows", len(timed), len(summaries))
	return res, nil
}

// windowTimeRange renders a human-readable "10s-20s" range for a window.
func windowTimeRange(index int, size time.Duration) string {
	start := time.Duration(index) * size
	end := start + size
	return fmt.Sprintf("%s-%s", formatOffset(start), formatOffset(end))
}

func formatOffset(d time.Duration) string {
	secs := d.Seconds()
	if secs == math.Trunc(secs) {
		return fmt.Sprintf("%ds", int64(secs))
	}
	return fmt.Sprintf("%.1fs", secs)
}
