package temporal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func TestAggregate_EmptyNotes(t *testing.T) {
	res, err := Aggregate(nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 0 {
		t.Errorf("expected no windows, got %d", len(res.Windows))
	}
	if res.Coherence != 1.0 {
		t.Errorf("empty input coherence = %v, want 1.0", res.Coherence)
	}
	if res.Summary != "No gameplay notes available" {
		t.Errorf("summary = %q", res.Summary)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %v", res.Conflicts)
	}
}

func TestAggregate_SingleNote(t *testing.T) {
	notes := []Note{{Elapsed: i64(0), Score: f64(7), Observation: "fine"}}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(res.Windows))
	}
	if res.Coherence != 1.0 {
		t.Errorf("single note coherence = %v, want 1.0", res.Coherence)
	}
	if got := res.Windows[0].AvgScore; got != 7 {
		t.Errorf("avg score = %v, want 7", got)
	}
}

func TestAggregate_WindowAssignment(t *testing.T) {
	// windowIndex must be floor(elapsed / windowSize); notes sharing that
	// floor share a window.
	notes := []Note{
		{Elapsed: i64(0), Score: f64(5)},
		{Elapsed: i64(9999), Score: f64(5)},
		{Elapsed: i64(10000), Score: f64(5)},
		{Elapsed: i64(25000), Score: f64(5)},
	}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 3 {
		t.Fatalf("expected 3 windows, got %d: %+v", len(res.Windows), res.Windows)
	}
	wantIndexes := []int{0, 1, 2}
	wantCounts := []int{2, 1, 1}
	for i, w := range res.Windows {
		if w.Index != wantIndexes[i] {
			t.Errorf("window %d index = %d, want %d", i, w.Index, wantIndexes[i])
		}
		if w.NoteCount != wantCounts[i] {
			t.Errorf("window %d count = %d, want %d", i, w.NoteCount, wantCounts[i])
		}
	}
}

func TestAggregate_IdenticalTimestampsShareWindow(t *testing.T) {
	ts := int64(1700000000000)
	notes := []Note{
		{Timestamp: i64(ts), Score: f64(3)},
		{Timestamp: i64(ts), Score: f64(5)},
	}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(res.Windows))
	}
	if res.Windows[0].NoteCount != 2 {
		t.Errorf("note count = %d, want 2", res.Windows[0].NoteCount)
	}
}

func TestAggregate_DecayDownweightsLaterNotes(t *testing.T) {
	// Two notes in one window: elapsed 0 scoring 0 and elapsed 9000 scoring
	// 10. With monotonic decay the later note weighs less, so the weighted
	// average must land below the unweighted midpoint.
	notes := []Note{
		{Elapsed: i64(0), Score: f64(0)},
		{Elapsed: i64(9000), Score: f64(10)},
	}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(res.Windows))
	}
	if got := res.Windows[0].WeightedAvg; got >= 5 {
		t.Errorf("weighted avg = %v, want < 5 (later note should be down-weighted)", got)
	}
}

func TestAggregate_ScoreFallsBackToGameState(t *testing.T) {
	notes := []Note{
		{Elapsed: i64(0), GameState: &GameState{Score: f64(6)}},
		{Elapsed: i64(1000)}, // no score anywhere: counts as 0
	}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if got := res.Windows[0].WeightedAvg; got <= 0 || got >= 6 {
		t.Errorf("weighted avg = %v, want between 0 and 6", got)
	}
}

func TestAggregate_IgnoresNotesWithoutTime(t *testing.T) {
	notes := []Note{
		{Score: f64(9), Observation: "floating"},
		{Elapsed: i64(0), Score: f64(4)},
	}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 1 || res.Windows[0].NoteCount != 1 {
		t.Fatalf("untimed note leaked into aggregation: %+v", res.Windows)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	notes := []Note{
		{Elapsed: i64(0), Score: f64(8), Observation: "smooth start"},
		{Elapsed: i64(5000), Score: f64(9), Observation: "still smooth"},
		{Elapsed: i64(12000), Score: f64(7), Observation: "slight lag"},
	}
	first, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	second, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated aggregation differs (-first +second):\n%s", diff)
	}
}

func TestAggregate_SmoothSessionIsCoherent(t *testing.T) {
	notes := []Note{
		{Elapsed: i64(0), Score: f64(8), Observation: "smooth"},
		{Elapsed: i64(5000), Score: f64(9), Observation: "smooth"},
		{Elapsed: i64(10000), Score: f64(8), Observation: "smooth"},
	}
	res, err := Aggregate(notes, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(res.Windows))
	}
	if res.Coherence <= 0.7 {
		t.Errorf("coherence = %v, want > 0.7 for a smooth session", res.Coherence)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"zero window", Options{WindowSize: 0, DecayFactor: 0.9}, true},
		{"negative window", Options{WindowSize: -1, DecayFactor: 0.9}, true},
		{"sub-millisecond window", Options{WindowSize: 500 * time.Microsecond, DecayFactor: 0.9}, true},
		{"one millisecond window", Options{WindowSize: time.Millisecond, DecayFactor: 0.9}, false},
		{"zero decay", Options{WindowSize: time.Second, DecayFactor: 0}, true},
		{"decay of one", Options{WindowSize: time.Second, DecayFactor: 1}, true},
		{"negative decay", Options{WindowSize: time.Second, DecayFactor: -0.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAggregate_RejectsBadOptions(t *testing.T) {
	notes := []Note{{Elapsed: i64(0), Score: f64(5)}}
	if _, err := Aggregate(notes, Options{WindowSize: 0, DecayFactor: 0.9}); err == nil {
		t.Fatal("expected validation error for zero window size")
	}
}

func TestAggregate_RejectsSubMillisecondWindow(t *testing.T) {
	// A window finer than 1ms truncates to zero bucket width; it must be
	// rejected up front instead of dividing by zero.
	notes := []Note{{Elapsed: i64(0), Score: f64(5)}}
	if _, err := Aggregate(notes, Options{WindowSize: 500 * time.Microsecond, DecayFactor: 0.9}); err == nil {
		t.Fatal("expected validation error for sub-millisecond window size")
	}
}
