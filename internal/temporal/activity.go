package temporal

import (
	"math"
	"strings"
	"time"
)

// ActivityLevel classifies how fast notes are currently arriving.
type ActivityLevel string

const (
	ActivityHigh   ActivityLevel = "high"
	ActivityMedium ActivityLevel = "medium"
	ActivityLow    ActivityLevel = "low"
)

// DetectorConfig holds the tunables for activity classification. The rate
// thresholds are empirically calibrated for interactive-UI note capture, not
// physically derived.
type DetectorConfig struct {
	// RecentWindow bounds how far back rate classification looks.
	RecentWindow time.Duration
	// InteractionWindow bounds the user-interaction keyword scan.
	InteractionWindow time.Duration
	// StabilityWindow bounds the stable-state scan.
	StabilityWindow time.Duration
	// HighRate and MediumRate are notes-per-second boundaries.
	HighRate   float64
	MediumRate float64
	// StableStdDev is the score standard deviation below which the recent
	// state counts as stable.
	StableStdDev float64
}

// DefaultDetectorConfig returns the standard thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		RecentWindow:      5 * time.Second,
		InteractionWindow: 2 * time.Second,
		StabilityWindow:   2 * time.Second,
		HighRate:          10,
		MediumRate:        1,
		StableStdDev:      0.5,
	}
}

// Detector classifies note-arrival activity and recent-session state.
type Detector struct {
	cfg DetectorConfig
	now func() int64
}

// NewDetector creates a detector; zero-valued config fields fall back to the
// defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	def := DefaultDetectorConfig()
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.InteractionWindow <= 0 {
		cfg.InteractionWindow = def.InteractionWindow
	}
	if cfg.StabilityWindow <= 0 {
		cfg.StabilityWindow = def.StabilityWindow
	}
	if cfg.HighRate <= 0 {
		cfg.HighRate = def.HighRate
	}
	if cfg.MediumRate <= 0 {
		cfg.MediumRate = def.MediumRate
	}
	if cfg.StableStdDev <= 0 {
		cfg.StableStdDev = def.StableStdDev
	}
	return &Detector{cfg: cfg, now: nowMillis}
}

// interactionKeywords mark notes produced by simulated user input.
var interactionKeywords = []string{"interaction", "click", "action", "user", "clicked"}

// Level classifies the current note-arrival rate as high, medium, or low.
// No recent notes means low.
func (d *Detector) Level(notes []Note) ActivityLevel {
	recent := d.recent(notes, d.cfg.RecentWindow)
	if len(recent) == 0 {
		return ActivityLow
	}

	spanMs := recent[len(recent)-1].effectiveTime() - recent[0].effectiveTime()
	spanSec := float64(spanMs) / 1000.0
	if spanSec < 0.1 {
		spanSec = 0.1
	}
	rate := float64(len(recent)) / spanSec

	switch {
	case rate > d.cfg.HighRate:
		return ActivityHigh
	case rate > d.cfg.MediumRate:
		return ActivityMedium
	default:
		return ActivityLow
	}
}

// HasUserInteraction reports whether any of the last five recent notes looks
// like simulated user input, judged by keywords on the step or observation.
func (d *Detector) HasUserInteraction(notes []Note) bool {
	recent := d.recent(notes, d.cfg.InteractionWindow)
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, n := range recent {
		text := strings.ToLower(n.Step + " " + n.Observation)
		if containsAny(text, interactionKeywords) {
			return true
		}
	}
	return false
}

// IsStableState reports whether recent scores have settled. Fewer than three
// recent notes is treated as stable (insufficient evidence of churn).
func (d *Detector) IsStableState(notes []Note) bool {
	recent := d.recent(notes, d.cfg.StabilityWindow)
	if len(recent) < 3 {
		return true
	}

	mean := 0.0
	for _, n := range recent {
		mean += n.score()
	}
	mean /= float64(len(recent))

	variance := 0.0
	for _, n := range recent {
		dd := n.score() - mean
		variance += dd * dd
	}
	variance /= float64(len(recent))

	return math.Sqrt(variance) < d.cfg.StableStdDev
}

// recent returns the time-sorted notes whose effective time falls within the
// trailing window, measured against the newest note's session clock.
func (d *Detector) recent(notes []Note, window time.Duration) []Note {
	timed := timedNotes(notes)
	if len(timed) == 0 {
		return nil
	}

	// Session-relative notes (elapsed-only) are judged against the newest
	// note; wall-clock notes are judged against now.
	cutoffRef := timed[len(timed)-1].effectiveTime()
	if timed[len(timed)-1].Elapsed == nil {
		cutoffRef = d.now()
	}
	cutoff := cutoffRef - window.Milliseconds()

	start := len(timed)
	for i := len(timed) - 1; i >= 0; i-- {
		if timed[i].effectiveTime() < cutoff {
			break
		}
		start = i
	}
	return timed[start:]
}
