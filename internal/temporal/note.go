// Package temporal aggregates time-stamped observations captured while a page
// or game is exercised, buckets them into fixed-size windows with decayed
// weighting, scores how coherent the sequence of judgments is, and flags
// conflicts between windows. It also provides the adaptive processor that
// decides when to serve those aggregates from cache, refresh them in the
// background, or recompute them synchronously.
package temporal

import (
	"sort"
	"time"
)

// Note is one observation captured during a session. Timestamp is unix
// milliseconds; Elapsed is milliseconds since the session started. At least
// one of the two must be set for the note to participate in aggregation.
type Note struct {
	Timestamp   *int64     `json:"timestamp,omitempty"`
	Elapsed     *int64     `json:"elapsed,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Observation string     `json:"observation,omitempty"`
	Step        string     `json:"step,omitempty"`
	Persona     string     `json:"persona,omitempty"`
	GameState   *GameState `json:"gameState,omitempty"`
}

// GameState carries the page/game state snapshot attached to a note.
type GameState struct {
	Score *float64 `json:"score,omitempty"`
}

// hasTime reports whether the note carries a usable time field.
func (n Note) hasTime() bool {
	return n.Timestamp != nil || n.Elapsed != nil
}

// effectiveTime is the value notes are ordered by: elapsed when present,
// otherwise the absolute timestamp.
func (n Note) effectiveTime() int64 {
	if n.Elapsed != nil {
		return *n.Elapsed
	}
	if n.Timestamp != nil {
		return *n.Timestamp
	}
	return 0
}

// score resolves the note's score: Score if set, else the game-state score,
// else 0.
func (n Note) score() float64 {
	if n.Score != nil {
		return *n.Score
	}
	if n.GameState != nil && n.GameState.Score != nil {
		return *n.GameState.Score
	}
	return 0
}

// elapsedSince resolves the note's elapsed milliseconds relative to the
// session start time.
func (n Note) elapsedSince(start int64) int64 {
	if n.Elapsed != nil {
		return *n.Elapsed
	}
	if n.Timestamp != nil {
		return *n.Timestamp - start
	}
	return 0
}

// timedNotes filters out notes without a time field and returns the remainder
// sorted ascending by effective time. The input slice is never mutated.
func timedNotes(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if n.hasTime() {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].effectiveTime() < out[j].effectiveTime()
	})
	return out
}

// nowMillis is the shared clock default, replaced in tests.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
