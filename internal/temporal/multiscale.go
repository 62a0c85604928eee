package temporal

import (
	"fmt"
	"time"
)

// MultiScaleOptions selects the window sizes for multi-scale aggregation.
type MultiScaleOptions struct {
	Scales      []time.Duration
	DecayFactor float64
}

// DefaultMultiScaleOptions aggregates at 5s, 10s, and 30s windows.
func DefaultMultiScaleOptions() MultiScaleOptions {
	return MultiScaleOptions{
		Scales:      []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second},
		DecayFactor: 0.9,
	}
}

// AggregateMultiScale runs the window aggregation at several window sizes so
// the judge prompt can expose both fine- and coarse-grained trends. Keys are
// the scale durations rendered as strings ("5s", "30s").
func AggregateMultiScale(notes []Note, opts MultiScaleOptions) (map[string]*Result, error) {
	if len(opts.Scales) == 0 {
		opts.Scales = DefaultMultiScaleOptions().Scales
	}
	if opts.DecayFactor == 0 {
		opts.DecayFactor = DefaultMultiScaleOptions().DecayFactor
	}

	out := make(map[string]*Result, len(opts.Scales))
	for _, scale := range opts.Scales {
		res, err := Aggregate(notes, Options{WindowSize: scale, DecayFactor: opts.DecayFactor})
		if err != nil {
			return nil, fmt.Errorf("scale %s: %w", scale, err)
		}
		out[scale.String()] = res
	}
	return out, nil
}
