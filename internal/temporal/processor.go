package temporal

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source identifies which path produced a ProcessNotes result.
type Source string

const (
	// SourceCache means the cached preprocessing result was served as-is.
	SourceCache Source = "cache"
	// SourcePreprocessed means a full preprocessing pass ran and refreshed
	// the cache slot.
	SourcePreprocessed Source = "preprocessed"
	// SourceComputed means the pipeline ran synchronously without touching
	// the cache.
	SourceComputed Source = "computed"
)

// ProcessorConfig tunes the adaptive processor.
type ProcessorConfig struct {
	// CacheMaxAge is how long a preprocessing result stays servable.
	CacheMaxAge time.Duration
	// CountDeltaRatio invalidates the cache when the note count moved by
	// more than this fraction of the current count.
	CountDeltaRatio float64
	// Aggregation configures the windowing pipeline.
	Aggregation Options
	// MultiScale configures the multi-scale pass.
	MultiScale MultiScaleOptions
	// Prune configures note pruning.
	Prune PruneOptions
	// Detector configures activity classification.
	Detector DetectorConfig
}

// DefaultProcessorConfig returns the standard tuning: 5s cache TTL and a 20%
// note-count delta.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		CacheMaxAge:     5 * time.Second,
		CountDeltaRatio: 0.2,
		Aggregation:     DefaultOptions(),
		MultiScale:      DefaultMultiScaleOptions(),
		Detector:        DefaultDetectorConfig(),
	}
}

// Output is the result of one ProcessNotes call. Source, Activity, and
// Metadata are diagnostic; downstream judging only consumes the payload
// fields.
type Output struct {
	Aggregated *Result            `json:"aggregated"`
	MultiScale map[string]*Result `json:"multiScale"`
	Pruned     []Note             `json:"prunedNotes"`
	Patterns   *Patterns          `json:"patterns,omitempty"`
	Source     Source             `json:"source"`
	Activity   ActivityLevel      `json:"activity"`
	Metadata   Metadata           `json:"metadata"`
}

// Metadata carries observability fields for routing decisions.
type Metadata struct {
	CacheAge  time.Duration `json:"cacheAge"`
	NoteCount int           `json:"noteCount"`
}

// cacheSlot is the single preprocessing cache. It is overwritten wholesale
// on every refresh; validity is judged by age and note-count delta, never by
// content, which is a documented approximation.
type cacheSlot struct {
	aggregated         *Result
	multiScale         map[string]*Result
	pruned             []Note
	patterns           *Patterns
	lastPreprocessTime int64
	noteCount          int
}

// Processor routes aggregation requests between the cache, a full
// preprocessing pass, and synchronous computation, based on the observed
// note-arrival regime. Each test session owns its own Processor; the cache
// slot is instance state, never process-global.
type Processor struct {
	cfg      ProcessorConfig
	detector *Detector
	logger   *zap.Logger

	mu            sync.Mutex
	cache         *cacheSlot
	preprocessing bool
	wg            sync.WaitGroup

	now func() int64
}

// NewProcessor validates the configuration and builds a processor. A nil
// logger is replaced with a no-op logger.
func NewProcessor(cfg ProcessorConfig, logger *zap.Logger) (*Processor, error) {
	def := DefaultProcessorConfig()
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = def.CacheMaxAge
	}
	if cfg.CountDeltaRatio <= 0 {
		cfg.CountDeltaRatio = def.CountDeltaRatio
	}
	if cfg.Aggregation == (Options{}) {
		cfg.Aggregation = def.Aggregation
	}
	if err := cfg.Aggregation.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		detector: NewDetector(cfg.Detector),
		logger:   logger,
		now:      nowMillis,
	}, nil
}

// ProcessNotes picks a processing strategy for the current activity regime
// and returns the temporal aggregates.
//
// High activity with user interaction takes the latency-critical fast path:
// serve the cache if valid, otherwise compute synchronously; never start
// background work. Low activity in a stable state runs the full
// preprocessing pass and refreshes the cache. Everything else is hybrid:
// cache if valid, else a synchronous compute that leaves the cache alone.
func (p *Processor) ProcessNotes(notes []Note) (*Output, error) {
	activity := p.detector.Level(notes)
	hasInteraction := p.detector.HasUserInteraction(notes)
	stable := p.detector.IsStableState(notes)

	switch {
	case activity == ActivityHigh && hasInteraction:
		return p.fastPath(notes, activity)
	case activity == ActivityLow && stable:
		return p.preprocess(notes, activity)
	default:
		return p.hybrid(notes, activity)
	}
}

// fastPath serves strictly from cache when possible and otherwise computes
// synchronously. It never triggers preprocessing.
func (p *Processor) fastPath(notes []Note, activity ActivityLevel) (*Output, error) {
	if out, ok := p.fromCache(notes, activity); ok {
		return out, nil
	}
	return p.computeAll(notes, activity, SourceComputed)
}

// preprocess runs the full pipeline and overwrites the cache slot. If
// another preprocessing pass is in flight the request is skipped, not
// queued: a stale slot is acceptable, a corrupted one is not.
func (p *Processor) preprocess(notes []Note, activity ActivityLevel) (*Output, error) {
	p.mu.Lock()
	if p.preprocessing {
		p.mu.Unlock()
		if out, ok := p.fromCache(notes, activity); ok {
			return out, nil
		}
		return p.computeAll(notes, activity, SourceComputed)
	}
	p.preprocessing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.preprocessing = false
		p.mu.Unlock()
	}()

	out, err := p.computeAll(notes, activity, SourcePreprocessed)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache = &cacheSlot{
		aggregated:         out.Aggregated,
		multiScale:         out.MultiScale,
		pruned:             out.Pruned,
		patterns:           out.Patterns,
		lastPreprocessTime: p.now(),
		noteCount:          len(notes),
	}
	p.mu.Unlock()

	return out, nil
}

// RefreshAsync starts a background preprocessing pass so quiet periods can
// warm the cache without blocking note capture. The request is dropped if a
// pass is already in flight. Failures are logged and leave the existing
// cache slot untouched.
func (p *Processor) RefreshAsync(notes []Note) {
	p.mu.Lock()
	if p.preprocessing {
		p.mu.Unlock()
		return
	}
	p.preprocessing = true
	p.mu.Unlock()

	snapshot := make([]Note, len(notes))
	copy(snapshot, notes)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.preprocessing = false
			p.mu.Unlock()
		}()

		out, err := p.computeAll(snapshot, p.detector.Level(snapshot), SourcePreprocessed)
		if err != nil {
			p.logger.Warn("background preprocessing failed; keeping previous cache",
				zap.Error(err), zap.Int("notes", len(snapshot)))
			return
		}

		p.mu.Lock()
		p.cache = &cacheSlot{
			aggregated:         out.Aggregated,
			multiScale:         out.MultiScale,
			pruned:             out.Pruned,
			patterns:           out.Patterns,
			lastPreprocessTime: p.now(),
			noteCount:          len(snapshot),
		}
		p.mu.Unlock()
	}()
}

// Wait blocks until any in-flight background preprocessing completes.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// hybrid serves the cache when valid and otherwise computes synchronously
// without refreshing the cache.
func (p *Processor) hybrid(notes []Note, activity ActivityLevel) (*Output, error) {
	if out, ok := p.fromCache(notes, activity); ok {
		return out, nil
	}
	return p.computeAll(notes, activity, SourceComputed)
}

// fromCache returns the cached output when the slot passes the validity
// rule: young enough, and a note-count delta within the configured ratio.
func (p *Processor) fromCache(notes []Note, activity ActivityLevel) (*Output, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache == nil || !p.cacheValidLocked(len(notes)) {
		return nil, false
	}
	age := time.Duration(p.now()-p.cache.lastPreprocessTime) * time.Millisecond
	return &Output{
		Aggregated: p.cache.aggregated,
		MultiScale: p.cache.multiScale,
		Pruned:     p.cache.pruned,
		Patterns:   p.cache.patterns,
		Source:     SourceCache,
		Activity:   activity,
		Metadata:   Metadata{CacheAge: age, NoteCount: len(notes)},
	}, true
}

// cacheValidLocked implements the staleness rule. Count-based invalidation
// cannot tell two different note sets of equal size apart; that imprecision
// is accepted.
func (p *Processor) cacheValidLocked(current int) bool {
	if p.cache == nil {
		return false
	}
	age := p.now() - p.cache.lastPreprocessTime
	if age > p.cfg.CacheMaxAge.Milliseconds() {
		return false
	}
	delta := math.Abs(float64(current - p.cache.noteCount))
	return delta <= p.cfg.CountDeltaRatio*float64(current)
}

// computeAll runs the full synchronous pipeline: aggregation, multi-scale
// aggregation, pruning, and pattern detection.
func (p *Processor) computeAll(notes []Note, activity ActivityLevel, source Source) (*Output, error) {
	aggregated, err := Aggregate(notes, p.cfg.Aggregation)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	multiScale, err := AggregateMultiScale(notes, p.cfg.MultiScale)
	if err != nil {
		return nil, fmt.Errorf("multi-scale aggregate: %w", err)
	}

	return &Output{
		Aggregated: aggregated,
		MultiScale: multiScale,
		Pruned:     PruneNotes(notes, p.cfg.Prune),
		Patterns:   DetectPatterns(notes),
		Source:     source,
		Activity:   activity,
		Metadata:   Metadata{NoteCount: len(notes)},
	}, nil
}
