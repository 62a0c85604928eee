// Package capture drives a Chrome instance and records timestamped
// screenshots and observation notes while a page is exercised. Each test
// session owns one Session; the note list it accumulates feeds the temporal
// aggregation engine.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vizcheck/internal/temporal"
)

// Config holds browser capture configuration.
type Config struct {
	DebuggerURL         string `yaml:"debugger_url"`
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	ScreenshotDir       string `yaml:"screenshot_dir"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		ScreenshotDir:       "screenshots",
	}
}

// NavigationTimeout returns the navigation timeout as a duration.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Screenshot is one captured frame in a temporal series.
type Screenshot struct {
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
	Elapsed   int64  `json:"elapsed"`
	Step      string `json:"step,omitempty"`
}

// Session is one tracked browser context accumulating notes and screenshots.
type Session struct {
	ID string

	cfg     Config
	logger  *zap.Logger
	browser *rod.Browser
	page    *rod.Page
	start   time.Time

	mu          sync.Mutex
	notes       []temporal.Note
	screenshots []Screenshot
}

// NewSession connects to an existing Chrome when DebuggerURL is set,
// otherwise launches a fresh one, and opens a blank page.
func NewSession(ctx context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(cfg.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("capture: launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("capture: connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("capture: open page: %w", err)
	}

	width := cfg.ViewportWidth
	if width == 0 {
		width = 1920
	}
	height := cfg.ViewportHeight
	if height == 0 {
		height = 1080
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("capture: set viewport: %w", err)
	}

	s := &Session{
		ID:      uuid.New().String(),
		cfg:     cfg,
		logger:  logger,
		browser: browser,
		page:    page,
		start:   time.Now(),
	}
	logger.Debug("capture session started", zap.String("session", s.ID))
	return s, nil
}

// Navigate loads the URL and waits for the load event.
func (s *Session) Navigate(url string) error {
	page := s.page.Timeout(s.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("capture: navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("capture: wait for load: %w", err)
	}
	s.logger.Debug("navigated", zap.String("session", s.ID), zap.String("url", url))
	return nil
}

// CaptureScreenshot writes a PNG of the current viewport and appends it to
// the session's temporal series.
func (s *Session) CaptureScreenshot(step string) (*Screenshot, error) {
	data, err := s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}

	now := time.Now()
	elapsed := now.Sub(s.start).Milliseconds()

	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0755); err != nil {
		return nil, fmt.Errorf("capture: create screenshot dir: %w", err)
	}
	path := filepath.Join(s.cfg.ScreenshotDir, fmt.Sprintf("%s-%d.png", s.ID, elapsed))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("capture: write screenshot: %w", err)
	}

	shot := Screenshot{
		Path:      path,
		Timestamp: now.UnixMilli(),
		Elapsed:   elapsed,
		Step:      step,
	}

	s.mu.Lock()
	s.screenshots = append(s.screenshots, shot)
	s.mu.Unlock()

	return &shot, nil
}

// RecordNote appends an observation to the session's note list, stamped with
// the session-relative elapsed time.
func (s *Session) RecordNote(step, observation string, score *float64) {
	now := time.Now()
	ts := now.UnixMilli()
	elapsed := now.Sub(s.start).Milliseconds()

	s.mu.Lock()
	s.notes = append(s.notes, temporal.Note{
		Timestamp:   &ts,
		Elapsed:     &elapsed,
		Score:       score,
		Observation: observation,
		Step:        step,
	})
	s.mu.Unlock()
}

// Click dispatches a click on the first element matching the selector and
// records an interaction note so the activity detector sees it.
func (s *Session) Click(selector string) error {
	el, err := s.page.Timeout(s.cfg.NavigationTimeout()).Element(selector)
	if err != nil {
		return fmt.Errorf("capture: find %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("capture: click %s: %w", selector, err)
	}
	s.RecordNote(fmt.Sprintf("user clicked %s", selector), "", nil)
	return nil
}

// Notes returns a copy of the accumulated notes.
func (s *Session) Notes() []temporal.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]temporal.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Screenshots returns a copy of the captured screenshot series.
func (s *Session) Screenshots() []Screenshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Screenshot, len(s.screenshots))
	copy(out, s.screenshots)
	return out
}

// Close shuts down the browser.
func (s *Session) Close() error {
	s.logger.Debug("capture session closed", zap.String("session", s.ID))
	return s.browser.Close()
}
