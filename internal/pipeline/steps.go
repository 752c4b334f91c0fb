package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/model"
)

const (
	// DefaultNavigationTimeout bounds loading a page until it is idle.
	DefaultNavigationTimeout = 15 * time.Second

	// DefaultSettleDelay lets entrance animations finish after load.
	DefaultSettleDelay = 800 * time.Millisecond

	// DefaultInjectSettleDelay lets the page re-render after sample
	// text was typed.
	DefaultInjectSettleDelay = 600 * time.Millisecond
)

// ResizeStep applies the viewport to the page.
type ResizeStep struct{}

// NewResizeStep creates a resize step.
func NewResizeStep() *ResizeStep {
	return &ResizeStep{}
}

// Name returns the step name.
func (s *ResizeStep) Name() string {
	return "resize"
}

// Do executes the resize step.
func (s *ResizeStep) Do(ctx context.Context, state *State) error {
	return state.Page.SetViewport(ctx, state.Viewport)
}

// NavigateStep loads the target URL and waits for the network to go idle.
// Errors from Page.Navigate are returned unchanged so callers can detect
// *browser.NavigationError.
type NavigateStep struct {
	timeout time.Duration
}

// NewNavigateStep creates a navigate step bounded by timeout. A
// non-positive timeout means DefaultNavigationTimeout.
func NewNavigateStep(timeout time.Duration) *NavigateStep {
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}
	return &NavigateStep{timeout: timeout}
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do executes the navigate step.
func (s *NavigateStep) Do(ctx context.Context, state *State) error {
	return state.Page.Navigate(ctx, state.Target.URL, s.timeout)
}

// SettleStep waits a fixed delay.
type SettleStep struct {
	delay time.Duration
}

// NewSettleStep creates a settle step.
func NewSettleStep(delay time.Duration) *SettleStep {
	return &SettleStep{delay: delay}
}

// Name returns the step name.
func (s *SettleStep) Name() string {
	return "settle"
}

// Do executes the settle step.
func (s *SettleStep) Do(ctx context.Context, state *State) error {
	return state.Page.Settle(ctx, s.delay)
}

// InjectStep types the target's sample text into the first text input.
// It is a no-op when the target has no sample. Injection is best effort:
// a missing input or a script error leaves Report.Injected false and the
// run continues.
type InjectStep struct {
	settle time.Duration
	logger *slog.Logger
}

// InjectStepOption configures an InjectStep.
type InjectStepOption func(*InjectStep)

// WithInjectSettle sets the delay after a successful injection.
func WithInjectSettle(d time.Duration) InjectStepOption {
	return func(s *InjectStep) {
		s.settle = d
	}
}

// WithInjectLogger sets a custom logger for the inject step.
func WithInjectLogger(logger *slog.Logger) InjectStepOption {
	return func(s *InjectStep) {
		s.logger = logger
	}
}

// NewInjectStep creates an inject step.
func NewInjectStep(opts ...InjectStepOption) *InjectStep {
	s := &InjectStep{
		settle: DefaultInjectSettleDelay,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *InjectStep) Name() string {
	return "inject"
}

// Do executes the inject step.
func (s *InjectStep) Do(ctx context.Context, state *State) error {
	if state.Target.Sample == "" {
		return nil
	}

	injected, err := state.Page.InjectText(ctx, state.Target.Sample)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("sample injection failed", "viewport", state.Viewport.Label(), "error", err)
		return nil
	}

	state.Report.Injected = injected
	if !injected {
		s.logger.Debug("no text input found for sample", "viewport", state.Viewport.Label())
		return nil
	}
	return state.Page.Settle(ctx, s.settle)
}

// MeasureStep snapshots the DOM and runs overflow detection on it.
type MeasureStep struct {
	detector *audit.Detector
}

// NewMeasureStep creates a measure step. A nil detector uses
// audit.DefaultOptions.
func NewMeasureStep(detector *audit.Detector) *MeasureStep {
	if detector == nil {
		detector = audit.NewDetector(audit.DefaultOptions())
	}
	return &MeasureStep{detector: detector}
}

// Name returns the step name.
func (s *MeasureStep) Name() string {
	return "measure"
}

// Do executes the measure step.
func (s *MeasureStep) Do(ctx context.Context, state *State) error {
	snap, err := state.Page.Snapshot(ctx)
	if err != nil {
		return err
	}

	state.Report.Findings = s.detector.Detect(snap)
	state.Report.DocumentScrollWidth = snap.DocumentScrollWidth
	state.Report.DocumentClientWidth = snap.DocumentClientWidth
	state.Report.ScannedAt = time.Now()
	return nil
}

// ScreenshotStore persists screenshots. *report.FileWriter satisfies it.
type ScreenshotStore interface {
	SaveScreenshot(target string, vp model.ViewportSpec, png []byte) (string, error)
}

// ScreenshotStep captures a full-page screenshot and stores it.
type ScreenshotStep struct {
	store    ScreenshotStore
	fullPage bool
}

// NewScreenshotStep creates a screenshot step that captures the whole
// scrollable page.
func NewScreenshotStep(store ScreenshotStore) *ScreenshotStep {
	return &ScreenshotStep{store: store, fullPage: true}
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string {
	return "screenshot"
}

// Do executes the screenshot step.
func (s *ScreenshotStep) Do(ctx context.Context, state *State) error {
	png, err := state.Page.Screenshot(ctx, s.fullPage)
	if err != nil {
		return err
	}

	path, err := s.store.SaveScreenshot(state.Target.Name, state.Viewport, png)
	if err != nil {
		return fmt.Errorf("viewport %s: %w", state.Viewport.Label(), err)
	}
	state.Report.ScreenshotPath = path
	return nil
}

// Settings collects the knobs of the standard step sequence.
type Settings struct {
	NavigationTimeout time.Duration
	Settle            time.Duration
	InjectSettle      time.Duration
	Detector          *audit.Detector

	// Screenshots is where screenshots go. Nil skips the screenshot step.
	Screenshots ScreenshotStore
}

// DefaultSettings returns the standard timings and detector.
func DefaultSettings() Settings {
	return Settings{
		NavigationTimeout: DefaultNavigationTimeout,
		Settle:            DefaultSettleDelay,
		InjectSettle:      DefaultInjectSettleDelay,
		Detector:          audit.NewDetector(audit.DefaultOptions()),
	}
}

// NewViewportPipeline builds the standard resize, navigate, settle,
// inject, measure and screenshot sequence.
func NewViewportPipeline(settings Settings, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewResizeStep(),
		NewNavigateStep(settings.NavigationTimeout),
		NewSettleStep(settings.Settle),
		NewInjectStep(WithInjectSettle(settings.InjectSettle), WithInjectLogger(logger)),
		NewMeasureStep(settings.Detector),
	)
	if settings.Screenshots != nil {
		p.AddStep(NewScreenshotStep(settings.Screenshots))
	}
	return p
}
