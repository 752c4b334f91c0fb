package model

import (
	"time"

	"github.com/google/uuid"
)

// ViewportReport holds the result of scanning one viewport.
type ViewportReport struct {
	// Viewport is the viewport the page was rendered at.
	Viewport ViewportSpec `json:"viewport"`

	// URL is the page that was loaded.
	URL string `json:"url"`

	// Findings lists overflowing elements in document order.
	// It is always an array in JSON, never null.
	Findings []OverflowFinding `json:"findings"`

	// DocumentScrollWidth is document.documentElement.scrollWidth.
	DocumentScrollWidth int `json:"documentScrollWidth"`

	// DocumentClientWidth is document.documentElement.clientWidth.
	DocumentClientWidth int `json:"documentClientWidth"`

	// ScreenshotPath is the full-page PNG captured for this viewport.
	ScreenshotPath string `json:"screenshotPath,omitempty"`

	// Injected is true when sample text was typed into a text input
	// before measuring.
	Injected bool `json:"injected"`

	// ScannedAt is when the measurement was taken.
	ScannedAt time.Time `json:"scannedAt"`

	// Error describes a step failure that ended this viewport early.
	Error string `json:"error,omitempty"`
}

// NewViewportReport creates an empty report for the viewport.
func NewViewportReport(vp ViewportSpec, url string) *ViewportReport {
	return &ViewportReport{
		Viewport: vp,
		URL:      url,
		Findings: make([]OverflowFinding, 0),
	}
}

// HasDocumentOverflow reports whether the whole document is wider than
// the viewport, i.e. the page scrolls sideways.
func (r *ViewportReport) HasDocumentOverflow() bool {
	return r.DocumentScrollWidth > r.DocumentClientWidth
}

// RunReport is the result of one invocation against one target.
// The report file always holds exactly one RunReport; a new run
// replaces the previous file.
type RunReport struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// Target is the configured target name, or empty for the default target.
	Target string `json:"target,omitempty"`

	// URL is the page scanned in every viewport.
	URL string `json:"url"`

	// StartedAt is when the first viewport began.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the last viewport finished or the run aborted.
	FinishedAt time.Time `json:"finishedAt"`

	// Viewports holds one report per scanned viewport, in configuration order.
	Viewports []ViewportReport `json:"viewports"`

	// Aborted is true when the viewport loop stopped early.
	Aborted bool `json:"aborted"`

	// AbortReason is the error message that stopped the loop.
	AbortReason string `json:"abortReason,omitempty"`
}

// NewRunReport creates an empty run report for the target.
func NewRunReport(target, url string) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		Target:    target,
		URL:       url,
		StartedAt: time.Now(),
		Viewports: make([]ViewportReport, 0),
	}
}

// AddViewport appends a completed viewport report.
func (r *RunReport) AddViewport(vr ViewportReport) {
	if vr.Findings == nil {
		vr.Findings = make([]OverflowFinding, 0)
	}
	r.Viewports = append(r.Viewports, vr)
}

// Abort marks the run as stopped early because of err.
func (r *RunReport) Abort(err error) {
	r.Aborted = true
	if err != nil {
		r.AbortReason = err.Error()
	}
}

// Finish records the completion time.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// TotalFindings returns the number of findings across all viewports.
func (r *RunReport) TotalFindings() int {
	total := 0
	for _, vr := range r.Viewports {
		total += len(vr.Findings)
	}
	return total
}

// Viewport returns the report for the named viewport.
func (r *RunReport) Viewport(name string) (*ViewportReport, bool) {
	for i := range r.Viewports {
		if r.Viewports[i].Viewport.Label() == name {
			return &r.Viewports[i], true
		}
	}
	return nil, false
}
