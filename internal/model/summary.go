package model

import "time"

// ViewportSummary condenses one ViewportReport.
type ViewportSummary struct {
	Viewport         string  `json:"viewport"`
	Findings         int     `json:"findings"`
	MaxOverflowX     int     `json:"maxOverflowX"`
	MaxRightOverflow float64 `json:"maxRightOverflow"`
	DocumentOverflow int     `json:"documentOverflow"`
	Injected         bool    `json:"injected"`
	Error            string  `json:"error,omitempty"`
}

// Summary condenses a RunReport for human-readable output and history
// listings. Counts are derived; the RunReport remains the source of truth.
type Summary struct {
	Target        string            `json:"target,omitempty"`
	URL           string            `json:"url"`
	StartedAt     time.Time         `json:"startedAt"`
	Duration      time.Duration     `json:"duration"`
	TotalFindings int               `json:"totalFindings"`
	Viewports     []ViewportSummary `json:"viewports"`
	Aborted       bool              `json:"aborted"`
	AbortReason   string            `json:"abortReason,omitempty"`

	// WorstFinding is the finding with the largest horizontal overflow.
	WorstFinding *OverflowFinding `json:"worstFinding,omitempty"`

	// WorstViewport is the viewport WorstFinding was found in.
	WorstViewport string `json:"worstViewport,omitempty"`
}

// NewSummary builds a Summary from a run report.
func NewSummary(run *RunReport) *Summary {
	s := &Summary{
		Target:      run.Target,
		URL:         run.URL,
		StartedAt:   run.StartedAt,
		Aborted:     run.Aborted,
		AbortReason: run.AbortReason,
		Viewports:   make([]ViewportSummary, 0, len(run.Viewports)),
	}
	if !run.FinishedAt.IsZero() {
		s.Duration = run.FinishedAt.Sub(run.StartedAt)
	}

	worst := -1.0
	for _, vr := range run.Viewports {
		vs := ViewportSummary{
			Viewport: vr.Viewport.Label(),
			Findings: len(vr.Findings),
			Injected: vr.Injected,
			Error:    vr.Error,
		}
		if vr.HasDocumentOverflow() {
			vs.DocumentOverflow = vr.DocumentScrollWidth - vr.DocumentClientWidth
		}
		for i := range vr.Findings {
			f := vr.Findings[i]
			if f.OverflowX > vs.MaxOverflowX {
				vs.MaxOverflowX = f.OverflowX
			}
			if f.RightOverflow > vs.MaxRightOverflow {
				vs.MaxRightOverflow = f.RightOverflow
			}
			if score := severityScore(f); score > worst {
				worst = score
				s.WorstFinding = &f
				s.WorstViewport = vs.Viewport
			}
		}
		s.TotalFindings += vs.Findings
		s.Viewports = append(s.Viewports, vs)
	}
	return s
}

// HasFindings reports whether any viewport had findings.
func (s *Summary) HasFindings() bool {
	return s.TotalFindings > 0
}

// severityScore ranks findings by how many pixels they stick out.
func severityScore(f OverflowFinding) float64 {
	return max(float64(f.OverflowX), f.RightOverflow)
}
