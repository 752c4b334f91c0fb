package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mxten777/overflowscan/internal/model"
)

const (
	// ruleWidth is the width of section separators.
	ruleWidth = 70

	// labelColumns bounds element labels in the findings list.
	labelColumns = 60
)

// SimpleWriter outputs human-readable text reports for the terminal.
// Korean text in element labels is measured in terminal columns so the
// layout stays aligned.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether viewports with no findings are listed
	// in the findings section.
	showEmpty bool

	// verbose adds ancestor paths and bounding boxes to every finding.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary followed by every finding.
func (w *SimpleWriter) Write(run *model.RunReport) (int, error) {
	var sb strings.Builder
	summary := model.NewSummary(run)

	w.writeHeader(&sb, summary)
	w.writeViewports(&sb, summary)
	w.writeFindings(&sb, run)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the header and per-viewport counts only.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeViewports(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, ruleWidth))
	sb.WriteString("\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                         OVERFLOW REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	if s.Target != "" {
		fmt.Fprintf(sb, "Target:    %s\n", s.Target)
	}
	fmt.Fprintf(sb, "URL:       %s\n", s.URL)
	fmt.Fprintf(sb, "Scan Date: %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if s.Duration > 0 {
		fmt.Fprintf(sb, "Duration:  %s\n", s.Duration.Round(time.Millisecond))
	}

	if s.Aborted {
		fmt.Fprintf(sb, "Status:    ABORTED - %s\n", s.AbortReason)
	} else {
		sb.WriteString("Status:    Complete\n")
	}
	fmt.Fprintf(sb, "Findings:  %d\n\n", s.TotalFindings)

	if s.WorstFinding != nil {
		fmt.Fprintf(sb, "Worst:     %s at %s (%s)\n\n",
			s.WorstFinding.AncestorPath, s.WorstViewport, overflowText(*s.WorstFinding))
	}
}

// writeViewports writes one line per scanned viewport.
func (w *SimpleWriter) writeViewports(sb *strings.Builder, s *model.Summary) {
	rule(sb, "-")
	sb.WriteString("VIEWPORTS\n")
	rule(sb, "-")
	sb.WriteString("\n")

	if len(s.Viewports) == 0 {
		sb.WriteString("  No viewport was scanned\n\n")
		return
	}

	for _, vs := range s.Viewports {
		marker := "[ok]"
		if vs.Findings > 0 || vs.DocumentOverflow > 0 {
			marker = "[!!]"
		}
		if vs.Error != "" {
			marker = "[??]"
		}
		fmt.Fprintf(sb, "  %s %-10s %3d finding(s)", marker, vs.Viewport, vs.Findings)
		if vs.DocumentOverflow > 0 {
			fmt.Fprintf(sb, ", page scrolls sideways by %dpx", vs.DocumentOverflow)
		}
		if vs.Injected {
			sb.WriteString(", sample injected")
		}
		sb.WriteString("\n")
		if vs.Error != "" {
			fmt.Fprintf(sb, "       error: %s\n", vs.Error)
		}
	}
	sb.WriteString("\n")
}

// writeFindings lists findings grouped by viewport.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, run *model.RunReport) {
	if run.TotalFindings() == 0 && !w.showEmpty {
		return
	}

	rule(sb, "-")
	sb.WriteString("FINDINGS\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, vr := range run.Viewports {
		if len(vr.Findings) == 0 && !w.showEmpty {
			continue
		}

		fmt.Fprintf(sb, "[%s]\n", vr.Viewport.Label())
		if len(vr.Findings) == 0 {
			sb.WriteString("  No findings\n\n")
			continue
		}

		for _, f := range vr.Findings {
			fmt.Fprintf(sb, "  * %s  %s\n", truncateWidth(openingTag(f.HTMLSnippet), labelColumns), overflowText(f))
			if w.verbose {
				fmt.Fprintf(sb, "    Path: %s\n", f.AncestorPath)
				fmt.Fprintf(sb, "    Box:  x=%.0f y=%.0f w=%.0f h=%.0f\n",
					f.BoundingBox.X, f.BoundingBox.Y, f.BoundingBox.Width, f.BoundingBox.Height)
			}
		}
		if vr.ScreenshotPath != "" {
			fmt.Fprintf(sb, "  Screenshot: %s\n", vr.ScreenshotPath)
		}
		sb.WriteString("\n")
	}
}

// overflowText describes how far a finding sticks out.
func overflowText(f model.OverflowFinding) string {
	parts := make([]string, 0, 2)
	if f.OverflowX > 0 {
		parts = append(parts, fmt.Sprintf("content +%dpx", f.OverflowX))
	}
	if f.RightOverflow > 0 {
		parts = append(parts, fmt.Sprintf("past viewport +%.0fpx", f.RightOverflow))
	}
	if len(parts) == 0 {
		return "within tolerance"
	}
	return strings.Join(parts, ", ")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by overflowscan\n")
	rule(sb, "=")
}
