package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mxten777/overflowscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary followed by a findings table per viewport.
func (w *MarkdownWriter) Write(run *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(run)

	w.writeHeader(md, summary)
	w.writeViewports(md, summary)
	w.writeFindings(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the header and viewport table only.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeViewports(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Overflow Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + s.URL + "`"},
		{"Scan Date", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Findings", strconv.Itoa(s.TotalFindings)},
		{"Status", w.getStatusText(s)},
	}
	if s.Target != "" {
		rows = append([][]string{{"Target", s.Target}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, s)
}

// getStatusText returns the status text based on run state.
func (w *MarkdownWriter) getStatusText(s *model.Summary) string {
	if s.Aborted {
		return "❌ Aborted - " + s.AbortReason
	}
	return "✅ Complete"
}

// writeAlert writes an alert matching the outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	switch {
	case s.Aborted:
		md.Cautionf("The scan stopped early: %s. Only %d viewport(s) were measured.",
			s.AbortReason, len(s.Viewports))
	case s.WorstFinding != nil:
		md.Warningf("%d overflowing element(s). The worst sticks out %s at %s.",
			s.TotalFindings, overflowText(*s.WorstFinding), s.WorstViewport)
	default:
		md.Tip("No horizontal overflow detected.")
	}
	md.PlainText("")
}

// writeViewports writes the per-viewport table and a distribution chart.
func (w *MarkdownWriter) writeViewports(md *markdown.Markdown, s *model.Summary) {
	md.H2("Viewports")
	md.PlainText("")

	if len(s.Viewports) == 0 {
		md.PlainText("No viewport was scanned.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Viewports))
	for i, vs := range s.Viewports {
		doc := "-"
		if vs.DocumentOverflow > 0 {
			doc = strconv.Itoa(vs.DocumentOverflow) + "px"
		}
		rows[i] = []string{
			vs.Viewport,
			strconv.Itoa(vs.Findings),
			strconv.Itoa(vs.MaxOverflowX) + "px",
			fmt.Sprintf("%.0fpx", vs.MaxRightOverflow),
			doc,
			strconv.FormatBool(vs.Injected),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Viewport", "Findings", "Max overflow", "Max past edge", "Page scroll", "Injected"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.HasFindings() {
		w.writePieChart(md, s)
	}
}

// writePieChart writes a mermaid pie chart of findings per viewport.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Findings per Viewport"),
		piechart.WithShowData(true),
	)
	for _, vs := range s.Viewports {
		if vs.Findings > 0 {
			chart.LabelAndIntValue(vs.Viewport, uint64(vs.Findings))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFindings writes a findings table for every viewport with findings.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, run *model.RunReport) {
	md.H2("Findings")
	md.PlainText("")

	if run.TotalFindings() == 0 {
		md.PlainText("No overflowing elements.")
		md.PlainText("")
		return
	}

	for _, vr := range run.Viewports {
		if len(vr.Findings) == 0 {
			continue
		}

		md.H3(vr.Viewport.Label())
		md.PlainText("")

		rows := make([][]string, len(vr.Findings))
		for i, f := range vr.Findings {
			rows[i] = []string{
				"`" + truncateWidth(f.AncestorPath, labelColumns) + "`",
				strconv.Itoa(f.ScrollWidth),
				strconv.Itoa(f.ClientWidth),
				strconv.Itoa(f.OverflowX),
				fmt.Sprintf("%.0f", f.RightOverflow),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Element", "scrollWidth", "clientWidth", "overflowX", "past edge"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, f := range vr.Findings {
			if f.HTMLSnippet != "" {
				md.Details(openingTag(f.HTMLSnippet), "```html\n"+f.HTMLSnippet+"\n```")
			}
		}
		if vr.ScreenshotPath != "" {
			md.PlainTextf("Screenshot: `%s`", vr.ScreenshotPath)
		}
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by overflowscan*")
}
