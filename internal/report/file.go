package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mxten777/overflowscan/internal/model"
)

// DefaultOutputDir is where reports and screenshots are written when no
// directory is configured.
const DefaultOutputDir = "scripts/overflow-report"

// OutputWriteError reports that the output directory, a report file or
// a screenshot could not be written. It is always fatal.
type OutputWriteError struct {
	// Path is the file or directory that could not be written.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// FileWriter writes run reports and screenshots into one directory.
//
// Files for the unnamed default target:
//
//	report.json  report.md  screenshot-<viewport>.png
//
// Files for a named target:
//
//	report-<name>.json  report-<name>.md  <name>-screenshot-<viewport>.png
//
// Every run overwrites the files of the previous run for the same target.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a FileWriter rooted at dir. An empty dir means
// DefaultOutputDir.
func NewFileWriter(dir string) *FileWriter {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return &FileWriter{dir: dir}
}

// Dir returns the output directory.
func (w *FileWriter) Dir() string {
	return w.dir
}

// ReportPath returns where the JSON report for target is written.
func (w *FileWriter) ReportPath(target string) string {
	if target == "" {
		return filepath.Join(w.dir, "report.json")
	}
	return filepath.Join(w.dir, "report-"+target+".json")
}

// MarkdownPath returns where the Markdown summary for target is written.
func (w *FileWriter) MarkdownPath(target string) string {
	if target == "" {
		return filepath.Join(w.dir, "report.md")
	}
	return filepath.Join(w.dir, "report-"+target+".md")
}

// ScreenshotPath returns where the screenshot of target at vp is written.
func (w *FileWriter) ScreenshotPath(target string, vp model.ViewportSpec) string {
	name := "screenshot-" + vp.Label() + ".png"
	if target != "" {
		name = target + "-" + name
	}
	return filepath.Join(w.dir, name)
}

// WriteRun writes run as pretty-printed JSON and returns the file path.
func (w *FileWriter) WriteRun(run *model.RunReport) (string, error) {
	data, err := NewJSONWriter(nil, WithPrettyPrint()).Marshal(run)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := w.ReportPath(run.Target)
	if err := w.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMarkdown writes the Markdown summary of run and returns the file
// path.
func (w *FileWriter) WriteMarkdown(run *model.RunReport) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}

	path := w.MarkdownPath(run.Target)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is built from the output dir
	if err != nil {
		return "", &OutputWriteError{Path: path, Err: err}
	}

	if _, err := NewMarkdownWriter(f).Write(run); err != nil {
		_ = f.Close() //nolint:errcheck // the write error is more useful
		return "", &OutputWriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &OutputWriteError{Path: path, Err: err}
	}
	return path, nil
}

// SaveScreenshot writes a PNG for target at vp and returns the path.
func (w *FileWriter) SaveScreenshot(target string, vp model.ViewportSpec, png []byte) (string, error) {
	path := w.ScreenshotPath(target, vp)
	if err := w.writeFile(path, png); err != nil {
		return "", err
	}
	return path, nil
}

func (w *FileWriter) ensureDir() error {
	if err := os.MkdirAll(w.dir, 0750); err != nil {
		return &OutputWriteError{Path: w.dir, Err: err}
	}
	return nil
}

func (w *FileWriter) writeFile(path string, data []byte) error {
	if err := w.ensureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	return nil
}
