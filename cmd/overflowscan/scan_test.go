package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mxten777/overflowscan/internal/config"
	"github.com/mxten777/overflowscan/internal/database"
	"github.com/mxten777/overflowscan/internal/model"
	"github.com/mxten777/overflowscan/internal/pipeline"
	"github.com/mxten777/overflowscan/internal/report"
	"github.com/spf13/cobra"
)

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	if cmd.Use != "scan [baseUrl] [path]" {
		t.Errorf("unexpected use %q", cmd.Use)
	}

	flagTests := []struct {
		name         string
		shorthand    string
		defaultValue string
	}{
		{"viewport", "", "[]"},
		{"target", "T", "[]"},
		{"sample", "s", ""},
		{"sample-file", "", ""},
		{"sample-repeat", "", "1"},
		{"timeout", "t", "15s"},
		{"settle", "", "800ms"},
		{"inject-settle", "", "600ms"},
		{"tolerance", "", "1"},
		{"batch", "b", "1"},
		{"chrome-bin", "", ""},
		{"browser-url", "", ""},
		{"output-dir", "o", "scripts/overflow-report"},
		{"markdown", "m", "false"},
		{"summary", "", ""},
		{"no-history", "", "false"},
	}

	for _, tt := range flagTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("expected default %q, got %q", tt.defaultValue, flag.DefValue)
			}
		})
	}
}

// scanCmdWithFlags returns the scan subcommand of a fresh root with
// flags parsed, so persistent root flags resolve as they do at runtime.
func scanCmdWithFlags(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()

	root := NewRootCmd()
	scan, _, err := root.Find([]string{"scan"})
	if err != nil {
		t.Fatalf("failed to find scan command: %v", err)
	}
	if err := scan.ParseFlags(flags); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return scan
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".overflowscan")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestBuildConfig tests configuration building from flags and files.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "")
		cfg, err := buildConfig(scanCmdWithFlags(t, "-c", cfgPath), nil)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.BaseURL != config.DefaultBaseURL {
			t.Errorf("BaseURL = %q", cfg.BaseURL)
		}
		if diff := cmp.Diff(model.DefaultViewports(), cfg.Viewports); diff != "" {
			t.Errorf("viewports mismatch (-want +got):\n%s", diff)
		}
		if !cfg.SaveToDB {
			t.Error("history should be on by default")
		}
		if cfg.File == nil {
			t.Error("expected the config file to be loaded")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("positional arguments and flags", func(t *testing.T) {
		t.Parallel()

		cmd := scanCmdWithFlags(t,
			"-c", writeConfigFile(t, ""),
			"--viewport", "320x640",
			"--viewport", "tablet=768x1024@1",
			"--sample", "안녕",
			"--sample-repeat", "3",
			"--timeout", "5s",
			"--settle", "0s",
			"--tolerance", "2.5",
			"--batch", "2",
			"--output-dir", "out",
			"--markdown",
			"--summary", "text",
			"--no-history",
			"-v",
			"--log-json",
		)
		cfg, err := buildConfig(cmd, []string{"http://localhost:3000/", "talkbridge"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		want := []model.ViewportSpec{
			{Name: "320x640", Width: 320, Height: 640, DeviceScaleFactor: model.DefaultDeviceScaleFactor},
			{Name: "tablet", Width: 768, Height: 1024, DeviceScaleFactor: 1},
		}
		if diff := cmp.Diff(want, cfg.Viewports); diff != "" {
			t.Errorf("viewports mismatch (-want +got):\n%s", diff)
		}
		if cfg.BaseURL != "http://localhost:3000/" || cfg.Path != "talkbridge" {
			t.Errorf("BaseURL/Path = %q/%q", cfg.BaseURL, cfg.Path)
		}
		if cfg.Sample != "안녕" || cfg.SampleRepeat != 3 {
			t.Errorf("Sample/SampleRepeat = %q/%d", cfg.Sample, cfg.SampleRepeat)
		}
		if cfg.Timeout != 5*time.Second || cfg.Settle != 0 {
			t.Errorf("Timeout/Settle = %v/%v", cfg.Timeout, cfg.Settle)
		}
		if cfg.Tolerance != 2.5 || cfg.BatchSize != 2 {
			t.Errorf("Tolerance/BatchSize = %v/%d", cfg.Tolerance, cfg.BatchSize)
		}
		if cfg.OutputDir != "out" || !cfg.Markdown || cfg.Summary != "text" {
			t.Errorf("OutputDir/Markdown/Summary = %q/%v/%q", cfg.OutputDir, cfg.Markdown, cfg.Summary)
		}
		if cfg.SaveToDB {
			t.Error("--no-history should disable history")
		}
		if !cfg.Verbose || !cfg.LogJSON {
			t.Error("persistent flags should be read from the root command")
		}

		targets, err := cfg.Targets()
		if err != nil {
			t.Fatalf("Targets() error = %v", err)
		}
		if targets[0].URL != "http://localhost:3000/talkbridge" {
			t.Errorf("target URL = %q", targets[0].URL)
		}
		if targets[0].Sample != "안녕안녕안녕" {
			t.Errorf("target sample = %q", targets[0].Sample)
		}
	})

	t.Run("config file viewports apply without --viewport", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, `
viewports:
  - name: small
    width: 320
    height: 568
targets:
  talkbridge:
    path: /talkbridge
`)
		cfg, err := buildConfig(scanCmdWithFlags(t, "-c", cfgPath, "--target", "talkbridge"), nil)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if len(cfg.Viewports) != 1 || cfg.Viewports[0].Name != "small" {
			t.Errorf("expected file viewports, got %v", cfg.Viewports)
		}
		if diff := cmp.Diff([]string{"talkbridge"}, cfg.TargetNames); diff != "" {
			t.Errorf("target names mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid viewport", func(t *testing.T) {
		t.Parallel()

		_, err := buildConfig(scanCmdWithFlags(t, "-c", writeConfigFile(t, ""), "--viewport", "wide"), nil)
		if !errors.Is(err, config.ErrInvalidViewport) {
			t.Errorf("expected ErrInvalidViewport, got %v", err)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, err := buildConfig(scanCmdWithFlags(t, "-c", filepath.Join(t.TempDir(), "missing.yaml")), nil)
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("malformed config file", func(t *testing.T) {
		t.Parallel()

		_, err := buildConfig(scanCmdWithFlags(t, "-c", writeConfigFile(t, "targets: [")), nil)
		if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
			t.Errorf("expected load error, got %v", err)
		}
	})
}

func TestPrepareConfig(t *testing.T) {
	t.Parallel()

	t.Run("reads the sample file", func(t *testing.T) {
		t.Parallel()

		samplePath := filepath.Join(t.TempDir(), "chat.txt")
		if err := os.WriteFile(samplePath, []byte("성호: 괜찮으신가요?\n"), 0600); err != nil {
			t.Fatalf("failed to write sample: %v", err)
		}

		cfg, err := prepareConfig(scanCmdWithFlags(t, "-c", writeConfigFile(t, ""), "--sample-file", samplePath), nil)
		if err != nil {
			t.Fatalf("prepareConfig() error = %v", err)
		}
		if cfg.Sample != "성호: 괜찮으신가요?\n" || cfg.SampleFile != "" {
			t.Errorf("Sample/SampleFile = %q/%q", cfg.Sample, cfg.SampleFile)
		}
	})

	t.Run("conflicting sample options", func(t *testing.T) {
		t.Parallel()

		_, err := prepareConfig(scanCmdWithFlags(t, "-c", writeConfigFile(t, ""),
			"--sample", "x", "--sample-file", "chat.txt"), nil)
		if !errors.Is(err, config.ErrConflictingSample) {
			t.Errorf("expected ErrConflictingSample, got %v", err)
		}
	})

	t.Run("missing sample file", func(t *testing.T) {
		t.Parallel()

		_, err := prepareConfig(scanCmdWithFlags(t, "-c", writeConfigFile(t, ""),
			"--sample-file", filepath.Join(t.TempDir(), "missing.txt")), nil)
		if err == nil || !strings.Contains(err.Error(), "failed to read sample file") {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("invalid base URL", func(t *testing.T) {
		t.Parallel()

		_, err := prepareConfig(scanCmdWithFlags(t, "-c", writeConfigFile(t, "")), []string{"localhost:5173"})
		if !errors.Is(err, config.ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})
}

// testConfig returns a fast configuration writing into temp directories.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "overflow-report")
	cfg.DBDir = t.TempDir()
	cfg.Settle = 0
	cfg.InjectSettle = 0
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// printedReport is one REPORT_PATH block of the scan output.
type printedReport struct {
	path string
	run  model.RunReport
}

// parseStdout splits scan output into REPORT_PATH blocks.
func parseStdout(t *testing.T, out string) []printedReport {
	t.Helper()

	var reports []printedReport
	blocks := strings.Split(out, "REPORT_PATH=")
	if blocks[0] != "" {
		t.Fatalf("stdout must start with REPORT_PATH=, got %q", out)
	}
	for _, block := range blocks[1:] {
		path, body, ok := strings.Cut(block, "\n")
		if !ok {
			t.Fatalf("malformed block %q", block)
		}
		var run model.RunReport
		if err := json.Unmarshal([]byte(body), &run); err != nil {
			t.Fatalf("report is not JSON: %v\n%s", err, body)
		}
		reports = append(reports, printedReport{path: path, run: run})
	}
	return reports
}

// TestScanner tests the scan flow against stub pages.
func TestScanner(t *testing.T) {
	t.Parallel()

	t.Run("writes report, screenshots and history", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Markdown = true
		cfg.Summary = config.SummaryText

		var stdout, stderr bytes.Buffer
		opener := &stubOpener{}
		s := newScanner(cfg, opener.open, quietLogger(), &stdout, &stderr)

		targets, err := cfg.Targets()
		if err != nil {
			t.Fatalf("Targets() error = %v", err)
		}
		if err := s.scan(context.Background(), targets); err != nil {
			t.Fatalf("scan() error = %v", err)
		}

		printed := parseStdout(t, stdout.String())
		if len(printed) != 1 {
			t.Fatalf("expected 1 report, got %d", len(printed))
		}
		reportPath := filepath.Join(cfg.OutputDir, "report.json")
		if printed[0].path != reportPath {
			t.Errorf("REPORT_PATH = %q, want %q", printed[0].path, reportPath)
		}

		run := printed[0].run
		if len(run.Viewports) != 2 || run.Aborted {
			t.Fatalf("expected 2 complete viewports, got %d (aborted=%v)", len(run.Viewports), run.Aborted)
		}
		if n := len(run.Viewports[0].Findings); n != 0 {
			t.Errorf("360x800 findings = %d, want 0", n)
		}
		if n := len(run.Viewports[1].Findings); n != 1 {
			t.Fatalf("375x812 findings = %d, want 1", n)
		}
		f := run.Viewports[1].Findings[0]
		if f.TagName != "div" || f.OverflowX != 125 || f.RightOverflow != 125 {
			t.Errorf("unexpected finding %+v", f)
		}

		// The file holds the same report as stdout.
		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report file missing: %v", err)
		}
		var fromFile model.RunReport
		if err := json.Unmarshal(data, &fromFile); err != nil {
			t.Fatalf("report file is not JSON: %v", err)
		}
		if fromFile.ID != run.ID {
			t.Errorf("file report %q differs from printed report %q", fromFile.ID, run.ID)
		}

		for _, name := range []string{"screenshot-360x800.png", "screenshot-375x812.png", "report.md"} {
			if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}

		if !strings.Contains(stderr.String(), "OVERFLOW REPORT") {
			t.Errorf("expected text summary on stderr, got %q", stderr.String())
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open history: %v", err)
		}
		defer db.Close()
		history, err := db.GetRunHistory(context.Background(), run.URL)
		if err != nil {
			t.Fatalf("GetRunHistory() error = %v", err)
		}
		if len(history) != 1 || history[0].ID != run.ID {
			t.Errorf("expected the run in history, got %d runs", len(history))
		}
	})

	t.Run("navigation failure still writes the report", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.SaveToDB = false

		var stdout bytes.Buffer
		opener := &stubOpener{failNav: true}
		s := newScanner(cfg, opener.open, quietLogger(), &stdout, io.Discard)

		targets, _ := cfg.Targets()
		if err := s.scan(context.Background(), targets); err != nil {
			t.Fatalf("navigation failure must not fail the scan: %v", err)
		}

		printed := parseStdout(t, stdout.String())
		if len(printed) != 1 {
			t.Fatalf("expected 1 report, got %d", len(printed))
		}
		run := printed[0].run
		if !run.Aborted || !strings.Contains(run.AbortReason, "ERR_CONNECTION_REFUSED") {
			t.Errorf("expected aborted run, got aborted=%v reason=%q", run.Aborted, run.AbortReason)
		}
		if len(run.Viewports) != 0 {
			t.Errorf("failed viewport must not be reported, got %d", len(run.Viewports))
		}
		if _, err := os.Stat(filepath.Join(cfg.DBDir, database.DBFileName)); !os.IsNotExist(err) {
			t.Error("history database should not be created with --no-history")
		}
	})

	t.Run("unwritable output directory is fatal", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.SaveToDB = false
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0600); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		cfg.OutputDir = filepath.Join(blocker, "overflow-report")

		var stdout bytes.Buffer
		s := newScanner(cfg, (&stubOpener{}).open, quietLogger(), &stdout, io.Discard)

		targets, _ := cfg.Targets()
		err := s.scan(context.Background(), targets)
		var writeErr *report.OutputWriteError
		if !errors.As(err, &writeErr) {
			t.Fatalf("expected OutputWriteError, got %v", err)
		}
		if strings.Contains(stdout.String(), "REPORT_PATH=") {
			t.Error("REPORT_PATH must not be printed when the report was not written")
		}
	})

	t.Run("named targets in batch keep their order", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.SaveToDB = false
		cfg.BatchSize = 2
		cfg.File = &config.File{
			Targets: map[string]config.TargetConfig{
				"talkbridge": {Path: "/talkbridge", Sample: "민지: 안녕\n", Repeat: 2},
				"home":       {Path: "/"},
			},
		}
		cfg.TargetNames = []string{"talkbridge", "home"}

		var stdout bytes.Buffer
		opener := &stubOpener{}
		s := newScanner(cfg, opener.open, quietLogger(), &stdout, io.Discard)

		targets, err := cfg.Targets()
		if err != nil {
			t.Fatalf("Targets() error = %v", err)
		}
		if err := s.scan(context.Background(), targets); err != nil {
			t.Fatalf("scan() error = %v", err)
		}

		printed := parseStdout(t, stdout.String())
		var paths []string
		for _, p := range printed {
			paths = append(paths, filepath.Base(p.path))
		}
		if diff := cmp.Diff([]string{"report-talkbridge.json", "report-home.json"}, paths); diff != "" {
			t.Errorf("report order mismatch (-want +got):\n%s", diff)
		}

		if !printed[0].run.Viewports[0].Injected {
			t.Error("talkbridge should have injected its sample")
		}
		if printed[1].run.Viewports[0].Injected {
			t.Error("home has no sample to inject")
		}
		if got := opener.pages["talkbridge"].injected; len(got) != 2 || got[0] != "민지: 안녕\n민지: 안녕\n" {
			t.Errorf("unexpected injected samples %q", got)
		}
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, "talkbridge-screenshot-375x812.png")); err != nil {
			t.Errorf("expected named screenshot: %v", err)
		}
	})

	t.Run("cancelled context returns the error", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.SaveToDB = false

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := newScanner(cfg, (&stubOpener{}).open, quietLogger(), io.Discard, io.Discard)
		targets, _ := cfg.Targets()
		if err := s.scan(ctx, targets); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	run := model.NewRunReport("talkbridge", "http://localhost:5173/talkbridge")
	run.AddViewport(*model.NewViewportReport(model.DefaultViewports()[0], run.URL))
	run.Finish()

	tests := []struct {
		format string
		want   string
	}{
		{config.SummaryText, "OVERFLOW REPORT"},
		{config.SummaryJSON, `"totalFindings": 0`},
		{config.SummaryMarkdown, "# Overflow Report"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := writeSummary(&buf, tt.format, run, false); err != nil {
				t.Fatalf("writeSummary() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestToPipelineTargets(t *testing.T) {
	t.Parallel()

	in := []config.Target{{
		Name:    "talkbridge",
		URL:     "http://localhost:5173/talkbridge",
		Sample:  "안녕",
		Cookie:  "session=abc",
		Headers: map[string]string{"Accept-Language": "ko-KR"},
	}}
	want := []pipeline.Target{{
		Name:    "talkbridge",
		URL:     "http://localhost:5173/talkbridge",
		Sample:  "안녕",
		Cookie:  "session=abc",
		Headers: map[string]string{"Accept-Language": "ko-KR"},
	}}
	if diff := cmp.Diff(want, toPipelineTargets(in)); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestBrowserOptions(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.ChromeBin = "/usr/bin/chromium"
	cfg.BrowserURL = "ws://127.0.0.1:9222/devtools/browser/abc"

	opts := browserOptions(cfg, quietLogger())
	if !opts.Headless || !opts.NoSandbox {
		t.Error("expected headless sandboxless defaults")
	}
	if opts.Bin != cfg.ChromeBin || opts.ControlURL != cfg.BrowserURL {
		t.Errorf("Bin/ControlURL = %q/%q", opts.Bin, opts.ControlURL)
	}
}
