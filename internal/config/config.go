package config

import (
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "overflowscan"

	// DefaultBaseURL is the Vite development server.
	DefaultBaseURL = "http://localhost:5173"

	// DefaultOutputDir is where reports and screenshots are written.
	DefaultOutputDir = "scripts/overflow-report"

	// DefaultTimeout bounds each navigation, including the wait for the
	// network to go idle.
	DefaultTimeout = 15 * time.Second

	// DefaultSettle is the pause after load so entrance animations finish.
	DefaultSettle = 800 * time.Millisecond

	// DefaultInjectSettle is the pause after sample text was injected.
	DefaultInjectSettle = 600 * time.Millisecond

	// DefaultTolerance is the number of pixels an element may overflow
	// before it is reported. It absorbs subpixel rounding.
	DefaultTolerance = audit.DefaultTolerance

	// DefaultBatchSize audits targets one at a time.
	DefaultBatchSize = 1

	// DefaultSampleRepeat is how often the sample text is repeated.
	DefaultSampleRepeat = 1
)

// Summary formats accepted by --summary.
const (
	SummaryText     = "text"
	SummaryJSON     = "json"
	SummaryMarkdown = "markdown"
)

// Config holds all options of a scan run. It is built from CLI flags and
// the optional configuration file and passed down explicitly.
type Config struct {
	// BaseURL is the origin of the application under test.
	BaseURL string

	// Path is appended to BaseURL for the default (unnamed) target.
	Path string

	// Viewports are scanned in order for every target.
	Viewports []model.ViewportSpec

	// Sample is typed into the first text input before measuring.
	// It overrides the sample of named targets.
	Sample string

	// SampleFile is read into Sample by the CLI.
	SampleFile string

	// SampleRepeat repeats Sample to stress long content.
	SampleRepeat int

	// TargetNames selects targets from the configuration file.
	// When empty, the single default target BaseURL+Path is audited.
	TargetNames []string

	// OutputDir receives report and screenshot files.
	OutputDir string

	// Timeout bounds every navigation.
	Timeout time.Duration

	// Settle and InjectSettle are fixed pauses before measuring.
	Settle       time.Duration
	InjectSettle time.Duration

	// Tolerance is the overflow in pixels that is still accepted.
	Tolerance float64

	// BatchSize is the number of targets audited concurrently.
	BatchSize int

	// ChromeBin is the Chromium executable; empty lets go-rod find or
	// download one.
	ChromeBin string

	// BrowserURL connects to a running Chromium's DevTools endpoint
	// instead of launching one.
	BrowserURL string

	// Markdown also writes a Markdown summary next to the JSON report.
	Markdown bool

	// Summary prints a human-readable summary to stderr. Empty disables it.
	Summary string

	// SaveToDB records runs in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON lines.
	LogJSON bool

	// ConfigFilePath is the configuration file given with --config.
	ConfigFilePath string

	// File is the loaded configuration file, nil when there is none.
	File *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		Viewports:    model.DefaultViewports(),
		SampleRepeat: DefaultSampleRepeat,
		OutputDir:    DefaultOutputDir,
		Timeout:      DefaultTimeout,
		Settle:       DefaultSettle,
		InjectSettle: DefaultInjectSettle,
		Tolerance:    DefaultTolerance,
		BatchSize:    DefaultBatchSize,
		SaveToDB:     true,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for overflowscan.
// On Linux: ~/.local/share/overflowscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for overflowscan.
// On Linux: ~/.config/overflowscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Viewports) == 0 {
		return ErrNoViewport
	}
	seen := make(map[string]bool, len(c.Viewports))
	for _, vp := range c.Viewports {
		if err := vp.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidViewport, err)
		}
		if seen[vp.Label()] {
			return fmt.Errorf("%w: duplicate viewport name %q", ErrInvalidViewport, vp.Label())
		}
		seen[vp.Label()] = true
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Settle < 0 || c.InjectSettle < 0 {
		return ErrNegativeSettle
	}
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) {
		return ErrInvalidTolerance
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.Sample != "" && c.SampleFile != "" {
		return ErrConflictingSample
	}
	if c.SampleRepeat <= 0 {
		return ErrInvalidSampleRepeat
	}
	if c.Summary != "" && !slices.Contains([]string{SummaryText, SummaryJSON, SummaryMarkdown}, c.Summary) {
		return ErrInvalidSummaryFormat
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	return nil
}

// JoinURL appends path to base. A trailing slash on base is dropped and
// a missing leading slash on path is added. An empty path returns base
// unchanged. An absolute path ("http://...") replaces base.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(base, "/") + path
}

// Target is one fully resolved page to audit.
type Target struct {
	Name    string
	URL     string
	Sample  string
	Cookie  string
	Headers map[string]string
}

// Targets resolves the pages to audit. Without TargetNames it returns
// the single default target BaseURL+Path, carrying the file defaults.
// With TargetNames every name must exist in the configuration file.
func (c *Config) Targets() ([]Target, error) {
	file := c.File
	if file == nil {
		file = &File{}
	}

	if len(c.TargetNames) == 0 {
		defaults := file.GetTargetConfig("")
		return []Target{c.resolve("", c.Path, defaults)}, nil
	}

	targets := make([]Target, 0, len(c.TargetNames))
	for _, name := range c.TargetNames {
		if err := ValidateTargetName(name); err != nil {
			return nil, err
		}
		if _, ok := file.Targets[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
		}

		tc := file.GetTargetConfig(name)
		path := tc.Path
		if tc.URL != "" {
			path = tc.URL
		}
		targets = append(targets, c.resolve(name, path, tc))
	}
	return targets, nil
}

func (c *Config) resolve(name, path string, tc TargetConfig) Target {
	sample := tc.Sample
	repeat := tc.Repeat
	if c.Sample != "" {
		sample = c.Sample
		repeat = c.SampleRepeat
	}
	if repeat <= 0 {
		repeat = c.SampleRepeat
	}
	if sample != "" && repeat > 1 {
		sample = strings.Repeat(sample, repeat)
	}

	return Target{
		Name:    name,
		URL:     JoinURL(c.BaseURL, path),
		Sample:  sample,
		Cookie:  tc.Cookie,
		Headers: tc.Headers,
	}
}

// ValidateTargetName reports whether name can be used in output file names.
func ValidateTargetName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidTargetName, name)
	}
	return nil
}
