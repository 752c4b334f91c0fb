package config

import (
	"maps"
	"sort"

	"github.com/mxten777/overflowscan/internal/model"
)

// TargetConfig describes one page in the configuration file.
type TargetConfig struct {
	// Path is appended to the base URL, e.g. "/talkbridge".
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`

	// URL is an absolute address that replaces base URL and path.
	URL string `yaml:"url,omitempty" toml:"url,omitempty"`

	// Sample is typed into the first text input before measuring.
	Sample string `yaml:"sample,omitempty" toml:"sample,omitempty"`

	// Repeat repeats Sample to stress long content.
	Repeat int `yaml:"repeat,omitempty" toml:"repeat,omitempty"`

	// Cookie is sent with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty" toml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// File represents the structure of the .overflowscan configuration file.
type File struct {
	// Viewports replaces the default viewport list unless --viewport
	// is given.
	Viewports []model.ViewportSpec `yaml:"viewports,omitempty" toml:"viewports,omitempty"`

	// Defaults apply to every target unless the target overrides them.
	Defaults TargetConfig `yaml:"defaults,omitempty" toml:"defaults,omitempty"`

	// Targets maps target names to their configuration. Names appear in
	// output file names.
	Targets map[string]TargetConfig `yaml:"targets,omitempty" toml:"targets,omitempty"`
}

// GetTargetConfig returns the configuration for a target merged over
// the defaults. Unknown names yield the defaults.
func (f *File) GetTargetConfig(name string) TargetConfig {
	result := f.Defaults
	result.Headers = maps.Clone(f.Defaults.Headers)

	tc, ok := f.Targets[name]
	if !ok {
		return result
	}

	if tc.Path != "" {
		result.Path = tc.Path
	}
	if tc.URL != "" {
		result.URL = tc.URL
	}
	if tc.Sample != "" {
		result.Sample = tc.Sample
	}
	if tc.Repeat != 0 {
		result.Repeat = tc.Repeat
	}
	if tc.Cookie != "" {
		result.Cookie = tc.Cookie
	}
	if len(tc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(tc.Headers))
		}
		maps.Copy(result.Headers, tc.Headers)
	}
	return result
}

// TargetNames returns the configured target names in sorted order.
func (f *File) TargetNames() []string {
	names := make([]string, 0, len(f.Targets))
	for name := range f.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
