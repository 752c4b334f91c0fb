package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultDeviceScaleFactor is the pixel density used when a viewport
// does not specify one. Mobile devices in the 360-375px class are at
// least 2x, so screenshots taken at 2x match what users actually see.
const DefaultDeviceScaleFactor = 2.0

// ErrInvalidViewportSpec is returned by ParseViewport for malformed input.
var ErrInvalidViewportSpec = errors.New("invalid viewport: expected [name=]WIDTHxHEIGHT[@SCALE]")

// ViewportSpec describes one simulated browser window.
// A ViewportSpec is fixed configuration and is never modified during a run.
type ViewportSpec struct {
	// Name is the label used in screenshot file names and report output.
	Name string `json:"name" yaml:"name" toml:"name"`

	// Width is the layout viewport width in CSS pixels.
	Width int `json:"width" yaml:"width" toml:"width"`

	// Height is the layout viewport height in CSS pixels.
	Height int `json:"height" yaml:"height" toml:"height"`

	// DeviceScaleFactor is the device pixel ratio.
	DeviceScaleFactor float64 `json:"deviceScaleFactor" yaml:"deviceScaleFactor" toml:"device_scale_factor"`
}

// DefaultViewports returns the two mobile viewports the auditor scans
// when nothing else is configured.
func DefaultViewports() []ViewportSpec {
	return []ViewportSpec{
		{Name: "360x800", Width: 360, Height: 800, DeviceScaleFactor: DefaultDeviceScaleFactor},
		{Name: "375x812", Width: 375, Height: 812, DeviceScaleFactor: DefaultDeviceScaleFactor},
	}
}

// Label returns the name of the viewport, falling back to "WxH".
func (v ViewportSpec) Label() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Scale returns the device scale factor, falling back to the default
// when the factor is unset.
func (v ViewportSpec) Scale() float64 {
	if v.DeviceScaleFactor <= 0 {
		return DefaultDeviceScaleFactor
	}
	return v.DeviceScaleFactor
}

// Validate reports whether the viewport can be applied to a page.
func (v ViewportSpec) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("viewport %q: width and height must be positive (got %dx%d)", v.Label(), v.Width, v.Height)
	}
	if v.DeviceScaleFactor < 0 {
		return fmt.Errorf("viewport %q: device scale factor must not be negative", v.Label())
	}
	if strings.ContainsAny(v.Name, `/\`) {
		return fmt.Errorf("viewport %q: name must not contain path separators", v.Name)
	}
	return nil
}

// String implements fmt.Stringer.
func (v ViewportSpec) String() string {
	return fmt.Sprintf("%s (%dx%d@%gx)", v.Label(), v.Width, v.Height, v.Scale())
}

// ParseViewport parses a viewport from the command line form
// "[name=]WIDTHxHEIGHT[@SCALE]", for example "360x800",
// "tablet=768x1024" or "iphone=390x844@3".
// When the name is omitted it defaults to "WIDTHxHEIGHT".
func ParseViewport(s string) (ViewportSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ViewportSpec{}, ErrInvalidViewportSpec
	}

	var spec ViewportSpec
	if name, rest, ok := strings.Cut(s, "="); ok {
		spec.Name = strings.TrimSpace(name)
		s = strings.TrimSpace(rest)
	}

	spec.DeviceScaleFactor = DefaultDeviceScaleFactor
	if size, scale, ok := strings.Cut(s, "@"); ok {
		f, err := strconv.ParseFloat(strings.TrimSuffix(scale, "x"), 64)
		if err != nil || f <= 0 {
			return ViewportSpec{}, fmt.Errorf("%w: bad scale %q", ErrInvalidViewportSpec, scale)
		}
		spec.DeviceScaleFactor = f
		s = size
	}

	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return ViewportSpec{}, fmt.Errorf("%w: %q", ErrInvalidViewportSpec, s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return ViewportSpec{}, fmt.Errorf("%w: bad width %q", ErrInvalidViewportSpec, w)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return ViewportSpec{}, fmt.Errorf("%w: bad height %q", ErrInvalidViewportSpec, h)
	}
	spec.Width = width
	spec.Height = height

	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%dx%d", width, height)
	}

	if err := spec.Validate(); err != nil {
		return ViewportSpec{}, err
	}
	return spec, nil
}
