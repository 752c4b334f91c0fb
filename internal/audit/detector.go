package audit

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mxten777/overflowscan/internal/model"
)

// Default detection limits.
const (
	// DefaultTolerance is the number of pixels an element may overflow
	// before it is reported.
	DefaultTolerance = 1.0

	// DefaultMaxClassLen bounds OverflowFinding.ClassList.
	DefaultMaxClassLen = 200

	// DefaultMaxSnippetLen bounds OverflowFinding.HTMLSnippet.
	DefaultMaxSnippetLen = 300

	// DefaultMaxPathDepth bounds the number of segments in AncestorPath.
	DefaultMaxPathDepth = 8

	// pathClassLimit is how many classes each path segment keeps.
	pathClassLimit = 2
)

// Options configures a Detector.
type Options struct {
	Tolerance     float64
	MaxClassLen   int
	MaxSnippetLen int
	MaxPathDepth  int
}

// DefaultOptions returns the default detection options.
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		MaxClassLen:   DefaultMaxClassLen,
		MaxSnippetLen: DefaultMaxSnippetLen,
		MaxPathDepth:  DefaultMaxPathDepth,
	}
}

// Detector turns page snapshots into overflow findings.
type Detector struct {
	opts Options
}

// NewDetector creates a Detector. Zero or negative limits fall back to
// the defaults; a negative tolerance is treated as zero.
func NewDetector(opts Options) *Detector {
	def := DefaultOptions()
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	if opts.MaxClassLen <= 0 {
		opts.MaxClassLen = def.MaxClassLen
	}
	if opts.MaxSnippetLen <= 0 {
		opts.MaxSnippetLen = def.MaxSnippetLen
	}
	if opts.MaxPathDepth <= 0 {
		opts.MaxPathDepth = def.MaxPathDepth
	}
	return &Detector{opts: opts}
}

// Options returns the effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// Detect returns the findings for a page snapshot in document order.
// The result is never nil.
func (d *Detector) Detect(snap PageSnapshot) []model.OverflowFinding {
	findings := make([]model.OverflowFinding, 0)
	for _, el := range snap.Elements {
		if f, ok := d.Evaluate(el, snap.ViewportWidth); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

// Evaluate applies the overflow rules to a single element.
// It returns false for unmeasurable or invisible elements and for
// elements within tolerance.
func (d *Detector) Evaluate(el ElementSnapshot, viewportWidth float64) (model.OverflowFinding, bool) {
	if !el.Measurable() || !IsRendered(el) {
		return model.OverflowFinding{}, false
	}

	overflowX := max(0, el.ScrollWidth-el.ClientWidth)
	rightOverflow := math.Max(0, el.Rect.Right-viewportWidth)

	if float64(overflowX) <= d.opts.Tolerance && rightOverflow <= d.opts.Tolerance {
		return model.OverflowFinding{}, false
	}

	f := model.OverflowFinding{
		TagName:       strings.ToLower(el.Tag),
		ClassList:     Truncate(el.ClassName, d.opts.MaxClassLen),
		ScrollWidth:   el.ScrollWidth,
		ClientWidth:   el.ClientWidth,
		OverflowX:     overflowX,
		RightOverflow: rightOverflow,
		BoundingBox: model.Rect{
			X:      math.Round(el.Rect.Left),
			Y:      math.Round(el.Rect.Top),
			Width:  math.Round(el.Rect.Width),
			Height: math.Round(el.Rect.Height),
		},
		AncestorPath: AncestorPath(el.Ancestors, d.opts.MaxPathDepth),
		HTMLSnippet:  Truncate(el.OuterHTML, d.opts.MaxSnippetLen),
	}
	if el.ID != "" {
		id := el.ID
		f.ElementID = &id
	}
	return f, true
}

// IsRendered reports whether an element can be seen at all. Elements
// hidden with display:none, visibility:hidden or collapse, or fully
// transparent elements cannot visually overflow whatever their box
// metrics say.
func IsRendered(el ElementSnapshot) bool {
	if strings.EqualFold(el.Display, "none") {
		return false
	}
	switch strings.ToLower(el.Visibility) {
	case "hidden", "collapse":
		return false
	}
	if el.Opacity != "" {
		if op, err := strconv.ParseFloat(strings.TrimSpace(el.Opacity), 64); err == nil && op == 0 {
			return false
		}
	}
	return true
}

// AncestorPath builds a short CSS-like selector chain such as
// "div#root > main.page.wide > p". Each segment is the tag in lower
// case, followed by "#id" when the element has an id, or else by its
// first two classes. Only the last depth segments are kept.
func AncestorPath(ancestors []AncestorRef, depth int) string {
	if depth > 0 && len(ancestors) > depth {
		ancestors = ancestors[len(ancestors)-depth:]
	}
	parts := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		parts = append(parts, pathSegment(a))
	}
	return strings.Join(parts, " > ")
}

func pathSegment(a AncestorRef) string {
	seg := strings.ToLower(a.Tag)
	if a.ID != "" {
		return seg + "#" + a.ID
	}
	classes := strings.Fields(a.ClassName)
	if len(classes) > pathClassLimit {
		classes = classes[:pathClassLimit]
	}
	if len(classes) > 0 {
		seg += "." + strings.Join(classes, ".")
	}
	return seg
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
