package model

// Rect is an element bounding box in viewport coordinates (CSS pixels).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 {
	return r.X + r.Width
}

// OverflowFinding is one DOM element that overflows horizontally in a
// given viewport. A finding has no identity beyond its position in the
// findings list; re-running on a changed DOM may reorder findings.
type OverflowFinding struct {
	// TagName is the element's tag in lower case (e.g. "div").
	TagName string `json:"tagName"`

	// ElementID is the element's id attribute, or nil when absent.
	ElementID *string `json:"elementId"`

	// ClassList is the element's class attribute, truncated.
	ClassList string `json:"classList"`

	// ScrollWidth is the measured scrollWidth of the element.
	ScrollWidth int `json:"scrollWidth"`

	// ClientWidth is the measured clientWidth of the element.
	ClientWidth int `json:"clientWidth"`

	// OverflowX is max(0, ScrollWidth-ClientWidth).
	OverflowX int `json:"overflowX"`

	// RightOverflow is how far the right edge sticks out past the
	// viewport's right edge, or 0.
	RightOverflow float64 `json:"rightOverflow"`

	// BoundingBox is the element's rounded bounding client rect.
	BoundingBox Rect `json:"boundingBox"`

	// AncestorPath is a short CSS-like selector chain ending at the element.
	AncestorPath string `json:"ancestorPath"`

	// HTMLSnippet is the element's outerHTML, truncated.
	HTMLSnippet string `json:"htmlSnippet"`
}

// ID returns the element id, or the empty string when the element has none.
func (f OverflowFinding) ID() string {
	if f.ElementID == nil {
		return ""
	}
	return *f.ElementID
}

// Key returns a string that identifies the finding's element across runs
// of the same page. It is used by run comparison, not by the report itself.
func (f OverflowFinding) Key() string {
	return f.AncestorPath + "|" + f.TagName + "|" + f.ID()
}
