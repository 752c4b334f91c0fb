package audit

// ElementRect is the bounding client rect of an element as reported by
// getBoundingClientRect.
type ElementRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AncestorRef identifies one element on the path from the document root
// to a measured element.
type AncestorRef struct {
	Tag       string `json:"tag"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
}

// ElementSnapshot is the typed view of one DOM element captured inside
// the page. Fields are raw measurements; no policy has been applied.
type ElementSnapshot struct {
	Tag         string      `json:"tag"`
	ID          string      `json:"id,omitempty"`
	ClassName   string      `json:"className,omitempty"`
	ClientWidth int         `json:"clientWidth"`
	ScrollWidth int         `json:"scrollWidth"`
	Rect        ElementRect `json:"rect"`

	// Display, Visibility and Opacity are the computed style values.
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Opacity    string `json:"opacity"`

	// Ancestors runs from the outermost ancestor to the element itself.
	Ancestors []AncestorRef `json:"ancestors"`

	OuterHTML string `json:"outerHTML"`

	// MeasureError is set when the page threw while measuring this
	// element. Such elements are unmeasurable and never reported.
	MeasureError string `json:"measureError,omitempty"`
}

// Measurable reports whether the element was measured successfully.
func (e ElementSnapshot) Measurable() bool {
	return e.MeasureError == ""
}

// PageSnapshot is the full set of element measurements for one page
// load at one viewport.
type PageSnapshot struct {
	// ViewportWidth is the layout viewport width used for the
	// right-edge check (documentElement.clientWidth or innerWidth).
	ViewportWidth float64 `json:"viewportWidth"`

	DocumentScrollWidth int `json:"documentScrollWidth"`
	DocumentClientWidth int `json:"documentClientWidth"`

	// Elements are in document order.
	Elements []ElementSnapshot `json:"elements"`
}
