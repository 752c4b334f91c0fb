// Package audit decides which DOM elements overflow horizontally.
//
// The browser collects raw layout metrics for every element into a
// PageSnapshot; Detector turns that snapshot into an ordered list of
// model.OverflowFinding. Detection is a pure function of the snapshot,
// so every rule here (visibility exclusion, tolerance, truncation,
// selector path construction) is testable without a browser.
//
// # Tolerance
//
// Layout engines round sub-pixel widths, so an element that fits exactly
// can report a scrollWidth one pixel larger than its clientWidth. An
// element is only flagged when it overflows by strictly more than the
// tolerance. The default of 1px is a heuristic, not a derived value.
package audit
