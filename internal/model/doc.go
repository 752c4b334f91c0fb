// Package model defines the data structures shared by the overflow auditor.
//
// This package contains the following main types:
//   - ViewportSpec: One simulated browser window (size and pixel density)
//   - OverflowFinding: One DOM element flagged for horizontal overflow
//   - ViewportReport: All findings and page metrics for one viewport
//   - RunReport: The ordered viewport reports of a single invocation
//   - Summary: Aggregated counts used by the text and Markdown writers
//
// The models are serialized to JSON for the report file and for the
// run history database, so JSON field names are part of the tool's
// external contract.
package model
