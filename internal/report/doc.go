// Package report renders run reports.
//
// Writers for different formats:
//   - JSONWriter: the run report as JSON, the machine-readable contract
//   - SimpleWriter: a plain text summary for the terminal
//   - MarkdownWriter: a GitHub-flavored Markdown summary for PRs and wikis
//
// FileWriter owns the output directory: it decides where reports and
// screenshots live and turns every failure into an OutputWriteError,
// which callers treat as fatal.
package report
