// Package watch re-runs a scan whenever the watched source tree changes.
//
// Editors and bundlers tend to write several files in quick succession,
// so change events are collected and handed to the callback as one batch
// once the tree has been quiet for the debounce interval.
package watch
