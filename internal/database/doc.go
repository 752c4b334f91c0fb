// Package database stores the history of overflow runs in SQLite.
//
// The report file on disk only ever holds the latest run. The history
// database keeps every run so that the compare command can diff two of
// them. Each run is stored as its full JSON report plus a few indexed
// columns (target key, start time, finding count) for listings.
//
// modernc.org/sqlite is CGO-free, so the binary still cross-compiles.
package database
