// Package main provides the entry point for the overflowscan CLI.
//
// overflowscan loads a web page in headless Chromium at several mobile
// viewport sizes, finds elements that overflow horizontally, and writes
// a JSON report plus one full-page screenshot per viewport.
//
// Usage:
//
//	overflowscan scan [baseUrl] [path]
//	overflowscan scan --target talkbridge
//
// See --help for all available options.
package main

func main() {
	Execute()
}
