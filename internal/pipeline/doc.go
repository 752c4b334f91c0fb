// Package pipeline runs the per-viewport audit sequence.
//
// A Pipeline executes Steps in order against a State that holds the page,
// the target and the ViewportReport being built:
//
//	resize -> navigate -> settle -> inject -> measure -> screenshot
//
// Auditor repeats the pipeline for every configured viewport on a single
// page and assembles the RunReport. A navigation failure ends the loop
// but still yields the partial report. BatchProcessor runs the Auditor
// for several targets with bounded concurrency using errgroup.
package pipeline
