package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.Targets. Callers match them with errors.Is.
var (
	// ErrNoViewport is returned when the viewport list is empty.
	ErrNoViewport = errors.New("no viewport configured")

	// ErrInvalidViewport is returned when a viewport has a non-positive
	// size, an unusable name, or a name used twice.
	ErrInvalidViewport = errors.New("invalid viewport")

	// ErrInvalidTimeout is returned when the navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrNegativeSettle is returned when a settle delay is negative.
	// Use 0 to skip waiting.
	ErrNegativeSettle = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidTolerance is returned when the overflow tolerance is
	// negative or not a number.
	ErrInvalidTolerance = errors.New("invalid tolerance: must be a non-negative number of pixels")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidBaseURL is returned when the base URL is not an absolute
	// http or https URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http(s) URL")

	// ErrConflictingSample is returned when both --sample and
	// --sample-file are given.
	ErrConflictingSample = errors.New("conflicting sample options: --sample and --sample-file cannot be used together")

	// ErrInvalidSampleRepeat is returned when the sample repeat count is
	// not positive.
	ErrInvalidSampleRepeat = errors.New("invalid sample repeat: must be positive")

	// ErrInvalidSummaryFormat is returned for an unknown --summary value.
	ErrInvalidSummaryFormat = errors.New("invalid summary format: must be text, json or markdown")

	// ErrUnknownTarget is returned when --target names a target that is
	// not in the configuration file.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrInvalidTargetName is returned when a target name cannot be used
	// in a file name.
	ErrInvalidTargetName = errors.New("invalid target name: must not be empty or contain path separators")
)
