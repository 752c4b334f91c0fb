// Package config holds the run configuration of overflowscan: defaults,
// validation, and the optional target file (.overflowscan, YAML or TOML)
// that names pages to audit together with their cookies, headers and
// sample text.
package config
