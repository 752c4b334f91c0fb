// Package log builds the slog loggers used by overflowscan and keeps
// credentials out of their output.
//
// Targets are often audited behind a login, so run configuration carries
// session cookies, Authorization headers and URLs with access tokens.
// SecureHandler wraps any slog.Handler and rewrites such attributes
// before they reach it:
//   - cookie strings keep their names but lose their values
//     ("session=abc; lang=ko" becomes "session=***; lang=***")
//   - header maps are logged as groups with sensitive header values masked
//   - URLs keep scheme, host and path; passwords and token-like query
//     parameters are masked
//   - keys such as password, token or secret, and values that look like
//     bearer tokens or JWTs, are replaced entirely
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("page configured",
//	    "cookie", target.Cookie,   // names only
//	    "headers", target.Headers, // Authorization masked
//	    "url", target.URL,         // ?token= masked
//	)
package log
