package browser

import (
	"errors"
	"fmt"
)

// ErrLaunch is returned when Chromium cannot be started or connected to.
var ErrLaunch = errors.New("failed to launch browser")

// ErrClosed is returned when a page is used after its browser was closed.
var ErrClosed = errors.New("browser is closed")

// NavigationError reports that a page did not finish loading, either
// because the request failed or because the navigation timeout elapsed.
type NavigationError struct {
	// URL is the address that failed to load.
	URL string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsNavigationError reports whether err is or wraps a NavigationError.
func IsNavigationError(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}
