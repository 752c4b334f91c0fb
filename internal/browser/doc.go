// Package browser drives a headless Chromium through go-rod.
//
// Browser owns the Chromium process for the duration of a run; Page is a
// single tab whose viewport is resized between measurements. The scripts
// evaluated inside the page (see js/) only collect raw layout metrics.
// Deciding what counts as overflow is left to the audit package.
//
// # Usage
//
//	b, err := browser.Launch(ctx, browser.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	page, err := b.NewPage(ctx, browser.PageOptions{})
package browser
