// Package main provides the entry point for the overflowscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for overflowscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overflowscan",
		Short: "Find horizontal overflow on mobile viewports",
		Long: `overflowscan opens a page in headless Chromium at mobile viewport sizes
and reports every element that is wider than its box or sticks out past
the right edge of the screen.

Findings are data, not failure: the scan exits 0 whenever the report was
written, and non-zero only when the browser cannot start, the
configuration is invalid, or the report cannot be written.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .overflowscan in current or home directory)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
