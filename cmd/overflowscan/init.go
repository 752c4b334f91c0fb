package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mxten777/overflowscan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/overflowscan.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new overflowscan configuration file",
		Long: `Initialize creates a new .overflowscan configuration file in the current directory.

The generated file includes:
- The default mobile viewports
- A "talkbridge" target that types a long Korean conversation into the chat box
- Commented examples for cookies, headers and absolute URLs

Examples:
  # Create .overflowscan in current directory
  overflowscan init

  # Create config file at a specific path
  overflowscan init -o myconfig.yaml

  # Force overwrite existing file
  overflowscan init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/overflowscan.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Viewports to scan")
	fmt.Fprintln(out, "  - Named targets with sample text to inject")
	fmt.Fprintln(out, "  - Authentication cookies and headers")
	fmt.Fprintln(out, "\nThen run: overflowscan scan --target talkbridge")

	return nil
}
