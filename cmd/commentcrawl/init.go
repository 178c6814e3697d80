package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/commentcrawl/internal/config"
)

//go:embed templates/commentcrawl.yaml
var configTemplate embed.FS

// templatePath is the embedded configuration template.
const templatePath = "templates/commentcrawl.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new commentcrawl configuration file",
		Long: `Initialize creates a new .commentcrawl configuration file in the current directory.

The generated file includes:
- The account section and the environment variables that override it
- Commented selector and timing overrides
- Per-video output and policy examples

Examples:
  # Create .commentcrawl in current directory
  commentcrawl init

  # Create config file at a specific path
  commentcrawl init -o myconfig.yaml

  # Force overwrite existing file
  commentcrawl init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
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

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold a password, so only the owner can read it.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - The login account (or set COMMENTCRAWL_ACCOUNT and COMMENTCRAWL_PASSWORD)")
	fmt.Fprintln(out, "  - Selector and timing overrides")
	fmt.Fprintln(out, "  - Per-video outputs and limits")

	return nil
}
