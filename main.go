package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	BuildTime = "unknown"
)

// options are the flags shared by every command.
type options struct {
	configFile string
	root       string
	verbose    bool
	serveOnly  bool
	jsonOutput bool
}

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "mdviewer [PATH]",
		Short: "A lightweight browser for a tree of markdown documents",
		Long: `mdviewer serves a directory of markdown files as navigable pages.

PATH:
    If PATH is a directory: Browse all markdown files in that directory
    If PATH is a file:      Open browser directly to that file
    If PATH is omitted:     Use the configured root (default: current directory)

Every directory page lists its sub-directories, then its documents, and shows
its readme.md (see default_filename). Pages reload when files change.

CONFIGURATION:
    mdviewer.json, mdviewer.yaml or mdviewer.toml in the current directory is
    used automatically; --config selects another file. MDVIEWER_* environment
    variables (also read from .env) override file values, for example
    MDVIEWER_PORT=9000 or MDVIEWER_SSH_ENABLED=true.

    Commonly ignored folders (.git, node_modules, vendor, build outputs,
    caches, IDE folders, virtualenvs, coverage, temp folders) are skipped.`,
		Example: `  # Browse current directory with default settings
  mdviewer

  # Browse a specific directory
  mdviewer /path/to/docs

  # Open a specific markdown file
  mdviewer /path/to/README.md

  # Start server without opening browser
  mdviewer serve --serve

  # Print a page in the terminal
  mdviewer show docs/a.md`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to configuration file (default: mdviewer.* if exists)")
	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "document root directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&opts.serveOnly, "serve", false, "start server without opening browser")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newShowCmd(opts))
	rootCmd.AddCommand(newTreeCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (built: %s)", Version, BuildTime)
}

// parseLevel maps a log_level setting onto a charmbracelet/log level.
func parseLevel(s string) (log.Level, error) {
	if s == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
