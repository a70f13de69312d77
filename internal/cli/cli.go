// Package cli implements the opamsnap command-line interface.
//
// The main commands are:
//   - run: harvest the registry and publish a dataset snapshot
//   - latest: show the currently published dataset version
//   - resolve: fetch one package and report its selected version
//
// All commands support --verbose (-v) for debug-level logging and --config
// for an explicit TOML configuration file. Settings resolve in order: flags,
// then OPAMSNAP_* environment variables, then the config file.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sadiqj/opamsnap/pkg/buildinfo"
)

// appName is the application name used for directories and display.
const appName = "opamsnap"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag value, consumed by commands that
	// read settings.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "opamsnap publishes opam package metadata as a columnar dataset",
		Long:         `opamsnap harvests package metadata from the opam registry, picks the version of each package worth shipping, and publishes the result as a versioned parquet dataset.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file (TOML)")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.latestCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
