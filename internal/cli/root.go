// Package cli implements the mortise command-line interface.
//
// The CLI evaluates Mortise design files, runs the constraint solver and
// exports the placed geometry. It is built using cobra and supports
// verbose logging via the charmbracelet/log library.
//
// Commands:
//   - solve: evaluate a design, solve its constraints and report the result
//   - check: evaluate a design and validate its constraints without solving
package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version. This is
// typically called by the main package with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the mortise CLI and returns an error if any command fails.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "mortise",
		Short:        "Mortise solves and renders constraint-based assemblies",
		Long:         `Mortise is a CLI tool for parametric assembly design: it evaluates Lisp design files, places parts by minimizing declared geometric constraints, and exports triangle meshes.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("mortise %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newSolveCmd())
	root.AddCommand(newCheckCmd())

	return root.ExecuteContext(ctx)
}
