// Package cli provides the cvctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"resume-workflow/internal/bootstrap"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/telemetry"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool

	cfg config.Config
	app *bootstrap.App
)

var rootCmd = &cobra.Command{
	Use:   "cvctl",
	Short: "Generate tailored résumés from a job posting and a personal knowledge base",
	Long: `cvctl drives the résumé workflow from the terminal.

A run extracts the job description, retrieves candidate facts from the
indexed knowledge base, drafts and renders a résumé, then suspends for
review. Approve it or send feedback with "cvctl continue".

Sessions outlive the process only with SESSION_STORE=redis or postgres.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		telemetry.SetupWithWriters(level, os.Stderr)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			if err := app.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close connections: %v\n", err)
			}
			app = nil
		}
	},
}

// getApp builds the dependency graph on first use so commands that only
// render locally never need an LLM key or a database.
func getApp(ctx context.Context) (*bootstrap.App, error) {
	if app != nil {
		return app, nil
	}
	built, err := bootstrap.BuildWithOptions(ctx, cfg, bootstrap.Options{SkipRouter: true, SkipQueue: true})
	if err != nil {
		return nil, fmt.Errorf("init services: %w", err)
	}
	if cfg.SessionStore == "memory" {
		telemetry.Warn("cli.memory_sessions", map[string]any{"hint": "sessions are lost when cvctl exits; set SESSION_STORE"})
	}
	app = built
	return app, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetOutput redirects command output, for tests.
func SetOutput(out, errOut io.Writer) {
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(renderCmd)
}
