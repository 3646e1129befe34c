package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"alice/internal/backend"
	"alice/internal/cli"
	"alice/internal/config"
	"alice/internal/log"
)

// deps are the collaborators replaced by tests.
type deps struct {
	open func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error)
	now  func() time.Time
}

func defaultDeps() deps {
	return deps{
		open: func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
			bc, err := backend.FromAppConfig(cfg)
			if err != nil {
				return nil, err
			}
			return backend.NewFactory(logger).CreateBackend(ctx, bc)
		},
		now: time.Now,
	}
}

// app is the state shared by every subcommand once the root has run.
type app struct {
	deps
	cfg     *config.Config
	logger  *log.Logger
	verbose bool
}

func newRootCmd(d deps) *cobra.Command {
	a := &app{deps: d}

	root := &cobra.Command{
		Use:           "alicectl",
		Short:         "Administer alice ledgers",
		Long:          "Inspect users, run the monthly rollover, print month summaries and export ledgers straight from the store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg

			lc := log.DefaultConfig()
			lc.Component = log.ComponentCLI
			lc.Format = cfg.LogFormat
			lc.Output = cmd.ErrOrStderr()
			lc.Level = log.ParseLevel("warn")
			if a.verbose {
				lc.Level = log.ParseLevel("debug")
			}
			a.logger = log.New(lc)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newUsersCmd(a),
		newRolloverCmd(a),
		newSummaryCmd(a),
		newExportCmd(a),
		newNotificationsCmd(a),
	)
	return root
}

// withStore opens the configured backend for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(be *backend.BackendResult) error) error {
	be, err := a.open(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", a.cfg.DataBackend, err)
	}
	defer func() {
		if be.Cleanup == nil {
			return
		}
		if err := be.Cleanup(); err != nil {
			a.logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()
	return fn(be)
}

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
