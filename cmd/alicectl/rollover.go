package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"alice/internal/backend"
	"alice/internal/cli"
	"alice/internal/core"
	"alice/internal/services"
)

func newRolloverCmd(a *app) *cobra.Command {
	var (
		email string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Run the monthly rollover for one user or for everyone",
		Long: "Carries last month's income and recurring expenses into the current month when it is still empty " +
			"and clears budget notification flags. A ledger already processed this month is left untouched, " +
			"and so is the ledger of the user logged in to the server, which rolls over on its own.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(be *backend.BackendResult) error {
				client := cli.InitAMQP(a.logger, a.cfg)
				if client != nil {
					defer client.Close()
				}
				engine := services.NewRolloverEngine(be.Store, cli.NewNotifier(a.logger, a.cfg, client, nil), a.cfg.Location(), a.logger)
				now := a.now()
				month := core.MonthOf(now, a.cfg.Location())
				out := cmd.OutOrStdout()

				if all {
					changed, err := engine.ProcessAll(ctx, now)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Rollover for %s: %d ledger(s) changed\n", month, changed)
					return nil
				}

				if _, err := be.Store.GetUser(ctx, email); err != nil {
					return fmt.Errorf("%s: %w", email, err)
				}
				res, err := engine.OnSessionStart(ctx, email, now)
				if errors.Is(err, services.ErrLiveSession) {
					return fmt.Errorf("%w; the server rolls it over when it is next used", err)
				}
				if err != nil {
					return err
				}
				switch {
				case res.AlreadyProcessed:
					fmt.Fprintf(out, "%s: already processed for %s\n", email, month)
				case !res.Changed():
					fmt.Fprintf(out, "%s: nothing to do for %s\n", email, month)
				default:
					fmt.Fprintf(out, "%s: %d transaction(s) carried into %s, budgets reset: %v\n",
						email, len(res.Synthesized), month, res.BudgetsReset)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User to process")
	cmd.Flags().BoolVar(&all, "all", false, "Process every registered user")
	cmd.MarkFlagsOneRequired("email", "all")
	cmd.MarkFlagsMutuallyExclusive("email", "all")
	return cmd
}
