package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"alice/internal/backend"
	"alice/internal/core"
	"alice/internal/ledger"
	"alice/internal/storage"
)

func newSummaryCmd(a *app) *cobra.Command {
	var email, month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the income, expenses and budgets of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc := a.cfg.Location()
			m := core.MonthOf(a.now(), loc)
			if month != "" {
				var err error
				if m, err = core.ParseMonth(month); err != nil {
					return fmt.Errorf("--month %q: %w", month, err)
				}
			}

			ctx := cmd.Context()
			return a.withStore(ctx, func(be *backend.BackendResult) error {
				u, err := be.Store.GetUser(ctx, email)
				if err != nil {
					return fmt.Errorf("%s: %w", email, err)
				}
				state, err := loadLedger(ctx, be.Store, email)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), u, state, m, loc)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User whose ledger is summarized")
	cmd.Flags().StringVar(&month, "month", "", "Month as YYYY-MM (default: current month)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loadLedger(ctx context.Context, store storage.Store, email string) (ledger.State, error) {
	data, err := store.LoadUserData(ctx, email)
	if err != nil {
		return ledger.State{}, fmt.Errorf("load user data: %w", err)
	}
	cats, err := store.GetCustomCategories(ctx, email)
	if err != nil {
		return ledger.State{}, fmt.Errorf("load categories: %w", err)
	}
	reminders, err := store.GetCustomReminders(ctx, email)
	if err != nil {
		return ledger.State{}, fmt.Errorf("load reminders: %w", err)
	}
	return ledger.FromUserData(data, cats, reminders), nil
}

func printSummary(w io.Writer, u core.User, state ledger.State, m core.MonthToken, loc *time.Location) {
	sum := state.Summary(m, loc)

	name := u.DisplayName()
	if name == "" {
		name = u.Email
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s  %s %d", name, m.Month, m.Year)))
	fmt.Fprintln(w)

	totals := table.New().
		Border(lipgloss.HiddenBorder()).
		Rows(
			[]string{"Income", "€" + sum.Income.String()},
			[]string{"Expenses", "€" + sum.RealExpenses.String()},
			[]string{"Planned", "€" + sum.PlannedExpenses.String()},
			[]string{"Balance", "€" + sum.Balance.String()},
		)
	fmt.Fprintln(w, totals.Render())

	if len(sum.ByCategory) > 0 {
		rows := make([][]string, 0, len(sum.ByCategory))
		for _, c := range sum.ByCategory {
			rows = append(rows, []string{c.Name, "€" + c.Amount.String()})
		}
		fmt.Fprintln(w, table.New().
			Border(lipgloss.NormalBorder()).
			Headers("CATEGORY", "SPENT").
			Rows(rows...).
			Render())
	}

	if len(state.Budgets) > 0 {
		spent := state.SpentByCategory(m, loc)
		rows := make([][]string, 0, len(state.Budgets))
		for _, b := range state.Budgets {
			s := ledger.SpentFor(spent, b.Category)
			pct := int64(0)
			if b.Amount.Cents > 0 {
				pct = s.Cents * 100 / b.Amount.Cents
			}
			rows = append(rows, []string{b.Category, "€" + b.Amount.String(), "€" + s.String(), fmt.Sprintf("%d%%", pct)})
		}
		fmt.Fprintln(w, table.New().
			Border(lipgloss.NormalBorder()).
			Headers("BUDGET", "LIMIT", "SPENT", "USED").
			Rows(rows...).
			Render())
	}

	if bills := state.UpcomingBills(core.DateOf(m.Start(loc)), 0); len(bills) > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d unpaid bill(s) due from %s", len(bills), m)))
	}
}
