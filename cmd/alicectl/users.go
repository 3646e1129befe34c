package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"alice/internal/backend"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(be *backend.BackendResult) error {
				users, err := be.Store.ListUsers(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("No users registered."))
					return nil
				}

				rows := make([][]string, 0, len(users))
				for _, u := range users {
					onboarded := "no"
					if u.HasCompletedOnboarding {
						onboarded = "yes"
					}
					rows = append(rows, []string{u.Email, string(u.Mode), u.DisplayName(), onboarded})
				}
				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("EMAIL", "MODE", "NAME", "ONBOARDED").
					Rows(rows...)
				fmt.Fprintln(out, t.Render())
				fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d user(s)", len(users))))
				return nil
			})
		},
	}
}
