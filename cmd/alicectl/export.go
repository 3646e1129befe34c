package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"alice/internal/backend"
	"alice/internal/core"
)

// exportDocument is everything stored for one user.
type exportDocument struct {
	ExportedAt      time.Time             `json:"exportedAt"`
	User            core.User             `json:"user"`
	Data            core.UserData         `json:"data"`
	Categories      []core.CustomCategory `json:"customCategories"`
	Reminders       []core.CustomReminder `json:"customReminders"`
	CarryOverMarker string                `json:"lastAutoCarryOver,omitempty"`
}

func newExportCmd(a *app) *cobra.Command {
	var email, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's stored ledger as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(be *backend.BackendResult) error {
				u, err := be.Store.GetUser(ctx, email)
				if err != nil {
					return fmt.Errorf("%s: %w", email, err)
				}
				doc := exportDocument{ExportedAt: a.now().UTC(), User: u}
				if doc.Data, err = be.Store.LoadUserData(ctx, email); err != nil {
					return fmt.Errorf("load user data: %w", err)
				}
				if doc.Categories, err = be.Store.GetCustomCategories(ctx, email); err != nil {
					return fmt.Errorf("load categories: %w", err)
				}
				if doc.Reminders, err = be.Store.GetCustomReminders(ctx, email); err != nil {
					return fmt.Errorf("load reminders: %w", err)
				}
				if doc.CarryOverMarker, err = be.Store.GetCarryOverMarker(ctx, email); err != nil {
					return fmt.Errorf("load carry-over marker: %w", err)
				}

				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(doc); err != nil {
					return fmt.Errorf("encode export: %w", err)
				}
				if output != "" && output != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d transaction(s) to %s\n", len(doc.Data.Transactions), output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User to export")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "File to write, - for stdout")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
