package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"alice/internal/amqp"
)

func newNotificationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Work with the notification queue",
	}

	var email string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print notifications from the broker queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = client.ConsumeNotifications(ctx, func(msg *amqp.NotificationMessage) error {
				if email != "" && msg.Email != email {
					return nil
				}
				_, err := fmt.Fprintf(out, "%s  %-15s %s  %s: %s\n",
					msg.CreatedAt.Local().Format(time.DateTime), msg.Kind, msg.Email, msg.Title, msg.Body)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	tail.Flags().StringVar(&email, "email", "", "Only show notifications for this user")

	cmd.AddCommand(tail)
	return cmd
}
