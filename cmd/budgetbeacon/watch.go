package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/cli"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print state change notifications as they arrive",
		Long: `Consume state change notifications from the configured AMQP queue and print
them until interrupted. The queue is shared with recurring-worker, so a running
worker and watch split the messages between them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}

			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
			if err != nil {
				return fmt.Errorf("connect to AMQP: %w", err)
			}
			defer client.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.SubtleStyle.Render("Watching "+a.cfg.AMQPQueue+" (Ctrl+C to stop)"))

			err = client.ConsumeStateChanged(ctx, func(msg *amqp.StateChangedMessage) error {
				line := fmt.Sprintf("%s  %-11s rev %d",
					msg.Timestamp.Local().Format(time.DateTime), msg.Reason, msg.Revision)
				if msg.EntriesAdded > 0 {
					line += cli.SuccessStyle.Render(fmt.Sprintf("  +%d %s",
						msg.EntriesAdded, plural(msg.EntriesAdded, "entry", "entries")))
				}
				fmt.Fprintln(out, line)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
