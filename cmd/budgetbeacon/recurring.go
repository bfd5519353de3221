package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbeacon/internal/cli"
)

func (a *app) recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurring",
		Aliases: []string{"rules"},
		Short:   "Manage recurring rules",
	}

	cmd.AddCommand(a.recurringListCmd())
	cmd.AddCommand(a.recurringRemoveCmd())
	cmd.AddCommand(a.recurringActiveCmd("pause", false))
	cmd.AddCommand(a.recurringActiveCmd("resume", true))

	return cmd
}

func (a *app) recurringListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recurring rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				rules := s.Service.RecurringRules()
				if len(rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No recurring rules."))
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, header("ID", "FREQUENCY", "NEXT DUE", "CATEGORY", "AMOUNT", "STATUS"))
				for _, r := range rules {
					status := cli.SuccessStyle.Render("active")
					if !r.Active {
						status = cli.WarningStyle.Render("paused")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.ID,
						r.Frequency,
						r.NextDue,
						r.Category,
						cli.RenderAmount(r.Type, r.Amount, s.Config.Currency),
						status)
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) recurringRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a recurring rule. Entries it created are kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if err := s.Service.RemoveRecurringRule(ctx, args[0]); err != nil {
					return fmt.Errorf("remove rule: %w", err)
				}
				a.status(cmd, "Recurring rule removed.")
				return nil
			})
		},
	}
}

func (a *app) recurringActiveCmd(use string, active bool) *cobra.Command {
	short, msg := "Pause a recurring rule", "Recurring rule paused."
	if active {
		short, msg = "Resume a paused recurring rule", "Recurring rule resumed."
	}

	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				rule, err := s.Service.SetRuleActive(ctx, args[0], active)
				if err != nil {
					return fmt.Errorf("%s rule: %w", use, err)
				}
				a.status(cmd, msg)
				if active {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.SubtleStyle.Render("next due"), rule.NextDue)
				}
				return nil
			})
		},
	}
}

func (a *app) materializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materialize",
		Short: "Add entries for every due recurring occurrence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				n, err := s.Service.MaterializeDue(ctx)
				if err != nil {
					return fmt.Errorf("materialize: %w", err)
				}
				if n == 0 {
					a.status(cmd, "Recurring entries are up to date.")
					return nil
				}
				a.status(cmd, fmt.Sprintf("Added %d recurring %s.", n, plural(n, "entry", "entries")))
				return nil
			})
		},
	}
}
