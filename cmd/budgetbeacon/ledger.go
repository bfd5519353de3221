package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbeacon/internal/cli"
	"budgetbeacon/internal/core"
)

func (a *app) sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Load or clear demo entries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Add demo entries for the current month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if _, err := s.Service.LoadSampleEntries(ctx); err != nil {
					return fmt.Errorf("load samples: %w", err)
				}
				a.status(cmd, "Sample data loaded.")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every demo entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				n, err := s.Service.ClearSampleEntries(ctx)
				if err != nil {
					return fmt.Errorf("clear samples: %w", err)
				}
				if n == 0 {
					a.status(cmd, "No sample data to remove.")
					return nil
				}
				a.status(cmd, "Sample data removed.")
				return nil
			})
		},
	})

	return cmd
}

func (a *app) budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show or set the monthly budget goal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				state, _ := s.Service.Snapshot()
				fmt.Fprintf(cmd.OutOrStdout(), "Budget goal: %s\n", state.Budget.Format(s.Config.Currency))
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <amount>",
		Short: "Set the budget goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				budget, err := s.Service.SetBudget(ctx, args[0])
				if err != nil {
					return fmt.Errorf("set budget: %w", err)
				}
				a.status(cmd, "Budget goal saved.")
				fmt.Fprintf(cmd.OutOrStdout(), "Budget goal: %s\n", budget.Format(s.Config.Currency))
				return nil
			})
		},
	})

	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses and budget left",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				sc := s.Service.Settings().DataScope
				if scope != "" {
					sc = core.ParseDataScope(scope)
				}
				printSummary(cmd, s.Service.Summary(sc), s.Config.Currency)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "month or all (default from settings)")

	return cmd
}

func printSummary(cmd *cobra.Command, sum core.Summary, currency string) {
	out := cmd.OutOrStdout()

	title := "All time"
	if sum.Period != nil {
		title = "Period " + sum.Period.String()
	}
	fmt.Fprintln(out, cli.TitleStyle.Render(title))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Entries\t%d\n", sum.Entries)
	fmt.Fprintf(w, "Income\t%s\n", cli.IncomeStyle.Render(sum.Income.Format(currency)))
	fmt.Fprintf(w, "Expenses\t%s\n", cli.ExpenseStyle.Render(sum.Expense.Format(currency)))
	fmt.Fprintf(w, "Balance\t%s\n", sum.Balance.Format(currency))
	fmt.Fprintf(w, "Budget\t%s\n", sum.Budget.Format(currency))
	left := sum.BudgetLeft.Format(currency)
	if sum.BudgetLeft.IsNegative() {
		left = cli.WarningStyle.Render(left)
	}
	fmt.Fprintf(w, "Budget left\t%s\n", left)
	_ = w.Flush()

	if len(sum.ByCategory) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cli.TitleStyle.Render("Expenses by category"))
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, c := range sum.ByCategory {
			fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Amount.Format(currency))
		}
		_ = w.Flush()
	}

	if len(sum.ByMonth) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cli.TitleStyle.Render("Expenses by month"))
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, m := range sum.ByMonth {
			fmt.Fprintf(w, "%s\t%s\n", m.Month, m.Amount.Format(currency))
		}
		_ = w.Flush()
	}
}

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				return printSettings(cmd, s.Service.Settings())
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change settings",
		Long: `Change one or more settings. Keys: defaultType (income, expense),
dataScope (month, all), monthStartDay (1-28), sortOrder (date_desc, date_asc,
amount_desc, amount_asc). Out of range values fall back to a valid one.`,
		Example: "  budgetbeacon settings set monthStartDay=25 dataScope=all",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := make(map[string]any, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid setting %q: expected key=value", arg)
				}
				patch[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}

			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				settings, err := s.Service.UpdateSettings(ctx, patch)
				if err != nil {
					return fmt.Errorf("update settings: %w", err)
				}
				a.status(cmd, "Settings saved.")
				return printSettings(cmd, settings)
			})
		},
	})

	return cmd
}

func printSettings(cmd *cobra.Command, s core.Settings) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "defaultType\t%s\n", s.DefaultType)
	fmt.Fprintf(w, "dataScope\t%s\n", s.DataScope)
	fmt.Fprintf(w, "monthStartDay\t%d\n", s.MonthStartDay)
	fmt.Fprintf(w, "sortOrder\t%s\n", s.SortOrder)
	return w.Flush()
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the ledger to the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				res := s.Service.Sync(ctx)
				a.status(cmd, res.Message)
				if !res.OK {
					return fmt.Errorf("sync failed in %s mode", res.Mode)
				}
				return nil
			})
		},
	}
}

func (a *app) onboardingCmd() *cobra.Command {
	var complete bool

	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Show or complete the first-run onboarding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if complete {
					if err := s.Service.CompleteOnboarding(ctx); err != nil {
						return fmt.Errorf("complete onboarding: %w", err)
					}
					a.status(cmd, "Onboarding completed.")
					return nil
				}

				seen, err := s.Service.OnboardingSeen(ctx)
				if err != nil {
					return err
				}
				if seen {
					fmt.Fprintln(cmd.OutOrStdout(), "Onboarding: completed")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Onboarding: pending")
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render(
					"Try 'budgetbeacon sample load', set a goal with 'budgetbeacon budget set', then run with --complete."))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&complete, "complete", false, "mark onboarding as done")

	return cmd
}
