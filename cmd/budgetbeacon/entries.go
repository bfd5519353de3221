package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbeacon/internal/cli"
	"budgetbeacon/internal/core"
	"budgetbeacon/internal/services"
)

func (a *app) entriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry"},
		Short:   "Manage ledger entries",
	}

	cmd.AddCommand(a.entriesListCmd())
	cmd.AddCommand(a.entriesAddCmd())
	cmd.AddCommand(a.entriesEditCmd())
	cmd.AddCommand(a.entriesDeleteCmd())

	return cmd
}

func (a *app) entriesListCmd() *cobra.Command {
	var entryType, category, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries in the configured sort order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := core.EntryFilter{
				Category: strings.TrimSpace(category),
				Search:   strings.TrimSpace(search),
			}
			if entryType != "" {
				t, err := core.ParseEntryType(entryType)
				if err != nil {
					return err
				}
				filter.Type = t
			}

			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				entries := s.Service.Entries(filter)
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, cli.SubtleStyle.Render("No entries yet."))
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, header("ID", "DATE", "CATEGORY", "AMOUNT", "NOTE"))
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						e.ID,
						entryDate(e, s),
						e.Category,
						cli.RenderAmount(e.Type, e.Amount, s.Config.Currency),
						entryNote(e))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d %s", len(entries), plural(len(entries), "entry", "entries"))))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "only income or expense entries")
	cmd.Flags().StringVar(&category, "category", "", "only entries in this category")
	cmd.Flags().StringVarP(&search, "query", "q", "", "search category and note")

	return cmd
}

func (a *app) entriesAddCmd() *cobra.Command {
	var in services.EntryInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry, optionally with a recurring rule",
		Example: `  budgetbeacon entries add --category Groceries --amount 42.50
  budgetbeacon entries add --type income --category Salary --amount 3000 --recurring --frequency semi-monthly`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if in.Type == "" {
					in.Type = s.Service.Settings().DefaultType.String()
				}
				entry, err := s.Service.AddEntry(ctx, in)
				if err != nil {
					return fmt.Errorf("add entry: %w", err)
				}

				msg := "Entry saved."
				if in.Recurring {
					msg = "Entry saved. Recurring rule created."
				}
				a.status(cmd, msg)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
					cli.SubtleStyle.Render(entry.ID),
					entry.Category,
					cli.RenderAmount(entry.Type, entry.Amount, s.Config.Currency))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Type, "type", "", "income or expense (default from settings)")
	cmd.Flags().StringVar(&in.Category, "category", "", "category name")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&in.Note, "note", "", "free text note")
	cmd.Flags().BoolVar(&in.Recurring, "recurring", false, "also create a recurring rule")
	cmd.Flags().StringVar(&in.Frequency, "frequency", core.Monthly.String(), "weekly, bi-weekly, semi-monthly or monthly")
	cmd.Flags().StringVar(&in.StartDate, "start", "", "first occurrence date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func (a *app) entriesEditCmd() *cobra.Command {
	var entryType, category, amount, note string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the type, category, amount or note of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				current, ok := findEntry(s, args[0])
				if !ok {
					return core.ErrEntryNotFound
				}

				in := services.EntryInput{
					Type:     current.Type.String(),
					Category: current.Category,
					Amount:   current.Amount.String(),
					Note:     current.Note,
				}
				flags := cmd.Flags()
				if flags.Changed("type") {
					in.Type = entryType
				}
				if flags.Changed("category") {
					in.Category = category
				}
				if flags.Changed("amount") {
					in.Amount = amount
				}
				if flags.Changed("note") {
					in.Note = note
				}

				if _, err := s.Service.UpdateEntry(ctx, args[0], in); err != nil {
					return fmt.Errorf("update entry: %w", err)
				}
				a.status(cmd, "Entry updated.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "income or expense")
	cmd.Flags().StringVar(&category, "category", "", "category name")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&note, "note", "", "free text note")

	return cmd
}

func (a *app) entriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if err := s.Service.DeleteEntry(ctx, args[0]); err != nil {
					return fmt.Errorf("delete entry: %w", err)
				}
				a.status(cmd, "Entry deleted.")
				return nil
			})
		},
	}
}

func findEntry(s *cli.Session, id string) (core.Entry, bool) {
	for _, e := range s.Service.Entries(core.EntryFilter{}) {
		if e.ID == id {
			return e, true
		}
	}
	return core.Entry{}, false
}

func entryDate(e core.Entry, s *cli.Session) string {
	ts, ok := e.Timestamp(s.Service.Location())
	if !ok {
		return "-"
	}
	return ts.In(s.Service.Location()).Format(core.DateLayout)
}

func entryNote(e core.Entry) string {
	var tags []string
	if e.IsRecurring() {
		tags = append(tags, "recurring")
	}
	if e.IsSample() {
		tags = append(tags, "sample")
	}
	if len(tags) == 0 {
		return e.Note
	}
	return strings.TrimSpace(e.Note + " " + cli.SubtleStyle.Render("["+strings.Join(tags, ",")+"]"))
}

// header renders each column separately so tabwriter still sees the tabs.
func header(cols ...string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = cli.HeaderStyle.Render(c)
	}
	return strings.Join(out, "\t")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
