package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbeacon/internal/cli"
	"budgetbeacon/internal/core"
)

func (a *app) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Manage expense and income categories",
	}

	cmd.AddCommand(a.categoriesListCmd())
	cmd.AddCommand(a.categoriesAddCmd())
	cmd.AddCommand(a.categoriesRenameCmd())
	cmd.AddCommand(a.categoriesDeleteCmd())

	return cmd
}

func (a *app) categoriesListCmd() *cobra.Command {
	var entryType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			types := core.EntryTypes()
			if entryType != "" {
				t, err := core.ParseEntryType(entryType)
				if err != nil {
					return err
				}
				types = []core.EntryType{t}
			}

			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, header("TYPE", "NAME", "COLOR"))
				for _, t := range types {
					cats, err := s.Service.Categories(t.String())
					if err != nil {
						return err
					}
					for _, c := range cats {
						fmt.Fprintf(w, "%s\t%s\t%s\n", t, c.Name, c.Color)
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "only income or expense categories")

	return cmd
}

func (a *app) categoriesAddCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <type> <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if _, err := s.Service.AddCategory(ctx, args[0], args[1], color); err != nil {
					return fmt.Errorf("add category: %w", err)
				}
				a.status(cmd, "Category added.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "hex color, e.g. #4A7FC1")

	return cmd
}

func (a *app) categoriesRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <type> <old> <new>",
		Short: "Rename a category and relink its entries and rules",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				n, err := s.Service.RenameCategory(ctx, args[0], args[1], args[2])
				if err != nil {
					return fmt.Errorf("rename category: %w", err)
				}
				a.status(cmd, fmt.Sprintf("Category renamed. Updated %d %s.", n, plural(n, "record", "records")))
				return nil
			})
		},
	}
}

func (a *app) categoriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <type> <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a category and move its records to the fallback",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryType, err := core.ParseEntryType(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				n, err := s.Service.DeleteCategory(ctx, entryType.String(), args[1])
				if err != nil {
					return fmt.Errorf("delete category: %w", err)
				}
				a.status(cmd, fmt.Sprintf("Category deleted. Moved %d %s to %s.",
					n, plural(n, "record", "records"), entryType.FallbackCategory()))
				return nil
			})
		},
	}
}
