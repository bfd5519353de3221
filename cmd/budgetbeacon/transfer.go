package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"budgetbeacon/internal/cli"
)

func (a *app) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a JSON backup",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a backup of the whole ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				b, err := s.Service.ExportBackup(ctx)
				if err != nil {
					return fmt.Errorf("export backup: %w", err)
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(append(b, '\n'))
					return err
				}
				if err := os.WriteFile(output, b, 0o600); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				a.status(cmd, "Backup saved to "+output+".")
				return nil
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")

	cmd.AddCommand(export)
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the ledger with a backup ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				res, err := s.Service.ImportBackup(ctx, raw)
				if err != nil {
					return fmt.Errorf("could not import backup file: %w", err)
				}
				a.status(cmd, res.Message())
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s, %d recurring %s\n",
					res.Report.Entries, plural(res.Report.Entries, "entry", "entries"),
					res.Report.RecurringRules, plural(res.Report.RecurringRules, "rule", "rules"))
				if n := len(res.Report.DroppedEntries); n > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.WarningStyle.Render(
						fmt.Sprintf("Skipped %d invalid %s.", n, plural(n, "entry", "entries"))))
				}
				return nil
			})
		},
	})

	return cmd
}

func (a *app) csvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Export or import entries as CSV",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every entry as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(_ context.Context, s *cli.Session) error {
				if output == "" || output == "-" {
					return s.Service.ExportCSV(cmd.OutOrStdout())
				}

				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return fmt.Errorf("create csv: %w", err)
				}
				if err := s.Service.ExportCSV(f); err != nil {
					_ = f.Close()
					return fmt.Errorf("export csv: %w", err)
				}
				if err := f.Close(); err != nil {
					return err
				}
				a.status(cmd, "Entries saved to "+output+".")
				return nil
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")

	cmd.AddCommand(export)
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Append the rows of a CSV file as new entries ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				res, err := s.Service.ImportCSV(ctx, bytes.NewReader(raw))
				if err != nil {
					return fmt.Errorf("import csv: %w", err)
				}
				a.status(cmd, res.Message())
				if res.Skipped > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.WarningStyle.Render(
						fmt.Sprintf("Skipped %d invalid %s.", res.Skipped, plural(res.Skipped, "row", "rows"))))
				}
				return nil
			})
		},
	})

	return cmd
}

// readInput reads a whole file, or stdin for "-", before the session opens.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}
