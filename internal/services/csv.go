package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/core"
)

// CSVHeader is the column layout of exported and imported ledgers.
var CSVHeader = []string{"id", "type", "category", "amount", "note", "created_at"}

// ErrNoCSVRows is returned by ImportCSV when no row was valid.
var ErrNoCSVRows = errors.New("no valid rows were found in this CSV file")

// CSVImportResult counts imported and skipped rows.
type CSVImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func (r CSVImportResult) Message() string {
	return fmt.Sprintf("Imported %d %s.", r.Imported, plural(r.Imported, "entry", "entries"))
}

// ExportCSV writes the ledger in ledger order.
func (s *BudgetService) ExportCSV(w io.Writer) error {
	s.mu.Lock()
	entries := append([]core.Entry(nil), s.state.Entries...)
	s.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{e.ID, string(e.Type), e.Category, e.Amount.String(), e.Note, e.CreatedAt}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV appends the valid rows of r to the ledger. Rows with an unknown
// type, a blank category or an invalid amount are skipped. Imported entries
// get new ids; a missing created_at means now.
func (s *BudgetService) ImportCSV(ctx context.Context, r io.Reader) (CSVImportResult, error) {
	var result CSVImportResult

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return result, ErrNoCSVRows
		}
		return result, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var imported []core.Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read csv: %w", err)
		}

		entryType, category, amount, err := parseEntryInput(EntryInput{
			Type:     field(row, "type"),
			Category: field(row, "category"),
			Amount:   field(row, "amount"),
		})
		if err != nil {
			result.Skipped++
			continue
		}
		createdAt := field(row, "created_at")
		if createdAt == "" {
			createdAt = core.FormatTimestamp(s.now())
		}
		imported = append(imported, core.Entry{
			ID:        core.NewEntryID(),
			Type:      entryType,
			Category:  category,
			Amount:    amount,
			Note:      field(row, "note"),
			CreatedAt: createdAt,
		})
	}

	if len(imported) == 0 {
		return result, ErrNoCSVRows
	}
	result.Imported = len(imported)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Entries = append(s.state.Entries, imported...)
	EnsureReferencedCategories(&s.state)

	slog.InfoContext(ctx, "Imported CSV entries",
		"imported", result.Imported,
		"skipped", result.Skipped)
	return result, s.persist(ctx, amqp.ReasonImport, result.Imported)
}
