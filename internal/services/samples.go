package services

import (
	"time"

	"budgetbeacon/internal/core"
)

// SampleBudget is the budget goal set with the sample data when none is set.
var SampleBudget = core.MoneyFromInt(3000)

type sampleEntry struct {
	entryType core.EntryType
	category  string
	amount    int64
	note      string
	daysAgo   int
}

var sampleEntries = []sampleEntry{
	{core.Income, "Salary", 4200, "Monthly paycheck", 25},
	{core.Expense, "Mortgage/Rent", 1450, "Apartment", 24},
	{core.Expense, "Groceries", 120, "Weekly groceries", 20},
	{core.Expense, "Transportation", 65, "Fuel", 14},
	{core.Expense, "Dining", 54, "Family dinner", 10},
	{core.Income, "Freelance", 380, "Side project", 8},
	{core.Expense, "Electric", 160, "Electric and water", 5},
}

// SampleEntries returns the demo entries, newest last, dated relative to now
// and tagged meta.sample.
func SampleEntries(now time.Time) []core.Entry {
	out := make([]core.Entry, 0, len(sampleEntries))
	for _, s := range sampleEntries {
		out = append(out, core.Entry{
			ID:        core.NewEntryID(),
			Type:      s.entryType,
			Category:  s.category,
			Amount:    core.MoneyFromInt(s.amount),
			Note:      s.note,
			CreatedAt: core.FormatTimestamp(now.Add(-time.Duration(s.daysAgo) * 24 * time.Hour)),
			Meta:      core.Meta{core.MetaSample: true},
		})
	}
	return out
}
