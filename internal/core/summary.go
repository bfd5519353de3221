package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthTotal is the expense total of a YYYY-MM month.
type MonthTotal struct {
	Month  string `json:"month"`
	Amount Money  `json:"amount"`
}

// Summary holds the totals shown on the dashboard.
type Summary struct {
	Scope      DataScope        `json:"scope"`
	Period     *Period          `json:"period,omitempty"`
	Entries    int              `json:"entries"`
	Income     Money            `json:"income"`
	Expense    Money            `json:"expense"`
	Balance    Money            `json:"balance"`
	Budget     Money            `json:"budget"`
	BudgetLeft Money            `json:"budgetLeft"`
	ByCategory []CategoryAmount `json:"byCategory"`
	ByMonth    []MonthTotal     `json:"byMonth"`
}

// ScopedEntries returns the entries counted under scope. The month scope keeps
// entries whose timestamp falls in the current budget period.
func ScopedEntries(state State, scope DataScope, today Date, loc *time.Location) ([]Entry, *Period) {
	if scope != ScopeMonth {
		return state.Entries, nil
	}
	period := CurrentPeriod(today, state.Settings.MonthStartDay)
	var out []Entry
	for _, e := range state.Entries {
		if period.ContainsTimestamp(e.CreatedAt, loc) {
			out = append(out, e)
		}
	}
	return out, &period
}

// Summarize computes totals and chart data for the entries in scope.
func Summarize(state State, scope DataScope, today Date, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	entries, period := ScopedEntries(state, scope, today, loc)
	s := Summary{
		Scope:   scope,
		Period:  period,
		Entries: len(entries),
		Budget:  state.Budget,
	}

	byCategory := map[string]Money{}
	byMonth := map[string]Money{}
	for _, e := range entries {
		if e.Type == Income {
			s.Income = s.Income.Add(e.Amount)
			continue
		}
		s.Expense = s.Expense.Add(e.Amount)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
		if t, ok := e.Timestamp(loc); ok {
			key := t.In(loc).Format("2006-01")
			byMonth[key] = byMonth[key].Add(e.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	s.BudgetLeft = s.Budget.Sub(s.Expense)

	s.ByCategory = make([]CategoryAmount, 0, len(byCategory))
	for name, amount := range byCategory {
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if c := s.ByCategory[i].Amount.Cmp(s.ByCategory[j].Amount); c != 0 {
			return c > 0
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})

	s.ByMonth = make([]MonthTotal, 0, len(byMonth))
	for month, amount := range byMonth {
		s.ByMonth = append(s.ByMonth, MonthTotal{Month: month, Amount: amount})
	}
	sort.Slice(s.ByMonth, func(i, j int) bool {
		return s.ByMonth[i].Month < s.ByMonth[j].Month
	})
	return s
}
