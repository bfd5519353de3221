package services

import (
	"context"
	"log/slog"
	"time"

	"budgetbeacon/internal/core"
)

// MaxStepsPerRule caps the occurrences materialized for one rule in a single
// run. A cursor further behind than this is left stale rather than flooding
// the ledger.
const MaxStepsPerRule = 366

// Materializer turns elapsed recurring rule occurrences into ledger entries.
type Materializer struct {
	location *time.Location
	newID    func() string
}

// NewMaterializer creates a materializer that dates entries at local midnight in loc.
func NewMaterializer(loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.Local
	}
	return &Materializer{location: loc, newID: core.NewEntryID}
}

// Materialize catches every active rule up to today. Each elapsed occurrence
// is prepended to the ledger and the rule cursor moves past it, so a second
// call with the same today adds nothing. Returns the number of entries added.
func (m *Materializer) Materialize(ctx context.Context, state *core.State, today core.Date) int {
	if state == nil {
		return 0
	}

	var added []core.Entry
	for i := range state.RecurringRules {
		rule := &state.RecurringRules[i]
		if !rule.Active {
			continue
		}

		steps := 0
		for !rule.NextDue.After(today) && steps < MaxStepsPerRule {
			added = append(added, m.entryFor(*rule))
			rule.NextDue = NextOccurrence(rule.NextDue, rule.Frequency)
			steps++
		}

		if steps == MaxStepsPerRule && !rule.NextDue.After(today) {
			slog.WarnContext(ctx, "Recurring rule hit the materialization cap",
				"rule_id", rule.ID,
				"next_due", rule.NextDue.String(),
				"today", today.String(),
				"cap", MaxStepsPerRule)
		}
	}

	if len(added) == 0 {
		return 0
	}

	// newest first: the last generated occurrence ends up at the front
	ledger := make([]core.Entry, 0, len(added)+len(state.Entries))
	for i := len(added) - 1; i >= 0; i-- {
		ledger = append(ledger, added[i])
	}
	state.Entries = append(ledger, state.Entries...)

	slog.InfoContext(ctx, "Materialized recurring entries",
		"added", len(added),
		"rules", len(state.RecurringRules),
		"today", today.String())

	return len(added)
}

func (m *Materializer) entryFor(rule core.RecurringRule) core.Entry {
	note := rule.Note
	if note == "" {
		note = core.RecurringNote
	}
	return core.Entry{
		ID:        m.newID(),
		Type:      rule.Type,
		Category:  rule.Category,
		Amount:    rule.Amount,
		Note:      note,
		CreatedAt: core.FormatTimestamp(rule.NextDue.In(m.location)),
		Meta: core.Meta{
			core.MetaRecurring:       true,
			core.MetaRecurringRuleID: rule.ID,
		},
	}
}
