package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbeacon/internal/core"
)

func newTestMaterializer() *Materializer {
	m := NewMaterializer(time.UTC)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id_%d", n)
	}
	return m
}

func rule(id string, freq core.Frequency, nextDue core.Date) core.RecurringRule {
	return core.RecurringRule{
		ID:        id,
		Type:      core.Expense,
		Category:  "Mortgage/Rent",
		Amount:    core.MoneyFromInt(1450),
		Frequency: freq,
		NextDue:   nextDue,
		Active:    true,
	}
}

func TestMaterialize_CatchesUpMonthly(t *testing.T) {
	ctx := context.Background()
	state := core.DefaultState()
	state.RecurringRules = []core.RecurringRule{rule("rule_rent", core.Monthly, core.NewDate(2024, 1, 1))}
	today := core.NewDate(2024, 3, 15)

	added := newTestMaterializer().Materialize(ctx, &state, today)

	require.Equal(t, 3, added)
	require.Len(t, state.Entries, 3)
	assert.Equal(t, "2024-03-01T00:00:00.000Z", state.Entries[0].CreatedAt, "newest first")
	assert.Equal(t, "2024-02-01T00:00:00.000Z", state.Entries[1].CreatedAt)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", state.Entries[2].CreatedAt)
	assert.True(t, state.RecurringRules[0].NextDue.Equal(core.NewDate(2024, 4, 1)))

	for _, e := range state.Entries {
		assert.True(t, e.IsRecurring())
		assert.Equal(t, "rule_rent", e.RecurringRuleID())
		assert.Equal(t, core.RecurringNote, e.Note)
		assert.Equal(t, core.Expense, e.Type)
		assert.True(t, e.Amount.Equal(core.MoneyFromInt(1450)))
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	ctx := context.Background()
	state := core.DefaultState()
	state.RecurringRules = []core.RecurringRule{rule("r1", core.Weekly, core.NewDate(2024, 3, 1))}
	today := core.NewDate(2024, 3, 15)
	m := newTestMaterializer()

	first := m.Materialize(ctx, &state, today)
	second := m.Materialize(ctx, &state, today)

	assert.Equal(t, 3, first)
	assert.Equal(t, 0, second)
	assert.Len(t, state.Entries, 3)
}

func TestMaterialize_CursorIsMonotonic(t *testing.T) {
	ctx := context.Background()
	state := core.DefaultState()
	state.RecurringRules = []core.RecurringRule{rule("r1", core.SemiMonthly, core.NewDate(2024, 1, 1))}
	m := newTestMaterializer()

	prev := state.RecurringRules[0].NextDue
	for day := core.NewDate(2024, 1, 1); day.Before(core.NewDate(2024, 6, 1)); day = day.AddDays(5) {
		m.Materialize(ctx, &state, day)
		next := state.RecurringRules[0].NextDue
		assert.False(t, next.Before(prev), "cursor moved back from %s to %s", prev, next)
		assert.True(t, next.After(day), "cursor %s not after today %s", next, day)
		prev = next
	}
}

func TestMaterialize_NotYetDue(t *testing.T) {
	state := core.DefaultState()
	state.RecurringRules = []core.RecurringRule{rule("r1", core.Monthly, core.NewDate(2024, 3, 16))}

	added := newTestMaterializer().Materialize(context.Background(), &state, core.NewDate(2024, 3, 15))

	assert.Zero(t, added)
	assert.Empty(t, state.Entries)
	assert.True(t, state.RecurringRules[0].NextDue.Equal(core.NewDate(2024, 3, 16)))
}

func TestMaterialize_DueTodayIsIncluded(t *testing.T) {
	state := core.DefaultState()
	state.RecurringRules = []core.RecurringRule{rule("r1", core.Monthly, core.NewDate(2024, 3, 15))}

	added := newTestMaterializer().Materialize(context.Background(), &state, core.NewDate(2024, 3, 15))

	assert.Equal(t, 1, added)
}

func TestMaterialize_SkipsInactiveRules(t *testing.T) {
	state := core.DefaultState()
	paused := rule("r1", core.Weekly, core.NewDate(2024, 1, 1))
	paused.Active = false
	state.RecurringRules = []core.RecurringRule{paused}

	added := newTestMaterializer().Materialize(context.Background(), &state, core.NewDate(2024, 3, 15))

	assert.Zero(t, added)
	assert.True(t, state.RecurringRules[0].NextDue.Equal(core.NewDate(2024, 1, 1)), "paused cursor is frozen")
}

func TestMaterialize_CapsStepsPerRule(t *testing.T) {
	state := core.DefaultState()
	start := core.NewDate(2016, 1, 4)
	state.RecurringRules = []core.RecurringRule{rule("r1", core.Weekly, start)}
	today := start.AddDays(3000)

	added := newTestMaterializer().Materialize(context.Background(), &state, today)

	assert.Equal(t, MaxStepsPerRule, added)
	assert.Len(t, state.Entries, MaxStepsPerRule)
	assert.True(t, state.RecurringRules[0].NextDue.Equal(start.AddDays(MaxStepsPerRule*7)))
	assert.False(t, state.RecurringRules[0].NextDue.After(today), "cursor stays stale for the next run")
}

func TestMaterialize_KeepsRuleNote(t *testing.T) {
	state := core.DefaultState()
	r := rule("r1", core.Monthly, core.NewDate(2024, 3, 1))
	r.Note = "Apartment"
	state.RecurringRules = []core.RecurringRule{r}

	newTestMaterializer().Materialize(context.Background(), &state, core.NewDate(2024, 3, 1))

	require.Len(t, state.Entries, 1)
	assert.Equal(t, "Apartment", state.Entries[0].Note)
}

func TestMaterialize_PrependsBeforeExistingEntries(t *testing.T) {
	state := core.DefaultState()
	state.Entries = []core.Entry{{ID: "existing", Type: core.Expense, Category: "Dining", CreatedAt: "2024-03-10T12:00:00.000Z"}}
	state.RecurringRules = []core.RecurringRule{
		rule("a", core.Monthly, core.NewDate(2024, 3, 1)),
		rule("b", core.Monthly, core.NewDate(2024, 3, 2)),
	}

	added := newTestMaterializer().Materialize(context.Background(), &state, core.NewDate(2024, 3, 15))

	require.Equal(t, 2, added)
	assert.Equal(t, "b", state.Entries[0].RecurringRuleID())
	assert.Equal(t, "a", state.Entries[1].RecurringRuleID())
	assert.Equal(t, "existing", state.Entries[2].ID)
}

func TestMaterialize_LocalMidnight(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	state := core.DefaultState()
	state.RecurringRules = []core.RecurringRule{rule("r1", core.Monthly, core.NewDate(2024, 3, 1))}

	NewMaterializer(rome).Materialize(context.Background(), &state, core.NewDate(2024, 3, 1))

	require.Len(t, state.Entries, 1)
	assert.Equal(t, "2024-02-29T23:00:00.000Z", state.Entries[0].CreatedAt)
}

func TestMaterialize_NilState(t *testing.T) {
	assert.Zero(t, newTestMaterializer().Materialize(context.Background(), nil, core.NewDate(2024, 3, 1)))
}
