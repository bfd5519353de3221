package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/backend"
	"budgetbeacon/internal/core"
	"budgetbeacon/internal/storage/memory"
)

var sessionNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*amqp.StateChangedMessage
	err      error
}

func (p *recordingPublisher) PublishStateChanged(_ context.Context, msg *amqp.StateChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *recordingPublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	for i, m := range p.messages {
		out[i] = m.Reason
	}
	return out
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) Write(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func newTestSession(t *testing.T, store backend.Store, opts ...Option) *BudgetService {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return sessionNow }),
		WithLocation(time.UTC),
	}, opts...)
	return NewBudgetService(backend.NewLocalAdapter(store), opts...)
}

func loadedSession(t *testing.T, opts ...Option) (*BudgetService, *memory.Store) {
	t.Helper()
	store := memory.New()
	s := newTestSession(t, store, opts...)
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return s, store
}

func storedState(t *testing.T, store *memory.Store) core.State {
	t.Helper()
	raw, ok, err := store.Read(context.Background(), backend.StateKey)
	require.NoError(t, err)
	require.True(t, ok, "state was persisted")
	state, _, err := DecodeState(raw, docSanitizer())
	require.NoError(t, err)
	return state
}

func TestBudgetService_LoadEmptyStore(t *testing.T) {
	s := newTestSession(t, memory.New())

	res, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Recovered)
	assert.Zero(t, res.Added)
	assert.Equal(t, core.DefaultState(), s.State())
	assert.Empty(t, res.Message())
}

func TestBudgetService_LoadCorruptDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Write(ctx, backend.StateKey, []byte("{not json")))
	s := newTestSession(t, store)

	res, err := s.Load(ctx)

	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.Recovered)
	assert.True(t, IsLoadError(res.LoadErr))
	assert.Equal(t, core.DefaultState(), s.State())
	assert.Equal(t, "Stored data could not be read. Starting fresh.", res.Message())
}

func TestBudgetService_LoadMaterializesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	doc := `{"budget": 3000, "entries": [], "recurringRules": [
		{"id": "rule_1", "type": "expense", "category": "Rent", "amount": 1450, "frequency": "monthly", "nextDue": "2024-01-01"}
	]}`
	require.NoError(t, store.Write(ctx, "pybudget_web_v1", []byte(doc)))
	pub := &recordingPublisher{}
	s := newTestSession(t, store, WithPublisher(pub))

	res, err := s.Load(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, "Added 3 recurring entries.", res.Message())

	persisted := storedState(t, store)
	require.Len(t, persisted.Entries, 3)
	assert.Equal(t, "Mortgage/Rent", persisted.Entries[0].Category, "legacy category migrated on load")
	assert.True(t, persisted.RecurringRules[0].NextDue.Equal(core.NewDate(2024, 4, 1)))
	assert.Equal(t, []string{amqp.ReasonLoad}, pub.reasons())
	assert.Equal(t, int64(1), s.Revision())

	// a second load on the same day adds nothing
	res, err = newTestSession(t, store).Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
}

func TestBudgetService_AddEntry(t *testing.T) {
	ctx := context.Background()
	s, store := loadedSession(t)

	e, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: " Pets ", Amount: "$1,234.50", Note: " vet "})

	require.NoError(t, err)
	assert.Equal(t, "Pets", e.Category)
	assert.Equal(t, "1234.5", e.Amount.String())
	assert.Equal(t, "vet", e.Note)
	assert.Equal(t, "2024-03-15T12:00:00.000Z", e.CreatedAt)
	assert.Regexp(t, `^id_[0-9a-f]{32}$`, e.ID)

	persisted := storedState(t, store)
	require.Len(t, persisted.Entries, 1)
	assert.Equal(t, e.ID, persisted.Entries[0].ID)
	assert.True(t, persisted.CategoryCatalog.Has(core.Expense, "Pets"))
	assert.Equal(t, int64(1), s.Revision())
}

func TestBudgetService_AddEntryNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)

	first, err := s.AddEntry(ctx, EntryInput{Type: "income", Category: "Salary", Amount: "10"})
	require.NoError(t, err)
	second, err := s.AddEntry(ctx, EntryInput{Type: "income", Category: "Salary", Amount: "20"})
	require.NoError(t, err)

	state := s.State()
	assert.Equal(t, second.ID, state.Entries[0].ID)
	assert.Equal(t, first.ID, state.Entries[1].ID)
}

func TestBudgetService_AddEntryRecurring(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)

	_, err := s.AddEntry(ctx, EntryInput{
		Type: "expense", Category: "Internet", Amount: "60",
		Recurring: true, Frequency: "semi-monthly", StartDate: "2024-03-03",
	})
	require.NoError(t, err)

	rules := s.RecurringRules()
	require.Len(t, rules, 1)
	assert.Equal(t, core.SemiMonthly, rules[0].Frequency)
	assert.True(t, rules[0].NextDue.Equal(core.NewDate(2024, 4, 1)))
	assert.True(t, rules[0].Active)
	assert.Regexp(t, `^rule_[0-9a-f]{32}$`, rules[0].ID)

	// the rule's first occurrence is after today, so nothing materializes now
	added, err := s.MaterializeDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestBudgetService_AddEntryRejectsInput(t *testing.T) {
	tests := []struct {
		name    string
		in      EntryInput
		wantErr error
	}{
		{"blank category", EntryInput{Type: "expense", Category: "  ", Amount: "5"}, core.ErrBlankCategory},
		{"bad amount", EntryInput{Type: "expense", Category: "Gas", Amount: "five"}, core.ErrInvalidAmount},
		{"negative amount", EntryInput{Type: "expense", Category: "Gas", Amount: "-5"}, core.ErrNegativeAmount},
		{"bad type", EntryInput{Type: "transfer", Category: "Gas", Amount: "5"}, core.ErrInvalidEntryType},
		{"bad frequency", EntryInput{Type: "expense", Category: "Gas", Amount: "5", Recurring: true, Frequency: "daily"}, core.ErrInvalidFrequency},
		{"bad start date", EntryInput{Type: "expense", Category: "Gas", Amount: "5", Recurring: true, Frequency: "weekly", StartDate: "2024-02-30"}, core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := loadedSession(t)
			before := s.State()

			_, err := s.AddEntry(context.Background(), tt.in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, s.State())
			assert.Zero(t, s.Revision())
		})
	}
}

func TestBudgetService_UpdateAndDeleteEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	e, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "40"})
	require.NoError(t, err)

	updated, err := s.UpdateEntry(ctx, e.ID, EntryInput{Type: "income", Category: "Refund", Amount: "12,5", Note: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, e.CreatedAt, updated.CreatedAt)
	assert.Equal(t, core.Income, updated.Type)
	assert.Equal(t, "12.5", updated.Amount.String())

	_, err = s.UpdateEntry(ctx, "missing", EntryInput{Type: "income", Category: "Refund", Amount: "1"})
	assert.ErrorIs(t, err, core.ErrEntryNotFound)

	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	assert.Empty(t, s.State().Entries)
	assert.ErrorIs(t, s.DeleteEntry(ctx, e.ID), core.ErrEntryNotFound)
}

func TestBudgetService_SampleEntries(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "40"})
	require.NoError(t, err)

	n, err := s.LoadSampleEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.True(t, s.HasSampleEntries())

	state := s.State()
	assert.Len(t, state.Entries, 8)
	assert.True(t, state.Budget.Equal(SampleBudget))

	removed, err := s.ClearSampleEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, removed)
	assert.False(t, s.HasSampleEntries())
	assert.Len(t, s.State().Entries, 1)

	removed, err = s.ClearSampleEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestBudgetService_SampleKeepsExistingBudget(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.SetBudget(ctx, "1200")
	require.NoError(t, err)

	_, err = s.LoadSampleEntries(ctx)
	require.NoError(t, err)

	assert.Equal(t, "1200", s.State().Budget.String())
}

func TestBudgetService_ClearsLegacySampleMarker(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	doc := `{"entries": [
		{"id": "a", "type": "expense", "category": "Gas", "amount": 5, "note": "[sample]"},
		{"id": "b", "type": "expense", "category": "Gas", "amount": 5}
	]}`
	require.NoError(t, store.Write(ctx, backend.StateKey, []byte(doc)))
	s := newTestSession(t, store)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	removed, err := s.ClearSampleEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "b", s.State().Entries[0].ID)
}

func TestBudgetService_SetBudget(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)

	_, err := s.SetBudget(ctx, "abc")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = s.SetBudget(ctx, "-1")
	assert.ErrorIs(t, err, core.ErrNegativeAmount)

	b, err := s.SetBudget(ctx, "2,500.00")
	require.NoError(t, err)
	assert.Equal(t, "2500", b.String())
}

func TestBudgetService_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)

	settings, err := s.UpdateSettings(ctx, map[string]any{"monthStartDay": 45, "sortOrder": "amount_desc"})
	require.NoError(t, err)
	assert.Equal(t, 28, settings.MonthStartDay)
	assert.Equal(t, core.SortAmountDesc, settings.SortOrder)
	assert.Equal(t, core.ScopeMonth, settings.DataScope, "untouched keys keep their value")

	settings, err = s.UpdateSettings(ctx, []byte(`{"dataScope": "all"}`))
	require.NoError(t, err)
	assert.Equal(t, core.ScopeAll, settings.DataScope)
	assert.Equal(t, 28, settings.MonthStartDay)

	_, err = s.UpdateSettings(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotAnObject)
}

func TestBudgetService_Categories(t *testing.T) {
	ctx := context.Background()
	s, store := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Custom1", Amount: "5"})
	require.NoError(t, err)

	_, err = s.AddCategory(ctx, "expense", "custom1", "")
	assert.ErrorIs(t, err, core.ErrCategoryExists)
	_, err = s.AddCategory(ctx, "savings", "Jar", "")
	assert.ErrorIs(t, err, core.ErrInvalidEntryType)

	n, err := s.RenameCategory(ctx, "expense", "Custom1", "Hobbies")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteCategory(ctx, "expense", "Hobbies")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	persisted := storedState(t, store)
	assert.Equal(t, core.FallbackExpenseCategory, persisted.Entries[0].Category)
	assert.False(t, persisted.CategoryCatalog.Has(core.Expense, "Hobbies"))

	list, err := s.Categories("income")
	require.NoError(t, err)
	assert.Len(t, list, len(core.DefaultIncomeCategories))
}

func TestBudgetService_RecurringRules(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gym", Amount: "30", Recurring: true, Frequency: "weekly"})
	require.NoError(t, err)
	id := s.RecurringRules()[0].ID

	r, err := s.SetRuleActive(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, r.Active)

	_, err = s.SetRuleActive(ctx, "missing", true)
	assert.ErrorIs(t, err, core.ErrRuleNotFound)

	require.NoError(t, s.RemoveRecurringRule(ctx, id))
	assert.Empty(t, s.RecurringRules())
	assert.ErrorIs(t, s.RemoveRecurringRule(ctx, id), core.ErrRuleNotFound)
}

func TestBudgetService_MaterializeDueOnLaterDay(t *testing.T) {
	ctx := context.Background()
	now := sessionNow
	clock := func() time.Time { return now }
	s, _ := loadedSession(t, WithClock(clock))

	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gym", Amount: "30", Recurring: true, Frequency: "weekly"})
	require.NoError(t, err)

	now = sessionNow.Add(15 * 24 * time.Hour)
	added, err := s.MaterializeDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = s.MaterializeDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestBudgetService_SummaryAndEntries(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.SetBudget(ctx, "1000")
	require.NoError(t, err)
	for _, in := range []EntryInput{
		{Type: "income", Category: "Salary", Amount: "2000"},
		{Type: "expense", Category: "Dining", Amount: "50", Note: "pizza"},
		{Type: "expense", Category: "Gas", Amount: "70"},
	} {
		_, err := s.AddEntry(ctx, in)
		require.NoError(t, err)
	}

	sum := s.Summary("")
	assert.Equal(t, core.ScopeMonth, sum.Scope)
	assert.Equal(t, "2000", sum.Income.String())
	assert.Equal(t, "120", sum.Expense.String())
	assert.Equal(t, "880", sum.BudgetLeft.String())

	_, err = s.UpdateSettings(ctx, map[string]any{"sortOrder": "amount_asc"})
	require.NoError(t, err)
	list := s.Entries(core.EntryFilter{Type: core.Expense})
	require.Len(t, list, 2)
	assert.Equal(t, "Dining", list[0].Category)

	list = s.Entries(core.EntryFilter{Search: "PIZ"})
	require.Len(t, list, 1)
}

func TestBudgetService_BackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Dining", Amount: "50"})
	require.NoError(t, err)
	_, err = s.UpdateSettings(ctx, map[string]any{"monthStartDay": 10})
	require.NoError(t, err)
	_, err = s.SetBudget(ctx, "1500")
	require.NoError(t, err)

	backup, err := s.ExportBackup(ctx)
	require.NoError(t, err)

	other, _ := loadedSession(t)
	res, err := other.ImportBackup(ctx, backup)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, "Backup imported.", res.Message())

	want, err := EncodeState(s.State())
	require.NoError(t, err)
	got, err := EncodeState(other.State())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestBudgetService_ImportVersion1Backup(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.UpdateSettings(ctx, map[string]any{"monthStartDay": 5})
	require.NoError(t, err)

	v1 := `{
		"exportedAt": "2024-01-01T00:00:00.000Z", "app": "BudgetBeacon", "version": 1,
		"budget": 900,
		"entries": [{"id": "e1", "type": "expense", "category": "Utilities", "amount": 80}],
		"recurringRules": [{"id": "r1", "type": "income", "category": "Salary", "amount": 100, "frequency": "weekly", "nextDue": "2024-03-01"}]
	}`
	res, err := s.ImportBackup(ctx, []byte(v1))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, "Backup imported. Added 3 due recurring entries.", res.Message())

	state := s.State()
	assert.Equal(t, 5, state.Settings.MonthStartDay, "settings kept when the backup has none")
	assert.Equal(t, "900", state.Budget.String())
	assert.Len(t, state.Entries, 4)
	assert.Equal(t, "Electric", state.Entries[3].Category)
}

func TestBudgetService_ImportRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "5"})
	require.NoError(t, err)
	before := s.State()

	for _, raw := range []string{"not json", "[]", `"x"`} {
		_, err := s.ImportBackup(ctx, []byte(raw))
		assert.True(t, IsLoadError(err), raw)
	}
	assert.Equal(t, before, s.State())
}

func TestBudgetService_CSV(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Dining", Amount: "12.5", Note: "lunch, with team"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,type,category,amount,note,created_at", lines[0])
	assert.Contains(t, lines[1], `"lunch, with team"`)

	other, _ := loadedSession(t)
	res, err := other.ImportCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	got := other.State().Entries[0]
	assert.Equal(t, "Dining", got.Category)
	assert.Equal(t, "12.5", got.Amount.String())
	assert.Equal(t, "lunch, with team", got.Note)
}

func TestBudgetService_ImportCSVSkipsInvalidRows(t *testing.T) {
	ctx := context.Background()
	s, _ := loadedSession(t)
	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "5"})
	require.NoError(t, err)

	csvData := "type,category,amount,note,created_at\n" +
		"income,Salary,$4200,pay,2024-03-01T09:00:00\n" +
		"transfer,Salary,10,,\n" +
		"expense,,10,,\n" +
		"expense,Dining,abc,,\n" +
		"EXPENSE,Dining,7,,\n"

	res, err := s.ImportCSV(ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, "Imported 2 entries.", res.Message())

	entries := s.State().Entries
	require.Len(t, entries, 3)
	assert.Equal(t, "Gas", entries[0].Category, "imported rows are appended")
	assert.Equal(t, "2024-03-01T09:00:00", entries[1].CreatedAt)
	assert.Equal(t, "2024-03-15T12:00:00.000Z", entries[2].CreatedAt)

	_, err = s.ImportCSV(ctx, strings.NewReader("type,category,amount\nbad,,\n"))
	assert.ErrorIs(t, err, ErrNoCSVRows)
	_, err = s.ImportCSV(ctx, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoCSVRows)
}

func TestBudgetService_PersistFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, brokenStore{memory.New()})
	_, err := s.Load(ctx)
	require.NoError(t, err)

	_, err = s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "5"})
	assert.ErrorIs(t, err, backend.ErrPersistFailed)
	assert.Len(t, s.State().Entries, 1, "the mutation stays in memory")

	res := s.Sync(ctx)
	assert.False(t, res.OK)
}

func TestBudgetService_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s, _ := loadedSession(t, WithPublisher(pub))

	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "5"})
	require.NoError(t, err)
	assert.Equal(t, []string{amqp.ReasonEntry}, pub.reasons())
}

func TestBudgetService_SyncAndOnboarding(t *testing.T) {
	ctx := context.Background()
	s, store := loadedSession(t)

	res := s.Sync(ctx)
	assert.True(t, res.OK)
	assert.Equal(t, backend.LocalMode, res.Mode)
	storedState(t, store)

	seen, err := s.OnboardingSeen(ctx)
	require.NoError(t, err)
	assert.False(t, seen)
	require.NoError(t, s.CompleteOnboarding(ctx))
	seen, err = s.OnboardingSeen(ctx)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestBudgetService_WriteQueueSurfacesFailures(t *testing.T) {
	ctx := context.Background()
	q := backend.NewWriteQueue(brokenStore{memory.New()}, backend.QueueConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	defer q.Close(ctx)
	s := NewBudgetService(backend.NewLocalAdapter(q), WithClock(func() time.Time { return sessionNow }), WithLocation(time.UTC))

	_, err := s.AddEntry(ctx, EntryInput{Type: "expense", Category: "Gas", Amount: "5"})
	require.NoError(t, err, "the queue accepts the write")

	assert.ErrorIs(t, s.Flush(ctx), backend.ErrPersistFailed)
}
