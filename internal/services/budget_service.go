package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"budgetbeacon/internal/amqp"
	"budgetbeacon/internal/backend"
	"budgetbeacon/internal/core"
)

// StatePublisher announces persisted State changes.
type StatePublisher interface {
	PublishStateChanged(ctx context.Context, msg *amqp.StateChangedMessage) error
}

// EntryInput is an entry as typed by the user. Amount accepts the formats of
// core.ParseMoney. The recurring fields are read only when Recurring is set;
// an empty StartDate means today.
type EntryInput struct {
	Type      string `json:"type"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Note      string `json:"note"`
	Recurring bool   `json:"recurring"`
	Frequency string `json:"frequency"`
	StartDate string `json:"startDate"`
}

// LoadResult describes a completed Load.
type LoadResult struct {
	// Found is false when the store held no document.
	Found bool
	// Recovered is set when the stored document was unreadable and the
	// session started from the default State.
	Recovered bool
	LoadErr   error
	Report    LoadReport
	Added     int
}

// Message is the status line shown after loading.
func (r LoadResult) Message() string {
	switch {
	case r.Recovered:
		return "Stored data could not be read. Starting fresh."
	case r.Added > 0:
		return fmt.Sprintf("Added %d recurring %s.", r.Added, plural(r.Added, "entry", "entries"))
	default:
		return ""
	}
}

// ImportResult describes a completed backup import.
type ImportResult struct {
	Report LoadReport
	Added  int
}

// Message is the status line shown after importing.
func (r ImportResult) Message() string {
	if r.Added > 0 {
		return fmt.Sprintf("Backup imported. Added %d due recurring %s.", r.Added, plural(r.Added, "entry", "entries"))
	}
	return "Backup imported."
}

// Option configures a BudgetService.
type Option func(*BudgetService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *BudgetService) { s.now = now }
}

// WithLocation sets the zone that defines "today" and local midnight.
func WithLocation(loc *time.Location) Option {
	return func(s *BudgetService) { s.location = loc }
}

// WithPublisher enables state change notifications.
func WithPublisher(p StatePublisher) Option {
	return func(s *BudgetService) { s.publisher = p }
}

// BudgetService owns one session's State. All methods are safe for
// concurrent use; mutations are serialized and each one persists the whole
// State through the adapter.
type BudgetService struct {
	adapter   backend.Adapter
	publisher StatePublisher

	now          func() time.Time
	location     *time.Location
	sanitizer    *core.Sanitizer
	materializer *Materializer

	mu       sync.Mutex
	state    core.State
	revision int64
}

func NewBudgetService(adapter backend.Adapter, opts ...Option) *BudgetService {
	s := &BudgetService{
		adapter:  adapter,
		now:      time.Now,
		location: time.Local,
		state:    core.DefaultState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.location == nil {
		s.location = time.Local
	}
	s.sanitizer = core.NewSanitizer(s.now, s.location)
	s.materializer = NewMaterializer(s.location)
	return s
}

// Location returns the session's zone.
func (s *BudgetService) Location() *time.Location {
	return s.location
}

// Today returns the current calendar day in the session's zone.
func (s *BudgetService) Today() core.Date {
	return core.Today(s.now(), s.location)
}

// Load reads the persisted document, sanitizes it, materializes due
// recurring entries and persists the result when anything was added.
//
// An unreadable document is not an error: the session starts from the
// default State and the result says so. Errors are store read failures and
// persistence failures.
func (s *BudgetService) Load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result LoadResult
	raw, found, err := s.adapter.ReadStateRaw(ctx)
	if err != nil {
		return result, fmt.Errorf("read state: %w", err)
	}
	result.Found = found

	state := core.DefaultState()
	if found {
		decoded, report, err := DecodeState(raw, s.sanitizer)
		if err != nil {
			slog.ErrorContext(ctx, "Stored state is unreadable, starting from defaults",
				"error", err,
				"bytes", len(raw))
			result.Recovered = true
			result.LoadErr = err
		} else {
			state = decoded
			result.Report = report
			logReport(ctx, "Loaded state", report)
		}
	}

	result.Added = s.materializer.Materialize(ctx, &state, s.Today())
	s.state = state

	if result.Added > 0 {
		EnsureReferencedCategories(&s.state)
		if err := s.persist(ctx, amqp.ReasonLoad, result.Added); err != nil {
			return result, err
		}
	}
	return result, nil
}

// State returns a copy of the current State.
func (s *BudgetService) State() core.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Revision is bumped by every persisted mutation.
func (s *BudgetService) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Snapshot returns a copy of the State together with its revision.
func (s *BudgetService) Snapshot() (core.State, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), s.revision
}

// AddEntry validates in, prepends the entry and, when in.Recurring is set,
// a rule whose first occurrence is the first one after today.
func (s *BudgetService) AddEntry(ctx context.Context, in EntryInput) (core.Entry, error) {
	entryType, category, amount, err := parseEntryInput(in)
	if err != nil {
		return core.Entry{}, err
	}

	var rule *core.RecurringRule
	if in.Recurring {
		freq, err := core.ParseFrequency(in.Frequency)
		if err != nil {
			return core.Entry{}, err
		}
		today := s.Today()
		start := today
		if strings.TrimSpace(in.StartDate) != "" {
			if start, err = core.ParseDate(in.StartDate); err != nil {
				return core.Entry{}, err
			}
		}
		rule = &core.RecurringRule{
			ID:        core.NewRuleID(),
			Type:      entryType,
			Category:  category,
			Amount:    amount,
			Note:      strings.TrimSpace(in.Note),
			Frequency: freq,
			NextDue:   InitialDue(start, today, freq),
			Active:    true,
		}
	}

	entry := core.Entry{
		ID:        core.NewEntryID(),
		Type:      entryType,
		Category:  category,
		Amount:    amount,
		Note:      strings.TrimSpace(in.Note),
		CreatedAt: core.FormatTimestamp(s.now()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Entries = append([]core.Entry{entry}, s.state.Entries...)
	if rule != nil {
		s.state.RecurringRules = append([]core.RecurringRule{*rule}, s.state.RecurringRules...)
		slog.InfoContext(ctx, "Created recurring rule",
			"rule_id", rule.ID,
			"frequency", rule.Frequency,
			"next_due", rule.NextDue.String())
	}
	EnsureReferencedCategories(&s.state)

	return entry, s.persist(ctx, amqp.ReasonEntry, 0)
}

// UpdateEntry replaces the type, category, amount and note of an entry.
// Its id, timestamp and meta are kept.
func (s *BudgetService) UpdateEntry(ctx context.Context, id string, in EntryInput) (core.Entry, error) {
	entryType, category, amount, err := parseEntryInput(in)
	if err != nil {
		return core.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.FindEntry(id)
	if i < 0 {
		return core.Entry{}, core.ErrEntryNotFound
	}
	e := &s.state.Entries[i]
	e.Type = entryType
	e.Category = category
	e.Amount = amount
	e.Note = strings.TrimSpace(in.Note)
	EnsureReferencedCategories(&s.state)

	return *e, s.persist(ctx, amqp.ReasonEntry, 0)
}

func (s *BudgetService) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.FindEntry(id)
	if i < 0 {
		return core.ErrEntryNotFound
	}
	s.state.Entries = append(s.state.Entries[:i:i], s.state.Entries[i+1:]...)
	return s.persist(ctx, amqp.ReasonEntry, 0)
}

// Entries lists the entries matching f in the configured sort order.
func (s *BudgetService) Entries(f core.EntryFilter) []core.Entry {
	s.mu.Lock()
	entries := core.FilterEntries(s.state.Entries, f)
	order := s.state.Settings.SortOrder
	s.mu.Unlock()

	core.SortEntries(entries, order, s.location)
	return entries
}

// Summary computes the dashboard totals. An empty scope uses the configured one.
func (s *BudgetService) Summary(scope core.DataScope) core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == "" {
		scope = s.state.Settings.DataScope
	}
	return core.Summarize(s.state, scope, s.Today(), s.location)
}

// SetBudget parses and stores the budget goal.
func (s *BudgetService) SetBudget(ctx context.Context, amount string) (core.Money, error) {
	budget, err := core.ParseMoney(amount)
	if err != nil {
		return core.Money{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Budget = budget
	return budget, s.persist(ctx, amqp.ReasonBudget, 0)
}

// Settings returns the current settings.
func (s *BudgetService) Settings() core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}

// UpdateSettings overlays the keys present in raw onto the current settings
// and sanitizes the result. raw is a JSON object or a map.
func (s *BudgetService) UpdateSettings(ctx context.Context, raw any) (core.Settings, error) {
	patch, ok := core.AsObject(raw)
	if !ok {
		return core.Settings{}, core.ErrNotAnObject
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := map[string]any{
		"defaultType":   string(s.state.Settings.DefaultType),
		"dataScope":     string(s.state.Settings.DataScope),
		"monthStartDay": s.state.Settings.MonthStartDay,
		"sortOrder":     string(s.state.Settings.SortOrder),
	}
	for k, v := range patch {
		merged[k] = v
	}
	s.state.Settings = core.SanitizeSettings(merged)
	return s.state.Settings, s.persist(ctx, amqp.ReasonSettings, 0)
}

// Categories returns the catalog rows of the type.
func (s *BudgetService) Categories(entryType string) ([]core.Category, error) {
	t, err := core.ParseEntryType(entryType)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.state.CategoryCatalog.List(t)...), nil
}

func (s *BudgetService) AddCategory(ctx context.Context, entryType, name, color string) (core.Category, error) {
	t, err := core.ParseEntryType(entryType)
	if err != nil {
		return core.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	category, err := AddCategory(&s.state, t, name, color)
	if err != nil {
		return core.Category{}, err
	}
	return category, s.persist(ctx, amqp.ReasonCategory, 0)
}

// RenameCategory renames a category and returns the number of relinked records.
func (s *BudgetService) RenameCategory(ctx context.Context, entryType, oldName, newName string) (int, error) {
	t, err := core.ParseEntryType(entryType)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	relinked, err := RenameCategory(&s.state, t, oldName, newName)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Renamed category",
		"type", t,
		"from", oldName,
		"to", newName,
		"relinked", relinked)
	return relinked, s.persist(ctx, amqp.ReasonCategory, 0)
}

// DeleteCategory removes a category and returns the number of records moved
// to the fallback category.
func (s *BudgetService) DeleteCategory(ctx context.Context, entryType, name string) (int, error) {
	t, err := core.ParseEntryType(entryType)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	relinked, err := DeleteCategory(&s.state, t, name)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Deleted category",
		"type", t,
		"name", name,
		"relinked", relinked)
	return relinked, s.persist(ctx, amqp.ReasonCategory, 0)
}

// RecurringRules returns the rules in ledger order.
func (s *BudgetService) RecurringRules() []core.RecurringRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RecurringRule(nil), s.state.RecurringRules...)
}

// RemoveRecurringRule deletes a rule. Entries it already produced stay.
func (s *BudgetService) RemoveRecurringRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.FindRule(id)
	if i < 0 {
		return core.ErrRuleNotFound
	}
	s.state.RecurringRules = append(s.state.RecurringRules[:i:i], s.state.RecurringRules[i+1:]...)
	return s.persist(ctx, amqp.ReasonRecurring, 0)
}

// SetRuleActive pauses or resumes a rule. A paused rule keeps its cursor.
func (s *BudgetService) SetRuleActive(ctx context.Context, id string, active bool) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.FindRule(id)
	if i < 0 {
		return core.RecurringRule{}, core.ErrRuleNotFound
	}
	s.state.RecurringRules[i].Active = active
	return s.state.RecurringRules[i], s.persist(ctx, amqp.ReasonRecurring, 0)
}

// MaterializeDue catches recurring rules up to today and persists when
// entries were added.
func (s *BudgetService) MaterializeDue(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.materializer.Materialize(ctx, &s.state, s.Today())
	if added == 0 {
		return 0, nil
	}
	EnsureReferencedCategories(&s.state)
	return added, s.persist(ctx, amqp.ReasonMaterialize, added)
}

// ExportBackup renders the State as a backup document.
func (s *BudgetService) ExportBackup(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := EncodeBackup(s.state, s.now())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Exported backup",
		"entries", len(s.state.Entries),
		"rules", len(s.state.RecurringRules),
		"bytes", len(b))
	return b, nil
}

// ImportBackup replaces the State with a backup document, materializes due
// recurring entries and persists. Backups without settings or a category
// catalog keep the current ones. An unreadable document leaves the State
// untouched.
func (s *BudgetService) ImportBackup(ctx context.Context, raw []byte) (ImportResult, error) {
	var result ImportResult

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.withCurrentDefaults(raw)
	if err != nil {
		return result, err
	}
	state, report, err := DecodeState(doc, s.sanitizer)
	if err != nil {
		return result, err
	}
	logReport(ctx, "Imported backup", report)

	result.Report = report
	result.Added = s.materializer.Materialize(ctx, &state, s.Today())
	EnsureReferencedCategories(&state)
	s.state = state

	return result, s.persist(ctx, amqp.ReasonImport, result.Added)
}

// withCurrentDefaults fills the settings and catalog of a backup that has none
// with the current ones.
func (s *BudgetService) withCurrentDefaults(raw []byte) ([]byte, error) {
	obj, ok := core.AsObject(raw)
	if !ok {
		// reports invalid JSON and non-object documents alike
		if _, _, err := DecodeState(raw, s.sanitizer); err != nil {
			return nil, err
		}
		return nil, &LoadError{Reason: "document is not an object"}
	}
	if _, ok := obj["settings"]; !ok {
		obj["settings"] = s.state.Settings
	}
	if _, ok := obj["categoryCatalog"]; !ok {
		obj["categoryCatalog"] = s.state.CategoryCatalog
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, &LoadError{Reason: "re-encode document", Err: err}
	}
	return b, nil
}

// HasSampleEntries reports whether any demo entry is in the ledger.
func (s *BudgetService) HasSampleEntries() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.state.Entries {
		if e.IsSample() {
			return true
		}
	}
	return false
}

// LoadSampleEntries prepends the demo entries, keeping existing ones, and
// sets a budget goal when none is set.
func (s *BudgetService) LoadSampleEntries(ctx context.Context) (int, error) {
	samples := SampleEntries(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Budget.IsZero() {
		s.state.Budget = SampleBudget
	}
	s.state.Entries = append(samples, s.state.Entries...)
	EnsureReferencedCategories(&s.state)
	return len(samples), s.persist(ctx, amqp.ReasonSample, len(samples))
}

// ClearSampleEntries removes every demo entry.
func (s *BudgetService) ClearSampleEntries(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.Entries[:0:0]
	for _, e := range s.state.Entries {
		if !e.IsSample() {
			kept = append(kept, e)
		}
	}
	removed := len(s.state.Entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.state.Entries = kept
	return removed, s.persist(ctx, amqp.ReasonSample, 0)
}

// Sync asks the adapter to push the State. Buffered writes are flushed first
// so the result reflects what reached the store.
func (s *BudgetService) Sync(ctx context.Context) backend.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.adapter.SyncNow(ctx, s.state)
	if res.OK {
		if err := s.flush(ctx); err != nil {
			slog.ErrorContext(ctx, "Sync flush failed", "error", err)
			res.OK = false
			res.Message = "Sync failed: data could not be written."
		}
	}
	slog.InfoContext(ctx, "Sync finished", "ok", res.OK, "mode", res.Mode)
	return res
}

// Flush waits for buffered writes and reports those that failed.
func (s *BudgetService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(ctx)
}

func (s *BudgetService) flush(ctx context.Context) error {
	if f, ok := s.adapter.(backend.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func (s *BudgetService) OnboardingSeen(ctx context.Context) (bool, error) {
	return s.adapter.OnboardingSeen(ctx)
}

func (s *BudgetService) CompleteOnboarding(ctx context.Context) error {
	return s.adapter.SetOnboardingSeen(ctx)
}

// Mode reports the adapter flavor.
func (s *BudgetService) Mode() backend.Mode {
	return s.adapter.Mode()
}

// persist saves the State and publishes a change notification. Callers hold mu.
func (s *BudgetService) persist(ctx context.Context, reason string, added int) error {
	s.revision++
	if err := s.adapter.SaveState(ctx, s.state); err != nil {
		slog.ErrorContext(ctx, "Failed to persist state",
			"reason", reason,
			"revision", s.revision,
			"error", err)
		if !errors.Is(err, backend.ErrPersistFailed) {
			err = fmt.Errorf("%w: %w", backend.ErrPersistFailed, err)
		}
		return err
	}

	if s.publisher != nil {
		msg := amqp.NewStateChangedMessage(reason, s.revision, added)
		if err := s.publisher.PublishStateChanged(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish state change",
				"reason", reason,
				"revision", s.revision,
				"error", err)
		}
	}
	return nil
}

func parseEntryInput(in EntryInput) (core.EntryType, string, core.Money, error) {
	entryType, err := core.ParseEntryType(in.Type)
	if err != nil {
		return "", "", core.Money{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return "", "", core.Money{}, core.ErrBlankCategory
	}
	amount, err := core.ParseMoney(in.Amount)
	if err != nil {
		return "", "", core.Money{}, err
	}
	return entryType, category, amount, nil
}

func logReport(ctx context.Context, msg string, report LoadReport) {
	for _, d := range report.DroppedEntries {
		slog.WarnContext(ctx, "Dropped invalid entry", "index", d.Index, "id", d.ID, "reason", d.Reason)
	}
	for _, d := range report.DroppedRules {
		slog.WarnContext(ctx, "Dropped invalid recurring rule", "index", d.Index, "id", d.ID, "reason", d.Reason)
	}
	if report.InvalidBudget {
		slog.WarnContext(ctx, "Invalid budget replaced by zero")
	}
	slog.InfoContext(ctx, msg,
		"entries", report.Entries,
		"rules", report.RecurringRules,
		"dropped", report.Dropped())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
