package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	Weekly      Frequency = "weekly"
	BiWeekly    Frequency = "bi-weekly"
	SemiMonthly Frequency = "semi-monthly"
	Monthly     Frequency = "monthly"
)

const (
	FallbackExpenseCategory = "Other"
	FallbackIncomeCategory  = "Other Income"

	// RecurringNote is the note given to materialized entries whose rule has none.
	RecurringNote = "Recurring entry"

	// LegacySampleNote marked demo entries before meta.sample existed.
	LegacySampleNote = "[sample]"
)

const (
	MetaSample          = "sample"
	MetaRecurring       = "recurring"
	MetaRecurringRuleID = "recurringRuleId"
)

type (
	EntryType string

	Frequency string

	// Meta is the optional tag map carried by an entry. Unknown keys are preserved.
	Meta map[string]any

	Entry struct {
		ID        string    `json:"id"`
		Type      EntryType `json:"type"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount"`
		Note      string    `json:"note"`
		CreatedAt string    `json:"createdAt"`
		Meta      Meta      `json:"meta,omitempty"`
	}

	RecurringRule struct {
		ID        string    `json:"id"`
		Type      EntryType `json:"type"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount"`
		Note      string    `json:"note"`
		Frequency Frequency `json:"frequency"`
		NextDue   Date      `json:"nextDue"`
		Active    bool      `json:"active"`
	}

	// State is the single persisted document.
	State struct {
		Budget          Money           `json:"budget"`
		Entries         []Entry         `json:"entries"`
		RecurringRules  []RecurringRule `json:"recurringRules"`
		Settings        Settings        `json:"settings"`
		CategoryCatalog Catalog         `json:"categoryCatalog"`
	}
)

var (
	ErrNotAnObject      = errors.New("record is not an object")
	ErrBlankCategory    = errors.New("blank category")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrInvalidEntryType = errors.New("invalid entry type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrRuleNotFound     = errors.New("recurring rule not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrFallbackCategory = errors.New("fallback category cannot be changed")
)

// EntryTypes lists both entry types in catalog order.
func EntryTypes() []EntryType {
	return []EntryType{Expense, Income}
}

// ParseEntryType parses user input strictly.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidEntryType
	}
}

// CoerceEntryType maps anything that is not exactly "income" to expense.
func CoerceEntryType(v any) EntryType {
	switch t := v.(type) {
	case string:
		if t == string(Income) {
			return Income
		}
	case EntryType:
		if t == Income {
			return Income
		}
	}
	return Expense
}

// FallbackCategory returns the catch-all category name of the type.
func (t EntryType) FallbackCategory() string {
	if t == Income {
		return FallbackIncomeCategory
	}
	return FallbackExpenseCategory
}

func (t EntryType) String() string {
	return string(t)
}

// Frequencies lists the supported recurrence frequencies.
func Frequencies() []Frequency {
	return []Frequency{Weekly, BiWeekly, SemiMonthly, Monthly}
}

// ParseFrequency parses user input strictly.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Frequencies() {
		if f == known {
			return f, nil
		}
	}
	return "", ErrInvalidFrequency
}

func (f Frequency) String() string {
	return string(f)
}

// NormalizeFrequency maps unknown values to monthly.
func NormalizeFrequency(v any) Frequency {
	f, err := ParseFrequency(stringValue(v))
	if err != nil {
		return Monthly
	}
	return f
}

// IsSample reports whether the entry is demo data.
func (e Entry) IsSample() bool {
	if sample, ok := e.Meta[MetaSample].(bool); ok && sample {
		return true
	}
	return e.Note == LegacySampleNote
}

// IsRecurring reports whether the entry was materialized from a rule.
func (e Entry) IsRecurring() bool {
	recurring, ok := e.Meta[MetaRecurring].(bool)
	return ok && recurring
}

// RecurringRuleID returns the owning rule id of a materialized entry.
func (e Entry) RecurringRuleID() string {
	id, _ := e.Meta[MetaRecurringRuleID].(string)
	return id
}

// Timestamp parses CreatedAt. Timestamps without an offset are read in loc.
func (e Entry) Timestamp(loc *time.Location) (time.Time, bool) {
	return ParseTimestamp(e.CreatedAt, loc)
}

// DefaultState returns the empty document used on first run and after a failed load.
func DefaultState() State {
	return State{
		Budget:          Money{},
		Entries:         []Entry{},
		RecurringRules:  []RecurringRule{},
		Settings:        DefaultSettings(),
		CategoryCatalog: DefaultCatalog(),
	}
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	out := s
	out.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		out.Entries[i] = e.clone()
	}
	out.RecurringRules = append([]RecurringRule{}, s.RecurringRules...)
	out.CategoryCatalog = s.CategoryCatalog.Clone()
	return out
}

func (e Entry) clone() Entry {
	if e.Meta == nil {
		return e
	}
	meta := make(Meta, len(e.Meta))
	for k, v := range e.Meta {
		meta[k] = v
	}
	e.Meta = meta
	return e
}

// FindEntry returns the index of the entry with id, or -1.
func (s *State) FindEntry(id string) int {
	for i, e := range s.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// FindRule returns the index of the rule with id, or -1.
func (s *State) FindRule(id string) int {
	for i, r := range s.RecurringRules {
		if r.ID == id {
			return i
		}
	}
	return -1
}
