package core

import (
	"sort"
	"strings"
	"time"
)

// EntryFilter narrows a ledger listing. Zero fields match everything.
type EntryFilter struct {
	Type     EntryType
	Category string
	Search   string
}

func (f EntryFilter) Match(e Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Category != "" && !strings.EqualFold(e.Category, strings.TrimSpace(f.Category)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(e.Category), q) && !strings.Contains(strings.ToLower(e.Note), q) {
			return false
		}
	}
	return true
}

// FilterEntries returns the matching entries in ledger order.
func FilterEntries(entries []Entry, f EntryFilter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortEntries sorts entries in place. Unparsable timestamps sort as the
// oldest; ties keep ledger order.
func SortEntries(entries []Entry, order SortOrder, loc *time.Location) {
	stamp := func(e Entry) time.Time {
		t, _ := e.Timestamp(loc)
		return t
	}
	sort.SliceStable(entries, func(i, j int) bool {
		switch order {
		case SortDateAsc:
			return stamp(entries[i]).Before(stamp(entries[j]))
		case SortAmountDesc:
			return entries[i].Amount.Cmp(entries[j].Amount) > 0
		case SortAmountAsc:
			return entries[i].Amount.Cmp(entries[j].Amount) < 0
		default:
			return stamp(entries[i]).After(stamp(entries[j]))
		}
	})
}
