package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Diagnostic records why a record was dropped during sanitization.
type Diagnostic struct {
	Index  int
	ID     string
	Reason error
}

func (d Diagnostic) String() string {
	if d.ID != "" {
		return fmt.Sprintf("record %d (%s): %v", d.Index, d.ID, d.Reason)
	}
	return fmt.Sprintf("record %d: %v", d.Index, d.Reason)
}

// Sanitizer turns untrusted decoded JSON into validated records.
// Its methods are total: they never panic and always return either a
// record or the reason it was rejected.
type Sanitizer struct {
	now      func() time.Time
	location *time.Location
}

// NewSanitizer returns a sanitizer using now for default timestamps and loc
// for "today". Nil arguments fall back to time.Now and time.Local.
func NewSanitizer(now func() time.Time, loc *time.Location) *Sanitizer {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Sanitizer{now: now, location: loc}
}

// Today returns the current calendar day in the sanitizer's location.
func (s *Sanitizer) Today() Date {
	return Today(s.now(), s.location)
}

func (s *Sanitizer) SanitizeEntry(raw any) (Entry, error) {
	obj, ok := toObject(raw)
	if !ok {
		return Entry{}, ErrNotAnObject
	}
	entryType, category, amount, err := sanitizeTemplate(obj)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:        strings.TrimSpace(stringValue(obj["id"])),
		Type:      entryType,
		Category:  category,
		Amount:    amount,
		Note:      stringValue(obj["note"]),
		CreatedAt: strings.TrimSpace(stringValue(obj["createdAt"])),
	}
	if entry.ID == "" {
		entry.ID = NewEntryID()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = FormatTimestamp(s.now())
	}
	switch meta := obj["meta"].(type) {
	case map[string]any:
		entry.Meta = Meta(meta)
	case Meta:
		entry.Meta = meta
	}
	return entry, nil
}

func (s *Sanitizer) SanitizeRecurringRule(raw any) (RecurringRule, error) {
	obj, ok := toObject(raw)
	if !ok {
		return RecurringRule{}, ErrNotAnObject
	}
	ruleType, category, amount, err := sanitizeTemplate(obj)
	if err != nil {
		return RecurringRule{}, err
	}

	rule := RecurringRule{
		ID:        strings.TrimSpace(stringValue(obj["id"])),
		Type:      ruleType,
		Category:  category,
		Amount:    amount,
		Note:      stringValue(obj["note"]),
		Frequency: NormalizeFrequency(obj["frequency"]),
		Active:    true,
	}
	if rule.ID == "" {
		rule.ID = NewRuleID()
	}
	nextDue, err := ParseDateRolling(stringValue(obj["nextDue"]))
	if err != nil {
		nextDue = s.Today()
	}
	rule.NextDue = nextDue
	if active, ok := obj["active"].(bool); ok && !active {
		rule.Active = false
	}
	return rule, nil
}

// SanitizeEntries keeps the valid entries of raws in order.
func (s *Sanitizer) SanitizeEntries(raws []any) ([]Entry, []Diagnostic) {
	entries := make([]Entry, 0, len(raws))
	var dropped []Diagnostic
	for i, raw := range raws {
		entry, err := s.SanitizeEntry(raw)
		if err != nil {
			dropped = append(dropped, Diagnostic{Index: i, ID: rawID(raw), Reason: err})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, dropped
}

// SanitizeRecurringRules keeps the valid rules of raws in order.
func (s *Sanitizer) SanitizeRecurringRules(raws []any) ([]RecurringRule, []Diagnostic) {
	rules := make([]RecurringRule, 0, len(raws))
	var dropped []Diagnostic
	for i, raw := range raws {
		rule, err := s.SanitizeRecurringRule(raw)
		if err != nil {
			dropped = append(dropped, Diagnostic{Index: i, ID: rawID(raw), Reason: err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, dropped
}

func sanitizeTemplate(obj map[string]any) (EntryType, string, Money, error) {
	t := CoerceEntryType(obj["type"])
	category := strings.TrimSpace(stringValue(obj["category"]))
	if category == "" {
		return t, "", Money{}, ErrBlankCategory
	}
	amount, err := CoerceAmount(obj["amount"])
	if err != nil {
		return t, "", Money{}, err
	}
	return t, category, amount, nil
}

func rawID(raw any) string {
	if obj, ok := raw.(map[string]any); ok {
		return stringValue(obj["id"])
	}
	return ""
}

// toObject returns raw as a JSON object. Typed records are round-tripped
// through JSON so that re-sanitizing a sanitized record is possible.
func toObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	return decodeObject(b)
}

func decodeObject(b []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// stringValue renders scalars as text. Objects, arrays and null yield "".
func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

// AsObject returns raw as a decoded JSON object, converting typed records.
func AsObject(raw any) (map[string]any, bool) {
	return toObject(raw)
}

// AsArray returns raw as a decoded JSON array. Anything else yields nil.
func AsArray(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case nil:
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var arr []any
	if err := dec.Decode(&arr); err != nil {
		return nil
	}
	return arr
}

// Text renders a decoded JSON scalar as a string.
func Text(v any) string {
	return stringValue(v)
}
