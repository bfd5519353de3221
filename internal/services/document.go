package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budgetbeacon/internal/core"
)

const (
	BackupApp     = "BudgetBeacon"
	BackupVersion = 2
)

// LoadError reports a document that could not be read as a State at all.
// Callers recover by starting from core.DefaultState.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load state: %s: %v", e.Reason, e.Err)
	}
	return "load state: " + e.Reason
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadReport describes what sanitization dropped from a decoded document.
type LoadReport struct {
	Entries        int
	RecurringRules int
	DroppedEntries []core.Diagnostic
	DroppedRules   []core.Diagnostic
	InvalidBudget  bool
}

// Dropped returns the number of records discarded.
func (r LoadReport) Dropped() int {
	return len(r.DroppedEntries) + len(r.DroppedRules)
}

// BackupDocument is the exported backup: the State plus export metadata.
type BackupDocument struct {
	core.State
	ExportedAt string `json:"exportedAt"`
	App        string `json:"app"`
	Version    int    `json:"version"`
}

// DecodeState parses a persisted or imported document.
//
// A JSON syntax error or a top level that is not an object yields a
// *LoadError. Otherwise decoding always succeeds: fields of the wrong shape
// fall back to their defaults, invalid records are dropped and reported, and
// the category catalog is reconciled against the surviving records.
func DecodeState(raw []byte, sanitizer *core.Sanitizer) (core.State, LoadReport, error) {
	var report LoadReport
	if sanitizer == nil {
		sanitizer = core.NewSanitizer(nil, nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return core.State{}, report, &LoadError{Reason: "invalid JSON", Err: err}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return core.State{}, report, &LoadError{Reason: "document is not an object"}
	}

	state := core.DefaultState()
	if v, present := obj["budget"]; present && v != nil {
		budget, err := core.CoerceAmount(v)
		if err != nil {
			report.InvalidBudget = true
		} else {
			state.Budget = budget
		}
	}

	state.Entries, report.DroppedEntries = sanitizer.SanitizeEntries(core.AsArray(obj["entries"]))
	state.RecurringRules, report.DroppedRules = sanitizer.SanitizeRecurringRules(core.AsArray(obj["recurringRules"]))
	state.Settings = core.SanitizeSettings(obj["settings"])
	state.CategoryCatalog = ReconcileCatalog(obj["categoryCatalog"], state.Entries, state.RecurringRules)

	report.Entries = len(state.Entries)
	report.RecurringRules = len(state.RecurringRules)
	return state, report, nil
}

// EncodeState serializes the State as the persisted document.
func EncodeState(state core.State) ([]byte, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

// EncodeBackup serializes the State as a backup document stamped with now.
func EncodeBackup(state core.State, now time.Time) ([]byte, error) {
	doc := BackupDocument{
		State:      state,
		ExportedAt: core.FormatTimestamp(now),
		App:        BackupApp,
		Version:    BackupVersion,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return b, nil
}

// IsLoadError reports whether err is a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
