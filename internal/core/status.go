package core

import "strings"

const (
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// Tone classifies a status message for display.
type Tone string

var (
	errorMarkers   = []string{"failed", "could not", "cannot", "can't", "invalid", "enter a valid", "pick a", "not found", "already exists", "error"}
	warningMarkers = []string{"removed", "deleted", "cleared", "paused", "skipped", "nothing to"}
	successMarkers = []string{"saved", "added", "loaded", "imported", "exported", "updated", "renamed", "synced", "resumed", "created"}
)

// InferTone guesses the tone of a status message from its wording.
// Error wording wins over warning wording, which wins over success wording.
func InferTone(message string) Tone {
	m := strings.ToLower(message)
	switch {
	case m == "":
		return ToneInfo
	case containsAny(m, errorMarkers):
		return ToneError
	case containsAny(m, warningMarkers):
		return ToneWarning
	case containsAny(m, successMarkers):
		return ToneSuccess
	default:
		return ToneInfo
	}
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
