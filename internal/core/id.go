package core

import (
	"strings"

	"github.com/google/uuid"
)

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func NewEntryID() string {
	return "id_" + hexID()
}

func NewRuleID() string {
	return "rule_" + hexID()
}

// NewCategoryID returns "<type>_" followed by ten hex digits.
func NewCategoryID(t EntryType) string {
	return t.String() + "_" + hexID()[:10]
}
