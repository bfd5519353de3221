package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	ScopeMonth DataScope = "month"
	ScopeAll   DataScope = "all"
)

const (
	SortDateDesc   SortOrder = "date_desc"
	SortDateAsc    SortOrder = "date_asc"
	SortAmountDesc SortOrder = "amount_desc"
	SortAmountAsc  SortOrder = "amount_asc"
)

const (
	MinMonthStartDay = 1
	MaxMonthStartDay = 28
)

type (
	DataScope string

	SortOrder string

	Settings struct {
		DefaultType   EntryType `json:"defaultType"`
		DataScope     DataScope `json:"dataScope"`
		MonthStartDay int       `json:"monthStartDay"`
		SortOrder     SortOrder `json:"sortOrder"`
	}
)

func DefaultSettings() Settings {
	return Settings{
		DefaultType:   Expense,
		DataScope:     ScopeMonth,
		MonthStartDay: MinMonthStartDay,
		SortOrder:     SortDateDesc,
	}
}

func (s SortOrder) String() string { return string(s) }
func (d DataScope) String() string { return string(d) }

func SortOrders() []SortOrder {
	return []SortOrder{SortDateDesc, SortDateAsc, SortAmountDesc, SortAmountAsc}
}

// ParseSortOrder maps unknown values to date_desc.
func ParseSortOrder(v any) SortOrder {
	s := SortOrder(stringValue(v))
	for _, known := range SortOrders() {
		if s == known {
			return s
		}
	}
	return SortDateDesc
}

// ParseDataScope maps anything other than "all" to month.
func ParseDataScope(v any) DataScope {
	if stringValue(v) == string(ScopeAll) {
		return ScopeAll
	}
	return ScopeMonth
}

// SanitizeSettings coerces every field independently. It never fails.
func SanitizeSettings(raw any) Settings {
	obj, ok := toObject(raw)
	if !ok {
		return DefaultSettings()
	}
	return Settings{
		DefaultType:   CoerceEntryType(obj["defaultType"]),
		DataScope:     ParseDataScope(obj["dataScope"]),
		MonthStartDay: ClampMonthStartDay(obj["monthStartDay"]),
		SortOrder:     ParseSortOrder(obj["sortOrder"]),
	}
}

// ClampMonthStartDay truncates numeric input to an integer in 1..28.
// Non-numeric input yields 1.
func ClampMonthStartDay(v any) int {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return MinMonthStartDay
		}
		f = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return MinMonthStartDay
		}
		f = float64(parsed)
	default:
		return MinMonthStartDay
	}
	if math.IsNaN(f) {
		return MinMonthStartDay
	}
	day := math.Trunc(f)
	if day < MinMonthStartDay {
		return MinMonthStartDay
	}
	if day > MaxMonthStartDay {
		return MaxMonthStartDay
	}
	return int(day)
}
