// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring rule cursors.
// Each frequency (weekly, bi-weekly, semi-monthly, monthly) has its own
// strategy that computes the occurrence following a due date.

package services

import (
	"fmt"

	"budgetbeacon/internal/core"
)

// OccurrenceStrategy is the strategy interface for advancing a rule cursor.
type OccurrenceStrategy interface {
	// Next returns the first occurrence strictly after due.
	Next(due core.Date) core.Date
}

// WeeklyStrategy advances by 7 days.
type WeeklyStrategy struct{}

func (WeeklyStrategy) Next(due core.Date) core.Date {
	return due.AddDays(7)
}

// BiWeeklyStrategy advances by 14 days.
type BiWeeklyStrategy struct{}

func (BiWeeklyStrategy) Next(due core.Date) core.Date {
	return due.AddDays(14)
}

// SemiMonthlyStrategy alternates between the 1st and the 15th.
type SemiMonthlyStrategy struct{}

// Next jumps to the 15th when due is earlier in the month, otherwise to the
// 1st of the next month.
func (SemiMonthlyStrategy) Next(due core.Date) core.Date {
	if due.Day() < 15 {
		return core.NewDate(due.Year(), due.Month(), 15)
	}
	return core.NewDate(due.Year(), due.Month()+1, 1)
}

// MonthlyStrategy keeps the day of month, clamped to the end of short months.
type MonthlyStrategy struct{}

// Next returns the same day next month. Jan 31 becomes Feb 28/29 and, since
// only the cursor is stored, the following occurrence is Mar 28/29.
func (MonthlyStrategy) Next(due core.Date) core.Date {
	return due.AddMonthsClamped(1)
}

// occurrenceStrategies maps frequencies to their strategies.
var occurrenceStrategies = map[core.Frequency]OccurrenceStrategy{
	core.Weekly:      WeeklyStrategy{},
	core.BiWeekly:    BiWeeklyStrategy{},
	core.SemiMonthly: SemiMonthlyStrategy{},
	core.Monthly:     MonthlyStrategy{},
}

// GetOccurrenceStrategy returns the strategy for a frequency.
// Returns an error if the frequency is not supported.
func GetOccurrenceStrategy(frequency core.Frequency) (OccurrenceStrategy, error) {
	strategy, ok := occurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return strategy, nil
}

// RegisterOccurrenceStrategy registers a strategy for a new frequency.
// It is not safe to call concurrently with materialization.
func RegisterOccurrenceStrategy(frequency core.Frequency, strategy OccurrenceStrategy) {
	occurrenceStrategies[frequency] = strategy
}

// NextOccurrence advances due by one period of frequency. Unknown
// frequencies advance monthly, matching how they are normalized on load.
func NextOccurrence(due core.Date, frequency core.Frequency) core.Date {
	strategy, err := GetOccurrenceStrategy(frequency)
	if err != nil {
		strategy = MonthlyStrategy{}
	}
	return strategy.Next(due)
}

// InitialDue returns the first cursor for a rule starting at start: start
// itself when it lies after today, otherwise the first occurrence strictly
// after today.
func InitialDue(start, today core.Date, frequency core.Frequency) core.Date {
	due := start
	for steps := 0; !due.After(today) && steps < maxInitialSteps; steps++ {
		due = NextOccurrence(due, frequency)
	}
	return due
}

// maxInitialSteps bounds InitialDue for start dates far in the past.
const maxInitialSteps = 100000
