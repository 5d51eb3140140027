// Package services holds the pure calculation steps of the engine: period
// resolution, category aggregation, goal evaluation and badge awarding.
//
// Period resolution uses one strategy per selector so that new selectors can be
// added without touching the callers.
package services

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"pennypal/internal/core"
)

// DateRange is a closed interval of whole calendar days plus the key that
// identifies this period instance.
type DateRange struct {
	Period core.Period `json:"period"`
	Start  civil.Date  `json:"start"`
	End    civil.Date  `json:"end"`
	Key    string      `json:"key"`

	loc *time.Location
}

// Contains reports whether d lies in [Start, End].
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// StartTime is the first instant of the first day.
func (r DateRange) StartTime() time.Time {
	return r.Start.In(r.location())
}

// EndTime is the last instant of the last day.
func (r DateRange) EndTime() time.Time {
	return r.End.AddDays(1).In(r.location()).Add(-time.Nanosecond)
}

// Days is the number of calendar days covered.
func (r DateRange) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

func (r DateRange) location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// PeriodResolver computes the range of one period selector for a reference day.
type PeriodResolver interface {
	Resolve(today civil.Date) (start civil.Date, key string)
}

// DailyResolver covers today only.
type DailyResolver struct{}

// Resolve keys the range by the day itself, e.g. 2024-06-02.
func (DailyResolver) Resolve(today civil.Date) (civil.Date, string) {
	return today, today.String()
}

// WeeklyResolver covers the rolling seven days ending today.
type WeeklyResolver struct{}

// Resolve starts six days before today and keys the range as
// start..today, e.g. 2024-05-27..2024-06-02.
func (WeeklyResolver) Resolve(today civil.Date) (civil.Date, string) {
	start := today.AddDays(-6)
	return start, start.String() + ".." + today.String()
}

// MonthlyResolver covers the calendar month to date.
type MonthlyResolver struct{}

// Resolve starts on the first of the month and keys the range yyyy-mm.
func (MonthlyResolver) Resolve(today civil.Date) (civil.Date, string) {
	start := civil.Date{Year: today.Year, Month: today.Month, Day: 1}
	return start, fmt.Sprintf("%04d-%02d", today.Year, int(today.Month))
}

// YearlyResolver covers the calendar year to date.
type YearlyResolver struct{}

// Resolve starts on 1 January and keys the range yyyy.
func (YearlyResolver) Resolve(today civil.Date) (civil.Date, string) {
	start := civil.Date{Year: today.Year, Month: time.January, Day: 1}
	return start, fmt.Sprintf("%04d", today.Year)
}

var periodStrategies = map[core.Period]PeriodResolver{
	core.Daily:   DailyResolver{},
	core.Weekly:  WeeklyResolver{},
	core.Monthly: MonthlyResolver{},
	core.Yearly:  YearlyResolver{},
}

// GetPeriodResolver returns the resolver for a selector.
func GetPeriodResolver(p core.Period) (PeriodResolver, error) {
	r, ok := periodStrategies[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownPeriod, p)
	}
	return r, nil
}

// RegisterPeriodResolver adds or replaces the resolver for a selector.
// It must be called during start-up, before any range is resolved.
func RegisterPeriodResolver(p core.Period, r PeriodResolver) {
	periodStrategies[p] = r
}

// ResolveRange maps a selector and a reference instant to a DateRange. The
// calendar day of now is taken in now's location.
func ResolveRange(p core.Period, now time.Time) (DateRange, error) {
	resolver, err := GetPeriodResolver(p)
	if err != nil {
		return DateRange{}, err
	}
	today := civil.DateOf(now)
	start, key := resolver.Resolve(today)
	return DateRange{
		Period: p,
		Start:  start,
		End:    today,
		Key:    key,
		loc:    now.Location(),
	}, nil
}
