package calendar

import (
	"sort"
	"time"
)

// defaultClosed lists the weekdays without deliveries at every school.
// It is a fixed rule, not configuration.
var defaultClosed = map[time.Weekday]bool{
	time.Wednesday: true,
	time.Saturday:  true,
	time.Sunday:    true,
}

// OffDaySet holds the explicit off-days of one school
type OffDaySet map[Date]struct{}

// NewOffDaySet builds a set from dates
func NewOffDaySet(dates ...Date) OffDaySet {
	set := make(OffDaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Add inserts d into the set
func (s OffDaySet) Add(d Date) {
	s[d] = struct{}{}
}

// Contains reports whether d is an explicit off-day. A nil set contains nothing.
func (s OffDaySet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the dates of the set in ascending order
func (s OffDaySet) Sorted() []Date {
	dates := make([]Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// IsDefaultClosed reports whether no delivery happens on weekday at any school
func IsDefaultClosed(weekday time.Weekday) bool {
	return defaultClosed[weekday]
}

// IsBillableDay reports whether a delivery is billed on date for a school
// with the given explicit off-days
func IsBillableDay(date Date, offDays OffDaySet) bool {
	if IsDefaultClosed(date.Weekday()) {
		return false
	}
	return !offDays.Contains(date)
}

// CountBillableDays counts billable days from start to end, both inclusive.
// It returns 0 when start is after end.
func CountBillableDays(start, end Date, offDays OffDaySet) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if IsBillableDay(d, offDays) {
			count++
		}
	}
	return count
}

// BillableDates returns the billable days from start to end inclusive
func BillableDates(start, end Date, offDays OffDaySet) []Date {
	var dates []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if IsBillableDay(d, offDays) {
			dates = append(dates, d)
		}
	}
	return dates
}

// DefaultClosedDates returns the days between start and end inclusive that
// fall on a default closed weekday
func DefaultClosedDates(start, end Date) []Date {
	var dates []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if IsDefaultClosed(d.Weekday()) {
			dates = append(dates, d)
		}
	}
	return dates
}
