/*
Package calendar decides which days are billable delivery days.

# Overview

Every date in lunchbox is a civil day (Date) exchanged as a YYYY-MM-DD
string and anchored at UTC. Comparing timestamps instead of days is what
produces off-by-one errors around midnight, so nothing in this package
accepts a time of day except the constructors DateOf and Today.

A day is billable unless:
  - it is a Wednesday, Saturday or Sunday (fixed for every school), or
  - it is one of the school's explicit off-days.

Public holidays enter the system as explicit off-days; BelgianHolidays
lists them so they can be imported for every school.

# Usage Example

	start := calendar.MustParseDate("2024-07-01")
	end := start.AddDays(6)
	offDays := calendar.NewOffDaySet(calendar.MustParseDate("2024-07-04"))

	days := calendar.CountBillableDays(start, end, offDays) // Mon, Tue, Fri = 3
*/
package calendar
