package calendar

import (
	"sort"
	"time"
)

// Holiday is a named public holiday
type Holiday struct {
	Date Date   `json:"date" yaml:"date"`
	Name string `json:"name" yaml:"name"`
}

// Easter returns Easter Sunday of year (Gregorian calendar)
func Easter(year int) Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return NewDate(year, time.Month(month), day)
}

// BelgianHolidays returns the legal public holidays in Belgium for year,
// sorted by date. Schools are closed on all of them.
func BelgianHolidays(year int) []Holiday {
	easter := Easter(year)
	holidays := []Holiday{
		{Date: NewDate(year, time.January, 1), Name: "New Year's Day"},
		{Date: easter.AddDays(1), Name: "Easter Monday"},
		{Date: NewDate(year, time.May, 1), Name: "Labour Day"},
		{Date: easter.AddDays(39), Name: "Ascension Day"},
		{Date: easter.AddDays(50), Name: "Whit Monday"},
		{Date: NewDate(year, time.July, 21), Name: "National Day"},
		{Date: NewDate(year, time.August, 15), Name: "Assumption Day"},
		{Date: NewDate(year, time.November, 1), Name: "All Saints' Day"},
		{Date: NewDate(year, time.November, 11), Name: "Armistice Day"},
		{Date: NewDate(year, time.December, 25), Name: "Christmas Day"},
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date.Before(holidays[j].Date) })
	return holidays
}

// IsHoliday reports whether d is a Belgian public holiday
func IsHoliday(d Date) bool {
	for _, h := range BelgianHolidays(d.Year()) {
		if h.Date.Equal(d) {
			return true
		}
	}
	return false
}
