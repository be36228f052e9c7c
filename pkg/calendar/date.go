package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
)

// Layout is the only textual date format exchanged by lunchbox
const Layout = "2006-01-02"

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date is a civil calendar day. It carries no time of day and no zone:
// whenever it is converted to a time.Time it is 00:00 UTC.
//
// The zero Date is not a valid day and reports IsZero.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate returns the date for year, month, day, normalizing overflow the
// way time.Date does (e.g. June 31 becomes July 1)
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the UTC calendar day of t
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{year: y, month: m, day: d}
}

// Today returns the UTC calendar day of now
func Today(now time.Time) Date {
	return DateOf(now)
}

// ParseDate parses a YYYY-MM-DD string. Anything else, including valid
// RFC3339 timestamps, is rejected as invalid input.
func ParseDate(s string) (Date, error) {
	if !dateRegex.MatchString(s) {
		return Date{}, apperrors.InvalidInput("Dates must be in YYYY-MM-DD format")
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, apperrors.InvalidInput("invalid calendar date: %s", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and tables; it panics on error
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Year returns the year of d
func (d Date) Year() int { return d.year }

// Month returns the month of d
func (d Date) Month() time.Month { return d.month }

// Day returns the day of month of d
func (d Date) Day() int { return d.day }

// IsZero reports whether d is the zero Date
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns d at 00:00 UTC
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week of d
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns d shifted by n calendar days
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to
// or after other
func (d Date) Compare(other Date) int {
	switch {
	case d.year != other.year:
		return cmpInt(d.year, other.year)
	case d.month != other.month:
		return cmpInt(int(d.month), int(other.month))
	default:
		return cmpInt(d.day, other.day)
	}
}

// Before reports whether d is strictly before other
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// Equal reports whether d and other are the same day
func (d Date) Equal(other Date) bool { return d == other }

// String formats d as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalJSON encodes d as a YYYY-MM-DD string, or null for the zero Date
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD string
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores d in a DATE column
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads a DATE column. lib/pq returns DATE values as time.Time.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		// DATE columns come back at midnight in the session zone; keep the
		// wall-clock day rather than converting to UTC
		y, m, day := v.Date()
		*d = Date{year: y, month: m, day: day}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into calendar.Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("failed to scan date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// Range returns every day from start to end inclusive. It returns nil when
// start is after end.
func Range(start, end Date) []Date {
	if start.After(end) {
		return nil
	}
	var days []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// EndOfMonth returns the last day of d's month
func EndOfMonth(d Date) Date {
	return NewDate(d.year, d.month+1, 0)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
