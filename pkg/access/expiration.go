// Package access computes the yearly access window bought by the access fee.
//
// The school year runs from July 1 to June 30. Paying in June already buys
// the following school year.
package access

import (
	"time"

	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// NextAnnualExpiration returns the June 30 an access fee paid at now is
// valid until: June 30 of next year from June onwards, otherwise June 30
// of the current year
func NextAnnualExpiration(now time.Time) calendar.Date {
	now = now.UTC()
	year := now.Year()
	if now.Month() >= time.June {
		year++
	}
	return calendar.NewDate(year, time.June, 30)
}

// PreviousJulyFirst returns the first day of the school year containing now
func PreviousJulyFirst(now time.Time) calendar.Date {
	now = now.UTC()
	year := now.Year()
	if now.Month() < time.July {
		year--
	}
	return calendar.NewDate(year, time.July, 1)
}

// IsActive reports whether an access window ending on expiresAt is still
// open on now's day. A nil expiry means access was never granted or was revoked.
func IsActive(expiresAt *calendar.Date, now time.Time) bool {
	if expiresAt == nil || expiresAt.IsZero() {
		return false
	}
	return !expiresAt.Before(calendar.Today(now))
}

// Status is the access state shown to a parent
type Status struct {
	AccessExpiresAt *calendar.Date `json:"accessExpiresAt,omitempty"`
	Active          bool           `json:"active"`
	RenewalDate     calendar.Date  `json:"renewalDate"`
}

// StatusAt describes an access window at now. RenewalDate is the expiry a
// payment made now would grant.
func StatusAt(expiresAt *calendar.Date, now time.Time) Status {
	return Status{
		AccessExpiresAt: expiresAt,
		Active:          IsActive(expiresAt, now),
		RenewalDate:     NextAnnualExpiration(now),
	}
}
