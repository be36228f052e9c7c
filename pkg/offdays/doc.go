// Package offdays manages the school closure calendar.
//
// Explicit off-days are stored per school and date. The fixed weekly
// closures (Wednesday, Saturday, Sunday) are never stored; ListClosedDates
// merges them in when the calendar is shown to parents.
//
// Range lookups used for pricing are cached in an expirable LRU. Every
// write drops the cached ranges of the schools it touched.
package offdays
