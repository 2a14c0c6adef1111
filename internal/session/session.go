// Package session provides trading-day boundary helpers for the simulated
// A-share session. The session boundary is the moment the previous close
// reference resets for percentage-change computations.
package session

import "time"

// CST is China Standard Time (UTC+8), the exchange time zone.
var CST = time.FixedZone("CST", 8*3600)

// Session boundary in CST.
const (
	OpenHour   = 9
	OpenMinute = 30
	CloseHour  = 15
	CloseMinute = 0
)

// BoundaryFor returns the session-open boundary (09:30 CST) on the calendar
// day of t. Ticks at or after the boundary belong to that day's session.
func BoundaryFor(t time.Time) time.Time {
	cst := t.In(CST)
	return time.Date(cst.Year(), cst.Month(), cst.Day(), OpenHour, OpenMinute, 0, 0, CST)
}

// IsTradingDay reports whether t falls on a weekday.
func IsTradingDay(t time.Time) bool {
	wd := t.In(CST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// SameDay reports whether a and b fall on the same calendar day in CST.
func SameDay(a, b time.Time) bool {
	y1, m1, d1 := a.In(CST).Date()
	y2, m2, d2 := b.In(CST).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// CrossedBoundary reports whether the session boundary lies in (prev, now]:
// true exactly once per day, on the first observation at or after 09:30 CST.
func CrossedBoundary(prev, now time.Time) bool {
	if !now.After(prev) {
		return false
	}
	b := BoundaryFor(now)
	return !now.Before(b) && prev.Before(b)
}
