package credits

import "time"

// dayLayout is the canonical calendar day encoding stored on accounts.
const dayLayout = "2006-01-02"

// Day is a calendar day (YYYY-MM-DD) in the ledger timezone.
type Day string

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(dayLayout))
}

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	parsed, errParse := time.Parse(dayLayout, s)
	if errParse != nil {
		return "", errParse
	}
	return Day(parsed.Format(dayLayout)), nil
}

// String returns the day encoding.
func (d Day) String() string { return string(d) }

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool { return d < other }

// Clock supplies the current time to day-boundary logic.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
