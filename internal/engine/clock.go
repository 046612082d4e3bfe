package engine

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const minutesPerDay = 24 * 60

// ParseClock converts an "HH:MM" schedule field into minutes after midnight.
// A nil or blank value means no constraint. Non-numeric components count as 0
// and a trailing seconds component ("07:45:00") is ignored. Input without any
// numeric component, or outside a single day, yields nil.
func ParseClock(s *string) *int {
	if s == nil {
		return nil
	}
	raw := strings.TrimSpace(*s)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ":")
	hours, okH := atoiOrZero(parts[0])
	minutes, okM := 0, false
	if len(parts) > 1 {
		minutes, okM = atoiOrZero(parts[1])
	}
	if !okH && !okM {
		return nil
	}
	v := hours*60 + minutes
	if v < 0 || v >= minutesPerDay {
		return nil
	}
	return &v
}

func atoiOrZero(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// MinuteOf returns the minute of day of t in loc.
func MinuteOf(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Hour()*60 + t.Minute()
}

// Instant is a point in school-local time reduced to the calendar date and
// minute of day the classifiers compare against.
type Instant struct {
	Date   civil.Date
	Minute int
}

// At reduces now to an Instant in loc.
func At(now time.Time, loc *time.Location) Instant {
	local := now.In(loc)
	return Instant{Date: civil.DateOf(local), Minute: local.Hour()*60 + local.Minute()}
}

// Window holds the two cutoffs configured for one schedule day.
type Window struct {
	OnTimeEnd     *int
	AttendanceEnd *int
}

// IsLate reports whether a check-in at minute missed the on-time cutoff.
// Without an on-time cutoff nobody is late.
func (w Window) IsLate(minute int) bool {
	return w.OnTimeEnd != nil && minute > *w.OnTimeEnd
}

// Closed reports whether attendance for day can no longer be recorded at the
// given instant. Past days are closed, future days are open, and today closes
// once the attendance cutoff has passed. A day without a cutoff stays open
// until it is over.
func (w Window) Closed(day civil.Date, at Instant) bool {
	switch {
	case day.Before(at.Date):
		return true
	case day.After(at.Date):
		return false
	}
	return w.AttendanceEnd != nil && at.Minute > *w.AttendanceEnd
}

// dayBounds returns the half-open [start, end) interval covering from..to in loc.
func dayBounds(from, to civil.Date, loc *time.Location) (time.Time, time.Time) {
	return from.In(loc), to.AddDays(1).In(loc)
}
