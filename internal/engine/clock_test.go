package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name string
		in   *string
		want *int
	}{
		{name: "nil", in: nil, want: nil},
		{name: "blank", in: str("  "), want: nil},
		{name: "hh:mm", in: str("08:00"), want: intp(480)},
		{name: "single digit hour", in: str("7:45"), want: intp(465)},
		{name: "postgres time with seconds", in: str("07:45:00"), want: intp(465)},
		{name: "missing minutes", in: str("08"), want: intp(480)},
		{name: "non-numeric hour", in: str("xx:30"), want: intp(30)},
		{name: "non-numeric minutes", in: str("08:xx"), want: intp(480)},
		{name: "nothing numeric", in: str("noon"), want: nil},
		{name: "past midnight", in: str("24:00"), want: nil},
		{name: "negative", in: str("-1:00"), want: nil},
		{name: "last minute", in: str("23:59"), want: intp(1439)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClock(tt.in))
		})
	}
}

func TestMinuteOfUsesSchoolTimezone(t *testing.T) {
	// 23:50 UTC is 07:50 the next morning in Manila.
	utc := local("2024-03-02", "07:50").UTC()
	assert.Equal(t, 23*60+50, utc.Hour()*60+utc.Minute())
	assert.Equal(t, 470, MinuteOf(utc, manila))
	assert.Equal(t, mustDate("2024-03-02"), At(utc, manila).Date)
}

func TestWindowIsLate(t *testing.T) {
	w := Window{OnTimeEnd: intp(465)}
	assert.False(t, w.IsLate(460))
	assert.False(t, w.IsLate(465), "the cutoff minute itself is on time")
	assert.True(t, w.IsLate(466))
	assert.False(t, Window{}.IsLate(1000), "no on-time cutoff means nobody is late")
}

func TestWindowClosed(t *testing.T) {
	day := mustDate("2024-03-01")
	withEnd := Window{AttendanceEnd: intp(480)}

	tests := []struct {
		name string
		win  Window
		at   Instant
		want bool
	}{
		{name: "past day", win: withEnd, at: Instant{Date: day.AddDays(1), Minute: 0}, want: true},
		{name: "future day", win: withEnd, at: Instant{Date: day.AddDays(-1), Minute: 1439}, want: false},
		{name: "before cutoff", win: withEnd, at: Instant{Date: day, Minute: 450}, want: false},
		{name: "at cutoff", win: withEnd, at: Instant{Date: day, Minute: 480}, want: false},
		{name: "after cutoff", win: withEnd, at: Instant{Date: day, Minute: 481}, want: true},
		{name: "no cutoff today", win: Window{}, at: Instant{Date: day, Minute: 1439}, want: false},
		{name: "no cutoff past day", win: Window{}, at: Instant{Date: day.AddDays(1), Minute: 0}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.win.Closed(day, tt.at))
		})
	}
}

func TestScheduleDayWindow(t *testing.T) {
	d := ScheduleDay{OnTimeEnd: str("07:45"), AttendanceEnd: str("bogus")}
	w := d.Window()
	assert.Equal(t, intp(465), w.OnTimeEnd)
	assert.Nil(t, w.AttendanceEnd, "malformed cutoff is treated as no constraint")
}
