package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLiveExcludesUntargeted(t *testing.T) {
	day := mustDate("2024-03-01")
	rec := &Record{ID: "r1", PersonID: "x", CreatedAt: local("2024-03-01", "07:30"), Verified: true}

	status, ok := ClassifyLive(false, rec, Window{}, day, Instant{Date: day, Minute: 600}, manila)
	assert.False(t, ok)
	assert.Empty(t, status)
}

func TestClassifyLiveWaitingThenAbsent(t *testing.T) {
	// Attendance closes at 08:00 and student X has not checked in.
	day := mustDate("2024-03-01")
	win := ScheduleDay{Date: day, FlagDay: true, AttendanceEnd: str("08:00")}.Window()

	status, ok := ClassifyLive(true, nil, win, day, At(local("2024-03-01", "07:30"), manila), manila)
	assert.True(t, ok)
	assert.Equal(t, LiveWaiting, status)

	status, _ = ClassifyLive(true, nil, win, day, At(local("2024-03-01", "08:00"), manila), manila)
	assert.Equal(t, LiveWaiting, status, "the cutoff minute is still inside the window")

	status, _ = ClassifyLive(true, nil, win, day, At(local("2024-03-01", "09:00"), manila), manila)
	assert.Equal(t, LiveAbsent, status)
}

func TestClassifyLivePresentOrLate(t *testing.T) {
	day := mustDate("2024-03-01")
	win := ScheduleDay{Date: day, FlagDay: true, OnTimeEnd: str("07:45"), AttendanceEnd: str("08:00")}.Window()
	now := At(local("2024-03-01", "10:00"), manila)

	tests := []struct {
		name  string
		clock string
		win   Window
		want  LiveStatus
	}{
		{name: "before on-time cutoff", clock: "07:40", win: win, want: LivePresent},
		{name: "at on-time cutoff", clock: "07:45", win: win, want: LivePresent},
		{name: "after on-time cutoff", clock: "07:50", win: win, want: LiveLate},
		{name: "after attendance cutoff still late", clock: "08:30", win: win, want: LiveLate},
		{name: "no on-time cutoff", clock: "09:59", win: Window{AttendanceEnd: intp(480)}, want: LivePresent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{ID: "r", PersonID: "x", CreatedAt: local("2024-03-01", tt.clock), Verified: true}
			status, ok := ClassifyLive(true, rec, tt.win, day, now, manila)
			assert.True(t, ok)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestClassifyLiveIgnoresUnverifiedRecord(t *testing.T) {
	day := mustDate("2024-03-01")
	win := Window{AttendanceEnd: intp(480)}
	rec := &Record{ID: "r", PersonID: "x", CreatedAt: local("2024-03-01", "07:10")}

	status, _ := ClassifyLive(true, rec, win, day, At(local("2024-03-01", "07:30"), manila), manila)
	assert.Equal(t, LiveWaiting, status)
	status, _ = ClassifyLive(true, rec, win, day, At(local("2024-03-01", "08:30"), manila), manila)
	assert.Equal(t, LiveAbsent, status)
}

func TestClassifyDay(t *testing.T) {
	day := mustDate("2024-03-01")
	win := Window{OnTimeEnd: intp(465), AttendanceEnd: intp(480)}
	verified := &Record{ID: "v", CreatedAt: local("2024-03-01", "07:50"), Verified: true}
	unverified := &Record{ID: "u", CreatedAt: local("2024-03-01", "07:10")}

	tests := []struct {
		name string
		rec  *Record
		at   Instant
		want DayOutcome
	}{
		{name: "verified", rec: verified, at: Instant{Date: day, Minute: 500}, want: DayOutcome{Kind: OutcomeRecorded, Status: DayVerified, Late: true}},
		{name: "unverified today in window", rec: unverified, at: Instant{Date: day, Minute: 470}, want: DayOutcome{Kind: OutcomeRecorded, Status: DayPending}},
		{name: "unverified today window closed", rec: unverified, at: Instant{Date: day, Minute: 481}, want: DayOutcome{Kind: OutcomeRecorded, Status: DayUnverified}},
		{name: "unverified past day", rec: unverified, at: Instant{Date: day.AddDays(3), Minute: 0}, want: DayOutcome{Kind: OutcomeRecorded, Status: DayUnverified}},
		{name: "missing past day", at: Instant{Date: day.AddDays(1), Minute: 0}, want: DayOutcome{Kind: OutcomeAbsent}},
		{name: "missing today in window", at: Instant{Date: day, Minute: 400}, want: DayOutcome{Kind: OutcomeWaiting, Status: DayPending}},
		{name: "missing today window closed", at: Instant{Date: day, Minute: 481}, want: DayOutcome{Kind: OutcomeAbsent}},
		{name: "future day", rec: verified, at: Instant{Date: day.AddDays(-1), Minute: 0}, want: DayOutcome{Kind: OutcomeUpcoming}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDay(tt.rec, win, day, tt.at, manila))
		})
	}
}

func TestDayStatusLiveMapping(t *testing.T) {
	assert.Equal(t, LivePresent, DayVerified.Live(false))
	assert.Equal(t, LiveLate, DayVerified.Live(true))
	assert.Equal(t, LiveWaiting, DayPending.Live(false))
	assert.Equal(t, LiveAbsent, DayUnverified.Live(false))
}

// Both vocabularies derive from the same windowing, so for any targeted day
// that has started the historical outcome maps onto the live status.
func TestClassifiersAgree(t *testing.T) {
	day := mustDate("2024-03-01")
	windows := []Window{
		{},
		{OnTimeEnd: intp(465)},
		{AttendanceEnd: intp(480)},
		{OnTimeEnd: intp(465), AttendanceEnd: intp(480)},
	}
	records := []*Record{
		nil,
		{ID: "a", CreatedAt: local("2024-03-01", "07:30"), Verified: true},
		{ID: "b", CreatedAt: local("2024-03-01", "07:55"), Verified: true},
		{ID: "c", CreatedAt: local("2024-03-01", "07:30")},
	}
	instants := []Instant{
		{Date: day, Minute: 420},
		{Date: day, Minute: 480},
		{Date: day, Minute: 481},
		{Date: day.AddDays(1), Minute: 0},
	}
	for _, w := range windows {
		for _, r := range records {
			for _, at := range instants {
				live, ok := ClassifyLive(true, r, w, day, at, manila)
				assert.True(t, ok)
				assert.Equal(t, live, ClassifyDay(r, w, day, at, manila).Live(), "window=%+v record=%+v at=%+v", w, r, at)
			}
		}
	}
}
