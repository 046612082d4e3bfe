package engine

import (
	"time"

	"cloud.google.com/go/civil"
)

// LiveStatus answers "what is happening right now" for a targeted person.
type LiveStatus string

const (
	LiveWaiting LiveStatus = "Waiting"
	LivePresent LiveStatus = "Present"
	LiveLate    LiveStatus = "Late"
	LiveAbsent  LiveStatus = "Absent"
)

// DayStatus labels a recorded day in a person's own ledger.
type DayStatus string

const (
	DayVerified   DayStatus = "Verified"
	DayPending    DayStatus = "Pending"
	DayUnverified DayStatus = "Unverified"
)

// Live maps a ledger label onto the live vocabulary. late only matters for
// verified days.
func (s DayStatus) Live(late bool) LiveStatus {
	switch s {
	case DayVerified:
		if late {
			return LiveLate
		}
		return LivePresent
	case DayPending:
		return LiveWaiting
	}
	return LiveAbsent
}

// ClassifyLive assigns the live status of a person on day. rec is the
// person's earliest record that day, if any. The boolean is false when the
// person is not targeted and must be left out of the view entirely.
func ClassifyLive(targeted bool, rec *Record, win Window, day civil.Date, at Instant, loc *time.Location) (LiveStatus, bool) {
	if !targeted {
		return "", false
	}
	if rec != nil && rec.Verified {
		if win.IsLate(MinuteOf(rec.CreatedAt, loc)) {
			return LiveLate, true
		}
		return LivePresent, true
	}
	if win.Closed(day, at) {
		return LiveAbsent, true
	}
	return LiveWaiting, true
}

// OutcomeKind says how a targeted day lands in a person's history.
type OutcomeKind string

const (
	OutcomeRecorded OutcomeKind = "recorded"
	OutcomeWaiting  OutcomeKind = "waiting"
	OutcomeAbsent   OutcomeKind = "absent"
	OutcomeUpcoming OutcomeKind = "upcoming"
)

// DayOutcome is the historical classification of one targeted day.
type DayOutcome struct {
	Kind   OutcomeKind
	Status DayStatus
	Late   bool
}

// Live maps the outcome onto the live vocabulary.
func (o DayOutcome) Live() LiveStatus {
	switch o.Kind {
	case OutcomeRecorded:
		return o.Status.Live(o.Late)
	case OutcomeAbsent:
		return LiveAbsent
	}
	return LiveWaiting
}

// ClassifyDay assigns the historical status of a targeted day. Future days
// are upcoming and not evaluated. A day still open with no record is waiting
// and reported as Pending.
func ClassifyDay(rec *Record, win Window, day civil.Date, at Instant, loc *time.Location) DayOutcome {
	if day.After(at.Date) {
		return DayOutcome{Kind: OutcomeUpcoming}
	}
	closed := win.Closed(day, at)
	if rec != nil {
		out := DayOutcome{Kind: OutcomeRecorded, Late: win.IsLate(MinuteOf(rec.CreatedAt, loc))}
		switch {
		case rec.Verified:
			out.Status = DayVerified
		case !closed:
			out.Status = DayPending
		default:
			out.Status = DayUnverified
		}
		return out
	}
	if closed {
		return DayOutcome{Kind: OutcomeAbsent}
	}
	return DayOutcome{Kind: OutcomeWaiting, Status: DayPending}
}
