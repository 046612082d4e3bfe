package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

// DefaultHistoryDays is the look-back used by the personal ledger.
const DefaultHistoryDays = 60

// HistoryEntry is a targeted day that is not (yet) an absence. RecordID is
// empty for a day still waiting for its first check-in.
type HistoryEntry struct {
	Date        civil.Date `json:"date"`
	Status      DayStatus  `json:"status"`
	Late        bool       `json:"late"`
	RecordID    string     `json:"record_id,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

// History is one person's attendance ledger over a date range, newest first.
type History struct {
	PersonID     string         `json:"person_id"`
	From         civil.Date     `json:"from"`
	To           civil.Date     `json:"to"`
	Entries      []HistoryEntry `json:"entries"`
	Absent       []civil.Date   `json:"absent"`
	PresentCount int            `json:"present_count"`
	AbsentCount  int            `json:"absent_count"`
	Percentage   int            `json:"percentage"`
	Degraded     bool           `json:"degraded,omitempty"`
}

// HistoryRange returns the last days dates, today included.
func HistoryRange(now time.Time, loc *time.Location, days int) (civil.Date, civil.Date) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	today := At(now, loc).Date
	return today.AddDays(-(days - 1)), today
}

// History builds the ledger of personID between from and to inclusive.
// Dates after today are not evaluated.
func (e *Engine) History(ctx context.Context, personID string, from, to civil.Date, now time.Time) History {
	at := At(now, e.loc)
	h := History{PersonID: personID, From: from, To: to, Entries: []HistoryEntry{}, Absent: []civil.Date{}}
	if to.After(at.Date) {
		to = at.Date
	}
	if to.Before(from) {
		return h
	}

	sched := e.resolveRange(ctx, from, to)
	h.Degraded = sched.degraded
	var days []ScheduleDay
	for _, d := range sched.dates() {
		if sched.audiences[d].Has(personID) {
			days = append(days, sched.days[d])
		}
	}
	if len(days) == 0 {
		return h
	}

	start, end := dayBounds(from, to, e.loc)
	recs, err := e.src.Records(ctx, []string{personID}, start, end)
	if err != nil {
		e.degraded("records", err, zap.String("person_id", personID))
		h.Degraded = true
		return h
	}
	fillHistory(&h, days, IndexEarliest(recs, e.loc), at, e.loc)
	return h
}

// fillHistory classifies each targeted day into the ledger and derives the
// counts.
func fillHistory(h *History, days []ScheduleDay, idx RecordIndex, at Instant, loc *time.Location) {
	for _, d := range days {
		rec, _ := idx.Get(h.PersonID, d.Date)
		out := ClassifyDay(rec, d.Window(), d.Date, at, loc)
		switch out.Kind {
		case OutcomeUpcoming:
			continue
		case OutcomeAbsent:
			h.Absent = append(h.Absent, d.Date)
			continue
		}
		entry := HistoryEntry{Date: d.Date, Status: out.Status, Late: out.Late}
		if rec != nil {
			entry.RecordID = rec.ID
			t := rec.CreatedAt
			entry.CheckedInAt = &t
		}
		if out.Status == DayVerified {
			h.PresentCount++
		}
		h.Entries = append(h.Entries, entry)
	}
	sort.Slice(h.Entries, func(i, j int) bool { return h.Entries[i].Date.After(h.Entries[j].Date) })
	sort.Slice(h.Absent, func(i, j int) bool { return h.Absent[i].After(h.Absent[j]) })
	h.AbsentCount = len(h.Absent)
	h.Percentage = percentage(h.PresentCount, h.PresentCount+h.AbsentCount)
}

func percentage(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
