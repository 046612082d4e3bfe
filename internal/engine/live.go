package engine

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"schoolattend/internal/metrics"
)

// LiveResult is the live status of one person on one date. Status is empty
// when the person is not targeted or when the records could not be read.
type LiveResult struct {
	PersonID    string     `json:"person_id"`
	Date        civil.Date `json:"date"`
	Targeted    bool       `json:"targeted"`
	Status      LiveStatus `json:"status,omitempty"`
	RecordID    string     `json:"record_id,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	Degraded    bool       `json:"degraded,omitempty"`
}

// LiveStatus classifies personID on date as of now.
func (e *Engine) LiveStatus(ctx context.Context, personID string, date civil.Date, now time.Time) LiveResult {
	res := LiveResult{PersonID: personID, Date: date}
	sched := e.resolveRange(ctx, date, date)
	aud := sched.audienceOn(date)
	res.Degraded = aud.Degraded
	if !aud.Has(personID) {
		return res
	}
	res.Targeted = true

	start, end := dayBounds(date, date, e.loc)
	recs, err := e.src.Records(ctx, []string{personID}, start, end)
	if err != nil {
		e.degraded("records", err, zap.String("person_id", personID), zap.Stringer("date", date))
		res.Degraded = true
		return res
	}
	rec, _ := IndexEarliest(recs, e.loc).Get(personID, date)
	status, _ := ClassifyLive(true, rec, sched.days[date].Window(), date, At(now, e.loc), e.loc)
	res.Status = status
	if rec != nil {
		res.RecordID = rec.ID
		at := rec.CreatedAt
		res.CheckedInAt = &at
	}
	metrics.LiveStatuses.WithLabelValues(string(status)).Inc()
	return res
}

// BoardEntry is one targeted section member on a section board.
type BoardEntry struct {
	PersonID    string     `json:"person_id"`
	Name        string     `json:"name"`
	Status      LiveStatus `json:"status"`
	RecordID    string     `json:"record_id,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

// Board is the captain/adviser view of a section on one date. Members who
// are not targeted that day are left out.
type Board struct {
	Section  Section            `json:"section"`
	Date     civil.Date         `json:"date"`
	FlagDay  bool               `json:"flag_day"`
	Captain  string             `json:"captain,omitempty"`
	Entries  []BoardEntry       `json:"entries"`
	Counts   map[LiveStatus]int `json:"counts"`
	Degraded bool               `json:"degraded,omitempty"`
}

// SectionBoard classifies every current student of sec on date.
func (e *Engine) SectionBoard(ctx context.Context, sec Section, date civil.Date, now time.Time) Board {
	board := Board{Section: sec, Date: date, Entries: []BoardEntry{}, Counts: map[LiveStatus]int{}}

	roster, err := e.src.Roster(ctx, RosterFilter{Program: sec.Program, Year: sec.Year, Section: sec.Section, Role: RoleStudent})
	if err != nil {
		e.degraded("roster", err, zap.Stringer("section", sec))
		board.Degraded = true
		return board
	}
	roster = cleanRoster(roster)

	sched := e.resolveRange(ctx, date, date)
	aud := sched.audienceOn(date)
	board.FlagDay = aud.FlagDay
	board.Degraded = aud.Degraded

	var targeted []RosterMember
	for _, m := range roster {
		if aud.Targets(m) {
			targeted = append(targeted, m)
		}
	}
	if len(targeted) == 0 {
		return board
	}

	ids := make([]string, len(targeted))
	for i, m := range targeted {
		ids[i] = m.PersonID
	}
	start, end := dayBounds(date, date, e.loc)
	recs, err := e.src.Records(ctx, ids, start, end)
	if err != nil {
		e.degraded("records", err, zap.Stringer("section", sec), zap.Stringer("date", date))
		board.Degraded = true
		return board
	}
	idx := IndexEarliest(recs, e.loc)
	win := sched.days[date].Window()
	at := At(now, e.loc)

	for _, m := range targeted {
		rec, _ := idx.Get(m.PersonID, date)
		status, _ := ClassifyLive(true, rec, win, date, at, e.loc)
		entry := BoardEntry{PersonID: m.PersonID, Name: m.Name, Status: status}
		if rec != nil {
			entry.RecordID = rec.ID
			t := rec.CreatedAt
			entry.CheckedInAt = &t
		}
		board.Entries = append(board.Entries, entry)
		board.Counts[status]++
		metrics.LiveStatuses.WithLabelValues(string(status)).Inc()
	}
	sort.Slice(board.Entries, func(i, j int) bool {
		if board.Entries[i].Name != board.Entries[j].Name {
			return board.Entries[i].Name < board.Entries[j].Name
		}
		return board.Entries[i].PersonID < board.Entries[j].PersonID
	})
	return board
}

// cleanRoster drops members without a profile and duplicate rows.
func cleanRoster(in []RosterMember) []RosterMember {
	seen := make(idSet, len(in))
	out := make([]RosterMember, 0, len(in))
	for _, m := range in {
		if m.PersonID == "" || m.Name == "" || seen.has(m.PersonID) {
			continue
		}
		seen.add(m.PersonID)
		out = append(out, m)
	}
	return out
}
