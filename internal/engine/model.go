package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// Role distinguishes the two audiences a schedule can target.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Section identifies a class by program, year level and section letter.
type Section struct {
	Program string `json:"program"`
	Year    string `json:"year"`
	Section string `json:"section"`
}

func (s Section) String() string {
	return fmt.Sprintf("%s %s-%s", s.Program, s.Year, s.Section)
}

// ScheduleDay is one row of the attendance calendar. The cutoffs are kept in
// their stored "HH:MM" form and parsed by Window.
type ScheduleDay struct {
	Date          civil.Date
	FlagDay       bool
	OnTimeEnd     *string
	AttendanceEnd *string
}

// Window parses the day's cutoffs.
func (d ScheduleDay) Window() Window {
	return Window{
		OnTimeEnd:     ParseClock(d.OnTimeEnd),
		AttendanceEnd: ParseClock(d.AttendanceEnd),
	}
}

// PersonRequirement declares that a student or teacher must attend on Date.
type PersonRequirement struct {
	Date     civil.Date
	PersonID string
}

// SectionRequirement declares that every current member of Section must
// attend on Date.
type SectionRequirement struct {
	Date    civil.Date
	Section Section
}

// Record is a check-in written by the scanning subsystem.
type Record struct {
	ID        string
	PersonID  string
	CreatedAt time.Time
	Verified  bool
}

// RosterMember is a person with a profile and a current class placement.
type RosterMember struct {
	PersonID string  `json:"person_id"`
	Name     string  `json:"name"`
	Section  Section `json:"section"`
	Role     Role    `json:"role"`
}

// RosterFilter narrows a roster query. Empty fields match everything.
type RosterFilter struct {
	Program string `json:"program,omitempty"`
	Year    string `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
	Role    Role   `json:"role,omitempty"`
}

// Matches reports whether m passes the filter.
func (f RosterFilter) Matches(m RosterMember) bool {
	return (f.Program == "" || f.Program == m.Section.Program) &&
		(f.Year == "" || f.Year == m.Section.Year) &&
		(f.Section == "" || f.Section == m.Section.Section) &&
		(f.Role == "" || f.Role == m.Role)
}

// Source is read access to the remote tables the engine derives from.
// Date ranges are inclusive; the Records interval is half-open. A nil
// personIDs slice asks for every person's records.
type Source interface {
	ScheduleDays(ctx context.Context, from, to civil.Date) ([]ScheduleDay, error)
	StudentRequirements(ctx context.Context, from, to civil.Date) ([]PersonRequirement, error)
	TeacherRequirements(ctx context.Context, from, to civil.Date) ([]PersonRequirement, error)
	SectionRequirements(ctx context.Context, from, to civil.Date) ([]SectionRequirement, error)
	SectionMembers(ctx context.Context, sec Section) ([]string, error)
	Records(ctx context.Context, personIDs []string, from, to time.Time) ([]Record, error)
	Roster(ctx context.Context, filter RosterFilter) ([]RosterMember, error)
}

// RecordIndex holds the authoritative record per person per day: the
// earliest created one. Later scans on the same day are ignored.
type RecordIndex map[recordKey]Record

type recordKey struct {
	person string
	date   civil.Date
}

// IndexEarliest builds a RecordIndex from raw records, bucketing by the
// school-local calendar date of CreatedAt.
func IndexEarliest(records []Record, loc *time.Location) RecordIndex {
	idx := make(RecordIndex, len(records))
	for _, r := range records {
		k := recordKey{person: r.PersonID, date: civil.DateOf(r.CreatedAt.In(loc))}
		cur, ok := idx[k]
		if !ok || r.CreatedAt.Before(cur.CreatedAt) || (r.CreatedAt.Equal(cur.CreatedAt) && r.ID < cur.ID) {
			idx[k] = r
		}
	}
	return idx
}

// Get returns the authoritative record for person on date.
func (idx RecordIndex) Get(person string, date civil.Date) (*Record, bool) {
	r, ok := idx[recordKey{person: person, date: date}]
	if !ok {
		return nil, false
	}
	return &r, true
}

type idSet map[string]struct{}

func (s idSet) add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
