package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

var (
	manila     = time.FixedZone("PHT", 8*60*60)
	errOffline = errors.New("connection refused")
	bscs1A     = Section{Program: "BSCS", Year: "1st Year", Section: "A"}
	bscs1B     = Section{Program: "BSCS", Year: "1st Year", Section: "B"}
	bsit2A     = Section{Program: "BSIT", Year: "2nd Year", Section: "A"}
)

type fakeSource struct {
	mu          sync.Mutex
	days        []ScheduleDay
	students    []PersonRequirement
	teachers    []PersonRequirement
	sections    []SectionRequirement
	members     map[Section][]string
	records     []Record
	roster      []RosterMember
	errs        map[string]error
	memberCalls map[Section]int
	recordCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		members:     map[Section][]string{},
		errs:        map[string]error{},
		memberCalls: map[Section]int{},
	}
}

func inRange(d, from, to civil.Date) bool { return !d.Before(from) && !d.After(to) }

func (f *fakeSource) ScheduleDays(_ context.Context, from, to civil.Date) ([]ScheduleDay, error) {
	if err := f.errs["schedule_days"]; err != nil {
		return nil, err
	}
	var out []ScheduleDay
	for _, d := range f.days {
		if inRange(d.Date, from, to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeSource) StudentRequirements(_ context.Context, from, to civil.Date) ([]PersonRequirement, error) {
	if err := f.errs["student_requirements"]; err != nil {
		return nil, err
	}
	return filterPeople(f.students, from, to), nil
}

func (f *fakeSource) TeacherRequirements(_ context.Context, from, to civil.Date) ([]PersonRequirement, error) {
	if err := f.errs["teacher_requirements"]; err != nil {
		return nil, err
	}
	return filterPeople(f.teachers, from, to), nil
}

func filterPeople(in []PersonRequirement, from, to civil.Date) []PersonRequirement {
	var out []PersonRequirement
	for _, r := range in {
		if inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeSource) SectionRequirements(_ context.Context, from, to civil.Date) ([]SectionRequirement, error) {
	if err := f.errs["section_requirements"]; err != nil {
		return nil, err
	}
	var out []SectionRequirement
	for _, r := range f.sections {
		if inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) SectionMembers(_ context.Context, sec Section) ([]string, error) {
	f.mu.Lock()
	f.memberCalls[sec]++
	f.mu.Unlock()
	if err := f.errs["section_members:"+sec.Section]; err != nil {
		return nil, err
	}
	return f.members[sec], nil
}

func (f *fakeSource) Records(_ context.Context, personIDs []string, from, to time.Time) ([]Record, error) {
	f.mu.Lock()
	f.recordCalls++
	f.mu.Unlock()
	if err := f.errs["records"]; err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, id := range personIDs {
		want[id] = true
	}
	var out []Record
	for _, r := range f.records {
		if personIDs != nil && !want[r.PersonID] {
			continue
		}
		if r.CreatedAt.Before(from) || !r.CreatedAt.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSource) Roster(_ context.Context, filter RosterFilter) ([]RosterMember, error) {
	if err := f.errs["roster"]; err != nil {
		return nil, err
	}
	var out []RosterMember
	for _, m := range f.roster {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) flagDay(date string, onTime, end string) {
	day := ScheduleDay{Date: mustDate(date), FlagDay: true}
	if onTime != "" {
		day.OnTimeEnd = str(onTime)
	}
	if end != "" {
		day.AttendanceEnd = str(end)
	}
	f.days = append(f.days, day)
}

func (f *fakeSource) record(id, person, date, clock string, verified bool) {
	f.records = append(f.records, Record{ID: id, PersonID: person, CreatedAt: local(date, clock), Verified: verified})
}

func mustDate(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func str(s string) *string { return &s }

func intp(n int) *int { return &n }

// local returns date+clock in the test school timezone.
func local(date, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, manila)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestEngine(t *testing.T, src Source) *Engine {
	t.Helper()
	return New(src, Options{Location: manila})
}
