package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Audience is the set of people required to attend on Date. Students holds
// explicit student requirements plus members of required sections; Teachers
// holds explicit teacher requirements only.
type Audience struct {
	Date     civil.Date `json:"date"`
	FlagDay  bool       `json:"flag_day"`
	Students []string   `json:"students"`
	Teachers []string   `json:"teachers"`
	// Size is the number of distinct people targeted.
	Size     int  `json:"size"`
	Degraded bool `json:"degraded,omitempty"`

	students idSet
	teachers idSet
}

// Has reports whether id is targeted through either audience.
func (a Audience) Has(id string) bool { return a.HasStudent(id) || a.HasTeacher(id) }

func (a Audience) HasStudent(id string) bool { return a.students.has(id) }

func (a Audience) HasTeacher(id string) bool { return a.teachers.has(id) }

// Targets checks m against the audience matching its role.
func (a Audience) Targets(m RosterMember) bool {
	switch m.Role {
	case RoleStudent:
		return a.HasStudent(m.PersonID)
	case RoleTeacher:
		return a.HasTeacher(m.PersonID)
	}
	return a.Has(m.PersonID)
}

func distinctCount(students, teachers idSet) int {
	n := len(students)
	for id := range teachers {
		if !students.has(id) {
			n++
		}
	}
	return n
}

func emptyAudience(date civil.Date, flag, degraded bool) Audience {
	return Audience{
		Date:     date,
		FlagDay:  flag,
		Students: []string{},
		Teachers: []string{},
		Degraded: degraded,
	}
}

// schedule is the resolved calendar for a date range.
type schedule struct {
	days      map[civil.Date]ScheduleDay
	audiences map[civil.Date]Audience
	degraded  bool
}

func (s schedule) audienceOn(d civil.Date) Audience {
	if a, ok := s.audiences[d]; ok {
		return a
	}
	day, ok := s.days[d]
	return emptyAudience(d, ok && day.FlagDay, s.degraded)
}

// dates returns the flag days of the range in ascending order.
func (s schedule) dates() []civil.Date {
	out := make([]civil.Date, 0, len(s.audiences))
	for d := range s.audiences {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ResolveAudience returns who is required to attend on date.
func (e *Engine) ResolveAudience(ctx context.Context, date civil.Date) Audience {
	return e.resolveRange(ctx, date, date).audienceOn(date)
}

func (e *Engine) resolveRange(ctx context.Context, from, to civil.Date) schedule {
	var (
		days     []ScheduleDay
		students []PersonRequirement
		teachers []PersonRequirement
		sections []SectionRequirement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		days, err = e.src.ScheduleDays(gctx, from, to)
		return wrapSource("schedule_days", err)
	})
	g.Go(func() (err error) {
		students, err = e.src.StudentRequirements(gctx, from, to)
		return wrapSource("student_requirements", err)
	})
	g.Go(func() (err error) {
		teachers, err = e.src.TeacherRequirements(gctx, from, to)
		return wrapSource("teacher_requirements", err)
	})
	g.Go(func() (err error) {
		sections, err = e.src.SectionRequirements(gctx, from, to)
		return wrapSource("section_requirements", err)
	})
	if err := g.Wait(); err != nil {
		source := "requirements"
		var se *sourceError
		if errors.As(err, &se) {
			source = se.source
		}
		e.degraded(source, err, zap.Stringer("from", from), zap.Stringer("to", to))
		return schedule{degraded: true}
	}

	type builder struct {
		students idSet
		teachers idSet
		failed   bool
	}
	sched := schedule{
		days:      make(map[civil.Date]ScheduleDay, len(days)),
		audiences: make(map[civil.Date]Audience),
	}
	builders := make(map[civil.Date]*builder)
	for _, d := range days {
		sched.days[d.Date] = d
		if d.FlagDay {
			builders[d.Date] = &builder{students: idSet{}, teachers: idSet{}}
		} else {
			delete(builders, d.Date)
		}
	}

	for _, r := range students {
		if b, ok := builders[r.Date]; ok {
			b.students.add(r.PersonID)
		}
	}
	for _, r := range teachers {
		if b, ok := builders[r.Date]; ok {
			b.teachers.add(r.PersonID)
		}
	}

	needed := make(map[Section]struct{})
	for _, r := range sections {
		if _, ok := builders[r.Date]; ok {
			needed[r.Section] = struct{}{}
		}
	}
	members, failed := e.expandSections(ctx, needed)
	for _, r := range sections {
		b, ok := builders[r.Date]
		if !ok {
			continue
		}
		if failed[r.Section] {
			b.failed = true
			continue
		}
		for _, id := range members[r.Section] {
			b.students.add(id)
		}
	}

	for date, b := range builders {
		if b.failed {
			sched.audiences[date] = emptyAudience(date, true, true)
			sched.degraded = true
			continue
		}
		sched.audiences[date] = Audience{
			Date:     date,
			FlagDay:  true,
			Students: b.students.sorted(),
			Teachers: b.teachers.sorted(),
			Size:     distinctCount(b.students, b.teachers),
			students: b.students,
			teachers: b.teachers,
		}
	}
	return sched
}

// expandSections fetches the current roster of every needed section once.
// Sections whose lookup failed are reported in the second map.
func (e *Engine) expandSections(ctx context.Context, needed map[Section]struct{}) (map[Section][]string, map[Section]bool) {
	var (
		mu      sync.Mutex
		members = make(map[Section][]string, len(needed))
		failed  = make(map[Section]bool)
		g       errgroup.Group
	)
	g.SetLimit(e.sectionLimit)
	for sec := range needed {
		sec := sec
		g.Go(func() error {
			ids, err := e.src.SectionMembers(ctx, sec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[sec] = true
				e.degraded("section_members", err, zap.Stringer("section", sec))
				return nil
			}
			members[sec] = ids
			return nil
		})
	}
	_ = g.Wait()
	return members, failed
}
