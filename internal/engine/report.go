package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"schoolattend/internal/metrics"
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing d.
func MonthOf(d civil.Date) Month { return Month{Year: d.Year, Month: d.Month} }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) First() civil.Date { return civil.Date{Year: m.Year, Month: m.Month, Day: 1} }

func (m Month) Last() civil.Date {
	next := civil.DateOf(m.First().In(time.UTC).AddDate(0, 1, 0))
	return next.AddDays(-1)
}

func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ReportRequest selects the month and roster slice of a monthly report.
type ReportRequest struct {
	Month  Month        `json:"month"`
	Filter RosterFilter `json:"filter"`
}

// PersonSummary holds one person's counts over the report range.
// Clamped is set when present+late exceeded the scheduled days and the
// absence count had to be floored at zero.
type PersonSummary struct {
	PersonID       string  `json:"person_id"`
	Name           string  `json:"name"`
	Section        Section `json:"section"`
	Role           Role    `json:"role"`
	TotalScheduled int     `json:"total_scheduled"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Rate           int     `json:"rate"`
	Clamped        bool    `json:"clamped,omitempty"`
}

// GroupSummary sums person summaries for a class, a program or the whole
// report.
type GroupSummary struct {
	Program        string `json:"program,omitempty"`
	Year           string `json:"year,omitempty"`
	Section        string `json:"section,omitempty"`
	Members        int    `json:"members"`
	TotalScheduled int    `json:"total_scheduled"`
	Present        int    `json:"present"`
	Late           int    `json:"late"`
	Absent         int    `json:"absent"`
	Rate           int    `json:"rate"`
}

func (g *GroupSummary) add(p PersonSummary) {
	g.Members++
	g.TotalScheduled += p.TotalScheduled
	g.Present += p.Present
	g.Late += p.Late
	g.Absent += p.Absent
	g.Rate = percentage(g.Present+g.Late, g.TotalScheduled)
}

// DateBreakdown lists who was present, late or absent on one scheduled date.
type DateBreakdown struct {
	Date    civil.Date `json:"date"`
	Present []string   `json:"present"`
	Late    []string   `json:"late"`
	Absent  []string   `json:"absent"`
}

// MonthlyReport is the roll-up of a roster over one month. Classes, Programs
// and Totals sum students only; teachers are rolled up in Teachers.
type MonthlyReport struct {
	Month    Month           `json:"month"`
	Filter   RosterFilter    `json:"filter"`
	AsOf     *civil.Date     `json:"as_of,omitempty"`
	People   []PersonSummary `json:"people"`
	Classes  []GroupSummary  `json:"classes"`
	Programs []GroupSummary  `json:"programs"`
	Dates    []DateBreakdown `json:"dates"`
	Totals   GroupSummary    `json:"totals"`
	Teachers GroupSummary    `json:"teachers"`
	Degraded bool            `json:"degraded,omitempty"`
}

// Summarize reconciles scheduled days with confirmed attendance.
func Summarize(total, present, late int) (absent int, clamped bool) {
	absent = total - present - late
	if absent < 0 {
		return 0, true
	}
	return absent, false
}

// MonthlyReport builds the report for req as of now. Only verified records
// count; a date is evaluated once its attendance window has closed.
func (e *Engine) MonthlyReport(ctx context.Context, req ReportRequest, now time.Time) MonthlyReport {
	started := time.Now()
	defer func() { metrics.ReportDuration.Observe(time.Since(started).Seconds()) }()

	rep := MonthlyReport{
		Month:    req.Month,
		Filter:   req.Filter,
		People:   []PersonSummary{},
		Classes:  []GroupSummary{},
		Programs: []GroupSummary{},
		Dates:    []DateBreakdown{},
	}
	at := At(now, e.loc)
	from, to := req.Month.First(), req.Month.Last()
	if from.After(at.Date) {
		return rep
	}
	if to.After(at.Date) {
		to = at.Date
	}
	asOf := to
	rep.AsOf = &asOf

	roster, err := e.src.Roster(ctx, req.Filter)
	if err != nil {
		e.degraded("roster", err, zap.Stringer("month", req.Month))
		rep.Degraded = true
		return rep
	}
	roster = cleanRoster(roster)
	if len(roster) == 0 {
		return rep
	}

	sched := e.resolveRange(ctx, from, to)
	ids := make([]string, len(roster))
	for i, m := range roster {
		ids[i] = m.PersonID
	}
	start, end := dayBounds(from, to, e.loc)
	recs, err := e.src.Records(ctx, ids, start, end)
	if err != nil {
		e.degraded("records", err, zap.Stringer("month", req.Month))
		rep.Degraded = true
		return rep
	}
	aggregate(&rep, roster, sched, IndexEarliest(recs, e.loc), at, e.loc)
	rep.Degraded = rep.Degraded || sched.degraded
	return rep
}

func aggregate(rep *MonthlyReport, roster []RosterMember, sched schedule, idx RecordIndex, at Instant, loc *time.Location) {
	summaries := make(map[string]*PersonSummary, len(roster))
	for _, m := range roster {
		summaries[m.PersonID] = &PersonSummary{PersonID: m.PersonID, Name: m.Name, Section: m.Section, Role: m.Role}
	}

	for _, d := range sched.dates() {
		win := sched.days[d].Window()
		if !win.Closed(d, at) {
			continue
		}
		aud := sched.audiences[d]
		bd := DateBreakdown{Date: d, Present: []string{}, Late: []string{}, Absent: []string{}}
		targeted := 0
		for _, m := range roster {
			if !aud.Targets(m) {
				continue
			}
			targeted++
			p := summaries[m.PersonID]
			p.TotalScheduled++
			rec, _ := idx.Get(m.PersonID, d)
			switch {
			case rec != nil && rec.Verified && win.IsLate(MinuteOf(rec.CreatedAt, loc)):
				p.Late++
				bd.Late = append(bd.Late, m.PersonID)
			case rec != nil && rec.Verified:
				p.Present++
				bd.Present = append(bd.Present, m.PersonID)
			default:
				bd.Absent = append(bd.Absent, m.PersonID)
			}
		}
		if targeted > 0 {
			sort.Strings(bd.Present)
			sort.Strings(bd.Late)
			sort.Strings(bd.Absent)
			rep.Dates = append(rep.Dates, bd)
		}
	}

	classes := map[Section]*GroupSummary{}
	programs := map[string]*GroupSummary{}
	for _, m := range roster {
		p := summaries[m.PersonID]
		p.Absent, p.Clamped = Summarize(p.TotalScheduled, p.Present, p.Late)
		p.Rate = percentage(p.Present+p.Late, p.TotalScheduled)
		rep.People = append(rep.People, *p)
		if m.Role != RoleStudent {
			rep.Teachers.add(*p)
			continue
		}

		c, ok := classes[m.Section]
		if !ok {
			c = &GroupSummary{Program: m.Section.Program, Year: m.Section.Year, Section: m.Section.Section}
			classes[m.Section] = c
		}
		c.add(*p)
		g, ok := programs[m.Section.Program]
		if !ok {
			g = &GroupSummary{Program: m.Section.Program}
			programs[m.Section.Program] = g
		}
		g.add(*p)
		rep.Totals.add(*p)
	}

	sort.Slice(rep.People, func(i, j int) bool {
		a, b := rep.People[i], rep.People[j]
		if a.Section != b.Section {
			return lessSection(a.Section, b.Section)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PersonID < b.PersonID
	})
	for _, c := range classes {
		rep.Classes = append(rep.Classes, *c)
	}
	sort.Slice(rep.Classes, func(i, j int) bool {
		return lessSection(
			Section{Program: rep.Classes[i].Program, Year: rep.Classes[i].Year, Section: rep.Classes[i].Section},
			Section{Program: rep.Classes[j].Program, Year: rep.Classes[j].Year, Section: rep.Classes[j].Section},
		)
	})
	for _, g := range programs {
		rep.Programs = append(rep.Programs, *g)
	}
	sort.Slice(rep.Programs, func(i, j int) bool { return rep.Programs[i].Program < rep.Programs[j].Program })
}

func lessSection(a, b Section) bool {
	if a.Program != b.Program {
		return a.Program < b.Program
	}
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.Section < b.Section
}
