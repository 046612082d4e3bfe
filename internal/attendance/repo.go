package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"schoolattend/internal/engine"
)

// Repository reads schedule, requirement, roster and record rows from
// Postgres and performs the two write actions.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

var _ engine.Source = (*Repository)(nil)

type scheduleRow struct {
	Date          string         `db:"date"`
	FlagDay       bool           `db:"is_flag_day"`
	OnTimeEnd     sql.NullString `db:"on_time_end"`
	AttendanceEnd sql.NullString `db:"attendance_end"`
}

// ScheduleDays returns schedule rows between from and to inclusive.
func (r *Repository) ScheduleDays(ctx context.Context, from, to civil.Date) ([]engine.ScheduleDay, error) {
	var rows []scheduleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date::text AS date, is_flag_day, on_time_end::text AS on_time_end, attendance_end::text AS attendance_end
		FROM schedule_days
		WHERE date BETWEEN $1 AND $2
		ORDER BY date
	`, from.String(), to.String())
	if err != nil {
		return nil, errors.Wrap(err, "select schedule_days")
	}
	out := make([]engine.ScheduleDay, 0, len(rows))
	for _, row := range rows {
		d, err := civil.ParseDate(row.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "schedule_days date %q", row.Date)
		}
		out = append(out, engine.ScheduleDay{
			Date:          d,
			FlagDay:       row.FlagDay,
			OnTimeEnd:     nullable(row.OnTimeEnd),
			AttendanceEnd: nullable(row.AttendanceEnd),
		})
	}
	return out, nil
}

type personRequirementRow struct {
	Date     string `db:"date"`
	PersonID string `db:"person_id"`
}

// StudentRequirements returns explicit per-student requirements.
func (r *Repository) StudentRequirements(ctx context.Context, from, to civil.Date) ([]engine.PersonRequirement, error) {
	return r.personRequirements(ctx, "student_requirements", from, to)
}

// TeacherRequirements returns explicit per-teacher requirements.
func (r *Repository) TeacherRequirements(ctx context.Context, from, to civil.Date) ([]engine.PersonRequirement, error) {
	return r.personRequirements(ctx, "teacher_requirements", from, to)
}

// table is one of the two constant requirement table names above.
func (r *Repository) personRequirements(ctx context.Context, table string, from, to civil.Date) ([]engine.PersonRequirement, error) {
	var rows []personRequirementRow
	query := fmt.Sprintf(`SELECT date::text AS date, person_id FROM %s WHERE date BETWEEN $1 AND $2`, table)
	if err := r.db.SelectContext(ctx, &rows, query, from.String(), to.String()); err != nil {
		return nil, errors.Wrapf(err, "select %s", table)
	}
	out := make([]engine.PersonRequirement, 0, len(rows))
	for _, row := range rows {
		d, err := civil.ParseDate(row.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "%s date %q", table, row.Date)
		}
		out = append(out, engine.PersonRequirement{Date: d, PersonID: row.PersonID})
	}
	return out, nil
}

type sectionRequirementRow struct {
	Date    string `db:"date"`
	Program string `db:"program"`
	Year    string `db:"year_level"`
	Section string `db:"section"`
}

// SectionRequirements returns whole-section requirements.
func (r *Repository) SectionRequirements(ctx context.Context, from, to civil.Date) ([]engine.SectionRequirement, error) {
	var rows []sectionRequirementRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date::text AS date, program, year_level, section
		FROM section_requirements
		WHERE date BETWEEN $1 AND $2
	`, from.String(), to.String())
	if err != nil {
		return nil, errors.Wrap(err, "select section_requirements")
	}
	out := make([]engine.SectionRequirement, 0, len(rows))
	for _, row := range rows {
		d, err := civil.ParseDate(row.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "section_requirements date %q", row.Date)
		}
		out = append(out, engine.SectionRequirement{
			Date:    d,
			Section: engine.Section{Program: row.Program, Year: row.Year, Section: row.Section},
		})
	}
	return out, nil
}

// SectionMembers returns the current student ids of sec.
func (r *Repository) SectionMembers(ctx context.Context, sec engine.Section) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT person_id FROM section_members
		WHERE program = $1 AND year_level = $2 AND section = $3 AND role = 'student'
		ORDER BY person_id
	`, sec.Program, sec.Year, sec.Section)
	if err != nil {
		return nil, errors.Wrapf(err, "select section_members %s", sec)
	}
	return ids, nil
}

type recordRow struct {
	ID        string    `db:"id"`
	PersonID  string    `db:"person_id"`
	CreatedAt time.Time `db:"created_at"`
	Verified  bool      `db:"verified"`
}

// Records returns check-ins created in [from, to), restricted to personIDs
// unless personIDs is nil.
func (r *Repository) Records(ctx context.Context, personIDs []string, from, to time.Time) ([]engine.Record, error) {
	if personIDs != nil && len(personIDs) == 0 {
		return []engine.Record{}, nil
	}
	query := `SELECT id, person_id, created_at, verified FROM attendance_records`
	args := []any{from.UTC(), to.UTC()}
	clauses := []string{"created_at >= $1", "created_at < $2"}
	if personIDs != nil {
		clauses = append(clauses, "person_id = ANY($"+itoa(len(args)+1)+")")
		args = append(args, pq.Array(personIDs))
	}
	query += " WHERE " + joinClauses(clauses, " AND ") + " ORDER BY created_at, id"

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select attendance_records")
	}
	out := make([]engine.Record, len(rows))
	for i, row := range rows {
		out[i] = engine.Record(row)
	}
	return out, nil
}

type rosterRow struct {
	PersonID string `db:"person_id"`
	Name     string `db:"name"`
	Program  string `db:"program"`
	Year     string `db:"year_level"`
	Section  string `db:"section"`
	Role     string `db:"role"`
}

// Roster returns section members joined with their profile names. Members
// without a profile come back with an empty name.
func (r *Repository) Roster(ctx context.Context, filter engine.RosterFilter) ([]engine.RosterMember, error) {
	query := `
		SELECT m.person_id, COALESCE(p.full_name, '') AS name, m.program, m.year_level, m.section, m.role
		FROM section_members m
		LEFT JOIN profiles p ON p.id = m.person_id`
	args := []any{}
	clauses := []string{}
	if filter.Program != "" {
		clauses = append(clauses, "m.program = $"+itoa(len(args)+1))
		args = append(args, filter.Program)
	}
	if filter.Year != "" {
		clauses = append(clauses, "m.year_level = $"+itoa(len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Section != "" {
		clauses = append(clauses, "m.section = $"+itoa(len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Role != "" {
		clauses = append(clauses, "m.role = $"+itoa(len(args)+1))
		args = append(args, string(filter.Role))
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY m.program, m.year_level, m.section, name, m.person_id"

	var rows []rosterRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select roster")
	}
	out := make([]engine.RosterMember, len(rows))
	for i, row := range rows {
		out[i] = engine.RosterMember{
			PersonID: row.PersonID,
			Name:     row.Name,
			Section:  engine.Section{Program: row.Program, Year: row.Year, Section: row.Section},
			Role:     engine.Role(row.Role),
		}
	}
	return out, nil
}

// AssignCaptain makes personID the captain of sec. Assigning the current
// captain again leaves the row untouched.
func (r *Repository) AssignCaptain(ctx context.Context, sec engine.Section, personID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO section_captains (program, year_level, section, person_id, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (program, year_level, section) DO UPDATE SET
			person_id = EXCLUDED.person_id,
			assigned_at = CASE
				WHEN section_captains.person_id = EXCLUDED.person_id THEN section_captains.assigned_at
				ELSE EXCLUDED.assigned_at
			END
	`, sec.Program, sec.Year, sec.Section, personID, at.UTC())
	return errors.Wrapf(err, "upsert captain %s", sec)
}

// Captain returns the captain of sec, or "" when none is assigned.
func (r *Repository) Captain(ctx context.Context, sec engine.Section) (string, error) {
	var personID string
	err := r.db.GetContext(ctx, &personID, `
		SELECT person_id FROM section_captains
		WHERE program = $1 AND year_level = $2 AND section = $3
	`, sec.Program, sec.Year, sec.Section)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "select captain %s", sec)
	}
	return personID, nil
}

// StoredReport is a generated monthly report as persisted.
type StoredReport struct {
	Key         string          `json:"key"`
	Month       string          `json:"month"`
	Filter      json.RawMessage `json:"filter"`
	Body        json.RawMessage `json:"body"`
	GeneratedID string          `json:"generated_id"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type reportRow struct {
	Key         string    `db:"report_key"`
	Month       string    `db:"month"`
	Filter      []byte    `db:"filter"`
	Body        []byte    `db:"body"`
	GeneratedID string    `db:"generated_id"`
	GeneratedAt time.Time `db:"generated_at"`
}

// UpsertReport stores rep under its key. The generation time only moves when
// the body changes.
func (r *Repository) UpsertReport(ctx context.Context, rep StoredReport) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_reports (report_key, month, filter, body, generated_id, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (report_key) DO UPDATE SET
			filter = EXCLUDED.filter,
			body = EXCLUDED.body,
			generated_id = EXCLUDED.generated_id,
			generated_at = CASE
				WHEN monthly_reports.body = EXCLUDED.body THEN monthly_reports.generated_at
				ELSE EXCLUDED.generated_at
			END
	`, rep.Key, rep.Month, []byte(rep.Filter), []byte(rep.Body), rep.GeneratedID, rep.GeneratedAt.UTC())
	return errors.Wrapf(err, "upsert report %s", rep.Key)
}

// GetReport returns the stored report for key, or nil when none exists.
func (r *Repository) GetReport(ctx context.Context, key string) (*StoredReport, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `
		SELECT report_key, month, filter::text AS filter, body::text AS body, generated_id::text AS generated_id, generated_at
		FROM monthly_reports WHERE report_key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select report %s", key)
	}
	return &StoredReport{
		Key:         row.Key,
		Month:       row.Month,
		Filter:      row.Filter,
		Body:        row.Body,
		GeneratedID: row.GeneratedID,
		GeneratedAt: row.GeneratedAt,
	}, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
