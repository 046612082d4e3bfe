package export

import (
	"bytes"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolattend/internal/engine"
)

func TestWriteMonthlyReport(t *testing.T) {
	sec := engine.Section{Program: "BSCS", Year: "1st Year", Section: "A"}
	rep := engine.MonthlyReport{
		Month: engine.Month{Year: 2024, Month: 3},
		People: []engine.PersonSummary{
			{PersonID: "a", Name: "Ana", Section: sec, Role: engine.RoleStudent, TotalScheduled: 20, Present: 18, Late: 1, Absent: 1, Rate: 95},
		},
		Classes:  []engine.GroupSummary{{Program: "BSCS", Year: "1st Year", Section: "A", Members: 1, TotalScheduled: 20, Present: 18, Late: 1, Absent: 1, Rate: 95}},
		Programs: []engine.GroupSummary{{Program: "BSCS", Members: 1, TotalScheduled: 20, Present: 18, Late: 1, Absent: 1, Rate: 95}},
		Totals:   engine.GroupSummary{Members: 1, TotalScheduled: 20, Present: 18, Late: 1, Absent: 1, Rate: 95},
		Dates: []engine.DateBreakdown{
			{Date: civil.Date{Year: 2024, Month: 3, Day: 4}, Present: []string{"a"}, Late: []string{}, Absent: []string{}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMonthlyReport(&buf, rep))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetPeople, SheetClasses, SheetPrograms, SheetDates}, f.GetSheetList())

	people, err := f.GetRows(SheetPeople)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, []string{"a", "Ana", "BSCS", "1st Year", "A", "student", "20", "18", "1", "1", "95"}, people[1])

	programs, err := f.GetRows(SheetPrograms)
	require.NoError(t, err)
	require.Len(t, programs, 3)
	assert.Equal(t, "All", programs[2][0])

	rep.Teachers = engine.GroupSummary{Members: 1, TotalScheduled: 4, Present: 4, Rate: 100}
	buf.Reset()
	require.NoError(t, WriteMonthlyReport(&buf, rep))
	f2, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f2.Close() }()
	programs, err = f2.GetRows(SheetPrograms)
	require.NoError(t, err)
	require.Len(t, programs, 4)
	assert.Equal(t, []string{"Teachers", "", "", "1", "4", "4", "0", "0", "100"}, programs[3])

	dates, err := f.GetRows(SheetDates)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	require.GreaterOrEqual(t, len(dates[1]), 5)
	assert.Equal(t, []string{"2024-03-04", "1", "0", "0", "a"}, dates[1][:5])
}

func TestWriteMonthlyReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonthlyReport(&buf, engine.MonthlyReport{Month: engine.Month{Year: 2024, Month: 3}}))
	assert.NotZero(t, buf.Len())
}
