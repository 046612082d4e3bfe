// Package export renders monthly reports as spreadsheets.
package export

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"schoolattend/internal/engine"
)

// Sheet names in the order they appear in the workbook.
const (
	SheetPeople   = "People"
	SheetClasses  = "Classes"
	SheetPrograms = "Programs"
	SheetDates    = "Dates"
)

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var groupHeader = []any{"Program", "Year", "Section", "Members", "Scheduled", "Present", "Late", "Absent", "Rate %"}

// WriteMonthlyReport writes rep as an XLSX workbook to w.
func WriteMonthlyReport(w io.Writer, rep engine.MonthlyReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "header style")
	}

	if err := f.SetSheetName("Sheet1", SheetPeople); err != nil {
		return errors.Wrap(err, "rename first sheet")
	}
	for _, name := range []string{SheetClasses, SheetPrograms, SheetDates} {
		if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "add sheet %s", name)
		}
	}

	people := [][]any{{"Person ID", "Name", "Program", "Year", "Section", "Role", "Scheduled", "Present", "Late", "Absent", "Rate %"}}
	for _, p := range rep.People {
		people = append(people, []any{
			p.PersonID, p.Name, p.Section.Program, p.Section.Year, p.Section.Section, string(p.Role),
			p.TotalScheduled, p.Present, p.Late, p.Absent, p.Rate,
		})
	}

	classes := [][]any{groupHeader}
	for _, g := range rep.Classes {
		classes = append(classes, groupRow(g))
	}

	programs := [][]any{groupHeader}
	for _, g := range rep.Programs {
		programs = append(programs, groupRow(g))
	}
	total := rep.Totals
	total.Program = "All"
	programs = append(programs, groupRow(total))
	if rep.Teachers.Members > 0 {
		teachers := rep.Teachers
		teachers.Program = "Teachers"
		programs = append(programs, groupRow(teachers))
	}

	dates := [][]any{{"Date", "Present", "Late", "Absent", "Present IDs", "Late IDs", "Absent IDs"}}
	for _, d := range rep.Dates {
		dates = append(dates, []any{
			d.Date.String(), len(d.Present), len(d.Late), len(d.Absent),
			strings.Join(d.Present, ", "), strings.Join(d.Late, ", "), strings.Join(d.Absent, ", "),
		})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetPeople, people},
		{SheetClasses, classes},
		{SheetPrograms, programs},
		{SheetDates, dates},
	} {
		if err := writeRows(f, sheet.name, sheet.rows, bold); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       "Attendance report " + rep.Month.String(),
		Description: "Monthly attendance summary",
	}); err != nil {
		return errors.Wrap(err, "set doc props")
	}
	return errors.Wrap(f.Write(w), "write workbook")
}

func groupRow(g engine.GroupSummary) []any {
	return []any{g.Program, g.Year, g.Section, g.Members, g.TotalScheduled, g.Present, g.Late, g.Absent, g.Rate}
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write %s row %d", sheet, i+1)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	return errors.Wrapf(f.SetCellStyle(sheet, "A1", last, headerStyle), "style %s header", sheet)
}
