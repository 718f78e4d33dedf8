package attendance

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Attendance"

// renderWorkbook lays a sheet out as students × dates with one status code per
// cell, followed by a count per status. Callers close the file.
func renderWorkbook(b Bulk) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, b); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSheet(f *excelize.File, b Bulk) error {
	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(exportSheet, cell, v)
	}

	title := fmt.Sprintf("%s · %s · %s · %s", b.ClassName, b.SubjectName, b.TeacherName, b.Semester)
	if err := set(1, 1, title); err != nil {
		return err
	}

	const header = 3
	if err := set(1, header, "No"); err != nil {
		return err
	}
	if err := set(2, header, "Student"); err != nil {
		return err
	}
	for i, a := range b.Attendances {
		if err := set(3+i, header, a.Date.String()); err != nil {
			return err
		}
	}
	first := 3 + len(b.Attendances)
	for i, s := range Statuses {
		if err := set(first+i, header, s.Code()); err != nil {
			return err
		}
	}

	// status per student per date
	marks := make([]map[string]Status, len(b.Attendances))
	for i, a := range b.Attendances {
		marks[i] = make(map[string]Status, len(a.Details))
		for _, d := range a.Details {
			marks[i][d.StudentID] = d.Status
		}
	}
	for r, st := range b.Students {
		row := header + 1 + r
		if err := set(1, row, r+1); err != nil {
			return err
		}
		if err := set(2, row, st.FullName); err != nil {
			return err
		}
		counts := map[Status]int{}
		for i := range b.Attendances {
			s, ok := marks[i][st.StudentID]
			if !ok {
				continue
			}
			counts[s]++
			if err := set(3+i, row, s.Code()); err != nil {
				return err
			}
		}
		for i, s := range Statuses {
			if err := set(first+i, row, counts[s]); err != nil {
				return err
			}
		}
	}

	legend := header + len(b.Students) + 2
	parts := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		parts = append(parts, s.Code()+" = "+string(s))
	}
	if err := set(1, legend, strings.Join(parts, ", ")); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(first+len(Statuses)-1, header)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A3", last, bold); err != nil {
		return err
	}
	return f.SetColWidth(exportSheet, "B", "B", 32)
}

func exportName(b Bulk) string {
	name := strings.NewReplacer(" ", "-", "/", "-").Replace(strings.ToLower(b.ClassName + "-" + b.SubjectName))
	return fmt.Sprintf("attendance-%s-%s.xlsx", name, strings.ToLower(string(b.Semester)))
}
