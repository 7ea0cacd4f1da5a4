package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/export"
)

const (
	freeCellLabel = "Free"
	// semesterWeeks bounds the weekly recurrence of calendar exports.
	semesterWeeks = 16
)

// BuildTimetableGrid converts an engine result into its stored, renderable form.
func BuildTimetableGrid(result *scheduler.ScheduleResult, input scheduler.CourseInput, violations []scheduler.Violation) dto.TimetableGrid {
	grid := dto.TimetableGrid{
		Sections:   append([]string(nil), result.Sections...),
		Teachers:   result.TeacherNames(input),
		Days:       append([]string(nil), scheduler.Days[:]...),
		SlotLabels: slotLabels(result.SlotsPerDay),
		PerSection: make(map[string]dto.WeekGrid, len(result.PerSection)),
		PerTeacher: make(map[string]dto.WeekGrid, len(result.PerTeacher)),
		Unplaced:   make([]dto.UnplacedView, 0, len(result.Unplaced)),
	}
	for name, cal := range result.PerSection {
		grid.PerSection[name] = weekGrid(cal)
	}
	for name, cal := range result.PerTeacher {
		grid.PerTeacher[name] = weekGrid(cal)
	}
	for _, task := range result.Unplaced {
		grid.Unplaced = append(grid.Unplaced, dto.UnplacedView{
			Section: task.Section,
			Subject: task.Subject,
			Code:    task.Code,
			Teacher: task.Teacher,
			IsLab:   task.IsLab,
			Reason:  string(task.Reason),
		})
	}
	for _, v := range violations {
		grid.Violations = append(grid.Violations, v.String())
	}
	return grid
}

// StatsView copies engine counters into the API shape.
func StatsView(stats scheduler.Stats) dto.TimetableStats {
	return dto.TimetableStats{
		TotalTasks:        stats.TotalTasks,
		Placed:            stats.Placed,
		DroppedUnassigned: stats.DroppedUnassigned,
		DroppedExhausted:  stats.DroppedExhausted,
		Attempts:          stats.Attempts,
		Budget:            stats.Budget,
	}
}

func weekGrid(cal *scheduler.Calendar) dto.WeekGrid {
	grid := make(dto.WeekGrid, scheduler.NumDays)
	for day := 0; day < scheduler.NumDays; day++ {
		cells := cal.Day(day)
		row := make([]*dto.CellView, len(cells))
		for slot, entry := range cells {
			if entry == nil {
				continue
			}
			row[slot] = &dto.CellView{
				Code:    entry.Code,
				Subject: entry.Subject,
				Teacher: entry.Teacher,
				Section: entry.Section,
				IsLab:   entry.IsLab,
				Label:   entry.Label(),
			}
		}
		grid[day] = row
	}
	return grid
}

func slotLabels(slots int) []string {
	labels := make([]string, slots)
	for i := range labels {
		labels[i] = scheduler.SlotLabel(i)
	}
	return labels
}

// CourseMeta identifies the course a grid belongs to in rendered documents.
type CourseMeta struct {
	ID       string
	Name     string
	Branch   string
	Semester string
}

// DayCells renders one day of a week grid: labels for occupied slots, "Free"
// for gaps between the first and last occupied slot, blank elsewhere.
func DayCells(row []*dto.CellView, label func(*dto.CellView) string) []string {
	first, last := -1, -1
	for i, cell := range row {
		if cell != nil {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	out := make([]string, len(row))
	for i, cell := range row {
		switch {
		case cell != nil:
			out[i] = label(cell)
		case first >= 0 && i > first && i < last:
			out[i] = freeCellLabel
		}
	}
	return out
}

func sectionLabel(cell *dto.CellView) string {
	return cell.Label
}

func teacherLabel(cell *dto.CellView) string {
	return fmt.Sprintf("%s: [%s] %s", cell.Section, cell.Code, cell.Subject)
}

// GridWorkbook lays the grid out as one sheet per section, optionally followed
// by one sheet per teacher. A non-empty section narrows output to that section.
func GridWorkbook(meta CourseMeta, grid dto.TimetableGrid, section string, includeTeachers bool) (export.Workbook, error) {
	sections := grid.Sections
	if section != "" {
		if _, ok := grid.PerSection[section]; !ok {
			return export.Workbook{}, fmt.Errorf("section %q not in timetable", section)
		}
		sections = []string{section}
	}

	headers := append([]string{"Day/Time"}, grid.SlotLabels...)
	book := export.Workbook{Title: fmt.Sprintf("%s %s Semester %s", meta.Name, meta.Branch, meta.Semester)}
	for _, name := range sections {
		book.Sheets = append(book.Sheets, export.Sheet{
			Name: "Section " + name,
			Meta: [][2]string{
				{"Course", meta.ID},
				{"Semester", meta.Semester},
				{"Section", name},
			},
			Headers: headers,
			Rows:    gridRows(grid.Days, grid.PerSection[name], sectionLabel),
		})
	}
	if includeTeachers && section == "" {
		for _, name := range grid.Teachers {
			book.Sheets = append(book.Sheets, export.Sheet{
				Name:    name,
				Meta:    [][2]string{{"Course", meta.ID}, {"Teacher", name}},
				Headers: headers,
				Rows:    gridRows(grid.Days, grid.PerTeacher[name], teacherLabel),
			})
		}
	}
	return book, nil
}

func gridRows(days []string, week dto.WeekGrid, label func(*dto.CellView) string) [][]string {
	rows := make([][]string, 0, len(days))
	for day, name := range days {
		var cells []string
		if day < len(week) {
			cells = DayCells(week[day], label)
		}
		rows = append(rows, append([]string{name}, cells...))
	}
	return rows
}

// GridCalendar turns section grids into weekly recurring events anchored on
// the week containing anchor.
func GridCalendar(meta CourseMeta, grid dto.TimetableGrid, section string, anchor time.Time) (export.Calendar, error) {
	sections := grid.Sections
	if section != "" {
		if _, ok := grid.PerSection[section]; !ok {
			return export.Calendar{}, fmt.Errorf("section %q not in timetable", section)
		}
		sections = []string{section}
	}
	monday := weekStart(anchor)
	cal := export.Calendar{Name: fmt.Sprintf("%s %s Sem %s", meta.Name, meta.Branch, meta.Semester), Weeks: semesterWeeks}
	for _, name := range sections {
		week := grid.PerSection[name]
		for day := range week {
			row := week[day]
			for slot := 0; slot < len(row); slot++ {
				cell := row[slot]
				if cell == nil {
					continue
				}
				length := 1
				if cell.IsLab && slot+1 < len(row) && row[slot+1] != nil && row[slot+1].Code == cell.Code && row[slot+1].IsLab {
					length = 2
				}
				start, _, err := slotBounds(grid.SlotLabels, slot)
				if err != nil {
					return export.Calendar{}, err
				}
				_, end, err := slotBounds(grid.SlotLabels, slot+length-1)
				if err != nil {
					return export.Calendar{}, err
				}
				date := monday.AddDate(0, 0, day)
				cal.Events = append(cal.Events, export.Event{
					UID:         fmt.Sprintf("%s-%s-%d-%d@timetable", meta.ID, strings.ReplaceAll(name, " ", "-"), day, slot),
					Summary:     fmt.Sprintf("[%s] %s", cell.Code, cell.Subject),
					Description: fmt.Sprintf("Section %s, %s", name, cell.Teacher),
					Location:    "Section " + name,
					Start:       date.Add(start),
					End:         date.Add(end),
				})
				slot += length - 1
			}
		}
	}
	if len(cal.Events) == 0 {
		return cal, fmt.Errorf("timetable has no placed sessions")
	}
	return cal, nil
}

func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}

// slotBounds parses "hh:mm-hh:mm" into offsets from midnight. Labels use a
// 12 hour clock without suffix, so hours before 8 are afternoon.
func slotBounds(labels []string, slot int) (time.Duration, time.Duration, error) {
	if slot < 0 || slot >= len(labels) {
		return 0, 0, fmt.Errorf("slot %d out of range", slot)
	}
	parts := strings.Split(labels[slot], "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed slot label %q", labels[slot])
	}
	start, err := clockOffset(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := clockOffset(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func clockOffset(raw string) (time.Duration, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("malformed time %q: %w", raw, err)
	}
	if hour < 8 {
		hour += 12
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}
