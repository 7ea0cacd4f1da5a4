package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
)

const courseJSON = `{
  "name": "B.Tech",
  "branch": "CSE",
  "semester": "5",
  "sections": ["A, B"],
  "subjects": [
    {"name": "Programming Intro", "code": "CS101", "priority": 1, "type": "Theory"},
    {"name": "Data Lab", "code": "CS102", "priority": 2, "type": "Lab"}
  ],
  "teachers": [
    {"name": "Alice", "subjects": ["Programming Intro"]},
    {"name": "Bob", "subjects": ["Data Lab"]}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadCourseFromJSON(t *testing.T) {
	req, err := loadCourse(courseSource{Input: writeFile(t, "course.json", courseJSON)})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, req.Sections)
	assert.Len(t, req.Subjects, 2)
	assert.Equal(t, "B.Tech", req.Name)
}

func TestLoadCourseCSVAndFlagsOverride(t *testing.T) {
	src := courseSource{
		Input:    writeFile(t, "course.json", courseJSON),
		Subjects: writeFile(t, "subjects.csv", "name,code,priority,type\nMaths,MA101,3,theory\n"),
		Teachers: writeFile(t, "teachers.csv", "name,subjects\nCarol,Maths\n"),
		Sections: "x,y,z",
		Semester: "6",
	}
	req, err := loadCourse(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, req.Sections)
	require.Len(t, req.Subjects, 1)
	assert.Equal(t, "Theory", req.Subjects[0].Type)
	assert.Equal(t, "Carol", req.Teachers[0].Name)
	assert.Equal(t, "6", req.Semester)
}

func TestLoadCourseRejectsIncompleteCourse(t *testing.T) {
	_, err := loadCourse(courseSource{Name: "B.Tech", Branch: "CSE", Semester: "5", Sections: "A"})
	require.Error(t, err)

	_, err = loadCourse(courseSource{Input: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}

func TestScheduleIsDeterministicPerSeed(t *testing.T) {
	req, err := loadCourse(courseSource{Input: writeFile(t, "course.json", courseJSON)})
	require.NoError(t, err)

	first, err := schedule(req, 7, zap.NewNop())
	require.NoError(t, err)
	second, err := schedule(req, 7, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, first.grid, second.grid)
	assert.Equal(t, "b.tech_cse_5", first.meta.ID)
	assert.Equal(t, 8, first.stats.TotalTasks)
	assert.Empty(t, first.grid.Violations)
}

func TestRenderFormats(t *testing.T) {
	req, err := loadCourse(courseSource{Input: writeFile(t, "course.json", courseJSON)})
	require.NoError(t, err)
	run, err := schedule(req, 42, zap.NewNop())
	require.NoError(t, err)
	anchor := time.Date(2024, 7, 17, 9, 0, 0, 0, time.UTC)

	data, err := render(run, dto.ExportFormatJSON, anchor)
	require.NoError(t, err)
	var view dto.TimetableView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, int64(42), view.Seed)
	assert.Equal(t, []string{"A", "B"}, view.Grid.Sections)

	data, err = render(run, dto.ExportFormatCSV, anchor)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Programming Intro")

	data, err = render(run, dto.ExportFormatPDF, anchor)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	data, err = render(run, dto.ExportFormatICS, anchor)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")

	_, err = render(run, "docx", anchor)
	require.Error(t, err)
}

func TestRequirementsCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"timetable", "requirements"}))
	assert.Contains(t, out.String(), "PRIORITY")
	assert.Regexp(t, `1\s+3\s+2`, out.String())
}

func TestGenerateCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.json")
	app := newApp()
	app.Writer = &bytes.Buffer{}

	err := app.Run([]string{"timetable", "generate", "--input", writeFile(t, "course.json", courseJSON), "--seed", "3", "--output", output})
	require.NoError(t, err)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"courseId": "b.tech_cse_5"`)
}
