package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/export"
)

const generateDescription = `Reads a course definition as JSON (name, branch, semester, sections,
subjects, teachers). --subjects and --teachers replace the lists with CSV
files (name,code,priority,type and name,subjects) and --sections replaces the
section list. The same --seed on the same input always yields the same
timetable.`

var generateFlags = []cli.Flag{
	cli.StringFlag{Name: "input, i", Usage: "course definition JSON file"},
	cli.StringFlag{Name: "subjects", Usage: "subjects CSV file"},
	cli.StringFlag{Name: "teachers", Usage: "teachers CSV file"},
	cli.StringFlag{Name: "sections", Usage: "comma separated sections"},
	cli.StringFlag{Name: "name", Usage: "course name when no --input is given"},
	cli.StringFlag{Name: "branch", Usage: "branch when no --input is given"},
	cli.StringFlag{Name: "semester", Usage: "semester when no --input is given"},
	cli.Int64Flag{Name: "seed, s", Usage: "random seed (default: current time)"},
	cli.StringFlag{Name: "format, f", Value: dto.ExportFormatJSON, Usage: "json, csv, pdf, xlsx or ics"},
	cli.StringFlag{Name: "output, o", Usage: "output file, - for stdout (default: derived from the course)"},
	cli.BoolFlag{Name: "verbose, v", Usage: "log scheduler decisions to stderr"},
}

type courseSource struct {
	Input    string
	Subjects string
	Teachers string
	Sections string
	Name     string
	Branch   string
	Semester string
}

func generate(ctx *cli.Context) error {
	src := courseSource{
		Input:    ctx.String("input"),
		Subjects: ctx.String("subjects"),
		Teachers: ctx.String("teachers"),
		Sections: ctx.String("sections"),
		Name:     ctx.String("name"),
		Branch:   ctx.String("branch"),
		Semester: ctx.String("semester"),
	}
	req, err := loadCourse(src)
	if err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if ctx.IsSet("seed") {
		seed = ctx.Int64("seed")
	}
	logger := cliLogger(ctx.Bool("verbose"))
	defer logger.Sync() //nolint:errcheck

	run, err := schedule(req, seed, logger)
	if err != nil {
		return err
	}

	format := strings.ToLower(ctx.String("format"))
	data, err := render(run, format, time.Now())
	if err != nil {
		return err
	}

	output := ctx.String("output")
	if output == "" {
		output = service.ExportFilename(run.meta, "", format)
	}
	summaryOut := io.Writer(os.Stdout)
	if output == "-" {
		summaryOut = os.Stderr
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	} else if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSummary(summaryOut, run, output)
	if len(run.grid.Violations) > 0 {
		return cli.NewExitError(fmt.Sprintf("timetable failed verification: %s", run.grid.Violations[0]), 2)
	}
	return nil
}

func requirements(ctx *cli.Context) error {
	priorities := make([]int, 0, len(scheduler.PeriodRequirements))
	for p := range scheduler.PeriodRequirements {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tTHEORY\tLAB")
	for _, p := range priorities {
		req := scheduler.PeriodRequirements[p]
		fmt.Fprintf(w, "%d\t%d\t%d\n", p, req.Theory, req.Lab)
	}
	return w.Flush()
}

// loadCourse assembles and normalises the course from the JSON file, the CSV
// files and the metadata flags, later sources replacing earlier ones.
func loadCourse(src courseSource) (dto.SaveCourseRequest, error) {
	var req dto.SaveCourseRequest
	if src.Input != "" {
		raw, err := os.ReadFile(src.Input)
		if err != nil {
			return req, fmt.Errorf("read input: %w", err)
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("parse %s: %w", src.Input, err)
		}
	}
	if src.Subjects != "" {
		f, err := os.Open(src.Subjects)
		if err != nil {
			return req, fmt.Errorf("open subjects: %w", err)
		}
		defer f.Close()
		if req.Subjects, err = service.ParseSubjectsCSV(f); err != nil {
			return req, err
		}
	}
	if src.Teachers != "" {
		f, err := os.Open(src.Teachers)
		if err != nil {
			return req, fmt.Errorf("open teachers: %w", err)
		}
		defer f.Close()
		if req.Teachers, err = service.ParseTeachersCSV(f); err != nil {
			return req, err
		}
	}
	if src.Sections != "" {
		req.Sections = []string{src.Sections}
	}
	if src.Name != "" {
		req.Name = src.Name
	}
	if src.Branch != "" {
		req.Branch = src.Branch
	}
	if src.Semester != "" {
		req.Semester = src.Semester
	}
	return service.NormalizeCourse(req, nil)
}

type scheduleRun struct {
	meta   service.CourseMeta
	seed   int64
	grid   dto.TimetableGrid
	stats  dto.TimetableStats
	result *scheduler.ScheduleResult
}

func schedule(req dto.SaveCourseRequest, seed int64, logger *zap.Logger) (*scheduleRun, error) {
	input := service.CourseInputFromRequest(req)
	engine := scheduler.NewEngine(scheduler.DefaultConfig(), logger)
	result, err := engine.Generate(input, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	violations := scheduler.Verify(result, engine.Config().MaxConsecutive)
	return &scheduleRun{
		meta: service.CourseMeta{
			ID:       service.CourseID(req.Name, req.Branch, req.Semester),
			Name:     req.Name,
			Branch:   req.Branch,
			Semester: req.Semester,
		},
		seed:   seed,
		grid:   service.BuildTimetableGrid(result, input, violations),
		stats:  service.StatsView(result.Stats),
		result: result,
	}, nil
}

func render(run *scheduleRun, format string, anchor time.Time) ([]byte, error) {
	switch format {
	case dto.ExportFormatJSON:
		return json.MarshalIndent(dto.TimetableView{
			CourseID:  run.meta.ID,
			Seed:      run.seed,
			Degraded:  !run.result.Complete(),
			Grid:      run.grid,
			Stats:     run.stats,
			CreatedAt: anchor.UTC(),
		}, "", "  ")
	case dto.ExportFormatICS:
		cal, err := service.GridCalendar(run.meta, run.grid, "", anchor)
		if err != nil {
			return nil, err
		}
		return export.NewICSExporter("").Render(cal)
	case dto.ExportFormatCSV, dto.ExportFormatPDF, dto.ExportFormatXLSX:
		book, err := service.GridWorkbook(run.meta, run.grid, "", format != dto.ExportFormatCSV)
		if err != nil {
			return nil, err
		}
		switch format {
		case dto.ExportFormatPDF:
			return export.NewPDFExporter().Render(book)
		case dto.ExportFormatXLSX:
			return export.NewXLSXExporter().Render(book)
		}
		return export.NewCSVExporter().Render(book)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func printSummary(w io.Writer, run *scheduleRun, output string) {
	fmt.Fprintf(w, "course %s seed %d: placed %d of %d sessions\n", run.meta.ID, run.seed, run.stats.Placed, run.stats.TotalTasks)
	for _, task := range run.grid.Unplaced {
		fmt.Fprintf(w, "  unplaced %s [%s] %s (%s): %s\n", task.Section, task.Code, task.Subject, task.Teacher, task.Reason)
	}
	if output != "-" {
		fmt.Fprintf(w, "written to %s\n", output)
	}
}

func cliLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
