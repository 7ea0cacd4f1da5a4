package scheduler

// Placement records where a task landed.
type Placement struct {
	Task  Task `json:"task"`
	Day   int  `json:"day"`
	Start int  `json:"start"`
}

// Stats summarises the outcome of one generation run.
type Stats struct {
	TotalTasks        int `json:"totalTasks"`
	Placed            int `json:"placed"`
	DroppedUnassigned int `json:"droppedUnassigned"`
	DroppedExhausted  int `json:"droppedExhausted"`
	Attempts          int `json:"attempts"`
	Budget            int `json:"budget"`
}

// Balanced reports whether every generated task is accounted for.
func (s Stats) Balanced() bool {
	return s.Placed+s.DroppedUnassigned+s.DroppedExhausted == s.TotalTasks
}

// ScheduleResult is the filled per-section and per-teacher grids of one run.
type ScheduleResult struct {
	Sections    []string
	PerSection  map[string]*Calendar
	PerTeacher  map[string]*Calendar
	Unplaced    []UnplacedTask
	Placements  []Placement
	Assignment  Assignment
	SlotsPerDay int
	Stats       Stats
}

// Complete reports whether every task was placed.
func (r *ScheduleResult) Complete() bool {
	return len(r.Unplaced) == 0
}

// TeacherNames returns the teachers in the result in input order.
func (r *ScheduleResult) TeacherNames(input CourseInput) []string {
	names := make([]string, 0, len(r.PerTeacher))
	seen := make(map[string]bool, len(r.PerTeacher))
	for _, teacher := range input.Teachers {
		if _, ok := r.PerTeacher[teacher.Name]; ok && !seen[teacher.Name] {
			names = append(names, teacher.Name)
			seen[teacher.Name] = true
		}
	}
	return names
}

func assembleResult(input CourseInput, sections, teachers map[string]*Calendar, assignment Assignment, slotsPerDay int) *ScheduleResult {
	order := make([]string, len(input.Sections))
	copy(order, input.Sections)

	perSection := make(map[string]*Calendar, len(sections))
	for label, cal := range sections {
		perSection[label] = cal.Clone()
	}
	perTeacher := make(map[string]*Calendar, len(teachers))
	for name, cal := range teachers {
		perTeacher[name] = cal.Clone()
	}

	return &ScheduleResult{
		Sections:    order,
		PerSection:  perSection,
		PerTeacher:  perTeacher,
		Assignment:  assignment,
		SlotsPerDay: slotsPerDay,
	}
}
