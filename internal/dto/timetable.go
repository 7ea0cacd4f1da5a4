package dto

import "time"

// GenerateTimetableRequest triggers a generation run. A nil seed picks a
// time based one; the seed used is always returned.
type GenerateTimetableRequest struct {
	Seed *int64 `json:"seed"`
}

// CellView is one occupied grid cell.
type CellView struct {
	Code    string `json:"code"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher,omitempty"`
	Section string `json:"section,omitempty"`
	IsLab   bool   `json:"isLab"`
	Label   string `json:"label"`
}

// WeekGrid is indexed [day][slot]; nil cells are free.
type WeekGrid [][]*CellView

// UnplacedView reports a task the generator could not place.
type UnplacedView struct {
	Section string `json:"section"`
	Subject string `json:"subject"`
	Code    string `json:"code"`
	Teacher string `json:"teacher"`
	IsLab   bool   `json:"isLab"`
	Reason  string `json:"reason"`
}

// TimetableStats mirrors the generator counters.
type TimetableStats struct {
	TotalTasks        int `json:"totalTasks"`
	Placed            int `json:"placed"`
	DroppedUnassigned int `json:"droppedUnassigned"`
	DroppedExhausted  int `json:"droppedExhausted"`
	Attempts          int `json:"attempts"`
	Budget            int `json:"budget"`
}

// TimetableGrid is the stored, renderable form of a generation result.
type TimetableGrid struct {
	Sections   []string            `json:"sections"`
	Teachers   []string            `json:"teachers"`
	Days       []string            `json:"days"`
	SlotLabels []string            `json:"slotLabels"`
	PerSection map[string]WeekGrid `json:"perSection"`
	PerTeacher map[string]WeekGrid `json:"perTeacher"`
	Unplaced   []UnplacedView      `json:"unplaced"`
	Violations []string            `json:"violations,omitempty"`
}

// TimetableView is returned by the timetable endpoints.
type TimetableView struct {
	ID        string         `json:"id"`
	CourseID  string         `json:"courseId"`
	Version   int            `json:"version"`
	Status    string         `json:"status"`
	Seed      int64          `json:"seed"`
	Degraded  bool           `json:"degraded"`
	Grid      TimetableGrid  `json:"grid"`
	Stats     TimetableStats `json:"stats"`
	CreatedAt time.Time      `json:"createdAt"`
}

// RequirementView lists weekly sessions per priority.
type RequirementView struct {
	Priority       int `json:"priority"`
	TheorySessions int `json:"theorySessions"`
	LabSessions    int `json:"labSessions"`
}
