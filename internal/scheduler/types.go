package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// SubjectType distinguishes single-slot theory sessions from double-slot labs.
type SubjectType string

const (
	SubjectTypeTheory SubjectType = "Theory"
	SubjectTypeLab    SubjectType = "Lab"
)

const (
	// NumDays is the number of scheduled weekdays.
	NumDays = 5
	// DefaultSlotsPerDay is the number of fixed periods per day.
	DefaultSlotsPerDay = 10
	// MaxConsecutive caps back-to-back occupied periods per entity per day.
	MaxConsecutive = 3
	// LabSlotSize is the number of contiguous slots a lab session occupies.
	LabSlotSize = 2
	// AttemptsPerTask multiplies the initial queue length into the attempt budget.
	AttemptsPerTask = 500
	// Unassigned is the teacher sentinel for subjects nobody is qualified to teach.
	Unassigned = "Unassigned"
)

// Days lists the scheduled weekdays in calendar order.
var Days = [NumDays]string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// SlotLabels are the fixed daily periods shared with persisted and rendered grids.
var SlotLabels = [DefaultSlotsPerDay]string{
	"08:00-08:55",
	"08:55-09:50",
	"10:10-11:05",
	"11:05-12:00",
	"12:00-12:55",
	"12:55-01:50",
	"02:10-03:05",
	"03:05-04:00",
	"04:00-04:55",
	"04:55-05:50",
}

// ErrInvalidInput is returned (wrapped) for structurally malformed course input.
var ErrInvalidInput = errors.New("invalid course input")

// Requirement is the weekly session count for each subject type.
type Requirement struct {
	Theory int `json:"theory"`
	Lab    int `json:"lab"`
}

// For returns the session count for the given subject type.
func (r Requirement) For(t SubjectType) int {
	if t == SubjectTypeLab {
		return r.Lab
	}
	return r.Theory
}

// PeriodRequirements maps subject priority to weekly sessions.
var PeriodRequirements = map[int]Requirement{
	1: {Theory: 3, Lab: 2},
	2: {Theory: 2, Lab: 1},
	3: {Theory: 1, Lab: 1},
}

// Subject is a course subject as entered for a semester.
type Subject struct {
	Name     string      `json:"name"`
	Code     string      `json:"code"`
	Priority int         `json:"priority"`
	Type     SubjectType `json:"type"`
}

// IsLab reports whether the subject is scheduled in lab blocks.
func (s Subject) IsLab() bool {
	return s.Type == SubjectTypeLab
}

// Teacher lists the subject names an instructor is qualified to teach.
type Teacher struct {
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// Teaches reports whether the subject name is in the qualification set.
func (t Teacher) Teaches(subject string) bool {
	for _, name := range t.Subjects {
		if name == subject {
			return true
		}
	}
	return false
}

// CourseInput is the complete, caller-owned input for one schedule run.
type CourseInput struct {
	Sections []string  `json:"sections"`
	Subjects []Subject `json:"subjects"`
	Teachers []Teacher `json:"teachers"`
}

// Task is one weekly session waiting to be placed.
type Task struct {
	Section       string `json:"section"`
	Subject       string `json:"subject"`
	Code          string `json:"code"`
	Priority      int    `json:"priority"`
	IsLab         bool   `json:"isLab"`
	SlotsRequired int    `json:"slotsRequired"`
	Teacher       string `json:"teacher"`
}

// UnplacedReason explains why a task is missing from the result.
type UnplacedReason string

const (
	ReasonUnassigned        UnplacedReason = "UNASSIGNED"
	ReasonExhaustedAttempts UnplacedReason = "EXHAUSTED_ATTEMPTS"
)

// UnplacedTask is a task reported back to the caller instead of being scheduled.
type UnplacedTask struct {
	Task
	Reason UnplacedReason `json:"reason"`
}

// Entry describes the session occupying a calendar cell.
type Entry struct {
	Section string `json:"section"`
	Code    string `json:"code"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	IsLab   bool   `json:"isLab"`
}

// Label renders the entry the way timetable grids show it: "[CODE] Subject (T)".
func (e Entry) Label() string {
	initial := ""
	if name := strings.TrimSpace(e.Teacher); name != "" {
		initial = string([]rune(name)[0])
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Subject, initial)
}

// DayName returns the weekday label for a day index.
func DayName(day int) string {
	if day < 0 || day >= NumDays {
		return fmt.Sprintf("Day%d", day+1)
	}
	return Days[day]
}

// SlotLabel returns the time range label for a slot index.
func SlotLabel(slot int) string {
	if slot < 0 || slot >= len(SlotLabels) {
		return fmt.Sprintf("P%d", slot+1)
	}
	return SlotLabels[slot]
}
