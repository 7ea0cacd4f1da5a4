package scheduler

import "fmt"

// ViolationKind classifies a broken schedule invariant.
type ViolationKind string

const (
	ViolationMismatch     ViolationKind = "MISMATCH"
	ViolationRunTooLong   ViolationKind = "RUN_TOO_LONG"
	ViolationLabSplit     ViolationKind = "LAB_SPLIT"
	ViolationConservation ViolationKind = "CONSERVATION"
)

// Violation describes one inconsistency found in a result.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Entity string        `json:"entity,omitempty"`
	Day    int           `json:"day"`
	Slot   int           `json:"slot"`
	Detail string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s %s/%d: %s", v.Kind, v.Entity, DayName(v.Day), v.Slot, v.Detail)
}

// Verify re-checks a generated result against the grid invariants and returns
// every violation found. An empty slice means the result is consistent.
func Verify(result *ScheduleResult, maxConsecutive int) []Violation {
	if result == nil {
		return nil
	}
	if maxConsecutive <= 0 {
		maxConsecutive = MaxConsecutive
	}
	var violations []Violation
	violations = append(violations, verifyCrossReference(result)...)
	violations = append(violations, verifyRuns(result.PerSection, maxConsecutive)...)
	violations = append(violations, verifyRuns(result.PerTeacher, maxConsecutive)...)
	violations = append(violations, verifyLabs(result)...)

	if !result.Stats.Balanced() {
		violations = append(violations, Violation{
			Kind: ViolationConservation,
			Detail: fmt.Sprintf("placed %d + unassigned %d + exhausted %d != total %d",
				result.Stats.Placed, result.Stats.DroppedUnassigned, result.Stats.DroppedExhausted, result.Stats.TotalTasks),
		})
	}
	return violations
}

// verifyCrossReference checks every section cell has the identical entry in
// its teacher's calendar and vice versa.
func verifyCrossReference(result *ScheduleResult) []Violation {
	var violations []Violation
	for label, section := range result.PerSection {
		for day := 0; day < NumDays; day++ {
			for slot := 0; slot < section.SlotsPerDay(); slot++ {
				entry, ok := section.At(day, slot)
				if !ok {
					continue
				}
				teacher, found := result.PerTeacher[entry.Teacher]
				if !found {
					violations = append(violations, Violation{Kind: ViolationMismatch, Entity: label, Day: day, Slot: slot, Detail: "teacher " + entry.Teacher + " has no calendar"})
					continue
				}
				if other, booked := teacher.At(day, slot); !booked || other != entry {
					violations = append(violations, Violation{Kind: ViolationMismatch, Entity: label, Day: day, Slot: slot, Detail: "teacher calendar disagrees"})
				}
			}
		}
	}
	for name, teacher := range result.PerTeacher {
		for day := 0; day < NumDays; day++ {
			for slot := 0; slot < teacher.SlotsPerDay(); slot++ {
				entry, ok := teacher.At(day, slot)
				if !ok {
					continue
				}
				section, found := result.PerSection[entry.Section]
				if !found {
					violations = append(violations, Violation{Kind: ViolationMismatch, Entity: name, Day: day, Slot: slot, Detail: "section " + entry.Section + " has no calendar"})
					continue
				}
				if other, booked := section.At(day, slot); !booked || other != entry {
					violations = append(violations, Violation{Kind: ViolationMismatch, Entity: name, Day: day, Slot: slot, Detail: "section calendar disagrees"})
				}
			}
		}
	}
	return violations
}

func verifyRuns(calendars map[string]*Calendar, maxConsecutive int) []Violation {
	var violations []Violation
	for owner, cal := range calendars {
		for day := 0; day < NumDays; day++ {
			if run := cal.LongestRun(day); run > maxConsecutive {
				violations = append(violations, Violation{
					Kind:   ViolationRunTooLong,
					Entity: owner,
					Day:    day,
					Detail: fmt.Sprintf("run of %d exceeds %d", run, maxConsecutive),
				})
			}
		}
	}
	return violations
}

func verifyLabs(result *ScheduleResult) []Violation {
	var violations []Violation
	for _, placement := range result.Placements {
		if !placement.Task.IsLab {
			continue
		}
		section := result.PerSection[placement.Task.Section]
		teacher := result.PerTeacher[placement.Task.Teacher]
		for offset := 0; offset < LabSlotSize; offset++ {
			slot := placement.Start + offset
			for _, cal := range []*Calendar{section, teacher} {
				if cal == nil {
					continue
				}
				entry, ok := cal.At(placement.Day, slot)
				if !ok || entry.Code != placement.Task.Code || entry.Section != placement.Task.Section || !entry.IsLab {
					violations = append(violations, Violation{
						Kind:   ViolationLabSplit,
						Entity: cal.Owner(),
						Day:    placement.Day,
						Slot:   slot,
						Detail: "lab " + placement.Task.Code + " is not contiguous",
					})
				}
			}
		}
	}
	return violations
}
