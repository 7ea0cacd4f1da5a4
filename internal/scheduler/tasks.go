package scheduler

import (
	"fmt"
	"strings"
)

// AssignmentKey identifies one subject taught to one section.
type AssignmentKey struct {
	Section string
	Code    string
}

// Assignment resolves which teacher serves each (section, subject) pair.
type Assignment map[AssignmentKey]string

// Teacher returns the resolved teacher, or Unassigned when none was resolved.
func (a Assignment) Teacher(section, code string) string {
	if name, ok := a[AssignmentKey{Section: section, Code: code}]; ok {
		return name
	}
	return Unassigned
}

// Load counts how many (section, subject) pairs each teacher received.
func (a Assignment) Load() map[string]int {
	load := make(map[string]int)
	for _, teacher := range a {
		if teacher == Unassigned {
			continue
		}
		load[teacher]++
	}
	return load
}

// BuildScheduleTasks expands every subject into one task per section per
// weekly occurrence and resolves a teacher for each (section, subject) pair.
// The result depends only on input order.
func BuildScheduleTasks(input CourseInput) ([]Task, Assignment, error) {
	if err := validateInput(input); err != nil {
		return nil, nil, err
	}

	teachers := mergeTeachers(input.Teachers)
	assignment := make(Assignment, len(input.Sections)*len(input.Subjects))
	tasks := make([]Task, 0, estimateTasks(input))

	for _, subject := range input.Subjects {
		qualified := qualifiedTeachers(teachers, subject.Name)
		counters := make([]int, len(qualified))
		periods := PeriodRequirements[subject.Priority].For(subject.Type)
		slots := 1
		if subject.IsLab() {
			slots = LabSlotSize
		}

		for _, section := range input.Sections {
			teacher := Unassigned
			if pick := leastLoaded(counters); pick >= 0 {
				teacher = qualified[pick]
				counters[pick]++
			}
			assignment[AssignmentKey{Section: section, Code: subject.Code}] = teacher

			for i := 0; i < periods; i++ {
				tasks = append(tasks, Task{
					Section:       section,
					Subject:       subject.Name,
					Code:          subject.Code,
					Priority:      subject.Priority,
					IsLab:         subject.IsLab(),
					SlotsRequired: slots,
					Teacher:       teacher,
				})
			}
		}
	}
	return tasks, assignment, nil
}

// leastLoaded returns the index of the smallest counter, first wins on ties.
func leastLoaded(counters []int) int {
	pick := -1
	for i, count := range counters {
		if pick < 0 || count < counters[pick] {
			pick = i
		}
	}
	return pick
}

func qualifiedTeachers(teachers []Teacher, subject string) []string {
	var names []string
	for _, teacher := range teachers {
		if teacher.Teaches(subject) {
			names = append(names, teacher.Name)
		}
	}
	return names
}

// mergeTeachers collapses repeated names into the first occurrence, unioning
// their qualifications.
func mergeTeachers(items []Teacher) []Teacher {
	index := make(map[string]int, len(items))
	merged := make([]Teacher, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		if pos, ok := index[name]; ok {
			for _, subject := range item.Subjects {
				if !merged[pos].Teaches(subject) {
					merged[pos].Subjects = append(merged[pos].Subjects, subject)
				}
			}
			continue
		}
		index[name] = len(merged)
		subjects := make([]string, len(item.Subjects))
		copy(subjects, item.Subjects)
		merged = append(merged, Teacher{Name: name, Subjects: subjects})
	}
	return merged
}

func estimateTasks(input CourseInput) int {
	total := 0
	for _, subject := range input.Subjects {
		total += PeriodRequirements[subject.Priority].For(subject.Type) * len(input.Sections)
	}
	return total
}

func validateInput(input CourseInput) error {
	if len(input.Sections) == 0 {
		return fmt.Errorf("%w: at least one section is required", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(input.Sections))
	for _, section := range input.Sections {
		if strings.TrimSpace(section) == "" {
			return fmt.Errorf("%w: section label must not be blank", ErrInvalidInput)
		}
		if seen[section] {
			return fmt.Errorf("%w: duplicate section %q", ErrInvalidInput, section)
		}
		seen[section] = true
	}
	for _, subject := range input.Subjects {
		if strings.TrimSpace(subject.Name) == "" {
			return fmt.Errorf("%w: subject %q has no name", ErrInvalidInput, subject.Code)
		}
		if _, ok := PeriodRequirements[subject.Priority]; !ok {
			return fmt.Errorf("%w: subject %q has unknown priority %d", ErrInvalidInput, subject.Name, subject.Priority)
		}
		if subject.Type != SubjectTypeTheory && subject.Type != SubjectTypeLab {
			return fmt.Errorf("%w: subject %q has unknown type %q", ErrInvalidInput, subject.Name, subject.Type)
		}
	}
	return nil
}
