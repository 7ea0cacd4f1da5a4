package scheduler

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config tunes the placement loop.
type Config struct {
	SlotsPerDay    int
	MaxConsecutive int
	AttemptFactor  int
}

// DefaultConfig returns the stable grid contract.
func DefaultConfig() Config {
	return Config{
		SlotsPerDay:    DefaultSlotsPerDay,
		MaxConsecutive: MaxConsecutive,
		AttemptFactor:  AttemptsPerTask,
	}
}

func (c Config) normalize() Config {
	if c.SlotsPerDay <= 0 {
		c.SlotsPerDay = DefaultSlotsPerDay
	}
	if c.MaxConsecutive <= 0 {
		c.MaxConsecutive = MaxConsecutive
	}
	if c.AttemptFactor <= 0 {
		c.AttemptFactor = AttemptsPerTask
	}
	return c
}

// Engine places scheduling tasks into weekly grids. It holds no state between
// runs so one Engine may serve concurrent callers.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine constructs an engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg.normalize(), logger: logger}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// GenerateSchedule runs a default engine over the input.
func GenerateSchedule(input CourseInput, rnd *rand.Rand) (*ScheduleResult, error) {
	return NewEngine(DefaultConfig(), nil).Generate(input, rnd)
}

// Generate builds the task queue, places it and assembles the result. The
// only source of non-determinism is rnd; a nil rnd is seeded from the clock.
func (e *Engine) Generate(input CourseInput, rnd *rand.Rand) (*ScheduleResult, error) {
	tasks, assignment, err := BuildScheduleTasks(input)
	if err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sections := make(map[string]*Calendar, len(input.Sections))
	for _, label := range input.Sections {
		sections[label] = NewCalendar(label, e.cfg.SlotsPerDay)
	}
	teachers := make(map[string]*Calendar, len(input.Teachers))
	for _, teacher := range mergeTeachers(input.Teachers) {
		teachers[teacher.Name] = NewCalendar(teacher.Name, e.cfg.SlotsPerDay)
	}

	run := &placementRun{
		cfg:      e.cfg,
		rnd:      rnd,
		sections: sections,
		teachers: teachers,
		queue:    newTaskQueue(tasks),
		budget:   newAttemptBudget(len(tasks) * e.cfg.AttemptFactor),
	}
	run.execute()

	result := assembleResult(input, sections, teachers, assignment, e.cfg.SlotsPerDay)
	result.Unplaced = run.unplaced
	result.Placements = run.placements
	result.Stats = Stats{
		TotalTasks:        len(tasks),
		Placed:            len(run.placements),
		DroppedUnassigned: run.droppedUnassigned,
		DroppedExhausted:  run.droppedExhausted,
		Attempts:          run.budget.used,
		Budget:            run.budget.limit,
	}

	if run.droppedUnassigned > 0 {
		e.logger.Warn("subjects without qualified teacher",
			zap.Int("tasks", run.droppedUnassigned),
		)
	}
	if run.droppedExhausted > 0 {
		e.logger.Warn("attempt budget exhausted with tasks still queued",
			zap.Int("remaining", run.droppedExhausted),
			zap.Int("attempts", run.budget.used),
		)
	}
	e.logger.Debug("schedule generated",
		zap.Int("tasks", len(tasks)),
		zap.Int("placed", len(run.placements)),
		zap.Int("attempts", run.budget.used),
	)
	return result, nil
}

type placementRun struct {
	cfg      Config
	rnd      *rand.Rand
	sections map[string]*Calendar
	teachers map[string]*Calendar
	queue    *taskQueue
	budget   *attemptBudget

	placements        []Placement
	unplaced          []UnplacedTask
	droppedUnassigned int
	droppedExhausted  int
}

func (r *placementRun) execute() {
	for r.queue.Len() > 0 && r.budget.spend() {
		task := r.queue.Pop()
		if task.Teacher == Unassigned {
			r.unplaced = append(r.unplaced, UnplacedTask{Task: task, Reason: ReasonUnassigned})
			r.droppedUnassigned++
			continue
		}
		if !r.place(task) {
			r.queue.Push(task)
		}
	}
	for r.queue.Len() > 0 {
		task := r.queue.Pop()
		reason := ReasonExhaustedAttempts
		if task.Teacher == Unassigned {
			reason = ReasonUnassigned
			r.droppedUnassigned++
		} else {
			r.droppedExhausted++
		}
		r.unplaced = append(r.unplaced, UnplacedTask{Task: task, Reason: reason})
	}
}

func (r *placementRun) place(task Task) bool {
	section, ok := r.sections[task.Section]
	if !ok {
		return false
	}
	teacher, ok := r.teachers[task.Teacher]
	if !ok {
		return false
	}
	length := task.SlotsRequired
	if length <= 0 {
		length = 1
	}

	entry := Entry{
		Section: task.Section,
		Code:    task.Code,
		Subject: task.Subject,
		Teacher: task.Teacher,
		IsLab:   task.IsLab,
	}
	for _, day := range r.rnd.Perm(NumDays) {
		for start := 0; start+length <= r.cfg.SlotsPerDay; start++ {
			if !teacher.CanPlace(day, start, length, r.cfg.MaxConsecutive) {
				continue
			}
			if !section.CanPlace(day, start, length, r.cfg.MaxConsecutive) {
				continue
			}
			section.Book(day, start, length, entry)
			teacher.Book(day, start, length, entry)
			r.placements = append(r.placements, Placement{Task: task, Day: day, Start: start})
			return true
		}
	}
	return false
}

// attemptBudget bounds the number of dequeues in one run.
type attemptBudget struct {
	limit int
	used  int
}

func newAttemptBudget(limit int) *attemptBudget {
	return &attemptBudget{limit: limit}
}

func (b *attemptBudget) spend() bool {
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// taskQueue is a fixed-capacity FIFO ring; requeueing never grows it.
type taskQueue struct {
	items []Task
	head  int
	size  int
}

func newTaskQueue(tasks []Task) *taskQueue {
	items := make([]Task, len(tasks))
	copy(items, tasks)
	return &taskQueue{items: items, size: len(items)}
}

func (q *taskQueue) Len() int {
	return q.size
}

func (q *taskQueue) Pop() Task {
	task := q.items[q.head]
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return task
}

func (q *taskQueue) Push(task Task) {
	tail := (q.head + q.size) % len(q.items)
	q.items[tail] = task
	q.size++
}
