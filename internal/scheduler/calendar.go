package scheduler

// Calendar is the weekly availability grid of one teacher or section.
// Cells are stored densely as day*slotsPerDay+slot.
type Calendar struct {
	owner       string
	slotsPerDay int
	used        []bool
	entries     []Entry
}

// NewCalendar creates an empty grid for the owner.
func NewCalendar(owner string, slotsPerDay int) *Calendar {
	if slotsPerDay < 0 {
		slotsPerDay = 0
	}
	size := NumDays * slotsPerDay
	return &Calendar{
		owner:       owner,
		slotsPerDay: slotsPerDay,
		used:        make([]bool, size),
		entries:     make([]Entry, size),
	}
}

// Owner returns the teacher name or section label the calendar belongs to.
func (c *Calendar) Owner() string {
	return c.owner
}

// SlotsPerDay returns the grid width.
func (c *Calendar) SlotsPerDay() int {
	return c.slotsPerDay
}

func (c *Calendar) index(day, slot int) (int, bool) {
	if day < 0 || day >= NumDays || slot < 0 || slot >= c.slotsPerDay {
		return 0, false
	}
	return day*c.slotsPerDay + slot, true
}

// IsFree reports whether the cell exists and is unoccupied.
func (c *Calendar) IsFree(day, slot int) bool {
	idx, ok := c.index(day, slot)
	return ok && !c.used[idx]
}

// At returns the entry occupying the cell, if any.
func (c *Calendar) At(day, slot int) (Entry, bool) {
	idx, ok := c.index(day, slot)
	if !ok || !c.used[idx] {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// CanPlace checks that [start, start+length) is free on the day and that
// booking it keeps every merged run within maxRun.
func (c *Calendar) CanPlace(day, start, length, maxRun int) bool {
	if length <= 0 || start < 0 || start+length > c.slotsPerDay {
		return false
	}
	for slot := start; slot < start+length; slot++ {
		if !c.IsFree(day, slot) {
			return false
		}
	}
	before := c.runBefore(day, start)
	after := c.runAfter(day, start+length-1)
	return before+length+after <= maxRun
}

// Book occupies [start, start+length) with the entry. It is all-or-nothing:
// if any cell is missing or occupied nothing is written and false is returned.
func (c *Calendar) Book(day, start, length int, entry Entry) bool {
	if length <= 0 {
		return false
	}
	for slot := start; slot < start+length; slot++ {
		if !c.IsFree(day, slot) {
			return false
		}
	}
	for slot := start; slot < start+length; slot++ {
		idx, _ := c.index(day, slot)
		c.used[idx] = true
		c.entries[idx] = entry
	}
	return true
}

func (c *Calendar) runBefore(day, start int) int {
	count := 0
	for slot := start - 1; slot >= 0; slot-- {
		if c.IsFree(day, slot) {
			break
		}
		count++
	}
	return count
}

func (c *Calendar) runAfter(day, end int) int {
	count := 0
	for slot := end + 1; slot < c.slotsPerDay; slot++ {
		if c.IsFree(day, slot) {
			break
		}
		count++
	}
	return count
}

// LongestRun returns the longest contiguous occupied run on the day.
func (c *Calendar) LongestRun(day int) int {
	longest, current := 0, 0
	for slot := 0; slot < c.slotsPerDay; slot++ {
		if c.IsFree(day, slot) {
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
	}
	return longest
}

// Occupied counts booked cells across the week.
func (c *Calendar) Occupied() int {
	count := 0
	for _, used := range c.used {
		if used {
			count++
		}
	}
	return count
}

// Day returns a copy of one day's cells; free cells are nil.
func (c *Calendar) Day(day int) []*Entry {
	cells := make([]*Entry, c.slotsPerDay)
	for slot := range cells {
		if entry, ok := c.At(day, slot); ok {
			e := entry
			cells[slot] = &e
		}
	}
	return cells
}

// Clone returns an independent copy of the calendar.
func (c *Calendar) Clone() *Calendar {
	clone := &Calendar{
		owner:       c.owner,
		slotsPerDay: c.slotsPerDay,
		used:        make([]bool, len(c.used)),
		entries:     make([]Entry, len(c.entries)),
	}
	copy(clone.used, c.used)
	copy(clone.entries, c.entries)
	return clone
}
