package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarBookIsAtomic(t *testing.T) {
	cal := NewCalendar("A", DefaultSlotsPerDay)
	entry := Entry{Section: "A", Code: "CS101", Subject: "Programming", Teacher: "Ada"}

	require.True(t, cal.Book(0, 1, 1, entry))
	assert.False(t, cal.Book(0, 0, 2, entry), "overlapping lab must not be booked")
	assert.True(t, cal.IsFree(0, 0), "failed booking must not leave partial cells")
	assert.Equal(t, 1, cal.Occupied())

	assert.False(t, cal.Book(0, 9, 2, entry), "block past the grid edge must fail")
	assert.True(t, cal.IsFree(0, 9))
}

func TestCalendarCanPlaceRejectsMergedRuns(t *testing.T) {
	cal := NewCalendar("Ada", DefaultSlotsPerDay)
	entry := Entry{Code: "CS101"}
	require.True(t, cal.Book(2, 0, 1, entry))
	require.True(t, cal.Book(2, 1, 1, entry))
	require.True(t, cal.Book(2, 3, 1, entry))

	assert.False(t, cal.CanPlace(2, 2, 1, MaxConsecutive), "bridging two runs yields a run of 4")
	assert.True(t, cal.CanPlace(2, 5, 1, MaxConsecutive))
	assert.True(t, cal.CanPlace(2, 4, 2, MaxConsecutive), "1 before + 2 = 3")
	assert.False(t, cal.CanPlace(2, 4, 2, 2))
	assert.False(t, cal.CanPlace(2, 1, 1, MaxConsecutive), "occupied cell")
	assert.True(t, cal.CanPlace(3, 2, 1, MaxConsecutive), "other days are independent")
}

func TestCalendarLongestRunAndDay(t *testing.T) {
	cal := NewCalendar("A", 6)
	entry := Entry{Code: "MA"}
	require.True(t, cal.Book(1, 0, 2, entry))
	require.True(t, cal.Book(1, 3, 1, entry))
	require.True(t, cal.Book(1, 4, 1, entry))

	assert.Equal(t, 2, cal.LongestRun(1))
	assert.Equal(t, 0, cal.LongestRun(0))

	cells := cal.Day(1)
	require.Len(t, cells, 6)
	assert.NotNil(t, cells[0])
	assert.Nil(t, cells[2])
	assert.Equal(t, "MA", cells[4].Code)
}

func TestCalendarCloneIsIndependent(t *testing.T) {
	cal := NewCalendar("A", 3)
	clone := cal.Clone()
	require.True(t, clone.Book(0, 0, 1, Entry{Code: "X"}))
	assert.True(t, cal.IsFree(0, 0))
	assert.Equal(t, "A", clone.Owner())
}

func TestEntryLabel(t *testing.T) {
	entry := Entry{Code: "CS101", Subject: "Programming", Teacher: "Grace Hopper"}
	assert.Equal(t, "[CS101] Programming (G)", entry.Label())
}
