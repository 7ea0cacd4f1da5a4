package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyAndTags(t *testing.T) {
	assert.Equal(t, "timetable:tt-1", Key("tt-1"))
	assert.Equal(t, "timetable:course:cse_ai_5:list", Key("course", " cse_ai_5 ", "", "list"))
	assert.Equal(t, "timetable:tag:course:cse_ai_5", Tag("course", "cse_ai_5"))
	assert.Equal(t, Tag("course", "cse_ai_5"), CourseTag("cse_ai_5"))
}
