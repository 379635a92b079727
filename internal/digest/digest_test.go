package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/taskbot/internal/tasks"
)

func day(d int) tasks.Date { return tasks.Date{Year: 2025, Month: time.January, Day: d} }

func TestTasksGroupsByFirstSeenCategory(t *testing.T) {
	list := []tasks.Task{
		{Name: "Report", Category: "Work", DueDate: day(15)},
		{Name: "Milk", Category: "Home", DueDate: day(12)},
		{Name: "Slides", Category: "Work", DueDate: day(20)},
	}
	want := "🔔 Reminder of your tasks:\n" +
		"\n📁 Work:\n" +
		"   • Report (Due: 2025-01-15)\n" +
		"   • Slides (Due: 2025-01-20)\n" +
		"\n📁 Home:\n" +
		"   • Milk (Due: 2025-01-12)"
	assert.Equal(t, want, Tasks(Reminder, list))
}

func TestTasksEmpty(t *testing.T) {
	assert.Empty(t, Tasks(Reminder, nil))
	assert.Equal(t, NoTasks, List(tasks.UserRecord{}))
}

func TestCategories(t *testing.T) {
	rec := tasks.UserRecord{Tasks: []tasks.Task{
		{Name: "a", Category: "Work", DueDate: day(1)},
		{Name: "b", Category: "Home", DueDate: day(2)},
		{Name: "c", Category: "Work", DueDate: day(3)},
	}}
	assert.Equal(t, "Your categories:\n\n📁 Work (2)\n📁 Home (1)", Categories(rec))
}

func TestPurgeNotice(t *testing.T) {
	assert.Empty(t, PurgeNotice(0))
	assert.Equal(t, "1 expired task has been automatically removed.", PurgeNotice(1))
	assert.Equal(t, "3 expired tasks have been automatically removed.", PurgeNotice(3))
}
