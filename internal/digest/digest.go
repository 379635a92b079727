// Package digest renders task lists as plain-text chat messages.
package digest

import (
	"fmt"
	"strings"

	"github.com/m3rciful/taskbot/internal/tasks"
)

// Header selects the first line of a task digest.
type Header string

const (
	Listing  Header = "Your tasks:"
	Reminder Header = "🔔 Reminder of your tasks:"
)

// NoTasks is shown for an interactive listing with nothing in it.
const NoTasks = "You have no tasks!"

// Tasks renders list grouped by category in first-seen order.
// It returns "" for an empty list.
func Tasks(header Header, list []tasks.Task) string {
	if len(list) == 0 {
		return ""
	}

	var order []string
	groups := make(map[string][]tasks.Task)
	for _, t := range list {
		if _, ok := groups[t.Category]; !ok {
			order = append(order, t.Category)
		}
		groups[t.Category] = append(groups[t.Category], t)
	}

	var b strings.Builder
	b.WriteString(string(header))
	b.WriteString("\n")
	for _, category := range order {
		fmt.Fprintf(&b, "\n📁 %s:\n", category)
		for _, t := range groups[category] {
			fmt.Fprintf(&b, "   • %s (Due: %s)\n", t.Name, t.DueDate)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// List renders the interactive /list reply.
func List(rec tasks.UserRecord) string {
	if out := Tasks(Listing, rec.Tasks); out != "" {
		return out
	}
	return NoTasks
}

// Categories renders one line per category with its task count.
func Categories(rec tasks.UserRecord) string {
	order, counts := rec.CategoryCounts()
	if len(order) == 0 {
		return "You have no categories yet. Create a task with /new first."
	}
	var b strings.Builder
	b.WriteString("Your categories:\n")
	for _, c := range order {
		fmt.Fprintf(&b, "\n📁 %s (%d)", c, counts[c])
	}
	return b.String()
}

// PurgeNotice reports how many overdue tasks were removed. It returns "" for n < 1.
func PurgeNotice(n int) string {
	switch {
	case n < 1:
		return ""
	case n == 1:
		return "1 expired task has been automatically removed."
	default:
		return fmt.Sprintf("%d expired tasks have been automatically removed.", n)
	}
}
