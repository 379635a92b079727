package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/taskbot/internal/tasks"
)

// Step is the position inside a conversation flow.
type Step int

const (
	StepAwaitingName Step = iota + 1
	StepAwaitingCategory
	StepAwaitingDueDate
	StepAwaitingSelection
	StepAwaitingChoice
)

func (s Step) String() string {
	switch s {
	case StepAwaitingName:
		return "awaiting_name"
	case StepAwaitingCategory:
		return "awaiting_category"
	case StepAwaitingDueDate:
		return "awaiting_due_date"
	case StepAwaitingSelection:
		return "awaiting_selection"
	case StepAwaitingChoice:
		return "awaiting_choice"
	}
	return "unknown"
}

// Flow is the active conversation of one user. It is one of
// CreateFlow, DeleteFlow or FrequencyFlow.
type Flow interface {
	Kind() string
	Step() Step
	menuID() uint64
}

// CreateFlow collects name, category and due date for a new task.
type CreateFlow struct {
	ID    uint64
	Stage Step
	Name  string
	// Category is set once chosen or typed.
	Category string
	// Categories is the menu shown to the user; callbacks refer to it by index.
	Categories []string
	// AwaitingCategoryName routes the next text to the category instead of the name.
	AwaitingCategoryName bool
}

func (f CreateFlow) Kind() string   { return "create" }
func (f CreateFlow) Step() Step     { return f.Stage }
func (f CreateFlow) menuID() uint64 { return f.ID }

// DeleteFlow holds the task list the deletion menu was built from.
type DeleteFlow struct {
	ID       uint64
	Snapshot []tasks.Task
}

func (f DeleteFlow) Kind() string   { return "delete" }
func (f DeleteFlow) Step() Step     { return StepAwaitingSelection }
func (f DeleteFlow) menuID() uint64 { return f.ID }

// FrequencyFlow waits for a reminder cadence choice.
type FrequencyFlow struct {
	ID uint64
}

func (f FrequencyFlow) Kind() string   { return "frequency" }
func (f FrequencyFlow) Step() Step     { return StepAwaitingChoice }
func (f FrequencyFlow) menuID() uint64 { return f.ID }

// Callback actions carried by inline buttons.
const (
	ActionCategory    = "cat"
	ActionNewCategory = "newcat"
	ActionDelete      = "del"
	ActionFrequency   = "freq"
)

// Button is an inline choice. Action and Payload come back in Choice.
type Button struct {
	Text    string
	Action  string
	Payload string
}

// Reply is one outgoing message.
type Reply struct {
	Text    string
	Buttons []Button
}

func textReply(format string, args ...any) Reply {
	if len(args) == 0 {
		return Reply{Text: format}
	}
	return Reply{Text: fmt.Sprintf(format, args...)}
}

// menuPayload tags value with the id of the flow that built the menu.
func menuPayload(id uint64, value string) string {
	return strconv.FormatUint(id, 36) + ":" + value
}

func parseMenuPayload(payload string) (uint64, string, bool) {
	rawID, value, ok := strings.Cut(payload, ":")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseUint(rawID, 36, 64)
	if err != nil {
		return 0, "", false
	}
	return id, value, true
}
