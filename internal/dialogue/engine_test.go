package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/taskbot/core/telegram/state"
	"github.com/m3rciful/taskbot/internal/tasks"
)

type memPersister struct {
	mu   sync.Mutex
	doc  tasks.Document
	fail error
}

func (m *memPersister) Name() string { return "memory" }

func (m *memPersister) Load(context.Context) (tasks.Document, error) { return tasks.Document{}, nil }

func (m *memPersister) Save(_ context.Context, doc tasks.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.doc = doc
	return nil
}

type harness struct {
	engine   *Engine
	store    *tasks.Store
	sessions *Sessions
	persist  *memPersister
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{persist: &memPersister{}, clock: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	store, err := tasks.Open(context.Background(), h.persist, tasks.WithClock(func() time.Time { return h.clock }))
	require.NoError(t, err)
	h.store = store
	h.sessions = state.NewStore[Flow](30 * time.Minute)
	h.sessions.SetClock(func() time.Time { return h.clock })
	h.engine = New(store, h.sessions, Options{})
	return h
}

func (h *harness) command(t *testing.T, name string) Reply {
	t.Helper()
	replies, err := h.engine.Command(context.Background(), 1, name)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	return replies[0]
}

func (h *harness) text(t *testing.T, text string) (Reply, error) {
	t.Helper()
	replies, err := h.engine.Text(context.Background(), 1, text)
	require.Len(t, replies, 1)
	return replies[0], err
}

func (h *harness) press(t *testing.T, b Button) (Reply, error) {
	t.Helper()
	replies, err := h.engine.Choice(context.Background(), 1, b.Action, b.Payload)
	require.Len(t, replies, 1)
	return replies[0], err
}

func buttonByText(t *testing.T, r Reply, text string) Button {
	t.Helper()
	for _, b := range r.Buttons {
		if b.Text == text {
			return b
		}
	}
	t.Fatalf("button %q not found in %+v", text, r.Buttons)
	return Button{}
}

func (h *harness) createTask(t *testing.T, name, category, due string) {
	t.Helper()
	h.command(t, "/new")
	r, err := h.text(t, name)
	require.NoError(t, err)
	if hasButton(r, category) {
		_, err = h.press(t, buttonByText(t, r, category))
		require.NoError(t, err)
	} else {
		_, err = h.press(t, buttonByText(t, r, msgNewCategoryBtn))
		require.NoError(t, err)
		_, err = h.text(t, category)
		require.NoError(t, err)
	}
	r, err = h.text(t, due)
	require.NoError(t, err)
	require.Contains(t, r.Text, "Task created successfully!")
}

func hasButton(r Reply, text string) bool {
	for _, b := range r.Buttons {
		if b.Text == text {
			return true
		}
	}
	return false
}

func TestCreateFlowWithNewCategory(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, msgAskName, h.command(t, "/new").Text)
	r, err := h.text(t, "Report")
	require.NoError(t, err)
	assert.Equal(t, msgAskCategory, r.Text)
	require.Len(t, r.Buttons, 1)

	r, err = h.press(t, r.Buttons[0])
	require.NoError(t, err)
	assert.Equal(t, msgAskNewCategory, r.Text)

	flow, ok := h.sessions.Get(1)
	require.True(t, ok)
	assert.True(t, flow.(CreateFlow).AwaitingCategoryName)

	r, err = h.text(t, "Work")
	require.NoError(t, err)
	assert.Equal(t, msgAskDueDate, r.Text)

	r, err = h.text(t, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, "Task created successfully!\nName: Report\nCategory: Work\nDue Date: 2025-01-15", r.Text)
	assert.False(t, h.engine.InProgress(1))

	rec, _ := h.store.Record(1)
	require.Len(t, rec.Tasks, 1)
	assert.Equal(t, []string{"Work"}, rec.Categories.Sorted())
}

func TestCreateFlowExistingCategoriesSorted(t *testing.T) {
	h := newHarness(t)
	h.createTask(t, "a", "Work", "2025-02-01")
	h.createTask(t, "b", "Home", "2025-02-02")

	h.command(t, "/new")
	r, err := h.text(t, "c")
	require.NoError(t, err)
	var labels []string
	for _, b := range r.Buttons {
		labels = append(labels, b.Text)
	}
	assert.Equal(t, []string{"Home", "Work", msgNewCategoryBtn}, labels)

	_, err = h.press(t, r.Buttons[1])
	require.NoError(t, err)
	_, err = h.text(t, "2025-02-03")
	require.NoError(t, err)

	rec, _ := h.store.Record(1)
	assert.Equal(t, "Work", rec.Tasks[2].Category)
}

func TestInvalidDueDateAbortsWithoutMutation(t *testing.T) {
	h := newHarness(t)
	h.command(t, "new")
	r, err := h.text(t, "Report")
	require.NoError(t, err)
	_, err = h.press(t, buttonByText(t, r, msgNewCategoryBtn))
	require.NoError(t, err)
	_, err = h.text(t, "Work")
	require.NoError(t, err)

	r, err = h.text(t, "15/01/2025")
	assert.True(t, tasks.IsKind(err, tasks.KindValidation))
	assert.Equal(t, msgInvalidDate, r.Text)
	assert.False(t, h.engine.InProgress(1))

	rec, _ := h.store.Record(1)
	assert.Empty(t, rec.Tasks)
	assert.Nil(t, h.persist.doc, "nothing may be written")
}

func TestFreeTextWhileChoosingCategoryRenamesTask(t *testing.T) {
	h := newHarness(t)
	h.command(t, "/new")
	_, err := h.text(t, "Draft")
	require.NoError(t, err)
	r, err := h.text(t, "Final")
	require.NoError(t, err)
	assert.Equal(t, msgAskCategory, r.Text)

	flow, _ := h.sessions.Get(1)
	assert.Equal(t, "Final", flow.(CreateFlow).Name)
	assert.Equal(t, StepAwaitingCategory, flow.Step())
}

func TestCommandAbortsFlow(t *testing.T) {
	h := newHarness(t)
	h.command(t, "/new")
	require.True(t, h.engine.InProgress(1))

	assert.Equal(t, msgCancelled, h.command(t, "/cancel").Text)
	assert.False(t, h.engine.InProgress(1))
	assert.Equal(t, msgNothingToCancel, h.command(t, "/cancel").Text)

	h.command(t, "/new")
	assert.Equal(t, "You have no tasks!", h.command(t, "/list@TaskBot").Text)
	assert.False(t, h.engine.InProgress(1))
}

func TestUnknownCommandKeepsFlow(t *testing.T) {
	h := newHarness(t)
	h.command(t, "/new")
	assert.Equal(t, msgUnknownCommand, h.command(t, "/bogus").Text)
	assert.True(t, h.engine.InProgress(1))
}

func TestDeleteFlow(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, msgNothingToDelete, h.command(t, "/delete").Text)

	h.createTask(t, "Report", "Work", "2025-01-15")
	h.createTask(t, "Milk", "Home", "2025-01-12")

	menu := h.command(t, "/delete")
	assert.Equal(t, msgAskDelete, menu.Text)
	require.Len(t, menu.Buttons, 2)
	assert.Equal(t, "Milk (Home)", menu.Buttons[1].Text)

	r, err := h.press(t, menu.Buttons[1])
	require.NoError(t, err)
	assert.Equal(t, "Deleted task: Milk", r.Text)

	rec, _ := h.store.Record(1)
	assert.Equal(t, []string{"Work"}, rec.Categories.Sorted())
}

func TestStaleMenusExpire(t *testing.T) {
	h := newHarness(t)
	h.createTask(t, "Report", "Work", "2025-01-15")

	old := h.command(t, "/delete")
	h.command(t, "/frequency")

	r, err := h.press(t, old.Buttons[0])
	require.NoError(t, err)
	assert.Equal(t, msgMenuExpired, r.Text)

	newer := h.command(t, "/delete")
	r, err = h.press(t, old.Buttons[0])
	require.NoError(t, err)
	assert.Equal(t, msgMenuExpired, r.Text, "a menu from an earlier flow must not act on the current one")

	_, err = h.press(t, newer.Buttons[0])
	require.NoError(t, err)
	r, err = h.press(t, newer.Buttons[0])
	require.NoError(t, err)
	assert.Equal(t, msgMenuExpired, r.Text)

	rec, _ := h.store.Record(1)
	assert.Empty(t, rec.Tasks)
}

func TestDeleteOfPurgedTaskIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.createTask(t, "Old", "Work", "2025-01-01")
	h.createTask(t, "New", "Work", "2025-01-30")

	menu := h.command(t, "/delete")
	n, err := h.store.PurgeOverdue(context.Background(), 1, tasks.DateOf(h.clock))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	r, err := h.press(t, menu.Buttons[0])
	assert.True(t, errors.Is(err, tasks.ErrNotFound))
	assert.Equal(t, msgTaskGone, r.Text)

	rec, _ := h.store.Record(1)
	require.Len(t, rec.Tasks, 1)
	assert.Equal(t, "New", rec.Tasks[0].Name)
}

func TestFrequencyFlow(t *testing.T) {
	h := newHarness(t)
	menu := h.command(t, "/frequency")
	require.Len(t, menu.Buttons, 3)

	r, err := h.press(t, buttonByText(t, menu, "Every week"))
	require.NoError(t, err)
	assert.Equal(t, "Reminder frequency set to: Every week\nYou'll receive reminders at 9:00 AM (UTC+8)", r.Text)

	rec, _ := h.store.Record(1)
	assert.Equal(t, tasks.FrequencyWeekly, rec.Frequency)
}

func TestSaveFailureReported(t *testing.T) {
	h := newHarness(t)
	h.persist.fail = errors.New("read-only file system")
	menu := h.command(t, "/frequency")

	r, err := h.press(t, menu.Buttons[1])
	assert.True(t, tasks.IsKind(err, tasks.KindPersistence))
	assert.Equal(t, msgSaveFailed, r.Text)
	assert.True(t, h.store.Degraded())
}

func TestIdleSessionExpires(t *testing.T) {
	h := newHarness(t)
	h.command(t, "/new")
	h.clock = h.clock.Add(31 * time.Minute)

	r, err := h.text(t, "Report")
	require.NoError(t, err)
	assert.Equal(t, msgIdle, r.Text)
	assert.False(t, h.engine.InProgress(1))
}

func TestTextDuringMenuFlowAsksForButtons(t *testing.T) {
	h := newHarness(t)
	h.command(t, "/frequency")
	r, err := h.text(t, "weekly please")
	require.NoError(t, err)
	assert.Equal(t, msgUseButtons, r.Text)
	assert.True(t, h.engine.InProgress(1))
}

func TestCategoriesAndStart(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, msgWelcome, h.command(t, "/start").Text)
	assert.Equal(t, []int64{1}, h.store.Users())

	h.createTask(t, "a", "Work", "2025-02-01")
	h.createTask(t, "b", "Work", "2025-02-02")
	assert.Equal(t, "Your categories:\n\n📁 Work (2)", h.command(t, "/categories").Text)
}
