package tasks

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// DateLayout is the only accepted due date format, both in chat input and on disk.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses s strictly as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &Error{Kind: KindValidation, Op: "parse_date", Err: fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)}
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// DaysSince returns the number of whole days from earlier to d (negative when earlier is after d).
func (d Date) DaysSince(earlier Date) int {
	return int(d.midnight().Sub(earlier.midnight()).Hours() / 24)
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return d.midnight().Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task is one reminder item. It is addressed by its index in the owner's list.
type Task struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	DueDate  Date   `json:"due_date"`
}

// Frequency is a reminder cadence.
type Frequency string

const (
	FrequencyDaily    Frequency = "24h"
	FrequencyTwoDays  Frequency = "48h"
	FrequencyWeekly   Frequency = "1w"
	DefaultFrequency            = FrequencyDaily
)

// Frequencies lists the cadences in menu order.
var Frequencies = []Frequency{FrequencyDaily, FrequencyTwoDays, FrequencyWeekly}

// ParseFrequency accepts the canonical codes plus the legacy "1week" spelling.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "24h":
		return FrequencyDaily, nil
	case "48h":
		return FrequencyTwoDays, nil
	case "1w", "1week":
		return FrequencyWeekly, nil
	}
	return "", &Error{Kind: KindValidation, Op: "parse_frequency", Err: fmt.Errorf("unknown reminder frequency %q", s)}
}

// Interval is the minimum time between two reminder digests.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyTwoDays:
		return 48 * time.Hour
	case FrequencyWeekly:
		return 168 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Label is the human readable menu text.
func (f Frequency) Label() string {
	switch f {
	case FrequencyTwoDays:
		return "Every 48 hours"
	case FrequencyWeekly:
		return "Every week"
	default:
		return "Every 24 hours"
	}
}

// CategorySet is the set of categories used by a user's tasks.
type CategorySet map[string]struct{}

// Add inserts name into the set.
func (s CategorySet) Add(name string) { s[name] = struct{}{} }

// Has reports whether name is present.
func (s CategorySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in ascending order.
func (s CategorySet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// MarshalJSON writes the set as a sorted list.
func (s CategorySet) MarshalJSON() ([]byte, error) {
	out := s.Sorted()
	if out == nil {
		out = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a list into the set.
func (s *CategorySet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	set := make(CategorySet, len(list))
	for _, c := range list {
		set.Add(c)
	}
	*s = set
	return nil
}

// UserRecord is everything stored for one chat user.
// Categories always equals the set of Category values in Tasks.
type UserRecord struct {
	Tasks        []Task
	Categories   CategorySet
	Frequency    Frequency
	LastReminder time.Time

	// floating marks a LastReminder decoded without a zone. Its wall clock
	// was read as UTC and still has to be placed in the reminder zone.
	floating bool
}

// legacyEpoch is the last_reminder assumed for records written before reminders existed.
var legacyEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// lastReminderLayouts are tried in order when decoding last_reminder.
var lastReminderLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	DateLayout,
}

type recordJSON struct {
	Tasks        []Task      `json:"tasks"`
	Categories   CategorySet `json:"categories"`
	Frequency    string      `json:"reminder_frequency"`
	LastReminder string      `json:"last_reminder"`
}

// MarshalJSON writes the canonical on-disk form.
func (r UserRecord) MarshalJSON() ([]byte, error) {
	tasks := r.Tasks
	if tasks == nil {
		tasks = []Task{}
	}
	freq := r.Frequency
	if freq == "" {
		freq = DefaultFrequency
	}
	return json.Marshal(recordJSON{
		Tasks:        tasks,
		Categories:   r.Categories,
		Frequency:    string(freq),
		LastReminder: r.LastReminder.Format(time.RFC3339Nano),
	})
}

// UnmarshalJSON reads both the canonical form and the legacy variants
// (missing frequency, plain-date or zone-less last_reminder).
func (r *UserRecord) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec := UserRecord{Tasks: raw.Tasks, Frequency: DefaultFrequency, LastReminder: legacyEpoch}
	if raw.Frequency != "" {
		freq, err := ParseFrequency(raw.Frequency)
		if err != nil {
			return err
		}
		rec.Frequency = freq
	}
	if raw.LastReminder != "" {
		ts, zoned, err := parseTimestamp(raw.LastReminder)
		if err != nil {
			return err
		}
		rec.LastReminder = ts
		rec.floating = !zoned
	}
	rec.rebuildCategories()
	*r = rec
	return nil
}

// parseTimestamp reports whether s carried its own zone. Only the first
// layout does.
func parseTimestamp(s string) (time.Time, bool, error) {
	for i, layout := range lastReminderLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, i == 0, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid last_reminder %q", s)
}

// settle places a zone-less LastReminder in loc, keeping its wall clock.
func (r *UserRecord) settle(loc *time.Location) {
	if !r.floating {
		return
	}
	t := r.LastReminder
	r.LastReminder = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	r.floating = false
}

func newRecord(now time.Time) *UserRecord {
	return &UserRecord{
		Categories:   CategorySet{},
		Frequency:    DefaultFrequency,
		LastReminder: now,
	}
}

// Clone returns a deep copy.
func (r UserRecord) Clone() UserRecord {
	r.Tasks = slices.Clone(r.Tasks)
	r.Categories = maps.Clone(r.Categories)
	if r.Categories == nil {
		r.Categories = CategorySet{}
	}
	return r
}

// CategoryCounts returns task counts per category in first-seen order.
func (r UserRecord) CategoryCounts() ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, t := range r.Tasks {
		if _, seen := counts[t.Category]; !seen {
			order = append(order, t.Category)
		}
		counts[t.Category]++
	}
	return order, counts
}

// rebuildCategories restores the category invariant from the task list.
func (r *UserRecord) rebuildCategories() {
	set := make(CategorySet, len(r.Tasks))
	for _, t := range r.Tasks {
		set.Add(t.Category)
	}
	r.Categories = set
}

// pruneCategory drops name when no remaining task uses it.
func (r *UserRecord) pruneCategory(name string) {
	for _, t := range r.Tasks {
		if t.Category == name {
			return
		}
	}
	delete(r.Categories, name)
}

// Document is the whole persisted state keyed by user id.
type Document map[int64]UserRecord
