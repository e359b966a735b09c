package domain

import "strings"

// Default category names for a day with no stored record.
var defaultCategories = []string{"Category1", "Category2"}

// DefaultCategories returns the category order used for an empty day.
func DefaultCategories() []string {
	out := make([]string, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}

// DayRecord is the categorized task state for one user on one calendar date.
// Tasks maps category name to an ordered task sequence; Categories carries the
// display order (the map's own key order is never used for display).
type DayRecord struct {
	Tasks      map[string][]Task `json:"tasks"`
	Categories []string          `json:"categories"`
}

// DefaultRecord returns a day with the default pair of empty categories.
func DefaultRecord() DayRecord {
	return DayRecord{
		Tasks: map[string][]Task{
			defaultCategories[0]: {},
			defaultCategories[1]: {},
		},
		Categories: DefaultCategories(),
	}
}

// Clone returns a deep copy. Mutation operations always work on a copy so
// every snapshot handed to persistence or to the UI stays immutable.
func (r DayRecord) Clone() DayRecord {
	out := DayRecord{
		Tasks:      make(map[string][]Task, len(r.Tasks)),
		Categories: make([]string, len(r.Categories)),
	}
	copy(out.Categories, r.Categories)
	for name, seq := range r.Tasks {
		tasks := make([]Task, len(seq))
		copy(tasks, seq)
		out.Tasks[name] = tasks
	}
	return out
}

// Normalize fills in the pieces a partially stored record may lack: a nil task
// map, a missing category order, or an order entry with no task sequence.
func (r DayRecord) Normalize() DayRecord {
	out := r.Clone()
	if out.Tasks == nil {
		out.Tasks = map[string][]Task{}
	}
	if len(out.Categories) == 0 {
		out.Categories = DefaultCategories()
	}
	for _, name := range out.Categories {
		if _, ok := out.Tasks[name]; !ok {
			out.Tasks[name] = []Task{}
		}
	}
	return out
}

// TotalTasks counts tasks across all categories.
func (r DayRecord) TotalTasks() int {
	n := 0
	for _, seq := range r.Tasks {
		n += len(seq)
	}
	return n
}

// Toggle flips the done flag of the task at index within category. Returns
// the new snapshot and whether anything changed; an out-of-range index or
// unknown category is a no-op.
func (r DayRecord) Toggle(category string, index int) (DayRecord, bool) {
	seq, ok := r.Tasks[category]
	if !ok || index < 0 || index >= len(seq) {
		return r, false
	}
	out := r.Clone()
	out.Tasks[category][index].Done = !out.Tasks[category][index].Done
	return out, true
}

// Add appends a new task with the trimmed title to category, creating the
// sequence when absent. A title that trims to empty is rejected.
func (r DayRecord) Add(category, title string) (DayRecord, bool) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return r, false
	}
	out := r.Clone()
	out.Tasks[category] = append(out.Tasks[category], NewTask(trimmed))
	return out, true
}

// EditTitle replaces the title of the task at index within category,
// preserving its done flag and ID. An empty trimmed title abandons the edit.
func (r DayRecord) EditTitle(category string, index int, title string) (DayRecord, bool) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return r, false
	}
	seq, ok := r.Tasks[category]
	if !ok || index < 0 || index >= len(seq) {
		return r, false
	}
	out := r.Clone()
	out.Tasks[category][index].Title = trimmed
	return out, true
}

// Delete removes the task at index within category. Later tasks in the same
// category shift down by one position.
func (r DayRecord) Delete(category string, index int) (DayRecord, bool) {
	seq, ok := r.Tasks[category]
	if !ok || index < 0 || index >= len(seq) {
		return r, false
	}
	out := r.Clone()
	out.Tasks[category] = append(out.Tasks[category][:index], out.Tasks[category][index+1:]...)
	return out, true
}

// Rename moves the task sequence from oldName to newName and replaces oldName
// at its position in the category order. Rejected when newName trims to empty,
// equals oldName, or oldName is not part of the order.
func (r DayRecord) Rename(oldName, newName string) (DayRecord, bool) {
	trimmed := strings.TrimSpace(newName)
	if trimmed == "" || trimmed == oldName {
		return r, false
	}
	pos := -1
	for i, name := range r.Categories {
		if name == oldName {
			pos = i
			break
		}
	}
	if pos < 0 {
		return r, false
	}
	out := r.Clone()
	out.Tasks[trimmed] = out.Tasks[oldName]
	delete(out.Tasks, oldName)
	out.Categories[pos] = trimmed
	return out, true
}

// TaskByID locates a task by its stable identifier, returning its current
// category and position.
func (r DayRecord) TaskByID(id string) (category string, index int, ok bool) {
	for _, name := range r.Categories {
		for i, t := range r.Tasks[name] {
			if t.ID == id {
				return name, i, true
			}
		}
	}
	for name, seq := range r.Tasks {
		for i, t := range seq {
			if t.ID == id {
				return name, i, true
			}
		}
	}
	return "", 0, false
}
