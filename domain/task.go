package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Task is a single to-do item inside a category. Position within the
// category's sequence is the user-visible identity; ID is a stable opaque
// identifier assigned at creation and preserved across edits and toggles.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// NewTask builds a task from a raw title. The title is trimmed; an empty
// result is rejected by the callers before a task is ever created.
func NewTask(title string) Task {
	return Task{ID: uuid.NewString(), Title: strings.TrimSpace(title)}
}
