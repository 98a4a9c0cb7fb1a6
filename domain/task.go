package domain

import "time"

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the board column a task sits in. Any status may move to any other.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"

	// legacyStatusToDo is still sent by older clients.
	legacyStatusToDo = "Todo"
)

// NormalizeStatus maps legacy spellings onto the canonical status.
func NormalizeStatus(raw string) Status {
	if raw == legacyStatusToDo {
		return StatusToDo
	}
	return Status(raw)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task represents a user-owned unit of work.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	ImageURL    *string    `json:"image_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskFields is the caller-controlled part of a task, already validated and
// normalized. It is what create and replace operations accept.
type TaskFields struct {
	Title       string
	Description *string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
	ImageURL    *string
}

// Apply copies the fields onto t.
func (f TaskFields) Apply(t *Task) {
	t.Title = f.Title
	t.Description = f.Description
	t.Priority = f.Priority
	t.Status = f.Status
	t.DueDate = f.DueDate
	t.ImageURL = f.ImageURL
}

// TaskPatch holds the fields supplied to a partial update. Nil pointers are
// left untouched; the Clear flags set the nullable columns to NULL.
type TaskPatch struct {
	Title         *string
	Description   *string
	Priority      *Priority
	Status        *Status
	DueDate       *time.Time
	ClearDueDate  bool
	ImageURL      *string
	ClearImageURL bool
}

// IsEmpty reports whether the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.Priority == nil &&
		p.Status == nil &&
		p.DueDate == nil && !p.ClearDueDate &&
		p.ImageURL == nil && !p.ClearImageURL
}

// Apply mutates t with the supplied fields.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		t.DueDate = p.DueDate
	}
	switch {
	case p.ClearImageURL:
		t.ImageURL = nil
	case p.ImageURL != nil:
		t.ImageURL = p.ImageURL
	}
}
