package model

import "time"

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	StatusTodo  TaskStatus = "TODO"
	StatusDoing TaskStatus = "DOING"
	StatusDone  TaskStatus = "DONE"
)

// OpenStatuses are the states that still count as remaining work.
var OpenStatuses = []TaskStatus{StatusTodo, StatusDoing}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// Next returns the status one step further along TODO -> DOING -> DONE.
// DONE stays DONE.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case StatusTodo:
		return StatusDoing
	case StatusDoing:
		return StatusDone
	default:
		return s
	}
}

// ApplyStatus returns a copy of t moved to status. Entering DONE stamps
// CompletedAt with now unless it is already set; any other status clears it.
func ApplyStatus(t Task, status TaskStatus, now time.Time) Task {
	t.Status = status
	if status == StatusDone {
		if t.CompletedAt == nil {
			stamp := now
			t.CompletedAt = &stamp
		}
		return t
	}
	t.CompletedAt = nil
	return t
}

// Advance moves t one step along the status machine.
func Advance(t Task, now time.Time) Task {
	return ApplyStatus(t, t.Status.Next(), now)
}
