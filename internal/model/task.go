package model

import (
	"strings"
	"time"
)

const (
	MinPriority             = 1
	MaxPriority             = 5
	DefaultPriority         = 3
	DefaultEstimatedMinutes = 60
)

// Task is a unit of study work. CompletedAt is set only while Status is DONE;
// use ApplyStatus to change the status.
type Task struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"-"`
	CourseID         *uint      `gorm:"index" json:"course_id"`
	Course           *Course    `gorm:"constraint:OnDelete:SET NULL" json:"course,omitempty"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `json:"description,omitempty"`
	Deadline         *time.Time `gorm:"index" json:"deadline"`
	Priority         int        `gorm:"not null" json:"priority"`
	EstimatedMinutes int        `gorm:"not null" json:"estimated_minutes"`
	Status           TaskStatus `gorm:"size:10;not null;index" json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `gorm:"index" json:"completed_at"`
	Reminders        []Reminder `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Validate checks a task before it is written. CreatedAt must already be set.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleRequired
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return ErrInvalidPriority
	}
	if t.EstimatedMinutes < 0 {
		return ErrInvalidEstimate
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.Deadline != nil && t.Deadline.Before(t.CreatedAt) {
		return ErrInvalidDeadline
	}
	return nil
}

// Open reports whether the task still counts as pending work.
func (t *Task) Open() bool {
	return t.Status == StatusTodo || t.Status == StatusDoing
}

// TaskFilter narrows owner-scoped task queries. Nil fields are ignored; range
// bounds are inclusive.
type TaskFilter struct {
	Statuses       []TaskStatus
	CourseID       *uint
	Query          string
	DeadlineFrom   *time.Time
	DeadlineTo     *time.Time
	DeadlineAfter  *time.Time // exclusive lower bound
	DeadlineBefore *time.Time // exclusive upper bound
	CompletedFrom  *time.Time
	CompletedTo    *time.Time
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// Completion is one finished task as seen by the statistics.
type Completion struct {
	TaskID           uint
	CompletedAt      time.Time
	EstimatedMinutes int
}
