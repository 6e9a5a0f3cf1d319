package model

import (
	"strings"
	"time"
)

// StudyEvent is a calendar entry such as a lecture or an exam.
type StudyEvent struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"-"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	StartAt   time.Time  `gorm:"not null;index" json:"start_at"`
	EndAt     *time.Time `json:"end_at"`
	Location  string     `gorm:"size:255" json:"location,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e *StudyEvent) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleRequired
	}
	if e.StartAt.IsZero() {
		return ErrStartRequired
	}
	if e.EndAt != nil && e.EndAt.Before(e.StartAt) {
		return ErrInvalidEventWindow
	}
	return nil
}
