package model

import "time"

// Reminder fires once at RemindAt for one of the owner's tasks.
type Reminder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	Task      *Task     `json:"task,omitempty"`
	RemindAt  time.Time `gorm:"not null;index" json:"remind_at"`
	IsSent    bool      `gorm:"not null" json:"is_sent"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Reminder) Validate() error {
	if r.RemindAt.IsZero() {
		return ErrRemindAtRequired
	}
	return nil
}
