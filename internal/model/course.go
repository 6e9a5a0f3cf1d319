package model

import (
	"regexp"
	"strings"
	"time"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Course groups tasks by subject. Names are unique per owner.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_course_owner_name" json:"-"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_course_owner_name" json:"name"`
	Teacher   string    `gorm:"size:255" json:"teacher,omitempty"`
	Color     string    `gorm:"size:20" json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields a user can submit.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}
