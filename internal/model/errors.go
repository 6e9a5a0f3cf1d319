package model

import "errors"

// Validation errors are returned before anything is written.
var (
	ErrTitleRequired      = errors.New("title is required")
	ErrNameRequired       = errors.New("name is required")
	ErrStartRequired      = errors.New("start time is required")
	ErrRemindAtRequired   = errors.New("reminder time is required")
	ErrInvalidPriority    = errors.New("priority must be between 1 and 5")
	ErrInvalidEstimate    = errors.New("estimated minutes cannot be negative")
	ErrInvalidStatus      = errors.New("status must be one of TODO, DOING, DONE")
	ErrInvalidDeadline    = errors.New("deadline cannot be earlier than created_at")
	ErrInvalidEventWindow = errors.New("end time must be after start time")
	ErrInvalidColor       = errors.New("color must look like #RRGGBB")
	ErrInvalidRange       = errors.New("end date is before start date")
	ErrRangeTooWide       = errors.New("date range is too wide")
)

var (
	// ErrNotFound covers both missing records and records of another owner.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateCourse is returned when the owner already has a course with that name.
	ErrDuplicateCourse = errors.New("course with this name already exists")
)

// IsValidation reports whether err is one of the input validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrTitleRequired, ErrNameRequired, ErrStartRequired, ErrRemindAtRequired, ErrInvalidPriority,
		ErrInvalidEstimate, ErrInvalidStatus, ErrInvalidDeadline,
		ErrInvalidEventWindow, ErrInvalidColor, ErrInvalidRange, ErrRangeTooWide,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
