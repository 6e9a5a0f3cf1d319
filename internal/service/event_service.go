package service

import (
	"context"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// EventInput is the user-editable part of a calendar event.
type EventInput struct {
	Title    string
	StartAt  time.Time
	EndAt    *time.Time
	Location string
	Notes    string
}

// CalendarDay holds the events starting on one day.
type CalendarDay struct {
	Date   string             `json:"date"`
	Events []model.StudyEvent `json:"events"`
}

// Week is a Monday-to-Sunday calendar page.
type Week struct {
	Start    string        `json:"week_start"`
	PrevWeek string        `json:"prev_week"`
	NextWeek string        `json:"next_week"`
	Days     []CalendarDay `json:"days"`
}

// EventService manages calendar events.
type EventService struct {
	repo *repository.EventRepository
	loc  *time.Location
}

func NewEventService(repo *repository.EventRepository, loc *time.Location) *EventService {
	if loc == nil {
		loc = time.Local
	}
	return &EventService{repo: repo, loc: loc}
}

func (s *EventService) Get(ctx context.Context, userID, eventID uint) (*model.StudyEvent, error) {
	return s.repo.FindByID(ctx, userID, eventID)
}

func (s *EventService) Create(ctx context.Context, userID uint, input EventInput) (*model.StudyEvent, error) {
	event := model.StudyEvent{UserID: userID}
	applyEventInput(&event, input)
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventService) Update(ctx context.Context, userID, eventID uint, input EventInput) (*model.StudyEvent, error) {
	event, err := s.repo.FindByID(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	applyEventInput(event, input)
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, userID, eventID uint) error {
	return s.repo.Delete(ctx, userID, eventID)
}

// Week returns the seven days starting at weekStart with their events. A zero
// weekStart selects the week containing now, starting on Monday.
func (s *EventService) Week(ctx context.Context, userID uint, weekStart, now time.Time) (Week, error) {
	var start time.Time
	if weekStart.IsZero() {
		start = MondayOf(now, s.loc)
	} else {
		y, m, d := weekStart.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	}
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)

	events, err := s.repo.ListBetween(ctx, userID, start, end)
	if err != nil {
		return Week{}, err
	}

	week := Week{
		Start:    start.Format(dateLayout),
		PrevWeek: start.AddDate(0, 0, -7).Format(dateLayout),
		NextWeek: start.AddDate(0, 0, 7).Format(dateLayout),
		Days:     make([]CalendarDay, 7),
	}
	index := make(map[string]int, 7)
	for i := range week.Days {
		key := start.AddDate(0, 0, i).Format(dateLayout)
		week.Days[i] = CalendarDay{Date: key, Events: []model.StudyEvent{}}
		index[key] = i
	}
	for _, event := range events {
		key := event.StartAt.In(s.loc).Format(dateLayout)
		if i, ok := index[key]; ok {
			week.Days[i].Events = append(week.Days[i].Events, event)
		}
	}
	return week, nil
}

// MondayOf returns midnight of the Monday of the week containing t.
func MondayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

func applyEventInput(event *model.StudyEvent, input EventInput) {
	event.Title = strings.TrimSpace(input.Title)
	event.StartAt = input.StartAt
	event.EndAt = input.EndAt
	event.Location = strings.TrimSpace(input.Location)
	event.Notes = strings.TrimSpace(input.Notes)
}
