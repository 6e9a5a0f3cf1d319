package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// EventRepository handles CRUD for calendar events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.StudyEvent) error {
	normalizeEventTimes(event)
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *EventRepository) FindByID(ctx context.Context, userID, eventID uint) (*model.StudyEvent, error) {
	var event model.StudyEvent
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, eventID).First(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// ListBetween returns events starting within [from, to], earliest first.
func (r *EventRepository) ListBetween(ctx context.Context, userID uint, from, to time.Time) ([]model.StudyEvent, error) {
	var events []model.StudyEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND start_at >= ? AND start_at <= ?", userID, from.UTC(), to.UTC()).
		Order("start_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (r *EventRepository) Save(ctx context.Context, event *model.StudyEvent) error {
	normalizeEventTimes(event)
	res := r.db.WithContext(ctx).Model(&model.StudyEvent{}).
		Where("user_id = ? AND id = ?", event.UserID, event.ID).
		Updates(map[string]interface{}{
			"title":    event.Title,
			"start_at": event.StartAt,
			"end_at":   event.EndAt,
			"location": event.Location,
			"notes":    event.Notes,
		})
	if res.Error != nil {
		return fmt.Errorf("save event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, userID, eventID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, eventID).Delete(&model.StudyEvent{})
	if res.Error != nil {
		return fmt.Errorf("delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func normalizeEventTimes(event *model.StudyEvent) {
	event.StartAt = event.StartAt.UTC()
	if event.EndAt != nil {
		end := event.EndAt.UTC()
		event.EndAt = &end
	}
}
