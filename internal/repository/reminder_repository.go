package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"study-planner/internal/model"
)

// ReminderRepository handles CRUD for reminders.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	reminder.RemindAt = reminder.RemindAt.UTC()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, userID, reminderID uint) (*model.Reminder, error) {
	var reminder model.Reminder
	if err := r.db.WithContext(ctx).Preload("Task").
		Where("user_id = ? AND id = ?", userID, reminderID).
		First(&reminder).Error; err != nil {
		return nil, notFound(err)
	}
	return &reminder, nil
}

func (r *ReminderRepository) ListByUser(ctx context.Context, userID uint) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Preload("Task").
		Where("user_id = ?", userID).
		Order("remind_at ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

// ListForTasks returns the owner's reminders for the given tasks ordered by
// task and time, so the first row per task is the nearest one.
func (r *ReminderRepository) ListForTasks(ctx context.Context, userID uint, taskIDs []uint) ([]model.Reminder, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id IN ?", userID, taskIDs).
		Order("task_id ASC").
		Order("remind_at ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list task reminders: %w", err)
	}
	return reminders, nil
}

func (r *ReminderRepository) Save(ctx context.Context, reminder *model.Reminder) error {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("user_id = ? AND id = ?", reminder.UserID, reminder.ID).
		Updates(map[string]interface{}{
			"task_id":   reminder.TaskID,
			"remind_at": reminder.RemindAt.UTC(),
			"is_sent":   reminder.IsSent,
		})
	if res.Error != nil {
		return fmt.Errorf("save reminder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ReminderRepository) Delete(ctx context.Context, userID, reminderID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, reminderID).Delete(&model.Reminder{})
	if res.Error != nil {
		return fmt.Errorf("delete reminder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListDue returns unsent reminders of all users that should have fired by now.
// Used by the dispatcher only; it is the one cross-owner read.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	var reminders []model.Reminder
	q := r.db.WithContext(ctx).Preload("Task").
		Where("is_sent = ? AND remind_at <= ?", false, now.UTC()).
		Order("remind_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return reminders, nil
}

func (r *ReminderRepository) MarkSent(ctx context.Context, reminderID uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ?", reminderID).
		Update("is_sent", true).Error; err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
