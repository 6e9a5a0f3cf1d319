package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"study-planner/internal/model"
)

// TaskRepository handles CRUD and aggregate reads for tasks. Every method is
// scoped to one owner.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	normalizeTaskTimes(task)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Course").
		Where("user_id = ? AND id = ?", userID, taskID).
		First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// List returns one page of tasks matching filter, newest first, along with the
// total number of matches.
func (r *TaskRepository) List(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, int64, error) {
	var total int64
	base := applyTaskFilter(r.db.WithContext(ctx).Model(&model.Task{}), userID, filter)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	q := applyTaskFilter(r.db.WithContext(ctx), userID, filter).
		Preload("Course").
		Order("created_at DESC").
		Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// ListByDeadline returns tasks matching filter ordered by nearest deadline.
func (r *TaskRepository) ListByDeadline(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	if err := applyTaskFilter(r.db.WithContext(ctx), userID, filter).
		Preload("Course").
		Order("deadline ASC").
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Save writes every column of an existing task.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	normalizeTaskTimes(task)
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", task.UserID, task.ID).
		Updates(map[string]interface{}{
			"course_id":         task.CourseID,
			"title":             task.Title,
			"description":       task.Description,
			"deadline":          task.Deadline,
			"priority":          task.Priority,
			"estimated_minutes": task.EstimatedMinutes,
			"status":            task.Status,
			"completed_at":      task.CompletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes a task together with its reminders.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		if err := tx.Where("user_id = ? AND task_id = ?", userID, taskID).Delete(&model.Reminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
		return nil
	})
}

// SumEstimatedMinutes adds up estimated_minutes over the matching tasks.
func (r *TaskRepository) SumEstimatedMinutes(ctx context.Context, userID uint, filter model.TaskFilter) (int, error) {
	var total int64
	err := applyTaskFilter(r.db.WithContext(ctx).Model(&model.Task{}), userID, filter).
		Select("CAST(COALESCE(SUM(estimated_minutes), 0) AS BIGINT)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum task minutes: %w", err)
	}
	return int(total), nil
}

func (r *TaskRepository) CountTasks(ctx context.Context, userID uint, filter model.TaskFilter) (int64, error) {
	var total int64
	if err := applyTaskFilter(r.db.WithContext(ctx).Model(&model.Task{}), userID, filter).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return total, nil
}

// Completions lists finished tasks whose completed_at falls in [from, to].
// Either bound may be nil.
func (r *TaskRepository) Completions(ctx context.Context, userID uint, from, to *time.Time) ([]model.Completion, error) {
	filter := model.TaskFilter{
		Statuses:      []model.TaskStatus{model.StatusDone},
		CompletedFrom: from,
		CompletedTo:   to,
	}
	var rows []struct {
		ID               uint
		CompletedAt      *time.Time
		EstimatedMinutes int
	}
	if err := applyTaskFilter(r.db.WithContext(ctx).Model(&model.Task{}), userID, filter).
		Where("completed_at IS NOT NULL").
		Select("id", "completed_at", "estimated_minutes").
		Order("completed_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	out := make([]model.Completion, 0, len(rows))
	for _, row := range rows {
		if row.CompletedAt == nil {
			continue
		}
		out = append(out, model.Completion{
			TaskID:           row.ID,
			CompletedAt:      *row.CompletedAt,
			EstimatedMinutes: row.EstimatedMinutes,
		})
	}
	return out, nil
}

// normalizeTaskTimes stores every timestamp in UTC so that range filters
// compare like with like on SQLite, which keeps times as text.
func normalizeTaskTimes(task *model.Task) {
	if !task.CreatedAt.IsZero() {
		task.CreatedAt = task.CreatedAt.UTC()
	}
	if task.Deadline != nil {
		d := task.Deadline.UTC()
		task.Deadline = &d
	}
	if task.CompletedAt != nil {
		c := task.CompletedAt.UTC()
		task.CompletedAt = &c
	}
}

func applyTaskFilter(db *gorm.DB, userID uint, f model.TaskFilter) *gorm.DB {
	q := db.Where("user_id = ?", userID)
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.CourseID != nil {
		q = q.Where("course_id = ?", *f.CourseID)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)", like, like)
	}
	if f.DeadlineFrom != nil {
		q = q.Where("deadline >= ?", utc(f.DeadlineFrom))
	}
	if f.DeadlineTo != nil {
		q = q.Where("deadline <= ?", utc(f.DeadlineTo))
	}
	if f.DeadlineAfter != nil {
		q = q.Where("deadline > ?", utc(f.DeadlineAfter))
	}
	if f.DeadlineBefore != nil {
		q = q.Where("deadline < ?", utc(f.DeadlineBefore))
	}
	if f.CompletedFrom != nil {
		q = q.Where("completed_at >= ?", utc(f.CompletedFrom))
	}
	if f.CompletedTo != nil {
		q = q.Where("completed_at <= ?", utc(f.CompletedTo))
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", utc(f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", utc(f.CreatedTo))
	}
	return q
}
