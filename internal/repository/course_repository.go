package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// CourseRepository manages courses.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	if err := r.db.WithContext(ctx).Create(course).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.ErrDuplicateCourse
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (r *CourseRepository) ListByUser(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (r *CourseRepository) FindByID(ctx context.Context, userID, courseID uint) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, courseID).First(&course).Error; err != nil {
		return nil, notFound(err)
	}
	return &course, nil
}

// FindByName looks a course up by its exact name within the owner's courses.
func (r *CourseRepository) FindByName(ctx context.Context, userID uint, name string) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&course).Error; err != nil {
		return nil, notFound(err)
	}
	return &course, nil
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	res := r.db.WithContext(ctx).Model(&model.Course{}).
		Where("user_id = ? AND id = ?", course.UserID, course.ID).
		Updates(map[string]interface{}{
			"name":    course.Name,
			"teacher": course.Teacher,
			"color":   course.Color,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return model.ErrDuplicateCourse
		}
		return fmt.Errorf("update course: %w", res.Error)
	}
	return nil
}

// Delete removes a course and unlinks its tasks; the tasks themselves stay.
func (r *CourseRepository) Delete(ctx context.Context, userID, courseID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Update("course_id", nil).Error; err != nil {
			return fmt.Errorf("unlink tasks: %w", err)
		}
		res := tx.Where("user_id = ? AND id = ?", userID, courseID).Delete(&model.Course{})
		if res.Error != nil {
			return fmt.Errorf("delete course: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}
