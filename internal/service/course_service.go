package service

import (
	"context"
	"errors"
	"strings"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// CourseInput is the user-editable part of a course.
type CourseInput struct {
	Name    string
	Teacher string
	Color   string
}

// CourseService provides helpers around courses.
type CourseService struct {
	repo *repository.CourseRepository
}

func NewCourseService(repo *repository.CourseRepository) *CourseService {
	return &CourseService{repo: repo}
}

func (s *CourseService) List(ctx context.Context, userID uint) ([]model.Course, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *CourseService) Get(ctx context.Context, userID, courseID uint) (*model.Course, error) {
	return s.repo.FindByID(ctx, userID, courseID)
}

func (s *CourseService) Create(ctx context.Context, userID uint, input CourseInput) (*model.Course, error) {
	course := model.Course{UserID: userID}
	applyCourseInput(&course, input)
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (s *CourseService) Update(ctx context.Context, userID, courseID uint, input CourseInput) (*model.Course, error) {
	course, err := s.repo.FindByID(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	applyCourseInput(course, input)
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// Delete removes the course; its tasks stay without a course.
func (s *CourseService) Delete(ctx context.Context, userID, courseID uint) error {
	return s.repo.Delete(ctx, userID, courseID)
}

// GetOrCreate returns the owner's course with the given name, creating it on
// first use. Used by the bot where courses are typed in free form.
func (s *CourseService) GetOrCreate(ctx context.Context, userID uint, name string) (*model.Course, error) {
	name = strings.TrimSpace(name)
	course, err := s.repo.FindByName(ctx, userID, name)
	if err == nil {
		return course, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	course, err = s.Create(ctx, userID, CourseInput{Name: name})
	if errors.Is(err, model.ErrDuplicateCourse) {
		return s.repo.FindByName(ctx, userID, name)
	}
	return course, err
}

func applyCourseInput(course *model.Course, input CourseInput) {
	course.Name = strings.TrimSpace(input.Name)
	course.Teacher = strings.TrimSpace(input.Teacher)
	course.Color = strings.TrimSpace(input.Color)
}
