package service

import (
	"context"
	"math"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// TaskPageSize is the number of tasks per list page.
const TaskPageSize = 10

// MaxTaskPage is the highest page number whose offset fits in an int.
const MaxTaskPage = math.MaxInt / TaskPageSize

// Deadline filters accepted by TaskQuery.
const (
	DeadlineToday   = "today"
	DeadlineWeek    = "week"
	DeadlineOverdue = "overdue"
)

// TaskInput represents data required to create or fully update a task.
// Nil Priority and EstimatedMinutes fall back to the defaults, an empty
// Status to TODO. Course is a course name and is used only when CourseID is
// nil.
type TaskInput struct {
	Title            string
	Description      string
	CourseID         *uint
	Course           string
	Deadline         *time.Time
	Priority         *int
	EstimatedMinutes *int
	Status           model.TaskStatus
}

// TaskQuery selects one page of the task list.
type TaskQuery struct {
	Status   model.TaskStatus
	CourseID *uint
	Text     string
	Deadline string
	Page     int
}

// TaskListItem is a task together with its earliest reminder.
type TaskListItem struct {
	model.Task
	NextReminder *model.Reminder `json:"next_reminder,omitempty"`
}

// TaskPage is one page of the task list.
type TaskPage struct {
	Tasks []TaskListItem `json:"tasks"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo     *repository.TaskRepository
	reminderRepo *repository.ReminderRepository
	courses      *CourseService
	forecasts    *ForecastService
	loc          *time.Location
}

func NewTaskService(taskRepo *repository.TaskRepository, reminderRepo *repository.ReminderRepository, courses *CourseService, forecasts *ForecastService, loc *time.Location) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{
		taskRepo:     taskRepo,
		reminderRepo: reminderRepo,
		courses:      courses,
		forecasts:    forecasts,
		loc:          loc,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, userID uint, input TaskInput, now time.Time) (*model.Task, error) {
	task := model.Task{UserID: userID, CreatedAt: now.UTC()}
	if err := s.apply(ctx, &task, input, now); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return s.taskRepo.FindByID(ctx, userID, task.ID)
}

// UpdateTask replaces every editable field of a task. Completion time is kept
// when the task stays DONE.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID uint, input TaskInput, now time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, task, input, now); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

// AdvanceTask moves a task one step along TODO -> DOING -> DONE.
func (s *TaskService) AdvanceTask(ctx context.Context, userID, taskID uint, now time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	advanced := model.Advance(*task, now)
	if err := s.taskRepo.Save(ctx, &advanced); err != nil {
		return nil, err
	}
	return &advanced, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

// DeleteTask removes a task and its reminders.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	return s.taskRepo.Delete(ctx, userID, taskID)
}

// Forecast loads the owner's task and runs the deadline forecast on it.
func (s *TaskService) Forecast(ctx context.Context, userID, taskID uint, now time.Time) (*model.Task, Forecast, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, Forecast{}, err
	}
	forecast, err := s.forecasts.Forecast(ctx, *task, now)
	if err != nil {
		return nil, Forecast{}, err
	}
	return task, forecast, nil
}

// ListActive returns open tasks, nearest deadline first.
func (s *TaskService) ListActive(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.taskRepo.ListByDeadline(ctx, userID, model.TaskFilter{Statuses: model.OpenStatuses})
}

// ListTasks returns one page of tasks, newest first, each with its earliest
// reminder.
func (s *TaskService) ListTasks(ctx context.Context, userID uint, query TaskQuery, now time.Time) (TaskPage, error) {
	filter, err := s.filterFor(query, now)
	if err != nil {
		return TaskPage{}, err
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	if page > MaxTaskPage {
		page = MaxTaskPage
	}
	filter.Limit = TaskPageSize
	filter.Offset = (page - 1) * TaskPageSize

	tasks, total, err := s.taskRepo.List(ctx, userID, filter)
	if err != nil {
		return TaskPage{}, err
	}

	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	reminders, err := s.reminderRepo.ListForTasks(ctx, userID, ids)
	if err != nil {
		return TaskPage{}, err
	}
	nearest := make(map[uint]model.Reminder, len(reminders))
	for _, r := range reminders {
		if _, ok := nearest[r.TaskID]; !ok {
			nearest[r.TaskID] = r
		}
	}

	items := make([]TaskListItem, 0, len(tasks))
	for _, task := range tasks {
		item := TaskListItem{Task: task}
		if r, ok := nearest[task.ID]; ok {
			r := r
			item.NextReminder = &r
		}
		items = append(items, item)
	}

	pages := int((total + TaskPageSize - 1) / TaskPageSize)
	return TaskPage{Tasks: items, Total: total, Page: page, Pages: pages}, nil
}

func (s *TaskService) filterFor(query TaskQuery, now time.Time) (model.TaskFilter, error) {
	filter := model.TaskFilter{CourseID: query.CourseID, Query: query.Text}
	if query.Status != "" {
		if !query.Status.Valid() {
			return model.TaskFilter{}, model.ErrInvalidStatus
		}
		filter.Statuses = []model.TaskStatus{query.Status}
	}
	switch strings.ToLower(strings.TrimSpace(query.Deadline)) {
	case DeadlineToday:
		y, m, d := now.In(s.loc).Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
		end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.DeadlineFrom, filter.DeadlineTo = &start, &end
	case DeadlineWeek:
		until := now.AddDate(0, 0, 7)
		filter.DeadlineFrom, filter.DeadlineTo = &now, &until
	case DeadlineOverdue:
		filter.DeadlineBefore = &now
	}
	return filter, nil
}

// apply copies input onto task, reapplies the status rule, validates and
// then resolves the course.
func (s *TaskService) apply(ctx context.Context, task *model.Task, input TaskInput, now time.Time) error {
	task.Title = strings.TrimSpace(input.Title)
	task.Description = strings.TrimSpace(input.Description)
	task.Deadline = input.Deadline

	task.Priority = model.DefaultPriority
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	task.EstimatedMinutes = model.DefaultEstimatedMinutes
	if input.EstimatedMinutes != nil {
		task.EstimatedMinutes = *input.EstimatedMinutes
	}
	status := input.Status
	if status == "" {
		status = model.StatusTodo
	}

	*task = model.ApplyStatus(*task, status, now.UTC())
	if err := task.Validate(); err != nil {
		return err
	}

	task.Course = nil
	task.CourseID = nil
	switch {
	case input.CourseID != nil:
		course, err := s.courses.Get(ctx, task.UserID, *input.CourseID)
		if err != nil {
			return err
		}
		task.CourseID = &course.ID
	case strings.TrimSpace(input.Course) != "":
		course, err := s.courses.GetOrCreate(ctx, task.UserID, input.Course)
		if err != nil {
			return err
		}
		task.CourseID = &course.ID
	}
	return nil
}
