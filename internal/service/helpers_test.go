package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

type testEnv struct {
	tasks     *repository.TaskRepository
	reminders *repository.ReminderRepository
	users     *repository.UserRepository
	courseSvc *CourseService
	forecast  *ForecastService
	stats     *StatsService
	taskSvc   *TaskService
	events    *EventService
}

func newTestEnv(t *testing.T, loc *time.Location) *testEnv {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		tasks:     repository.NewTaskRepository(db),
		reminders: repository.NewReminderRepository(db),
		users:     repository.NewUserRepository(db),
	}
	env.courseSvc = NewCourseService(repository.NewCourseRepository(db))
	env.forecast = NewForecastService(env.tasks)
	env.stats = NewStatsService(env.tasks, loc)
	env.taskSvc = NewTaskService(env.tasks, env.reminders, env.courseSvc, env.forecast, loc)
	env.events = NewEventService(repository.NewEventRepository(db), loc)
	return env
}

// addDone stores a finished task with the given estimate.
func (e *testEnv) addDone(t *testing.T, userID uint, minutes int, completed time.Time) model.Task {
	t.Helper()
	stamp := completed
	task := model.Task{
		UserID:           userID,
		Title:            "done task",
		Priority:         model.DefaultPriority,
		EstimatedMinutes: minutes,
		Status:           model.StatusDone,
		CreatedAt:        completed.Add(-time.Hour),
		CompletedAt:      &stamp,
	}
	require.NoError(t, e.tasks.Create(context.Background(), &task))
	return task
}

// addOpen stores a TODO task created at created and due at deadline.
func (e *testEnv) addOpen(t *testing.T, userID uint, minutes int, created time.Time, deadline *time.Time) model.Task {
	t.Helper()
	task := model.Task{
		UserID:           userID,
		Title:            "open task",
		Priority:         model.DefaultPriority,
		EstimatedMinutes: minutes,
		Status:           model.StatusTodo,
		CreatedAt:        created,
		Deadline:         deadline,
	}
	require.NoError(t, e.tasks.Create(context.Background(), &task))
	return task
}

func at(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }
