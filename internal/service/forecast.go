package service

import (
	"context"
	"math"
	"time"

	"study-planner/internal/model"
)

const (
	throughputWindowDays = 7
	secondsPerDay        = 24 * 60 * 60
)

// ForecastStatus is the outcome of a deadline forecast.
type ForecastStatus string

const (
	ForecastNoDeadline     ForecastStatus = "no_deadline"
	ForecastDeadlinePassed ForecastStatus = "deadline_passed"
	ForecastNoData         ForecastStatus = "no_data"
	ForecastOK             ForecastStatus = "ok"
	ForecastRisk           ForecastStatus = "risk"
)

// ForecastEstimate holds the numbers behind an ok or risk verdict.
type ForecastEstimate struct {
	RemainingMinutes int     `json:"remaining_minutes"`
	DaysLeft         int     `json:"days_left"`
	CapacityPerDay   float64 `json:"capacity_per_day"`
	CapacityTotal    float64 `json:"capacity_total"`
}

// Forecast tells whether recent throughput is enough to finish the work due
// up to a task's deadline. The estimate is present only for ForecastOK and
// ForecastRisk.
type Forecast struct {
	Status            ForecastStatus `json:"status"`
	*ForecastEstimate `json:",omitempty"`
}

// TaskMetrics is the owner-scoped aggregate view of tasks used by the
// forecast and statistics.
type TaskMetrics interface {
	SumEstimatedMinutes(ctx context.Context, userID uint, filter model.TaskFilter) (int, error)
	CountTasks(ctx context.Context, userID uint, filter model.TaskFilter) (int64, error)
	Completions(ctx context.Context, userID uint, from, to *time.Time) ([]model.Completion, error)
}

// ForecastService estimates deadline risk from the last week of completions.
type ForecastService struct {
	metrics TaskMetrics
}

func NewForecastService(metrics TaskMetrics) *ForecastService {
	return &ForecastService{metrics: metrics}
}

// Forecast evaluates task at now. The remaining work covers every open task of
// the owner due between now and the task's deadline, the task itself included.
func (s *ForecastService) Forecast(ctx context.Context, task model.Task, now time.Time) (Forecast, error) {
	if task.Deadline == nil {
		return Forecast{Status: ForecastNoDeadline}, nil
	}
	deadline := *task.Deadline
	if !deadline.After(now) {
		return Forecast{Status: ForecastDeadlinePassed}, nil
	}

	windowStart := now.Add(-throughputWindowDays * 24 * time.Hour)
	doneMinutes, err := s.metrics.SumEstimatedMinutes(ctx, task.UserID, model.TaskFilter{
		Statuses:      []model.TaskStatus{model.StatusDone},
		CompletedFrom: &windowStart,
		CompletedTo:   &now,
	})
	if err != nil {
		return Forecast{}, err
	}
	capacityPerDay := float64(doneMinutes) / throughputWindowDays
	if capacityPerDay == 0 {
		return Forecast{Status: ForecastNoData}, nil
	}

	remaining, err := s.metrics.SumEstimatedMinutes(ctx, task.UserID, model.TaskFilter{
		Statuses:     model.OpenStatuses,
		DeadlineFrom: &now,
		DeadlineTo:   &deadline,
	})
	if err != nil {
		return Forecast{}, err
	}

	daysLeft := DaysLeft(now, deadline)
	estimate := &ForecastEstimate{
		RemainingMinutes: remaining,
		DaysLeft:         daysLeft,
		CapacityPerDay:   capacityPerDay,
		CapacityTotal:    capacityPerDay * float64(daysLeft),
	}

	status := ForecastOK
	if float64(remaining) > estimate.CapacityTotal {
		status = ForecastRisk
	}
	return Forecast{Status: status, ForecastEstimate: estimate}, nil
}

// DaysLeft counts started days until deadline, never less than one.
func DaysLeft(now, deadline time.Time) int {
	days := int(math.Ceil(deadline.Sub(now).Seconds() / secondsPerDay))
	if days < 1 {
		return 1
	}
	return days
}
