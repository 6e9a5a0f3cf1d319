package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"study-planner/internal/model"
)

const (
	dateLayout         = "2006-01-02"
	overviewDays       = 14
	completionWindow   = 7
	dashboardAheadDays = 7
)

// MaxReportDays bounds the span of a daily report.
const MaxReportDays = 366

// DayStat is the completion activity of one calendar day.
type DayStat struct {
	Date             string `json:"date"`
	CompletedCount   int    `json:"completed_count"`
	CompletedMinutes int    `json:"completed_minutes"`
}

// Overview is the statistics page: the last two weeks plus totals.
type Overview struct {
	Daily      []DayStat `json:"daily"`
	TotalTasks int64     `json:"total_tasks"`
	TotalDone  int64     `json:"total_done"`
	Completion int       `json:"completion_7"`
	Streak     int       `json:"streak"`
}

// Dashboard groups the owner's open tasks by urgency.
type Dashboard struct {
	DueToday  []model.Task `json:"tasks_today"`
	Overdue   []model.Task `json:"tasks_overdue"`
	DueSoon   []model.Task `json:"tasks_next_7"`
	DoneLast7 int64        `json:"done_last_7"`
	Streak    int          `json:"streak"`
}

// TaskReader adds the task listing the dashboard needs to TaskMetrics.
type TaskReader interface {
	TaskMetrics
	ListByDeadline(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error)
}

// StatsService aggregates completions per calendar day. Days are taken in
// the configured location.
type StatsService struct {
	tasks TaskReader
	loc   *time.Location
}

func NewStatsService(tasks TaskReader, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{tasks: tasks, loc: loc}
}

// Location returns the time zone calendar days are evaluated in.
func (s *StatsService) Location() *time.Location {
	return s.loc
}

// Streak counts consecutive days with at least one completion, ending today.
// It is zero when nothing was finished today.
func (s *StatsService) Streak(ctx context.Context, userID uint, today time.Time) (int, error) {
	completions, err := s.tasks.Completions(ctx, userID, nil, nil)
	if err != nil {
		return 0, err
	}
	days := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		days[s.dateKey(c.CompletedAt)] = struct{}{}
	}

	streak := 0
	for cursor := s.startOfDay(today); ; cursor = cursor.AddDate(0, 0, -1) {
		if _, ok := days[cursor.Format(dateLayout)]; !ok {
			return streak, nil
		}
		streak++
	}
}

// DailyReport returns one entry per day in [start, end], zero-filled.
func (s *StatsService) DailyReport(ctx context.Context, userID uint, start, end time.Time) ([]DayStat, error) {
	first := s.startOfDay(start)
	last := s.startOfDay(end)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: %s < %s", model.ErrInvalidRange, last.Format(dateLayout), first.Format(dateLayout))
	}
	if last.After(first.AddDate(0, 0, MaxReportDays-1)) {
		return nil, fmt.Errorf("%w: at most %d days", model.ErrRangeTooWide, MaxReportDays)
	}

	to := s.endOfDay(last)
	completions, err := s.tasks.Completions(ctx, userID, &first, &to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]*DayStat)
	for _, c := range completions {
		key := s.dateKey(c.CompletedAt)
		stat, ok := byDay[key]
		if !ok {
			stat = &DayStat{Date: key}
			byDay[key] = stat
		}
		stat.CompletedCount++
		stat.CompletedMinutes += c.EstimatedMinutes
	}

	var report []DayStat
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		if stat, ok := byDay[key]; ok {
			report = append(report, *stat)
			continue
		}
		report = append(report, DayStat{Date: key})
	}
	return report, nil
}

// CompletionRatio is the percentage of tasks created in the last seven days
// (today included) against tasks finished in the same days. The value is
// not capped at 100 and is zero when nothing was created.
func (s *StatsService) CompletionRatio(ctx context.Context, userID uint, today time.Time) (int, error) {
	from, to := s.trailingWeek(today)
	done, err := s.tasks.CountTasks(ctx, userID, model.TaskFilter{
		Statuses:      []model.TaskStatus{model.StatusDone},
		CompletedFrom: &from,
		CompletedTo:   &to,
	})
	if err != nil {
		return 0, err
	}
	created, err := s.tasks.CountTasks(ctx, userID, model.TaskFilter{
		CreatedFrom: &from,
		CreatedTo:   &to,
	})
	if err != nil {
		return 0, err
	}
	if created == 0 {
		return 0, nil
	}
	return int(math.Round(100 * float64(done) / float64(created))), nil
}

// Overview builds the statistics page for the fourteen days ending today.
func (s *StatsService) Overview(ctx context.Context, userID uint, now time.Time) (Overview, error) {
	today := s.startOfDay(now)
	daily, err := s.DailyReport(ctx, userID, today.AddDate(0, 0, -(overviewDays-1)), today)
	if err != nil {
		return Overview{}, err
	}
	total, err := s.tasks.CountTasks(ctx, userID, model.TaskFilter{})
	if err != nil {
		return Overview{}, err
	}
	done, err := s.tasks.CountTasks(ctx, userID, model.TaskFilter{Statuses: []model.TaskStatus{model.StatusDone}})
	if err != nil {
		return Overview{}, err
	}
	ratio, err := s.CompletionRatio(ctx, userID, now)
	if err != nil {
		return Overview{}, err
	}
	streak, err := s.Streak(ctx, userID, now)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Daily:      daily,
		TotalTasks: total,
		TotalDone:  done,
		Completion: ratio,
		Streak:     streak,
	}, nil
}

// Dashboard collects tasks due today, overdue tasks and tasks due within the
// next week, plus the recent completion count and the streak.
func (s *StatsService) Dashboard(ctx context.Context, userID uint, now time.Time) (Dashboard, error) {
	dayStart := s.startOfDay(now)
	dayEnd := s.endOfDay(dayStart)
	ahead := now.AddDate(0, 0, dashboardAheadDays)

	var dash Dashboard
	var err error
	if dash.DueToday, err = s.tasks.ListByDeadline(ctx, userID, model.TaskFilter{
		Statuses:     model.OpenStatuses,
		DeadlineFrom: &dayStart,
		DeadlineTo:   &dayEnd,
	}); err != nil {
		return Dashboard{}, err
	}
	if dash.Overdue, err = s.tasks.ListByDeadline(ctx, userID, model.TaskFilter{
		Statuses:       model.OpenStatuses,
		DeadlineBefore: &now,
	}); err != nil {
		return Dashboard{}, err
	}
	if dash.DueSoon, err = s.tasks.ListByDeadline(ctx, userID, model.TaskFilter{
		Statuses:      model.OpenStatuses,
		DeadlineAfter: &now,
		DeadlineTo:    &ahead,
	}); err != nil {
		return Dashboard{}, err
	}

	from, to := s.trailingWeek(now)
	if dash.DoneLast7, err = s.tasks.CountTasks(ctx, userID, model.TaskFilter{
		Statuses:      []model.TaskStatus{model.StatusDone},
		CompletedFrom: &from,
		CompletedTo:   &to,
	}); err != nil {
		return Dashboard{}, err
	}
	if dash.Streak, err = s.Streak(ctx, userID, now); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}

// trailingWeek spans the seven calendar days ending with today's.
func (s *StatsService) trailingWeek(today time.Time) (time.Time, time.Time) {
	last := s.startOfDay(today)
	return last.AddDate(0, 0, -(completionWindow - 1)), s.endOfDay(last)
}

func (s *StatsService) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *StatsService) endOfDay(dayStart time.Time) time.Time {
	return dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func (s *StatsService) dateKey(t time.Time) string {
	return t.In(s.loc).Format(dateLayout)
}
