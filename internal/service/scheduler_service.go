package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"study-planner/internal/logger"
	"study-planner/internal/metrics"
)

// Job is a background task run by the scheduler.
type Job func(ctx context.Context) error

// SchedulerService wraps cron-based jobs. Every run gets its own timeout and
// a panic in one job does not stop the others.
type SchedulerService struct {
	cron    *cron.Cron
	timeout time.Duration
	log     zerolog.Logger
}

func NewSchedulerService(loc *time.Location, jobTimeout time.Duration) *SchedulerService {
	log := logger.With("scheduler")
	cronLog := cron.PrintfLogger(logger.Printer{Logger: log, Level: zerolog.ErrorLevel})
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		timeout: jobTimeout,
		log:     log,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(name, timeStr string, job Job) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, s.wrap(name, job))
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(name string, interval time.Duration, job Job) (cron.EntryID, error) {
	if interval < time.Second {
		return 0, fmt.Errorf("interval must be at least one second, got %s", interval)
	}
	return s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.wrap(name, job))), nil
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SchedulerService) wrap(name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		started := time.Now()
		if err := job(ctx); err != nil {
			metrics.JobRuns.WithLabelValues(name, "error").Inc()
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		metrics.JobRuns.WithLabelValues(name, "ok").Inc()
		s.log.Debug().Str("job", name).Dur("took", time.Since(started)).Msg("job done")
	}
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
