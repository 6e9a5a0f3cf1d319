package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"study-planner/internal/bot"
	"study-planner/internal/config"
	"study-planner/internal/httpapi"
	"study-planner/internal/logger"
	"study-planner/internal/metrics"
	"study-planner/internal/notify"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

const (
	jobTimeout      = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("load config")
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("planner stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("planner stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	loc := cfg.Location()
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	userRepo := repository.NewUserRepository(db)

	courses := service.NewCourseService(repository.NewCourseRepository(db))
	stats := service.NewStatsService(taskRepo, loc)
	tasks := service.NewTaskService(taskRepo, reminderRepo, courses, service.NewForecastService(taskRepo), loc)
	reminders := service.NewReminderService(reminderRepo, taskRepo, userRepo, stats)
	events := service.NewEventService(repository.NewEventRepository(db), loc)

	if cfg.SMTP.Host != "" {
		reminders.AddNotifier(notify.NewEmailNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From))
		logger.Info().Str("host", cfg.SMTP.Host).Msg("e-mail reminders enabled")
	}

	var tgBot *bot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg.TelegramToken, bot.Services{
			Users:     userRepo,
			Courses:   courses,
			Tasks:     tasks,
			Reminders: reminders,
			Events:    events,
			Stats:     stats,
		})
		if err != nil {
			return err
		}
		reminders.AddNotifier(tgBot)
	}

	scheduler := service.NewSchedulerService(loc, jobTimeout)
	if _, err := scheduler.ScheduleInterval("reminders", cfg.ReminderInterval, func(ctx context.Context) error {
		result, err := reminders.DispatchDue(ctx, time.Now())
		metrics.RemindersSent.Add(float64(result.Sent))
		metrics.RemindersFailed.Add(float64(result.Failed))
		return err
	}); err != nil {
		return err
	}
	if tgBot != nil {
		if _, err := scheduler.ScheduleDaily("daily_report", cfg.DailyReportAt, tgBot.SendDailyReports); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 2)

	var srv *http.Server
	if cfg.HTTP.Enabled {
		srv = startHTTP(cfg, db, httpapi.Deps{
			Users:     userRepo,
			Tasks:     tasks,
			Courses:   courses,
			Reminders: reminders,
			Events:    events,
			Stats:     stats,
			JWTSecret: []byte(cfg.HTTP.JWTSecret),
		}, errCh)
	}

	if tgBot != nil {
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err = <-errCh:
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("http server forced to shutdown")
		}
	}
	return err
}

func startHTTP(cfg config.Config, db *gorm.DB, deps httpapi.Deps, errCh chan<- error) *http.Server {
	limiter := httpapi.NewRateLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps.DB = db
	deps.RateLimiter = limiter
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		if err := limiter.Close(); err != nil {
			logger.Warn().Err(err).Msg("close rate limiter")
		}
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv
}
