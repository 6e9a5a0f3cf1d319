package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"study-planner/internal/logger"
	"study-planner/internal/model"
	"study-planner/internal/notify"
	"study-planner/internal/repository"
)

const dispatchBatch = 100

// ReminderInput is the user-editable part of a reminder.
type ReminderInput struct {
	TaskID   uint
	RemindAt time.Time
	IsSent   bool
}

// DispatchResult counts the outcome of one dispatch run.
type DispatchResult struct {
	Sent   int
	Failed int
}

// ReminderService manages reminders, delivers due ones and builds the daily
// summary text.
type ReminderService struct {
	reminderRepo *repository.ReminderRepository
	taskRepo     *repository.TaskRepository
	userRepo     *repository.UserRepository
	stats        *StatsService
	notifiers    []notify.Notifier
}

func NewReminderService(reminderRepo *repository.ReminderRepository, taskRepo *repository.TaskRepository, userRepo *repository.UserRepository, stats *StatsService, notifiers ...notify.Notifier) *ReminderService {
	return &ReminderService{
		reminderRepo: reminderRepo,
		taskRepo:     taskRepo,
		userRepo:     userRepo,
		stats:        stats,
		notifiers:    notifiers,
	}
}

// AddNotifier registers another delivery channel. It must be called before
// the scheduler starts.
func (s *ReminderService) AddNotifier(n notify.Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *ReminderService) List(ctx context.Context, userID uint) ([]model.Reminder, error) {
	return s.reminderRepo.ListByUser(ctx, userID)
}

func (s *ReminderService) Get(ctx context.Context, userID, reminderID uint) (*model.Reminder, error) {
	return s.reminderRepo.FindByID(ctx, userID, reminderID)
}

// Create adds a reminder for one of the owner's tasks.
func (s *ReminderService) Create(ctx context.Context, userID uint, input ReminderInput) (*model.Reminder, error) {
	reminder := model.Reminder{UserID: userID}
	if err := s.apply(ctx, &reminder, input); err != nil {
		return nil, err
	}
	if err := s.reminderRepo.Create(ctx, &reminder); err != nil {
		return nil, err
	}
	return s.reminderRepo.FindByID(ctx, userID, reminder.ID)
}

func (s *ReminderService) Update(ctx context.Context, userID, reminderID uint, input ReminderInput) (*model.Reminder, error) {
	reminder, err := s.reminderRepo.FindByID(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, reminder, input); err != nil {
		return nil, err
	}
	if err := s.reminderRepo.Save(ctx, reminder); err != nil {
		return nil, err
	}
	return s.reminderRepo.FindByID(ctx, userID, reminderID)
}

func (s *ReminderService) Delete(ctx context.Context, userID, reminderID uint) error {
	return s.reminderRepo.Delete(ctx, userID, reminderID)
}

func (s *ReminderService) apply(ctx context.Context, reminder *model.Reminder, input ReminderInput) error {
	reminder.RemindAt = input.RemindAt
	reminder.IsSent = input.IsSent
	if err := reminder.Validate(); err != nil {
		return err
	}
	// A reminder may only point at a task of the same owner.
	task, err := s.taskRepo.FindByID(ctx, reminder.UserID, input.TaskID)
	if err != nil {
		return err
	}
	reminder.TaskID = task.ID
	reminder.Task = nil
	return nil
}

// DispatchDue delivers every unsent reminder whose time has come. A reminder
// is marked sent once at least one channel accepted it; otherwise it stays
// pending for the next run.
func (s *ReminderService) DispatchDue(ctx context.Context, now time.Time) (DispatchResult, error) {
	var result DispatchResult
	due, err := s.reminderRepo.ListDue(ctx, now, dispatchBatch)
	if err != nil {
		return result, err
	}
	if len(due) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(due))
	for _, r := range due {
		ids = append(ids, r.UserID)
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return result, err
	}
	byID := make(map[uint]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	log := logger.With("reminders")
	for _, reminder := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		user, ok := byID[reminder.UserID]
		if !ok {
			log.Warn().Uint("reminder_id", reminder.ID).Uint("user_id", reminder.UserID).Msg("reminder owner not found")
			result.Failed++
			continue
		}
		if !s.deliver(ctx, user, reminderMessage(reminder, now)) {
			result.Failed++
			continue
		}
		if err := s.reminderRepo.MarkSent(ctx, reminder.ID); err != nil {
			return result, err
		}
		result.Sent++
		log.Info().Uint("reminder_id", reminder.ID).Uint("user_id", user.ID).Msg("reminder sent")
	}
	return result, nil
}

func (s *ReminderService) deliver(ctx context.Context, user model.User, msg notify.Message) bool {
	log := logger.With("reminders")
	delivered := false
	for _, n := range s.notifiers {
		err := n.Notify(ctx, user, msg)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, notify.ErrNoChannel):
			log.Debug().Uint("user_id", user.ID).Str("channel", fmt.Sprintf("%T", n)).Msg("no channel for user")
		default:
			log.Error().Err(err).Uint("user_id", user.ID).Msg("deliver reminder")
		}
	}
	return delivered
}

func reminderMessage(reminder model.Reminder, now time.Time) notify.Message {
	title := "задача"
	var body strings.Builder
	if reminder.Task != nil {
		title = strings.TrimSpace(reminder.Task.Title)
	}
	body.WriteString(fmt.Sprintf("⏰ Напоминание: %s", title))
	if reminder.Task != nil && reminder.Task.Deadline != nil {
		d := reminder.Task.Deadline.In(now.Location())
		body.WriteString(fmt.Sprintf("\nДедлайн: %s", d.Format("2006-01-02 15:04")))
	}
	return notify.Message{
		Subject: fmt.Sprintf("Напоминание: %s", title),
		Body:    body.String(),
	}
}

// DailySummary builds the morning report for one user: tasks due today,
// overdue and upcoming, plus the streak.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	dash, err := s.stats.Dashboard(ctx, user.ID, now)
	if err != nil {
		return "", err
	}
	local := now.In(s.stats.Location())

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", local.Format("02.01.2006")))

	writeSection(&builder, "🔥 <b>На сегодня</b>\n", "— на сегодня дедлайнов нет\n", dash.DueToday, local)
	writeSection(&builder, "\n⚠️ <b>Просрочено</b>\n", "— просроченных задач нет\n", dash.Overdue, local)
	writeSection(&builder, "\n⏳ <b>Ближайшие 7 дней</b>\n", "— ничего не горит\n", dash.DueSoon, local)

	builder.WriteString(fmt.Sprintf("\n✅ Выполнено за неделю: %d\n", dash.DoneLast7))
	builder.WriteString(fmt.Sprintf("🔥 Серия: %d дн.", dash.Streak))
	return strings.TrimSpace(builder.String()), nil
}

func writeSection(b *strings.Builder, header, empty string, tasks []model.Task, now time.Time) {
	b.WriteString(header)
	if len(tasks) == 0 {
		b.WriteString(empty)
		return
	}
	for _, task := range tasks {
		b.WriteString(formatTask(task, now))
	}
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, task.ID, title))

	if task.Course != nil {
		if name := strings.TrimSpace(task.Course.Name); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
	}

	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s, <b>просрочено</b>", d.Format("2006-01-02 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · осталось ≈%d дн.", d.Format("2006-01-02 15:04"), DaysLeft(now, d)))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}
