package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"study-planner/internal/logger"
	"study-planner/internal/model"
	"study-planner/internal/notify"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageCourse
	stageDeadline
	stageEstimate
	stagePriority
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationRequest struct {
	taskID uint
}

// messenger is the part of the Telegram API the bot talks through.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services are the dependencies the bot drives.
type Services struct {
	Users     *repository.UserRepository
	Courses   *service.CourseService
	Tasks     *service.TaskService
	Reminders *service.ReminderService
	Events    *service.EventService
	Stats     *service.StatsService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	client        *tgbotapi.BotAPI
	api           messenger
	svc           Services
	loc           *time.Location
	now           func() time.Time
	log           zerolog.Logger
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(client, svc)
	b.client = client
	b.log.Info().Str("account", client.Self.UserName).Msg("bot authorized")
	return b, nil
}

func newBot(api messenger, svc Services) *Bot {
	return &Bot{
		api:           api,
		svc:           svc,
		loc:           svc.Stats.Location(),
		now:           time.Now,
		log:           logger.With("bot"),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return errors.New("bot has no telegram client")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.client.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.client.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

// Notify delivers a reminder to the user's Telegram chat.
func (b *Bot) Notify(ctx context.Context, user model.User, msg notify.Message) error {
	if user.TelegramID == nil {
		return notify.ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	out := tgbotapi.NewMessage(*user.TelegramID, msg.Body)
	if _, err := b.api.Send(out); err != nil {
		return fmt.Errorf("send telegram message to user %d: %w", user.ID, err)
	}
	return nil
}

// SendDailyReports sends the morning summary to every Telegram user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.svc.Users.ListWithTelegram(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.svc.Reminders.DailySummary(ctx, user, now)
		if err != nil {
			b.log.Error().Err(err).Uint("user_id", user.ID).Msg("build summary")
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			b.log.Error().Err(err).Uint("user_id", user.ID).Msg("send summary")
		}
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён. Можно начать заново.")
	}

	if msg.IsCommand() {
		b.log.Debug().Int64("from", msg.From.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "task":
		return b.handleTask(ctx, msg)
	case "toggle":
		return b.handleToggle(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "courses":
		return b.handleCourses(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "week":
		return b.handleWeek(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelWeek):
		return true, b.handleWeek(ctx, msg)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я учебный планировщик: слежу за дедлайнами и темпом.</b>\n\n%s",
		escape(name), helpText,
	)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Команды:\n" +
	"• /newtask — добавить задачу пошагово\n" +
	"• /tasks — активные задачи по курсам\n" +
	"• /task &lt;id&gt; — подробности и прогноз\n" +
	"• /toggle &lt;id&gt; — следующий статус (TODO → DOING → DONE)\n" +
	"• /delete &lt;id&gt; — удалить задачу\n" +
	"• /courses — список курсов\n" +
	"• /today — что горит сегодня\n" +
	"• /week [ГГГГ-ММ-ДД] — расписание недели\n" +
	"• /stats — статистика и серия\n" +
	"• /cancel — отменить текущий ввод"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Подсказки</b>\n"+helpText)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.svc.Tasks.ListActive(ctx, user.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "У тебя нет активных задач. Добавь новую через /newtask.")
	}

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString("📋 <b>Текущие задачи</b>\n")
	builder.WriteString("Кнопка переводит задачу на следующий статус.\n\n")

	var ordered []model.Task
	for _, group := range groupByCourse(tasks) {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", group.Name))
		for _, task := range group.Tasks {
			builder.WriteString(formatTask(task, now))
			ordered = append(ordered, task)
		}
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(taskButtons(ordered)...)
	out.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleTask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /task 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	now := b.now()
	task, forecast, err := b.svc.Tasks.Forecast(ctx, user.ID, taskID, now)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatTaskDetail(*task, forecast, now.In(b.loc)))
}

func (b *Bot) handleToggle(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /toggle 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.toggleTask(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) toggleTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	before, err := b.svc.Tasks.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if before.Status == model.StatusDone {
		return b.sendText(chatID, fmt.Sprintf("Задача «%s» уже выполнена.", escape(normalizeTitle(before.Title))))
	}
	task, err := b.svc.Tasks.AdvanceTask(ctx, user.ID, taskID, b.now())
	if err != nil {
		return b.replyError(chatID, err)
	}
	b.log.Info().Uint("task_id", task.ID).Uint("user_id", user.ID).Str("status", string(task.Status)).Msg("task advanced")
	return b.sendText(chatID, fmt.Sprintf("Задача «%s»: %s", escape(normalizeTitle(task.Title)), statusLabel(task.Status)))
}

// handleDelete asks for confirmation before removing a task.
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /delete 12")
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}

	text := fmt.Sprintf("Удалить задачу «%s» (#%d) вместе с напоминаниями?", escape(normalizeTitle(task.Title)), task.ID)
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID})
	return b.sendWithReplyMarkup(chatID, text, confirmInlineKeyboard(task.ID))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteTask(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Удаление отменено.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление задачи.", confirmKeyboard())
	}
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if err := b.svc.Tasks.DeleteTask(ctx, user.ID, taskID); err != nil {
		return b.replyError(chatID, err)
	}
	b.log.Info().Uint("task_id", taskID).Uint("user_id", user.ID).Msg("task deleted")
	return b.sendText(chatID, fmt.Sprintf("🗑 Задача «%s» удалена.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleCourses(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	courses, err := b.svc.Courses.List(ctx, user.ID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if len(courses) == 0 {
		return b.sendText(msg.Chat.ID, "Курсов пока нет. Они появятся, когда ты укажешь курс при создании задачи.")
	}
	var builder strings.Builder
	builder.WriteString("📚 <b>Курсы</b>\n")
	for _, course := range courses {
		line := "• " + escape(strings.TrimSpace(course.Name))
		if course.Teacher != "" {
			line += fmt.Sprintf(" <i>(%s)</i>", escape(course.Teacher))
		}
		builder.WriteString(line + "\n")
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.svc.Reminders.DailySummary(ctx, *user, b.now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	ov, err := b.svc.Stats.Overview(ctx, user.ID, b.now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatOverview(ov))
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) error {
	var weekStart time.Time
	if msg.IsCommand() {
		if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
			t, err := time.ParseInLocation(dayLayout, arg, b.loc)
			if err != nil {
				return b.sendText(msg.Chat.ID, "Дата недели в формате <code>2025-03-10</code>.")
			}
			weekStart = t
		}
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	week, err := b.svc.Events.Week(ctx, user.ID, weekStart, b.now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatWeek(week, b.loc))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Debug().Int64("from", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		taskID, err := parseTaskID(data, cbTogglePrefix)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.toggleTask(ctx, chatID, user, taskID)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID, err := parseTaskID(data, cbConfirmPrefix)
		if err != nil {
			return nil
		}
		pending, ok := b.getConfirmation(cb.From.ID)
		if !ok || pending.taskID != taskID {
			return b.sendText(chatID, "Запрос на удаление устарел. Повтори /delete.")
		}
		b.clearConfirmation(cb.From.ID)
		return b.deleteTask(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		return b.sendText(chatID, "Удаление отменено.")
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.svc.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

// replyError turns a service error into a chat message. Only unexpected
// errors are logged.
func (b *Bot) replyError(chatID int64, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return b.sendText(chatID, "Задача не найдена.")
	case model.IsValidation(err), errors.Is(err, model.ErrDuplicateCourse):
		return b.sendText(chatID, fmt.Sprintf("Не получилось: %s", escape(err.Error())))
	default:
		b.log.Error().Err(err).Msg("request failed")
		return b.sendText(chatID, "Что-то пошло не так, попробуй ещё раз позже.")
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
