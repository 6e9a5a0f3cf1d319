package bot

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
	"study-planner/internal/notify"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

type fakeMessenger struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1].Text
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const chatID int64 = 555

func newTestBot(t *testing.T) (*Bot, *fakeMessenger, Services) {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	tasks := repository.NewTaskRepository(db)
	reminders := repository.NewReminderRepository(db)
	users := repository.NewUserRepository(db)
	courses := service.NewCourseService(repository.NewCourseRepository(db))
	stats := service.NewStatsService(tasks, time.UTC)
	svc := Services{
		Users:     users,
		Courses:   courses,
		Tasks:     service.NewTaskService(tasks, reminders, courses, service.NewForecastService(tasks), time.UTC),
		Reminders: service.NewReminderService(reminders, tasks, users, stats),
		Events:    service.NewEventService(repository.NewEventRepository(db), time.UTC),
		Stats:     stats,
	}

	fake := &fakeMessenger{}
	b := newBot(fake, svc)
	b.now = func() time.Time { return testNow }
	return b, fake, svc
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: chatID, FirstName: "Ann"},
		Chat: &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text: text,
	}
}

func command(text string) *tgbotapi.Message {
	msg := textMessage(text)
	end := len(text)
	for i, r := range text {
		if r == ' ' {
			end = i
			break
		}
	}
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	return msg
}

func send(t *testing.T, b *Bot, msg *tgbotapi.Message) {
	t.Helper()
	require.NoError(t, b.handleMessage(context.Background(), msg))
}

func ownerID(t *testing.T, svc Services) uint {
	t.Helper()
	user, err := svc.Users.UpsertFromTelegram(context.Background(), chatID, "Ann", "", "")
	require.NoError(t, err)
	return user.ID
}

func TestNewTaskConversation(t *testing.T) {
	b, fake, svc := newTestBot(t)

	send(t, b, command("/newtask"))
	assert.Contains(t, fake.last(t), "Шаг 1/5")
	send(t, b, textMessage("  курсовая  "))
	assert.Contains(t, fake.last(t), "Шаг 2/5")
	send(t, b, textMessage("Физика"))
	assert.Contains(t, fake.last(t), "Шаг 3/5")

	send(t, b, textMessage("2025-03-01"))
	assert.Contains(t, fake.last(t), "уже прошёл")
	send(t, b, textMessage("когда-нибудь"))
	assert.Contains(t, fake.last(t), "Не могу распознать дату")
	send(t, b, textMessage("2025-03-20 18:00"))
	assert.Contains(t, fake.last(t), "Шаг 4/5")

	send(t, b, textMessage("2ч"))
	assert.Contains(t, fake.last(t), "Шаг 5/5")
	send(t, b, textMessage("9"))
	assert.Contains(t, fake.last(t), "от 1 до 5")
	send(t, b, textMessage("4"))

	assert.False(t, b.hasConversation(chatID))

	tasks, err := svc.Tasks.ListActive(context.Background(), ownerID(t, svc))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "курсовая", task.Title)
	assert.Equal(t, 120, task.EstimatedMinutes)
	assert.Equal(t, 4, task.Priority)
	require.NotNil(t, task.Course)
	assert.Equal(t, "Физика", task.Course.Name)
	require.NotNil(t, task.Deadline)
	assert.True(t, task.Deadline.Equal(time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)))

	// Summary followed by the task list.
	require.GreaterOrEqual(t, len(fake.sent), 2)
	assert.Contains(t, fake.sent[len(fake.sent)-2].Text, "Задача сохранена")
	assert.Contains(t, fake.last(t), "Текущие задачи")
}

func TestNewTaskConversationSkipsAndCancel(t *testing.T) {
	b, fake, svc := newTestBot(t)

	send(t, b, command("/newtask"))
	send(t, b, textMessage(btnCancelDialog))
	assert.False(t, b.hasConversation(chatID))
	assert.Contains(t, fake.last(t), "Ввод отменён")

	send(t, b, command("/newtask"))
	send(t, b, textMessage("Read"))
	for i := 0; i < 4; i++ {
		send(t, b, textMessage(btnSkip))
	}
	tasks, err := svc.Tasks.ListActive(context.Background(), ownerID(t, svc))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].Course)
	assert.Nil(t, tasks[0].Deadline)
	assert.Equal(t, model.DefaultPriority, tasks[0].Priority)
	assert.Equal(t, model.DefaultEstimatedMinutes, tasks[0].EstimatedMinutes)
}

func TestToggleAndTaskDetail(t *testing.T) {
	b, fake, svc := newTestBot(t)
	task, err := svc.Tasks.CreateTask(context.Background(), ownerID(t, svc), service.TaskInput{Title: "Lab"}, testNow)
	require.NoError(t, err)

	send(t, b, command("/toggle abc"))
	assert.Contains(t, fake.last(t), "Укажи ID")

	send(t, b, command("/toggle 999"))
	assert.Contains(t, fake.last(t), "не найдена")

	cb := &tgbotapi.CallbackQuery{
		ID:      "1",
		From:    &tgbotapi.User{ID: chatID},
		Message: textMessage(""),
		Data:    cbTogglePrefix + uintString(task.ID),
	}
	require.NoError(t, b.handleCallback(context.Background(), cb))
	assert.Contains(t, fake.last(t), "в работе")

	send(t, b, command("/toggle "+uintString(task.ID)))
	assert.Contains(t, fake.last(t), "готово")
	send(t, b, command("/toggle "+uintString(task.ID)))
	assert.Contains(t, fake.last(t), "уже выполнена")

	send(t, b, command("/task "+uintString(task.ID)))
	assert.Contains(t, fake.last(t), "Прогноз: у задачи нет дедлайна")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	b, fake, svc := newTestBot(t)
	userID := ownerID(t, svc)
	task, err := svc.Tasks.CreateTask(context.Background(), userID, service.TaskInput{Title: "Old"}, testNow)
	require.NoError(t, err)

	send(t, b, command("/delete "+uintString(task.ID)))
	assert.Contains(t, fake.last(t), "Удалить задачу")
	send(t, b, textMessage("нет"))
	assert.Contains(t, fake.last(t), "отменено")
	_, err = svc.Tasks.GetTask(context.Background(), userID, task.ID)
	require.NoError(t, err)

	send(t, b, command("/delete "+uintString(task.ID)))
	send(t, b, textMessage(btnConfirm))
	assert.Contains(t, fake.last(t), "удалена")
	_, err = svc.Tasks.GetTask(context.Background(), userID, task.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteConfirmCallbackMustMatchPending(t *testing.T) {
	b, fake, svc := newTestBot(t)
	userID := ownerID(t, svc)
	task, err := svc.Tasks.CreateTask(context.Background(), userID, service.TaskInput{Title: "Keep"}, testNow)
	require.NoError(t, err)

	cb := &tgbotapi.CallbackQuery{
		ID:      "1",
		From:    &tgbotapi.User{ID: chatID},
		Message: textMessage(""),
		Data:    cbConfirmPrefix + uintString(task.ID),
	}
	require.NoError(t, b.handleCallback(context.Background(), cb))
	assert.Contains(t, fake.last(t), "устарел")
	_, err = svc.Tasks.GetTask(context.Background(), userID, task.ID)
	require.NoError(t, err)
}

func TestInfoCommands(t *testing.T) {
	b, fake, svc := newTestBot(t)
	userID := ownerID(t, svc)
	_, err := svc.Courses.Create(context.Background(), userID, service.CourseInput{Name: "Chemistry", Teacher: "Dr. <Smith>"})
	require.NoError(t, err)

	send(t, b, command("/courses"))
	assert.Contains(t, fake.last(t), "Chemistry")
	assert.Contains(t, fake.last(t), "Dr. &lt;Smith&gt;")

	send(t, b, command("/today"))
	assert.Contains(t, fake.last(t), "Ежедневный отчёт")

	send(t, b, command("/stats"))
	assert.Contains(t, fake.last(t), "Статистика")

	send(t, b, command("/week 2025-03-17"))
	assert.Contains(t, fake.last(t), "Неделя с 2025-03-17")
	send(t, b, command("/week next"))
	assert.Contains(t, fake.last(t), "формате")

	send(t, b, textMessage(menuLabelWeek))
	assert.Contains(t, fake.last(t), "Неделя с 2025-03-10")

	send(t, b, command("/unknown"))
	assert.Contains(t, fake.last(t), "не поддерживается")
}

func TestNotify(t *testing.T) {
	b, fake, _ := newTestBot(t)
	ctx := context.Background()

	err := b.Notify(ctx, model.User{ID: 1}, notify.Message{Body: "hi"})
	assert.ErrorIs(t, err, notify.ErrNoChannel)

	tgID := int64(42)
	require.NoError(t, b.Notify(ctx, model.User{ID: 1, TelegramID: &tgID}, notify.Message{Body: "⏰ <Напоминание>"}))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, tgID, fake.sent[0].ChatID)
	assert.Equal(t, "⏰ <Напоминание>", fake.sent[0].Text)
	assert.Empty(t, fake.sent[0].ParseMode)

	fake.err = errors.New("telegram down")
	assert.Error(t, b.Notify(ctx, model.User{ID: 1, TelegramID: &tgID}, notify.Message{Body: "x"}))
}

func TestSendDailyReports(t *testing.T) {
	b, fake, svc := newTestBot(t)
	ctx := context.Background()
	for _, id := range []int64{10, 11} {
		_, err := svc.Users.UpsertFromTelegram(ctx, id, "U", "", "")
		require.NoError(t, err)
	}
	_, err := svc.Users.Ensure(ctx, 500)
	require.NoError(t, err)

	require.NoError(t, b.SendDailyReports(ctx))
	require.Len(t, fake.sent, 2)
	assert.Equal(t, int64(10), fake.sent[0].ChatID)
	assert.Equal(t, int64(11), fake.sent[1].ChatID)
	assert.Contains(t, fake.sent[0].Text, "10.03.2025")
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
