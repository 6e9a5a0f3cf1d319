package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1/5:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageCourse
		return b.askCourse(ctx, msg)
	case stageCourse:
		if !isSkipInput(text) {
			state.input.Course = text
		}
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"<b>Шаг 3/5:</b> ⏰ дедлайн в формате <code>2025-11-30</code> или <code>2025-11-30 18:00</code> (можно «Пропустить»).",
			skipKeyboard())
	case stageDeadline:
		if !isSkipInput(text) {
			deadline, err := parseDeadline(text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			if deadline.Before(b.now()) {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Дедлайн уже прошёл. Укажи дату в будущем или «Пропустить».", skipKeyboard())
			}
			state.input.Deadline = &deadline
		}
		state.stage = stageEstimate
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("<b>Шаг 4/5:</b> ⌛ сколько времени займёт? Минуты (<code>90</code>) или часы (<code>1.5ч</code>). По умолчанию %d мин.", model.DefaultEstimatedMinutes),
			skipKeyboard())
	case stageEstimate:
		if !isSkipInput(text) {
			minutes, err := parseEstimate(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать оценку. Пример: <code>45</code>, <code>2ч</code>.", skipKeyboard())
			}
			state.input.EstimatedMinutes = &minutes
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("<b>Шаг 5/5:</b> ⭐ приоритет от 1 до 5 (по умолчанию %d).", model.DefaultPriority),
			priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			priority, err := parsePriority(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Приоритет должен быть числом от 1 до 5.", priorityKeyboard())
			}
			state.input.Priority = &priority
		}
		err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

func (b *Bot) askCourse(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	courses, err := b.svc.Courses.List(ctx, user.ID)
	if err != nil {
		b.log.Warn().Err(err).Uint("user_id", user.ID).Msg("list courses for keyboard")
	}
	return b.sendWithReplyMarkup(msg.Chat.ID,
		"<b>Шаг 2/5:</b> 📚 выбери курс или напиши новый (можно «Пропустить»).",
		courseKeyboard(courses))
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.CreateTask(ctx, user.ID, input, b.now())
	if err != nil {
		return b.replyError(chatID, err)
	}

	b.log.Info().Uint("task_id", task.ID).Uint("user_id", user.ID).Msg("task created")

	now := b.now().In(b.loc)
	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Course != nil {
		summary.WriteString(fmt.Sprintf("• <b>Курс:</b> %s\n", escape(task.Course.Name)))
	}
	if task.Deadline != nil {
		summary.WriteString(fmt.Sprintf("• <b>Дедлайн:</b> %s\n", task.Deadline.In(now.Location()).Format(minuteLayout)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Оценка:</b> %d мин, <b>приоритет:</b> %d\n", task.EstimatedMinutes, task.Priority))

	if err := b.sendText(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}
