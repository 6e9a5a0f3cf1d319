package bot

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

const (
	noCourse      = "Без курса"
	noCourseKey   = "__no_course__"
	iconDefault   = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconDone      = "✅"
	dayLayout     = "2006-01-02"
	minuteLayout  = "2006-01-02 15:04"
	maxEstimateHr = 24 * 14
)

var (
	errBadDate     = errors.New("не могу распознать дату")
	errBadEstimate = errors.New("не могу распознать оценку времени")
	errBadPriority = errors.New("приоритет должен быть числом от 1 до 5")
)

var deadlineLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006-01-02 15:04", true},
	{"02.01.2006 15:04", true},
	{"2006-01-02", false},
	{"02.01.2006", false},
}

// parseDeadline reads a deadline typed by the user in loc. A bare date means
// the end of that day.
func parseDeadline(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, l := range deadlineLayouts {
		t, err := time.ParseInLocation(l.layout, text, loc)
		if err != nil {
			continue
		}
		if !l.hasTime {
			t = t.Add(23*time.Hour + 59*time.Minute)
		}
		return t, nil
	}
	return time.Time{}, errBadDate
}

// parseEstimate accepts plain minutes ("90") or a duration ("1.5h", "2ч",
// "45мин").
func parseEstimate(text string) (int, error) {
	value := strings.ToLower(strings.TrimSpace(text))
	if value == "" {
		return 0, errBadEstimate
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 {
			return 0, errBadEstimate
		}
		return n, nil
	}
	value = strings.ReplaceAll(value, ",", ".")
	value = strings.NewReplacer("мин", "m", "м", "m", "ч", "h", " ", "").Replace(value)
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || d > maxEstimateHr*time.Hour {
		return 0, errBadEstimate
	}
	return int(d.Round(time.Minute) / time.Minute), nil
}

func parsePriority(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < model.MinPriority || n > model.MaxPriority {
		return 0, errBadPriority
	}
	return n, nil
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(data, prefix))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return uint(value), nil
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func statusLabel(status model.TaskStatus) string {
	switch status {
	case model.StatusTodo:
		return "📝 к выполнению"
	case model.StatusDoing:
		return "🔄 в работе"
	case model.StatusDone:
		return "✅ готово"
	}
	return string(status)
}

func courseLabel(name string) string {
	base := strings.TrimSpace(name)
	if base == "" || base == noCourse {
		return "📁 " + noCourse
	}
	return "📚 " + escape(normalizeTitle(base))
}

type courseGroup struct {
	Name  string
	Tasks []model.Task
}

// groupByCourse splits tasks by course, courses alphabetically and tasks
// without a course last. Inside a group the nearest deadline comes first.
func groupByCourse(tasks []model.Task) []courseGroup {
	groups := make(map[string]*courseGroup)
	var order []string
	for _, task := range tasks {
		key, display := noCourseKey, courseLabel("")
		if task.Course != nil && strings.TrimSpace(task.Course.Name) != "" {
			key = strings.ToLower(strings.TrimSpace(task.Course.Name))
			display = courseLabel(task.Course.Name)
		}
		group, ok := groups[key]
		if !ok {
			group = &courseGroup{Name: display}
			groups[key] = group
			order = append(order, key)
		}
		group.Tasks = append(group.Tasks, task)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == noCourseKey {
			return false
		}
		if order[j] == noCourseKey {
			return true
		}
		return order[i] < order[j]
	})

	out := make([]courseGroup, 0, len(order))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group.Tasks, func(i, j int) bool {
			a, b := group.Tasks[i], group.Tasks[j]
			switch {
			case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
				return a.Deadline.Before(*b.Deadline)
			case a.Deadline != nil && b.Deadline == nil:
				return true
			case a.Deadline == nil && b.Deadline != nil:
				return false
			}
			return a.ID < b.ID
		})
		out = append(out, *group)
	}
	return out
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	if task.Status == model.StatusDone {
		icon = iconDone
	} else if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			icon = iconOverdue
		} else if d.Sub(now) <= 48*time.Hour {
			icon = iconDue
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("   %s · P%d · %d мин\n", statusLabel(task.Status), task.Priority, task.EstimatedMinutes))
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ Дедлайн: %s, <b>просрочено</b>\n", d.Format(minuteLayout)))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ Дедлайн: %s · осталось ≈%d дн.\n", d.Format(minuteLayout), service.DaysLeft(now, d)))
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func formatForecast(f service.Forecast) string {
	switch f.Status {
	case service.ForecastNoDeadline:
		return "🔮 Прогноз: у задачи нет дедлайна."
	case service.ForecastDeadlinePassed:
		return "🔮 Прогноз: дедлайн уже прошёл."
	case service.ForecastNoData:
		return "🔮 Прогноз: за последние 7 дней нет выполненных задач, оценить темп нельзя."
	}
	if f.ForecastEstimate == nil {
		return "🔮 Прогноз: " + string(f.Status)
	}
	verdict := "✅ успеваешь"
	if f.Status == service.ForecastRisk {
		verdict = "🚨 есть риск не успеть"
	}
	return fmt.Sprintf(
		"🔮 Прогноз: %s\n   Осталось работы: %d мин до дедлайна\n   Дней в запасе: %d\n   Темп: ≈%.0f мин/день, успеешь ≈%.0f мин",
		verdict, f.RemainingMinutes, f.DaysLeft, f.CapacityPerDay, f.CapacityTotal,
	)
}

func formatTaskDetail(task model.Task, forecast service.Forecast, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📌 <b>#%d %s</b>\n", task.ID, escape(normalizeTitle(task.Title))))
	if task.Course != nil {
		b.WriteString(fmt.Sprintf("• <b>Курс:</b> %s\n", escape(task.Course.Name)))
	}
	b.WriteString(fmt.Sprintf("• <b>Статус:</b> %s\n", statusLabel(task.Status)))
	b.WriteString(fmt.Sprintf("• <b>Приоритет:</b> %d\n", task.Priority))
	b.WriteString(fmt.Sprintf("• <b>Оценка:</b> %d мин\n", task.EstimatedMinutes))
	if task.Deadline != nil {
		b.WriteString(fmt.Sprintf("• <b>Дедлайн:</b> %s\n", task.Deadline.In(now.Location()).Format(minuteLayout)))
	}
	if task.CompletedAt != nil {
		b.WriteString(fmt.Sprintf("• <b>Выполнена:</b> %s\n", task.CompletedAt.In(now.Location()).Format(minuteLayout)))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	b.WriteString(formatForecast(forecast))
	return b.String()
}

func formatOverview(ov service.Overview) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статистика</b>\n")
	b.WriteString(fmt.Sprintf("• Всего задач: %d, выполнено: %d\n", ov.TotalTasks, ov.TotalDone))
	b.WriteString(fmt.Sprintf("• Выполнение за 7 дней: %d%%\n", ov.Completion))
	b.WriteString(fmt.Sprintf("• Серия: %d дн.\n", ov.Streak))

	b.WriteString("\n<b>Последние 7 дней</b>\n")
	daily := ov.Daily
	if len(daily) > 7 {
		daily = daily[len(daily)-7:]
	}
	for _, day := range daily {
		bar := strings.Repeat("▇", min(day.CompletedCount, 10))
		if bar == "" {
			bar = "·"
		}
		b.WriteString(fmt.Sprintf("<code>%s</code> %s %d (%d мин)\n", day.Date, bar, day.CompletedCount, day.CompletedMinutes))
	}
	return strings.TrimSpace(b.String())
}

var weekdays = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

func formatWeek(week service.Week, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗓 <b>Неделя с %s</b>\n", week.Start))
	for i, day := range week.Days {
		name := ""
		if i < len(weekdays) {
			name = weekdays[i]
		}
		b.WriteString(fmt.Sprintf("\n<b>%s %s</b>\n", name, day.Date))
		if len(day.Events) == 0 {
			b.WriteString("— свободно\n")
			continue
		}
		for _, event := range day.Events {
			line := fmt.Sprintf("• %s %s", event.StartAt.In(loc).Format("15:04"), escape(event.Title))
			if event.EndAt != nil {
				line = fmt.Sprintf("• %s–%s %s", event.StartAt.In(loc).Format("15:04"), event.EndAt.In(loc).Format("15:04"), escape(event.Title))
			}
			if event.Location != "" {
				line += fmt.Sprintf(" <i>(%s)</i>", escape(event.Location))
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(fmt.Sprintf("\n◀️ /week %s · /week %s ▶️", week.PrevWeek, week.NextWeek))
	return b.String()
}
