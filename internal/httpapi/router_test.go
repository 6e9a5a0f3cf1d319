package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/report"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) *gin.Engine {
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

	return NewRouter(Deps{
		DB:        db,
		Users:     users,
		Tasks:     service.NewTaskService(tasks, reminders, courses, service.NewForecastService(tasks), time.UTC),
		Courses:   courses,
		Reminders: service.NewReminderService(reminders, tasks, users, stats),
		Events:    service.NewEventService(repository.NewEventRepository(db), time.UTC),
		Stats:     stats,
		JWTSecret: testSecret,
		Now:       func() time.Time { return testNow },
	})
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, userID uint, expires time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
	}).SignedString(key)
	require.NoError(t, err)
	return token
}

func tokenFor(t *testing.T, userID uint) string {
	return signToken(t, jwt.SigningMethodHS256, testSecret, userID, time.Now().Add(time.Hour))
}

func doJSON(t *testing.T, r http.Handler, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = doJSON(t, r, http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"healthy"`)

	w = doJSON(t, r, http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuth(t *testing.T) {
	r := newTestRouter(t)
	expired := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), 1, time.Now().Add(time.Hour))},
		{name: "expired", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, 1, expired)},
		{name: "alg none", header: "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, 1, time.Now().Add(time.Hour))},
		{name: "zero user", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, 0, time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	w := doJSON(t, r, http.MethodGet, "/api/tasks", 1, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCourseEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/courses", 1, gin.H{"name": "Physics", "color": "#112233"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var course struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	decode(t, w, &course)
	assert.Equal(t, "Physics", course.Name)

	w = doJSON(t, r, http.MethodPost, "/api/courses", 1, gin.H{"name": "Physics"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/courses", 1, gin.H{"name": "Math", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Another owner may reuse the name but cannot touch the first course.
	w = doJSON(t, r, http.MethodPost, "/api/courses", 2, gin.H{"name": "Physics"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/courses/%d", course.ID), 2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{"title": "Lab report", "course_id": course.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	var task struct {
		ID       uint  `json:"id"`
		CourseID *uint `json:"course_id"`
	}
	decode(t, w, &task)
	require.NotNil(t, task.CourseID)

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/courses/%d", course.ID), 1, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", task.ID), 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Task struct {
			CourseID *uint `json:"course_id"`
		} `json:"task"`
	}
	decode(t, w, &detail)
	assert.Nil(t, detail.Task.CourseID)
}

func TestTaskEndpoints(t *testing.T) {
	r := newTestRouter(t)
	deadline := testNow.Add(48 * time.Hour)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{
		"title":    "Essay",
		"course":   "History",
		"deadline": deadline,
		"priority": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID               uint   `json:"id"`
		Status           string `json:"status"`
		EstimatedMinutes int    `json:"estimated_minutes"`
		Course           *struct {
			Name string `json:"name"`
		} `json:"course"`
	}
	decode(t, w, &created)
	assert.Equal(t, "TODO", created.Status)
	assert.Equal(t, 60, created.EstimatedMinutes)
	require.NotNil(t, created.Course)
	assert.Equal(t, "History", created.Course.Name)

	t.Run("validation", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{"title": "x", "priority": 9})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{"title": "x", "deadline": testNow.Add(-time.Hour)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = doJSON(t, r, http.MethodPost, "/api/tasks", 1, "not an object")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = doJSON(t, r, http.MethodGet, "/api/tasks/abc", 1, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = doJSON(t, r, http.MethodGet, "/api/tasks?status=LATER", 1, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("foreign task is not found", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			w := doJSON(t, r, method, fmt.Sprintf("/api/tasks/%d", created.ID), 2, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		}
		w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/tasks/%d/toggle", created.ID), 2, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("detail carries the forecast", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), 1, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"forecast":{"status":"no_data"}`)

		w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d/forecast", created.ID), 1, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"no_data"}`, w.Body.String())
	})

	t.Run("toggle walks the statuses", func(t *testing.T) {
		for _, want := range []string{"DOING", "DONE", "DONE"} {
			w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/tasks/%d/toggle", created.ID), 1, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var got struct {
				Status      string     `json:"status"`
				CompletedAt *time.Time `json:"completed_at"`
			}
			decode(t, w, &got)
			assert.Equal(t, want, got.Status)
			if want == "DONE" {
				assert.NotNil(t, got.CompletedAt)
			}
		}
	})

	t.Run("update replaces fields", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/tasks/%d", created.ID), 1, gin.H{
			"title":  "Essay v2",
			"status": "TODO",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got struct {
			Title       string     `json:"title"`
			Status      string     `json:"status"`
			CompletedAt *time.Time `json:"completed_at"`
		}
		decode(t, w, &got)
		assert.Equal(t, "Essay v2", got.Title)
		assert.Equal(t, "TODO", got.Status)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("delete", func(t *testing.T) {
		w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), 1, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), 1, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTaskListPagination(t *testing.T) {
	r := newTestRouter(t)
	for i := 0; i < 12; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{"title": fmt.Sprintf("Task %d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var page service.TaskPage
	w := doJSON(t, r, http.MethodGet, "/api/tasks?page=2", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Tasks, 2)

	w = doJSON(t, r, http.MethodGet, "/api/tasks?q=task%2011", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)

	w = doJSON(t, r, http.MethodGet, "/api/tasks?page=0", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/tasks?page=9223372036854775807", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReminderEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{"title": "Revise"})
	require.Equal(t, http.StatusCreated, w.Code)
	var task struct {
		ID uint `json:"id"`
	}
	decode(t, w, &task)

	remindAt := testNow.Add(time.Hour)
	w = doJSON(t, r, http.MethodPost, "/api/reminders", 2, gin.H{"task_id": task.ID, "remind_at": remindAt})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/reminders", 1, gin.H{"task_id": task.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/reminders", 1, gin.H{"task_id": task.ID, "remind_at": remindAt})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reminder struct {
		ID     uint `json:"id"`
		IsSent bool `json:"is_sent"`
	}
	decode(t, w, &reminder)
	assert.False(t, reminder.IsSent)

	var page service.TaskPage
	w = doJSON(t, r, http.MethodGet, "/api/tasks", 1, nil)
	decode(t, w, &page)
	require.Len(t, page.Tasks, 1)
	require.NotNil(t, page.Tasks[0].NextReminder)
	assert.Equal(t, reminder.ID, page.Tasks[0].NextReminder.ID)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/reminders/%d", reminder.ID), 1, gin.H{"task_id": task.ID, "remind_at": remindAt, "is_sent": true})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &reminder)
	assert.True(t, reminder.IsSent)

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/reminders/%d", reminder.ID), 2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/reminders/%d", reminder.ID), 1, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCalendarEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/events", 1, gin.H{
		"title":    "Exam",
		"start_at": time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/events", 1, gin.H{
		"title":    "Broken",
		"start_at": testNow,
		"end_at":   testNow.Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var week service.Week
	w = doJSON(t, r, http.MethodGet, "/api/calendar", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &week)
	assert.Equal(t, "2025-03-10", week.Start)
	assert.Equal(t, "2025-03-03", week.PrevWeek)
	assert.Equal(t, "2025-03-17", week.NextWeek)
	require.Len(t, week.Days, 7)
	require.Len(t, week.Days[2].Events, 1)
	assert.Equal(t, "Exam", week.Days[2].Events[0].Title)

	w = doJSON(t, r, http.MethodGet, "/api/calendar?week=2025-03-17", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &week)
	assert.Equal(t, "2025-03-17", week.Start)

	w = doJSON(t, r, http.MethodGet, "/api/calendar?week=17.03.2025", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", 1, gin.H{"title": "Done today", "estimated_minutes": 30, "status": "DONE"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/stats/streak", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streak":1}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/stats/completion", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"completion_ratio":100}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/stats/daily?from=2025-03-09&to=2025-03-10", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var days []service.DayStat
	decode(t, w, &days)
	assert.Equal(t, []service.DayStat{
		{Date: "2025-03-09"},
		{Date: "2025-03-10", CompletedCount: 1, CompletedMinutes: 30},
	}, days)

	w = doJSON(t, r, http.MethodGet, "/api/stats/daily?from=2025-03-10&to=2025-03-01", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/stats/daily?from=yesterday", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/stats/daily?from=0001-01-01&to=9999-12-31", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var ov service.Overview
	w = doJSON(t, r, http.MethodGet, "/api/stats", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ov)
	assert.Len(t, ov.Daily, 14)
	assert.Equal(t, int64(1), ov.TotalDone)

	w = doJSON(t, r, http.MethodGet, "/api/dashboard", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"done_last_7":1`)

	w = doJSON(t, r, http.MethodGet, "/api/stats/export.xlsx", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "stats_2025-03-10.xlsx")

	w = doJSON(t, r, http.MethodGet, "/api/stats/export.pdf", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.PDFContentType, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}
