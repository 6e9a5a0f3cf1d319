package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

// Deps is everything the API needs. Now defaults to time.Now.
type Deps struct {
	DB          *gorm.DB
	Users       UserEnsurer
	Tasks       *service.TaskService
	Courses     *service.CourseService
	Reminders   *service.ReminderService
	Events      *service.EventService
	Stats       *service.StatsService
	RateLimiter *RateLimiter
	JWTSecret   []byte
	Now         func() time.Time
}

// Handler serves the /api routes for the authenticated owner.
type Handler struct {
	tasks     *service.TaskService
	courses   *service.CourseService
	reminders *service.ReminderService
	events    *service.EventService
	stats     *service.StatsService
	now       func() time.Time
}

// NewRouter builds the gin engine with health, metrics and the API.
func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{
		tasks:     d.Tasks,
		courses:   d.Courses,
		reminders: d.Reminders,
		events:    d.Events,
		stats:     d.Stats,
		now:       d.Now,
	}
	health := &healthHandler{db: d.DB, startTime: d.Now()}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(), Metrics())

	r.GET("/healthz", health.liveness)
	r.GET("/readyz", health.readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(d.RateLimiter.Middleware(), Auth(d.JWTSecret, d.Users))
	{
		api.GET("/dashboard", h.dashboard)

		api.GET("/courses", h.listCourses)
		api.POST("/courses", h.createCourse)
		api.PUT("/courses/:id", h.updateCourse)
		api.DELETE("/courses/:id", h.deleteCourse)

		api.GET("/tasks", h.listTasks)
		api.POST("/tasks", h.createTask)
		api.GET("/tasks/:id", h.getTask)
		api.PUT("/tasks/:id", h.updateTask)
		api.DELETE("/tasks/:id", h.deleteTask)
		api.POST("/tasks/:id/toggle", h.toggleTask)
		api.GET("/tasks/:id/forecast", h.taskForecast)

		api.GET("/reminders", h.listReminders)
		api.POST("/reminders", h.createReminder)
		api.PUT("/reminders/:id", h.updateReminder)
		api.DELETE("/reminders/:id", h.deleteReminder)

		api.GET("/calendar", h.calendar)
		api.POST("/events", h.createEvent)
		api.PUT("/events/:id", h.updateEvent)
		api.DELETE("/events/:id", h.deleteEvent)

		api.GET("/stats", h.overview)
		api.GET("/stats/streak", h.streak)
		api.GET("/stats/daily", h.dailyReport)
		api.GET("/stats/completion", h.completion)
		api.GET("/stats/export.xlsx", h.exportXLSX)
		api.GET("/stats/export.pdf", h.exportPDF)
	}
	return r
}

// respondError maps domain errors onto status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case model.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrDuplicateCourse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// idParam reads the :id path parameter. It writes a 400 and returns false
// when the value is not a positive integer.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}
