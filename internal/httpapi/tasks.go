package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

type taskRequest struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	CourseID         *uint            `json:"course_id"`
	Course           string           `json:"course"`
	Deadline         *time.Time       `json:"deadline"`
	Priority         *int             `json:"priority"`
	EstimatedMinutes *int             `json:"estimated_minutes"`
	Status           model.TaskStatus `json:"status"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:            r.Title,
		Description:      r.Description,
		CourseID:         r.CourseID,
		Course:           r.Course,
		Deadline:         r.Deadline,
		Priority:         r.Priority,
		EstimatedMinutes: r.EstimatedMinutes,
		Status:           r.Status,
	}
}

// GET /api/tasks
func (h *Handler) listTasks(c *gin.Context) {
	query := service.TaskQuery{
		Status:   model.TaskStatus(c.Query("status")),
		Text:     c.Query("q"),
		Deadline: c.Query("deadline"),
		Page:     1,
	}
	if v := c.Query("course"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid course")
			return
		}
		courseID := uint(id)
		query.CourseID = &courseID
	}
	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 || page > service.MaxTaskPage {
			badRequest(c, "invalid page")
			return
		}
		query.Page = page
	}

	page, err := h.tasks.ListTasks(c.Request.Context(), currentUser(c), query, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// POST /api/tasks
func (h *Handler) createTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.tasks.CreateTask(c.Request.Context(), currentUser(c), req.input(), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GET /api/tasks/:id
func (h *Handler) getTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task, forecast, err := h.tasks.Forecast(c.Request.Context(), currentUser(c), id, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "forecast": forecast})
}

// PUT /api/tasks/:id
func (h *Handler) updateTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.tasks.UpdateTask(c.Request.Context(), currentUser(c), id, req.input(), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DELETE /api/tasks/:id
func (h *Handler) deleteTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/tasks/:id/toggle
func (h *Handler) toggleTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task, err := h.tasks.AdvanceTask(c.Request.Context(), currentUser(c), id, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GET /api/tasks/:id/forecast
func (h *Handler) taskForecast(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	_, forecast, err := h.tasks.Forecast(c.Request.Context(), currentUser(c), id, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, forecast)
}
