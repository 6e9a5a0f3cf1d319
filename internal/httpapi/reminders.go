package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"study-planner/internal/service"
)

type reminderRequest struct {
	TaskID   uint      `json:"task_id" binding:"required"`
	RemindAt time.Time `json:"remind_at"`
	IsSent   bool      `json:"is_sent"`
}

func (r reminderRequest) input() service.ReminderInput {
	return service.ReminderInput{TaskID: r.TaskID, RemindAt: r.RemindAt, IsSent: r.IsSent}
}

func (h *Handler) listReminders(c *gin.Context) {
	reminders, err := h.reminders.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

func (h *Handler) createReminder(c *gin.Context) {
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reminder, err := h.reminders.Create(c.Request.Context(), currentUser(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

func (h *Handler) updateReminder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reminder, err := h.reminders.Update(c.Request.Context(), currentUser(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

func (h *Handler) deleteReminder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.reminders.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
