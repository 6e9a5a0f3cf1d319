package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"study-planner/internal/service"
)

const dateLayout = "2006-01-02"

type eventRequest struct {
	Title    string     `json:"title"`
	StartAt  time.Time  `json:"start_at"`
	EndAt    *time.Time `json:"end_at"`
	Location string     `json:"location"`
	Notes    string     `json:"notes"`
}

func (r eventRequest) input() service.EventInput {
	return service.EventInput{
		Title:    r.Title,
		StartAt:  r.StartAt,
		EndAt:    r.EndAt,
		Location: r.Location,
		Notes:    r.Notes,
	}
}

// GET /api/calendar?week=YYYY-MM-DD
func (h *Handler) calendar(c *gin.Context) {
	var weekStart time.Time
	if v := c.Query("week"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, h.stats.Location())
		if err != nil {
			badRequest(c, "invalid week (YYYY-MM-DD)")
			return
		}
		weekStart = t
	}
	week, err := h.events.Week(c.Request.Context(), currentUser(c), weekStart, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, week)
}

func (h *Handler) createEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	event, err := h.events.Create(c.Request.Context(), currentUser(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) updateEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	event, err := h.events.Update(c.Request.Context(), currentUser(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.events.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
