package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-planner/internal/service"
)

type courseRequest struct {
	Name    string `json:"name"`
	Teacher string `json:"teacher"`
	Color   string `json:"color"`
}

func (r courseRequest) input() service.CourseInput {
	return service.CourseInput{Name: r.Name, Teacher: r.Teacher, Color: r.Color}
}

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *Handler) createCourse(c *gin.Context) {
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	course, err := h.courses.Create(c.Request.Context(), currentUser(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (h *Handler) updateCourse(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	course, err := h.courses.Update(c.Request.Context(), currentUser(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// deleteCourse keeps the course's tasks and unlinks them.
func (h *Handler) deleteCourse(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.courses.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
