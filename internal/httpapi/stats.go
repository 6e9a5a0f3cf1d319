package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"study-planner/internal/report"
	"study-planner/internal/service"
)

func (h *Handler) dashboard(c *gin.Context) {
	dash, err := h.stats.Dashboard(c.Request.Context(), currentUser(c), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// GET /api/stats
func (h *Handler) overview(c *gin.Context) {
	ov, err := h.stats.Overview(c.Request.Context(), currentUser(c), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *Handler) streak(c *gin.Context) {
	n, err := h.stats.Streak(c.Request.Context(), currentUser(c), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streak": n})
}

// GET /api/stats/daily?from=YYYY-MM-DD&to=YYYY-MM-DD
// Both bounds default to today.
func (h *Handler) dailyReport(c *gin.Context) {
	today := h.now().In(h.stats.Location())
	from, ok := h.dateQuery(c, "from", today)
	if !ok {
		return
	}
	to, ok := h.dateQuery(c, "to", today)
	if !ok {
		return
	}
	days, err := h.stats.DailyReport(c.Request.Context(), currentUser(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *Handler) completion(c *gin.Context) {
	ratio, err := h.stats.CompletionRatio(c.Request.Context(), currentUser(c), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completion_ratio": ratio})
}

func (h *Handler) exportXLSX(c *gin.Context) {
	h.export(c, "xlsx", report.XLSXContentType, report.XLSX)
}

func (h *Handler) exportPDF(c *gin.Context) {
	h.export(c, "pdf", report.PDFContentType, report.PDF)
}

func (h *Handler) export(c *gin.Context, ext, contentType string, render func(service.Overview, time.Time) ([]byte, error)) {
	now := h.now()
	ov, err := h.stats.Overview(c.Request.Context(), currentUser(c), now)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := render(ov, now.In(h.stats.Location()))
	if err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("stats_%s.%s", now.In(h.stats.Location()).Format(dateLayout), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) dateQuery(c *gin.Context, key string, fallback time.Time) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return fallback, true
	}
	t, err := time.ParseInLocation(dateLayout, v, h.stats.Location())
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid %s (YYYY-MM-DD)", key))
		return time.Time{}, false
	}
	return t, true
}
