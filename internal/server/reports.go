package server

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/report"
	"attendanceconsole/internal/session"
	"attendanceconsole/internal/workflow"
)

func queryPeriod(c *gin.Context) (int, bool) {
	v := c.Query("period")
	if v == "" {
		return 0, true
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return p, true
}

func reportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, report.ErrBadDate), errors.Is(err, report.ErrBadMonth), errors.Is(err, report.ErrBadPeriod):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("report query failed: %v", err)
		msg := "attendance API request failed"
		if m, ok := apiclient.ServerMessage(err); ok {
			msg = m
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
	}
}

func (h *Handler) dailyView(c *gin.Context) (*report.DailyView, bool) {
	period, ok := queryPeriod(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be a number"})
		return nil, false
	}
	v, err := h.reports.Daily(c.Request.Context(), c.Query("date"), period)
	if err != nil {
		reportError(c, err)
		return nil, false
	}
	return v, true
}

func (h *Handler) monthlyView(c *gin.Context) (*report.MonthlyView, bool) {
	v, err := h.reports.Monthly(c.Request.Context(), c.Query("month"), c.Query("department"))
	if err != nil {
		reportError(c, err)
		return nil, false
	}
	return v, true
}

// DailyReport lists check-ins for ?date= and optional ?period=.
func (h *Handler) DailyReport(c *gin.Context) {
	if v, ok := h.dailyView(c); ok {
		c.JSON(http.StatusOK, v)
	}
}

// DailyCSV downloads the daily report.
func (h *Handler) DailyCSV(c *gin.Context) {
	v, ok := h.dailyView(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.ExportDaily(&buf, v); err != nil {
		exportError(c, err)
		return
	}
	sendCSV(c, report.DailyFilename(v), buf.Bytes())
}

// MonthlyReport lists summaries for ?month= and ?department=.
func (h *Handler) MonthlyReport(c *gin.Context) {
	if v, ok := h.monthlyView(c); ok {
		c.JSON(http.StatusOK, v)
	}
}

// MonthlyCSV downloads the monthly report.
func (h *Handler) MonthlyCSV(c *gin.Context) {
	v, ok := h.monthlyView(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.ExportMonthly(&buf, v); err != nil {
		exportError(c, err)
		return
	}
	sendCSV(c, report.MonthlyFilename(v), buf.Bytes())
}

func exportError(c *gin.Context, err error) {
	if errors.Is(err, report.ErrNothingToExport) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no rows to export"})
		return
	}
	log.Printf("csv export failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
}

func sendCSV(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// RecentAttendance lists the latest check-ins of today's ?period=.
// Failures are logged and show as an empty list.
func (h *Handler) RecentAttendance(c *gin.Context) {
	period, ok := queryPeriod(c)
	if !ok || period == 0 {
		period = workflow.MinPeriod
	}
	rows, err := h.reports.Recent(c.Request.Context(), period)
	if err != nil {
		log.Printf("recent attendance failed: %v", err)
		rows = []report.DailyRow{}
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "rows": rows})
}

// Departments lists the department filter values. Failures show as an empty list.
func (h *Handler) Departments(c *gin.Context) {
	deps, err := h.reports.Departments(c.Request.Context())
	if err != nil {
		log.Printf("departments failed: %v", err)
		deps = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"departments": deps})
}

// Subjects lists the subjects of ?period=.
func (h *Handler) Subjects(c *gin.Context) {
	period, ok := queryPeriod(c)
	if !ok || period == 0 {
		period = workflow.MinPeriod
	}
	subjects, found := workflow.SubjectsFor(period)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "subjects": subjects})
}

// Dashboard returns the session's dashboard counts, loaded once.
func (h *Handler) Dashboard(c *gin.Context) {
	// The first load is memoized, so it must not be cut short by this request.
	c.JSON(http.StatusOK, session.From(c).Dashboard.Load(context.WithoutCancel(c.Request.Context())))
}
