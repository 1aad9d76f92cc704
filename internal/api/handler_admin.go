package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"todonotify/internal/model"
	"todonotify/internal/notifier"
	"todonotify/internal/scheduler"
)

type PassRunner interface {
	RunPass(ctx context.Context, pass model.Kind) (notifier.PassReport, bool)
}

type JobLister interface {
	Jobs() []scheduler.JobStatus
}

type AdminHandler struct {
	runner PassRunner
	jobs   JobLister
}

func NewAdminHandler(runner PassRunner, jobs JobLister) *AdminHandler {
	return &AdminHandler{runner: runner, jobs: jobs}
}

// RunPass handles POST /api/admin/passes/:pass and blocks until the pass is done.
// A client disconnect does not abort the pass.
func (h *AdminHandler) RunPass(c *gin.Context) {
	report, ok := h.runner.RunPass(context.WithoutCancel(c.Request.Context()), model.Kind(c.Param("pass")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown pass"})
		return
	}
	if report.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": report.Err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Jobs handles GET /api/admin/jobs
func (h *AdminHandler) Jobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Jobs()})
}
