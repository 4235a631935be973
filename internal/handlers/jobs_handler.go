package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/peakform-app/peakform-api/internal/httpresp"
	"github.com/peakform-app/peakform-api/internal/jobs"
)

// JobsHandler exposes manual triggers for the background sweeps. The
// sweeps are idempotent, so running one by hand while the ticker is live
// is safe.
type JobsHandler struct {
	enforcer *jobs.Enforcer
}

func NewJobsHandler(enforcer *jobs.Enforcer) *JobsHandler {
	return &JobsHandler{enforcer: enforcer}
}

func (h *JobsHandler) RunPaymentDeadlines(c *gin.Context) {
	res := h.enforcer.RunOnce(c.Request.Context())
	httpresp.OK(c, res)
}
