package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lightspeed/jobforge/internal/auth"
	"github.com/lightspeed/jobforge/internal/jobs"
	"github.com/lightspeed/jobforge/internal/pipeline"
)

func (h *Handlers) registerJobRoutes(group *gin.RouterGroup) {
	group.POST("", h.createJob)
	group.GET("", h.listJobs)
	group.GET("/:id", h.getJob)
	group.POST("/:id/files", h.uploadJobFile)
	group.POST("/:id/images", h.uploadJobImage)
	group.POST("/:id/start", h.startJob)
	group.POST("/:id/cancel", h.cancelJob)
	group.DELETE("/:id", h.deleteJob)
	group.GET("/:id/files/directories", h.listJobDirectories)
	group.GET("/:id/files", h.listJobFiles)
	group.GET("/:id/files/content", h.getJobFileContent)
	group.GET("/:id/files/download", h.downloadJobFile)
}

func principal(c *gin.Context) string {
	username, _ := auth.PrincipalFromContext(c)
	return username
}

type createJobOptions struct {
	PreUpdate      bool `json:"preUpdate"`
	BuildIndex     bool `json:"buildIndex"`
	TimeoutSeconds int  `json:"timeoutSeconds"`
}

type createJobRequest struct {
	Prompt     string           `json:"prompt" binding:"required"`
	Repository string           `json:"repository" binding:"required"`
	Options    createJobOptions `json:"options"`
}

func (h *Handlers) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errorType": "Validation"})
		return
	}

	if _, err := h.registry.Metadata(c.Request.Context(), req.Repository); err != nil {
		writeError(c, err)
		return
	}

	job := h.jobStore.Create(principal(c), req.Repository, req.Prompt, jobs.Options{
		PreUpdate:      req.Options.PreUpdate,
		BuildIndex:     req.Options.BuildIndex,
		TimeoutSeconds: req.Options.TimeoutSeconds,
	})

	c.JSON(http.StatusCreated, gin.H{
		"jobId":   job.ID,
		"status":  "created",
		"cowPath": pipeline.WorkspaceRoot(h.workspaceRoot, job.ID),
	})
}

func (h *Handlers) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobStore.ListForPrincipal(principal(c)))
}

func (h *Handlers) getJob(c *gin.Context) {
	job, err := h.jobStore.Get(c.Param("id"), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handlers) startJob(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := h.jobStore.Get(jobID, principal(c)); err != nil {
		writeError(c, err)
		return
	}

	if err := h.scheduler.Enqueue(jobID); err != nil {
		writeError(c, err)
		return
	}

	job, err := h.jobStore.Get(jobID, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        string(job.State),
		"queuePosition": job.QueuePosition,
	})
}

func (h *Handlers) cancelJob(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := h.jobStore.Get(jobID, principal(c)); err != nil {
		writeError(c, err)
		return
	}
	if err := h.scheduler.Cancel(jobID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) deleteJob(c *gin.Context) {
	jobID := c.Param("id")
	who := principal(c)

	job, err := h.jobStore.Get(jobID, who)
	if err != nil {
		writeError(c, err)
		return
	}

	terminated := !job.State.Terminal()
	if terminated {
		if job.State == jobs.StateCreated {
			// Never enqueued: nothing for the scheduler to know about yet.
			h.jobStore.Mutate(jobID, func(j *jobs.Job) { j.State = jobs.StateCancelled })
		} else if err := h.scheduler.Cancel(jobID); err != nil {
			writeError(c, err)
			return
		}
	}

	workspaceRemoved := false
	if h.workspaces != nil {
		if err := h.workspaces.DestroyWorkspace(c.Request.Context(), jobID); err == nil {
			workspaceRemoved = true
		}
	}
	_ = h.staging.Remove(jobID)

	if err := h.jobStore.Delete(jobID, who, true); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"terminated":       terminated,
		"workspaceRemoved": workspaceRemoved,
	})
}
