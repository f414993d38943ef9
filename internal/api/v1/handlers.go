// Package v1 implements the HTTP handlers for the job lifecycle engine's
// REST surface (spec.md §6), grounded on station's internal/api/v1 handler-
// struct-plus-RegisterRoutes shape.
package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/lightspeed/jobforge/internal/auth"
	"github.com/lightspeed/jobforge/internal/jobs"
	"github.com/lightspeed/jobforge/internal/queue"
	"github.com/lightspeed/jobforge/internal/repos"
	"github.com/lightspeed/jobforge/internal/staging"
	"github.com/lightspeed/jobforge/internal/workspace"
)

const maxUploadBytes = 50 * 1024 * 1024

// whitelisted image extensions for the /jobs/{id}/images endpoint (spec.md
// §6: "multipart file (whitelisted extensions)").
var allowedImageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// Handlers holds every dependency the v1 surface needs to serve a request;
// constructed once during server wiring and threaded into gin's router.
type Handlers struct {
	verifier   *auth.Verifier
	tokens     *auth.TokenIssuer
	middleware *auth.Middleware

	registry   *repos.Registry
	jobStore   *jobs.Store
	scheduler  *queue.Scheduler
	staging    *staging.Store
	workspaces *workspace.Manager

	workspaceRoot string
}

// NewHandlers wires the v1 handler set over its already-constructed
// dependencies. workspaceRoot is the configured root a not-yet-staged job's
// prospective CoW path is computed under.
func NewHandlers(
	verifier *auth.Verifier,
	tokens *auth.TokenIssuer,
	middleware *auth.Middleware,
	registry *repos.Registry,
	jobStore *jobs.Store,
	scheduler *queue.Scheduler,
	stagingStore *staging.Store,
	workspaces *workspace.Manager,
	workspaceRoot string,
) *Handlers {
	return &Handlers{
		verifier:      verifier,
		tokens:        tokens,
		middleware:    middleware,
		registry:      registry,
		jobStore:      jobStore,
		scheduler:     scheduler,
		staging:       stagingStore,
		workspaces:    workspaces,
		workspaceRoot: workspaceRoot,
	}
}

// RegisterRoutes mounts every v1 endpoint onto group, grouping by concern
// the way station's APIHandlers.RegisterRoutes does.
func (h *Handlers) RegisterRoutes(group *gin.RouterGroup) {
	authGroup := group.Group("/auth")
	h.registerAuthRoutes(authGroup)

	reposGroup := group.Group("/repositories")
	reposGroup.Use(h.middleware.RequireAuth())
	h.registerRepositoryRoutes(reposGroup)

	jobsGroup := group.Group("/jobs")
	jobsGroup.Use(h.middleware.RequireAuth())
	h.registerJobRoutes(jobsGroup)
}
