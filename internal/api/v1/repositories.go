package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) registerRepositoryRoutes(group *gin.RouterGroup) {
	group.GET("", h.listRepositories)
	group.GET("/:name", h.getRepository)
	group.POST("/register", h.registerRepository)
	group.DELETE("/:name", h.unregisterRepository)
}

func (h *Handlers) listRepositories(c *gin.Context) {
	repositories, err := h.registry.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repositories)
}

func (h *Handlers) getRepository(c *gin.Context) {
	repo, err := h.registry.Metadata(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

type registerRepositoryRequest struct {
	Name        string `json:"name" binding:"required"`
	GitURL      string `json:"gitUrl" binding:"required"`
	Description string `json:"description"`
	IndexAware  bool   `json:"indexAware"`
}

func (h *Handlers) registerRepository(c *gin.Context) {
	var req registerRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errorType": "Validation"})
		return
	}

	repo, err := h.registry.Register(c.Request.Context(), req.Name, req.GitURL, req.Description, req.IndexAware)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, repo)
}

func (h *Handlers) unregisterRepository(c *gin.Context) {
	name := c.Param("name")
	if err := h.registry.Unregister(c.Request.Context(), name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"removed": name,
		"message": fmt.Sprintf("repository %q removed", name),
	})
}
