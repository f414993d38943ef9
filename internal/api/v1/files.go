package v1

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/jobs"
	"github.com/lightspeed/jobforge/internal/staging"
)

func (h *Handlers) uploadJobFile(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := h.jobStore.Get(jobID, principal(c)); err != nil {
		writeError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "errorType": "Validation"})
		return
	}
	defer file.Close()

	overwrite := c.Query("overwrite") == "true"
	prior := ""
	if existing, _ := h.staging.List(jobID); containsStagedOriginal(existing, header.Filename) {
		if !overwrite {
			c.JSON(http.StatusConflict, gin.H{"error": "file already staged; pass ?overwrite=true to replace", "errorType": "Conflict"})
			return
		}
		if prior, err = h.staging.Resolve(jobID, header.Filename); err != nil {
			writeError(c, err)
			return
		}
	}

	result, err := h.staging.Upload(jobID, header.Filename, file, maxUploadBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	if prior != "" {
		if err := os.Remove(prior); err != nil {
			writeError(c, jferr.Wrap(jferr.System, "remove replaced staged file", err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":    result.StoredName,
		"fileSize":    result.Size,
		"overwritten": prior != "",
	})
}

func containsStagedOriginal(stored []string, original string) bool {
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(original, ext)
	for _, name := range stored {
		if strings.HasPrefix(name, stem+"_") && strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (h *Handlers) uploadJobImage(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := h.jobStore.Get(jobID, principal(c)); err != nil {
		writeError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "errorType": "Validation"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image extension", "errorType": "Validation"})
		return
	}

	result, err := h.staging.Upload(jobID, header.Filename, file, maxUploadBytes)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := h.jobStore.Mutate(jobID, func(j *jobs.Job) {
		j.Attachments = append(j.Attachments, result.StoredName)
	}); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename": result.StoredName,
		"path":     filepath.Join(jobID, result.StoredName),
	})
}

func (h *Handlers) listJobDirectories(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.jobStore.Get(jobID, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if job.WorkspacePath == "" {
		c.JSON(http.StatusOK, []staging.DirectoryInfo{})
		return
	}

	dirs, err := staging.ListDirectories(job.WorkspacePath, c.Query("path"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dirs)
}

func (h *Handlers) listJobFiles(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.jobStore.Get(jobID, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if job.WorkspacePath == "" {
		c.JSON(http.StatusOK, []staging.FileInfo{})
		return
	}

	depth := 0
	if raw := c.Query("depth"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer", "errorType": "Validation"})
			return
		}
		depth = parsed
	}

	files, err := staging.ListFiles(job.WorkspacePath, c.Query("path"), c.Query("mask"), c.Query("type"), depth)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handlers) getJobFileContent(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.jobStore.Get(jobID, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if job.WorkspacePath == "" {
		writeError(c, jferr.New(jferr.NotFound, "job workspace not materialized yet"))
		return
	}

	content, err := staging.ReadTextContent(job.WorkspacePath, c.Query("path"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "encoding": "utf8"})
}

func (h *Handlers) downloadJobFile(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.jobStore.Get(jobID, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}

	path := c.Query("path")
	resolved, err := staging.ResolveDownload(job.WorkspacePath, h.staging, jobID, path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(resolved, filepath.Base(resolved))
}
