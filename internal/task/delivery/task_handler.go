package delivery

import (
	"errors"
	"net/http"
	"time"

	"design-assistant-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

const signedURLTTL = time.Hour

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase *usecase.TaskUsecase
}

func NewTaskHandler(taskUsecase *usecase.TaskUsecase) *TaskHandler {
	return &TaskHandler{taskUsecase: taskUsecase}
}

// SyncTask queues a background ingestion run and returns immediately
// POST /api/tasks/:key/sync?force=true
func (h *TaskHandler) SyncTask(c *gin.Context) {
	key := c.Param("key")
	force := c.Query("force") == "true"

	ack, err := h.taskUsecase.RequestSync(key, force)
	if err != nil {
		if errors.Is(err, usecase.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusAccepted
	if ack == usecase.SyncAckAlreadySyncing {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"status": ack})
}

// GetSummary returns sync state plus the latest snapshot context
// GET /api/tasks/:key/summary
func (h *TaskHandler) GetSummary(c *gin.Context) {
	summary, err := h.taskUsecase.GetSummary(c.Param("key"))
	if err != nil {
		if errors.Is(err, usecase.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetSources lists the files of the latest snapshot
// GET /api/tasks/:key/sources
func (h *TaskHandler) GetSources(c *gin.Context) {
	files, err := h.taskUsecase.GetSources(c.Param("key"))
	if err != nil {
		if errors.Is(err, usecase.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "total": len(files)})
}

// GetSignedURL returns a time-limited download URL for one stored file
// GET /api/tasks/:key/files/:fileId/signed-url
func (h *TaskHandler) GetSignedURL(c *gin.Context) {
	url, err := h.taskUsecase.FileSignedURL(c.Param("key"), c.Param("fileId"), signedURLTTL)
	if err != nil {
		if errors.Is(err, usecase.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(signedURLTTL.Seconds())})
}
