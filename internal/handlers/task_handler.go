package handlers

import (
	"net/http"

	"scalerrs-portal-api/internal/middleware"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateTaskStatusRequest is the PATCH /tasks payload.
type UpdateTaskStatusRequest struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// GetTasks handles GET /api/tasks?clientId=&status=&board=&search=
func (h *Handler) GetTasks(c *gin.Context) {
	res, err := h.svc.ListTasks(c.Request.Context(), middleware.IdentityFrom(c), service.TaskQuery{
		ClientID: c.Query("clientId"),
		Status:   c.Query("status"),
		Board:    c.Query("board"),
		Search:   c.Query("search"),
	})
	if err != nil {
		h.fail(c, err, "Failed to fetch tasks")
		return
	}
	respond(c, res, gin.H{"tasks": res.Data})
}

// PatchTasks handles PATCH /api/tasks with {taskId, status}.
func (h *Handler) PatchTasks(c *gin.Context) {
	var req UpdateTaskStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.svc.UpdateTaskStatus(c.Request.Context(), middleware.IdentityFrom(c), req.TaskID, req.Status)
	if err != nil {
		h.fail(c, err, "Failed to update task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}
