package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"scalerrs-portal-api/internal/auth"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler serves the portal API on top of the service layer.
type Handler struct {
	svc    *service.Service
	tokens *auth.Tokens
	hub    *realtime.Hub
	logger *slog.Logger
}

// Deps are the collaborators of a Handler. Tokens and Hub may be nil, which
// disables login and the change feed respectively.
type Deps struct {
	Service *service.Service
	Tokens  *auth.Tokens
	Hub     *realtime.Hub
	Logger  *slog.Logger
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: d.Service, tokens: d.Tokens, hub: d.Hub, logger: logger}
}

// respond writes a read result. Fallback data is still a 200, annotated with
// isMockData and the reason it was served.
func respond[T any](c *gin.Context, res service.Result[T], body gin.H) {
	body["isMockData"] = res.IsMock()
	if res.Degraded != nil {
		body["error"] = res.Degraded.Message()
		body["reason"] = string(res.Degraded.Reason)
	}
	c.JSON(http.StatusOK, body)
}

// fail maps a service error onto a status code and JSON envelope. action names
// the operation for 500 responses ("Failed to update task").
func (h *Handler) fail(c *gin.Context, err error, action string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this client"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, records.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found", "details": err.Error()})
	case errors.Is(err, records.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Record store is not configured: set AIRTABLE_API_KEY and AIRTABLE_BASE_ID",
			"details": err.Error(),
		})
	default:
		h.logger.Error(action, slog.String("path", c.Request.URL.Path), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": action, "details": err.Error()})
	}
}

// bindJSON decodes the request body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return false
	}
	return true
}
