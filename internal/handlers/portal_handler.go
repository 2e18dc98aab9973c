package handlers

import (
	"net/http"
	"strings"
	"time"

	"scalerrs-portal-api/internal/middleware"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCommentRequest is the POST /comments payload.
type CreateCommentRequest struct {
	RecordID   string `json:"recordId"`
	RecordType string `json:"recordType"`
	Text       string `json:"text"`
}

// UpdateChecklistRequest is the PUT /checklist payload.
type UpdateChecklistRequest struct {
	ItemID string `json:"itemId"`
	Done   *bool  `json:"done"`
}

// GetComments handles GET /api/comments?recordId=
func (h *Handler) GetComments(c *gin.Context) {
	res, err := h.svc.ListComments(c.Request.Context(), middleware.IdentityFrom(c), c.Query("recordId"))
	if err != nil {
		h.fail(c, err, "Failed to fetch comments")
		return
	}
	respond(c, res, gin.H{"comments": res.Data})
}

// PostComment handles POST /api/comments.
func (h *Handler) PostComment(c *gin.Context) {
	var req CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), middleware.IdentityFrom(c), service.NewComment{
		RecordID:   req.RecordID,
		RecordType: req.RecordType,
		Text:       req.Text,
	})
	if err != nil {
		h.fail(c, err, "Failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}

// GetKPIs handles GET /api/kpis?clientId=&from=&to=
// from and to accept 2006-01-02 or 2006-01.
func (h *Handler) GetKPIs(c *gin.Context) {
	from, ok := parseDateParam(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateParam(c, "to")
	if !ok {
		return
	}
	res, err := h.svc.ListKPIs(c.Request.Context(), middleware.IdentityFrom(c), service.KPIQuery{
		ClientID: c.Query("clientId"),
		From:     from,
		To:       to,
	})
	if err != nil {
		h.fail(c, err, "Failed to fetch KPIs")
		return
	}
	respond(c, res, gin.H{"kpis": res.Data})
}

// GetClients handles GET /api/clients.
func (h *Handler) GetClients(c *gin.Context) {
	res, err := h.svc.ListClients(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		h.fail(c, err, "Failed to fetch clients")
		return
	}
	respond(c, res, gin.H{"clients": res.Data})
}

// GetChecklist handles GET /api/checklist?clientId=
func (h *Handler) GetChecklist(c *gin.Context) {
	res, err := h.svc.GetChecklist(c.Request.Context(), middleware.IdentityFrom(c), c.Query("clientId"))
	if err != nil {
		h.fail(c, err, "Failed to fetch checklist")
		return
	}
	respond(c, res, gin.H{"checklist": res.Data})
}

// PutChecklist handles PUT /api/checklist with {itemId, done}.
func (h *Handler) PutChecklist(c *gin.Context) {
	var req UpdateChecklistRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Done == nil {
		h.fail(c, &models.ValidationError{Field: "done", Message: "done is required"}, "")
		return
	}
	item, err := h.svc.SetChecklistItem(c.Request.Context(), middleware.IdentityFrom(c), req.ItemID, *req.Done)
	if err != nil {
		h.fail(c, err, "Failed to update checklist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, true
	}
	for _, layout := range []string{"2006-01-02", "2006-01", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a date (YYYY-MM-DD or YYYY-MM)", "field": name})
	return time.Time{}, false
}
