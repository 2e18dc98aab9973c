package handlers

import (
	"net/http"

	"scalerrs-portal-api/internal/middleware"
	"scalerrs-portal-api/internal/pagination"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateApprovalRequest is the PATCH /approvals payload.
type UpdateApprovalRequest struct {
	Type     string `json:"type"`
	ItemID   string `json:"itemId"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Feedback string `json:"feedback"`
}

// UpdateBacklinkRequest is the PATCH /backlinks payload.
type UpdateBacklinkRequest struct {
	BacklinkID string `json:"backlinkId"`
	Status     string `json:"status"`
}

func pageRequest(c *gin.Context) pagination.Request {
	return pagination.ParseRequest(c.Query("page"), c.Query("pageSize"), c.Query("offset"))
}

// GetApprovals handles GET /api/approvals?type=&clientId=&page=&pageSize=&offset=
func (h *Handler) GetApprovals(c *gin.Context) {
	res, err := h.svc.ListApprovals(c.Request.Context(), middleware.IdentityFrom(c), service.ApprovalQuery{
		Type:     c.Query("type"),
		ClientID: c.Query("clientId"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Page:     pageRequest(c),
	})
	if err != nil {
		h.fail(c, err, "Failed to fetch approvals")
		return
	}
	respond(c, res, gin.H{"items": res.Data.Items, "pagination": res.Data.Pagination})
}

// PatchApprovals handles PATCH /api/approvals with {type, itemId, status, reason}.
func (h *Handler) PatchApprovals(c *gin.Context) {
	var req UpdateApprovalRequest
	if !bindJSON(c, &req) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Feedback
	}
	item, err := h.svc.UpdateApprovalStatus(c.Request.Context(), middleware.IdentityFrom(c), service.ApprovalDecision{
		Type:     req.Type,
		RecordID: req.ItemID,
		Status:   req.Status,
		Reason:   reason,
	})
	if err != nil {
		h.fail(c, err, "Failed to update approval")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

// GetBacklinks handles GET /api/backlinks?clientId=&status=&page=&pageSize=&offset=
func (h *Handler) GetBacklinks(c *gin.Context) {
	res, err := h.svc.ListBacklinks(c.Request.Context(), middleware.IdentityFrom(c), service.BacklinkQuery{
		ClientID: c.Query("clientId"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Page:     pageRequest(c),
	})
	if err != nil {
		h.fail(c, err, "Failed to fetch backlinks")
		return
	}
	respond(c, res, gin.H{"items": res.Data.Items, "pagination": res.Data.Pagination})
}

// PatchBacklinks handles PATCH /api/backlinks with {backlinkId, status}.
func (h *Handler) PatchBacklinks(c *gin.Context) {
	var req UpdateBacklinkRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.svc.UpdateBacklinkStatus(c.Request.Context(), middleware.IdentityFrom(c), req.BacklinkID, req.Status)
	if err != nil {
		h.fail(c, err, "Failed to update backlink")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}
