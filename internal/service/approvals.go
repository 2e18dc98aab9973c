package service

import (
	"context"
	"fmt"
	"strings"

	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/formula"
	"scalerrs-portal-api/internal/mockdata"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/pagination"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
)

// ApprovalQuery selects one page of deliverables of one type for one or more clients.
type ApprovalQuery struct {
	Type     string
	ClientID string
	// Status defaults to the type's pending statuses.
	Status string
	Search string
	Page   pagination.Request
}

// ApprovalPage is a page of deliverables plus its pagination block.
type ApprovalPage struct {
	Items      []models.ApprovalItem `json:"items"`
	Pagination pagination.Envelope   `json:"pagination"`
}

// ListApprovals pages through the deliverables awaiting a client decision.
// The client id is mandatory and "all" is rejected before any store call.
func (s *Service) ListApprovals(ctx context.Context, id Identity, q ApprovalQuery) (Result[ApprovalPage], error) {
	t, err := models.ParseApprovalType(q.Type)
	if err != nil {
		return Result[ApprovalPage]{}, err
	}
	clients, err := id.scope(q.ClientID, true)
	if err != nil {
		return Result[ApprovalPage]{}, err
	}
	return s.listDeliverables(ctx, "approvals:"+string(t), t, clients, q)
}

// BacklinkQuery filters the backlinks listing. Unlike approvals the client is optional.
type BacklinkQuery struct {
	ClientID string
	Status   string
	Search   string
	Page     pagination.Request
}

// ListBacklinks pages through backlinks in any status, most recently live first.
func (s *Service) ListBacklinks(ctx context.Context, id Identity, q BacklinkQuery) (Result[ApprovalPage], error) {
	clients, err := id.scope(q.ClientID, false)
	if err != nil {
		return Result[ApprovalPage]{}, err
	}
	status := q.Status
	if status == "" {
		status = "*"
	}
	return s.listDeliverables(ctx, string(models.ResourceBacklinks), models.ResourceBacklinks, clients, ApprovalQuery{
		Status: status,
		Search: q.Search,
		Page:   q.Page,
	})
}

func (s *Service) listDeliverables(ctx context.Context, resource string, t models.ResourceType, clients []string, q ApprovalQuery) (Result[ApprovalPage], error) {
	schema, _ := models.SchemaFor(t)
	if q.Page.Page < 1 || q.Page.PageSize < 1 || q.Page.PageSize > pagination.MaxPageSize {
		q.Page = pagination.ParseRequest(fmt.Sprint(q.Page.Page), fmt.Sprint(q.Page.PageSize), q.Page.Cursor)
	}

	var statuses []string
	switch status := strings.TrimSpace(q.Status); status {
	case "":
		statuses = schema.PendingStatuses
	case "*":
		// every status
	default:
		statuses = []string{status}
	}

	expr, err := formula.Build(formula.Filter{
		ClientField:  schema.ClientField,
		ClientIDs:    clients,
		StatusField:  schema.StatusField,
		Statuses:     statuses,
		SearchFields: schema.SearchFields,
		Search:       q.Search,
	})
	if err != nil {
		return Result[ApprovalPage]{}, err
	}

	base := cache.NewKey(resource).
		WithList("clients", clients).
		WithList("status", statuses).
		With("q", strings.TrimSpace(q.Search)).
		With("pageSize", fmt.Sprint(q.Page.PageSize))
	baseKey := base.String()
	pageKey := base.With("page", fmt.Sprint(q.Page.Page)).With("offset", q.Page.Cursor).String()

	// Backlinks sort by go-live date, newest first; other deliverables by due date.
	direction := "asc"
	if t == models.ResourceBacklinks {
		direction = "desc"
	}
	sel := records.SelectQuery{
		Table:  schema.Table,
		Filter: string(expr),
		Sort:   []records.SortField{{Field: schema.SortField, Direction: direction}},
	}

	return read(ctx, s, readSpec[ApprovalPage]{
		resource: resource,
		key:      pageKey,
		live: func(ctx context.Context) (ApprovalPage, int, error) {
			page, env, err := s.pager.Fetch(ctx, baseKey, q.Page, s.pageFetcher(sel))
			if err != nil {
				return ApprovalPage{}, 0, err
			}
			items := mapRecords(page.Records, func(r records.Record) models.ApprovalItem {
				return models.ApprovalFromRecord(t, r)
			})
			seen := len(items)
			if q.Page.Page > 1 || q.Page.Cursor != "" {
				// An empty deep page is the end of the data, not a reason to fall back.
				seen = max(seen, 1)
			}
			return ApprovalPage{Items: items, Pagination: env}, seen, nil
		},
		mock: func() ApprovalPage {
			rows := sampleRows(schema.Table, mockdata.Criteria{
				ClientField: schema.ClientField,
				ClientIDs:   clients,
				StatusField: schema.StatusField,
				Statuses:    statuses,
			})
			items := mapRecords(rows, func(r records.Record) models.ApprovalItem {
				return models.ApprovalFromRecord(t, r)
			})
			pageItems, env := paginateSlice(items, q.Page)
			return ApprovalPage{Items: pageItems, Pagination: env}
		},
		fallbackOnEmpty: true,
	})
}

// ApprovalDecision records a client decision on one deliverable.
type ApprovalDecision struct {
	Type     string
	RecordID string
	Status   string
	Reason   string
}

// UpdateApprovalStatus writes a decision. Rejections and change requests may carry a reason.
func (s *Service) UpdateApprovalStatus(ctx context.Context, id Identity, d ApprovalDecision) (models.ApprovalItem, error) {
	t, err := models.ParseApprovalType(d.Type)
	if err != nil {
		return models.ApprovalItem{}, err
	}
	return s.decide(ctx, id, t, d)
}

// UpdateBacklinkStatus is UpdateApprovalStatus for backlinks.
func (s *Service) UpdateBacklinkStatus(ctx context.Context, id Identity, recordID, status string) (models.ApprovalItem, error) {
	return s.decide(ctx, id, models.ResourceBacklinks, ApprovalDecision{RecordID: recordID, Status: status})
}

func (s *Service) decide(ctx context.Context, id Identity, t models.ResourceType, d ApprovalDecision) (models.ApprovalItem, error) {
	schema, _ := models.SchemaFor(t)
	recordID := strings.TrimSpace(d.RecordID)
	status := strings.TrimSpace(d.Status)
	if recordID == "" {
		return models.ApprovalItem{}, &models.ValidationError{Field: "recordId", Message: "recordId is required"}
	}
	if !schema.AllowsStatus(status) {
		return models.ApprovalItem{}, models.NewValidationError("status", "status must be one of %s", strings.Join(schema.DecisionStatuses, ", "))
	}
	if err := s.checkWritable(); err != nil {
		return models.ApprovalItem{}, err
	}
	if err := s.authorizeWrite(ctx, id, schema, recordID); err != nil {
		return models.ApprovalItem{}, err
	}

	fields := map[string]any{schema.StatusField: status}
	if reason := strings.TrimSpace(d.Reason); reason != "" && (status == models.StatusRejected || status == models.StatusChangesRequested) {
		fields[models.FieldReason] = reason
	}
	rec, err := s.store.Update(ctx, schema.Table, recordID, fields)
	if err != nil {
		return models.ApprovalItem{}, fmt.Errorf("update %s %s: %w", t, recordID, err)
	}

	prefixes := []string{"approvals:" + string(t)}
	if t == models.ResourceBacklinks {
		prefixes = append(prefixes, string(models.ResourceBacklinks))
	}
	s.invalidate(ctx, prefixes...)

	item := models.ApprovalFromRecord(t, rec)
	s.publish(realtime.Event{
		Type:      "status_changed",
		Resource:  string(t),
		RecordID:  item.ID,
		Status:    item.Status,
		ClientIDs: item.ClientIDs,
	})
	return item, nil
}
