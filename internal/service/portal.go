package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/formula"
	"scalerrs-portal-api/internal/mockdata"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
)

var now = time.Now

// Comment field names in the Comments table.
const (
	commentFieldRecord    = "Record ID"
	commentFieldAuthor    = "Author"
	commentFieldRole      = "Role"
	commentFieldText      = "Comment"
	commentFieldCreatedAt = "Created At"
)

// ListComments returns the thread of recordID, oldest first. An empty thread is a
// valid answer and does not fall back to sample data.
func (s *Service) ListComments(ctx context.Context, id Identity, recordID string) (Result[[]models.Comment], error) {
	schema, _ := models.SchemaFor(models.ResourceComments)
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return Result[[]models.Comment]{}, &models.ValidationError{Field: "recordId", Message: "recordId is required"}
	}
	key := cache.NewKey(string(models.ResourceComments)).With("record", recordID).String()

	return read(ctx, s, readSpec[[]models.Comment]{
		resource: string(models.ResourceComments),
		key:      key,
		live: func(ctx context.Context) ([]models.Comment, int, error) {
			recs, err := s.selectAll(ctx, records.SelectQuery{
				Table:  schema.Table,
				Filter: string(formula.Eq(commentFieldRecord, recordID)),
				Sort:   []records.SortField{{Field: schema.SortField, Direction: "asc"}},
			})
			if err != nil {
				return nil, 0, err
			}
			return mapRecords(recs, models.CommentFromRecord), len(recs), nil
		},
		mock: func() []models.Comment {
			rows := mockdata.Select(schema.Table, mockdata.Criteria{Match: func(r records.Record) bool {
				return r.String(commentFieldRecord) == recordID
			}})
			return mapRecords(rows, models.CommentFromRecord)
		},
	})
}

// NewComment is a comment written by the caller on a record of RecordType.
type NewComment struct {
	RecordID   string
	RecordType string
	Text       string
}

// AddComment appends a comment authored by the caller. The commented record is
// loaded to authorize client callers and to route the change event; staff may
// leave RecordType empty for records outside the client tables.
func (s *Service) AddComment(ctx context.Context, id Identity, c NewComment) (models.Comment, error) {
	schema, _ := models.SchemaFor(models.ResourceComments)
	recordID := strings.TrimSpace(c.RecordID)
	text := strings.TrimSpace(c.Text)
	if recordID == "" {
		return models.Comment{}, &models.ValidationError{Field: "recordId", Message: "recordId is required"}
	}
	if text == "" {
		return models.Comment{}, &models.ValidationError{Field: "text", Message: "comment text is required"}
	}
	var target *models.Schema
	if strings.TrimSpace(c.RecordType) != "" || id.Scoped() {
		t, err := models.ParseCommentTarget(c.RecordType)
		if err != nil {
			return models.Comment{}, err
		}
		ts, _ := models.SchemaFor(t)
		target = &ts
	}
	if err := s.checkWritable(); err != nil {
		return models.Comment{}, err
	}
	var clientIDs []string
	if target != nil {
		rec, err := s.store.Find(ctx, target.Table, recordID)
		if err != nil {
			return models.Comment{}, fmt.Errorf("load %s: %w", recordID, err)
		}
		clientIDs = rec.Strings(target.ClientField)
		if id.Scoped() && !id.canTouch(clientIDs) {
			return models.Comment{}, ErrForbidden
		}
	}

	author := id.Name
	if author == "" {
		author = id.UserID
	}
	fields := map[string]any{
		commentFieldRecord:    recordID,
		commentFieldText:      text,
		commentFieldAuthor:    author,
		commentFieldCreatedAt: now().UTC().Format(time.RFC3339),
	}
	if id.Role != "" {
		fields[commentFieldRole] = string(id.Role)
	}
	rec, err := s.store.Create(ctx, schema.Table, fields)
	if err != nil {
		return models.Comment{}, fmt.Errorf("add comment on %s: %w", recordID, err)
	}
	s.invalidate(ctx, cache.NewKey(string(models.ResourceComments)).With("record", recordID).String())

	comment := models.CommentFromRecord(rec)
	s.publish(realtime.Event{
		Type:      "comment_added",
		Resource:  string(models.ResourceComments),
		RecordID:  recordID,
		ClientIDs: clientIDs,
	})
	return comment, nil
}

// KPIQuery selects the monthly metrics of one client, optionally within [From, To).
type KPIQuery struct {
	ClientID string
	From     time.Time
	To       time.Time
}

// ListKPIs returns the monthly KPI rows of a client in month order.
func (s *Service) ListKPIs(ctx context.Context, id Identity, q KPIQuery) (Result[[]models.KPI], error) {
	schema, _ := models.SchemaFor(models.ResourceKPIs)
	clients, err := id.scope(q.ClientID, true)
	if err != nil {
		return Result[[]models.KPI]{}, err
	}
	expr, err := formula.Build(formula.Filter{
		ClientField: schema.ClientField,
		ClientIDs:   clients,
		DateField:   schema.DateField,
		From:        q.From,
		To:          q.To,
	})
	if err != nil {
		return Result[[]models.KPI]{}, err
	}
	key := cache.NewKey(string(models.ResourceKPIs)).
		WithList("clients", clients).
		With("from", dateParam(q.From)).
		With("to", dateParam(q.To)).
		String()

	return read(ctx, s, readSpec[[]models.KPI]{
		resource: string(models.ResourceKPIs),
		key:      key,
		live: func(ctx context.Context) ([]models.KPI, int, error) {
			recs, err := s.selectAll(ctx, records.SelectQuery{
				Table:  schema.Table,
				Filter: string(expr),
				Sort:   []records.SortField{{Field: schema.SortField, Direction: "asc"}},
			})
			if err != nil {
				return nil, 0, err
			}
			return mapRecords(recs, models.KPIFromRecord), len(recs), nil
		},
		mock: func() []models.KPI {
			rows := sampleRows(schema.Table, mockdata.Criteria{ClientField: schema.ClientField, ClientIDs: clients})
			return mapRecords(rows, models.KPIFromRecord)
		},
		fallbackOnEmpty: true,
	})
}

// ListClients returns every client for staff and the caller's own clients otherwise.
func (s *Service) ListClients(ctx context.Context, id Identity) (Result[[]models.Client], error) {
	schema, _ := models.SchemaFor(models.ResourceClients)
	var own []string
	if id.Scoped() {
		if len(id.ClientIDs) == 0 {
			return Result[[]models.Client]{}, ErrForbidden
		}
		own = formula.NormalizeClientIDs(id.ClientIDs)
	}
	visible := func(cs []models.Client) []models.Client {
		if own == nil {
			return cs
		}
		return slices.DeleteFunc(cs, func(c models.Client) bool { return !slices.Contains(own, c.ID) })
	}

	// The full table is cached once; scoping happens after the cache.
	res, err := read(ctx, s, readSpec[[]models.Client]{
		resource: string(models.ResourceClients),
		key:      string(models.ResourceClients),
		live: func(ctx context.Context) ([]models.Client, int, error) {
			recs, err := s.selectAll(ctx, records.SelectQuery{
				Table: schema.Table,
				Sort:  []records.SortField{{Field: schema.SortField, Direction: "asc"}},
			})
			if err != nil {
				return nil, 0, err
			}
			return mapRecords(recs, models.ClientFromRecord), len(recs), nil
		},
		mock: func() []models.Client {
			return mapRecords(mockdata.Records(schema.Table), models.ClientFromRecord)
		},
		fallbackOnEmpty: true,
	})
	if err != nil {
		return res, err
	}
	if res.IsMock() {
		// Sample clients are not real clients; scoped callers see them all.
		return res, nil
	}
	res.Data = visible(res.Data)
	return res, nil
}

// GetChecklist returns a client's onboarding checklist in display order.
func (s *Service) GetChecklist(ctx context.Context, id Identity, clientID string) (Result[[]models.ChecklistItem], error) {
	schema, _ := models.SchemaFor(models.ResourceChecklist)
	clients, err := id.scope(clientID, true)
	if err != nil {
		return Result[[]models.ChecklistItem]{}, err
	}
	expr, err := formula.Build(formula.Filter{ClientField: schema.ClientField, ClientIDs: clients, RequireClient: true})
	if err != nil {
		return Result[[]models.ChecklistItem]{}, err
	}
	key := cache.NewKey(string(models.ResourceChecklist)).WithList("clients", clients).String()

	return read(ctx, s, readSpec[[]models.ChecklistItem]{
		resource: string(models.ResourceChecklist),
		key:      key,
		live: func(ctx context.Context) ([]models.ChecklistItem, int, error) {
			recs, err := s.selectAll(ctx, records.SelectQuery{
				Table:  schema.Table,
				Filter: string(expr),
				Sort:   []records.SortField{{Field: schema.SortField, Direction: "asc"}},
			})
			if err != nil {
				return nil, 0, err
			}
			return mapRecords(recs, models.ChecklistFromRecord), len(recs), nil
		},
		mock: func() []models.ChecklistItem {
			rows := sampleRows(schema.Table, mockdata.Criteria{ClientField: schema.ClientField, ClientIDs: clients})
			return mapRecords(rows, models.ChecklistFromRecord)
		},
		fallbackOnEmpty: true,
	})
}

// SetChecklistItem ticks or unticks one checklist entry.
func (s *Service) SetChecklistItem(ctx context.Context, id Identity, itemID string, done bool) (models.ChecklistItem, error) {
	schema, _ := models.SchemaFor(models.ResourceChecklist)
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return models.ChecklistItem{}, &models.ValidationError{Field: "itemId", Message: "itemId is required"}
	}
	if err := s.checkWritable(); err != nil {
		return models.ChecklistItem{}, err
	}
	if err := s.authorizeWrite(ctx, id, schema, itemID); err != nil {
		return models.ChecklistItem{}, err
	}
	rec, err := s.store.Update(ctx, schema.Table, itemID, map[string]any{"Done": done})
	if err != nil {
		return models.ChecklistItem{}, fmt.Errorf("update checklist item %s: %w", itemID, err)
	}
	s.invalidate(ctx, string(models.ResourceChecklist))

	item := models.ChecklistFromRecord(rec)
	status := "open"
	if item.Done {
		status = "done"
	}
	s.publish(realtime.Event{
		Type:      "checklist_updated",
		Resource:  string(models.ResourceChecklist),
		RecordID:  item.ID,
		Status:    status,
		ClientIDs: item.ClientIDs,
	})
	return item, nil
}

func dateParam(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
