package service

import (
	"context"
	"fmt"
	"strings"

	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/formula"
	"scalerrs-portal-api/internal/mockdata"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
)

// TaskQuery filters the task boards. Every field is optional.
type TaskQuery struct {
	ClientID string
	Status   string
	Board    string
	Search   string
}

// ListTasks returns the tasks visible to the caller, soonest due first.
func (s *Service) ListTasks(ctx context.Context, id Identity, q TaskQuery) (Result[[]models.Task], error) {
	schema, _ := models.SchemaFor(models.ResourceTasks)
	clients, err := id.scope(q.ClientID, false)
	if err != nil {
		return Result[[]models.Task]{}, err
	}
	status := strings.TrimSpace(q.Status)
	if status != "" && !schema.AllowsStatus(status) {
		return Result[[]models.Task]{}, models.NewValidationError("status", "unknown task status %q", status)
	}

	var extra []formula.Expr
	if board := strings.TrimSpace(q.Board); board != "" {
		extra = append(extra, formula.Eq(models.TaskFieldBoard, board))
	}
	expr, err := formula.Build(formula.Filter{
		ClientField:  schema.ClientField,
		ClientIDs:    clients,
		StatusField:  schema.StatusField,
		Statuses:     nonEmpty(status),
		SearchFields: schema.SearchFields,
		Search:       q.Search,
		Extra:        extra,
	})
	if err != nil {
		return Result[[]models.Task]{}, err
	}

	key := cache.NewKey(string(models.ResourceTasks)).
		WithList("clients", clients).
		With("status", status).
		With("board", strings.TrimSpace(q.Board)).
		With("q", strings.TrimSpace(q.Search)).
		String()

	return read(ctx, s, readSpec[[]models.Task]{
		resource: string(models.ResourceTasks),
		key:      key,
		live: func(ctx context.Context) ([]models.Task, int, error) {
			recs, err := s.selectAll(ctx, records.SelectQuery{
				Table:  schema.Table,
				Filter: string(expr),
				Sort:   []records.SortField{{Field: schema.SortField, Direction: "asc"}},
			})
			if err != nil {
				return nil, 0, err
			}
			return mapRecords(recs, models.TaskFromRecord), len(recs), nil
		},
		mock: func() []models.Task {
			rows := sampleRows(schema.Table, mockdata.Criteria{
				ClientField: schema.ClientField,
				ClientIDs:   clients,
				StatusField: schema.StatusField,
				Statuses:    nonEmpty(status),
				Match: func(r records.Record) bool {
					return q.Board == "" || r.String(models.TaskFieldBoard) == strings.TrimSpace(q.Board)
				},
			})
			return mapRecords(rows, models.TaskFromRecord)
		},
		fallbackOnEmpty: true,
	})
}

// UpdateTaskStatus moves a task to status. Repeating the same update is harmless.
func (s *Service) UpdateTaskStatus(ctx context.Context, id Identity, taskID, status string) (models.Task, error) {
	schema, _ := models.SchemaFor(models.ResourceTasks)
	taskID = strings.TrimSpace(taskID)
	status = strings.TrimSpace(status)
	if taskID == "" {
		return models.Task{}, &models.ValidationError{Field: "taskId", Message: "taskId is required"}
	}
	if !schema.AllowsStatus(status) {
		return models.Task{}, models.NewValidationError("status", "status must be one of %s", strings.Join(schema.DecisionStatuses, ", "))
	}
	if err := s.checkWritable(); err != nil {
		return models.Task{}, err
	}
	if err := s.authorizeWrite(ctx, id, schema, taskID); err != nil {
		return models.Task{}, err
	}

	rec, err := s.store.Update(ctx, schema.Table, taskID, map[string]any{schema.StatusField: status})
	if err != nil {
		return models.Task{}, fmt.Errorf("update task %s: %w", taskID, err)
	}
	s.invalidate(ctx, string(models.ResourceTasks))
	task := models.TaskFromRecord(rec)
	s.publish(realtime.Event{
		Type:      "status_changed",
		Resource:  string(models.ResourceTasks),
		RecordID:  task.ID,
		Status:    string(task.Status),
		ClientIDs: task.ClientIDs,
	})
	return task, nil
}

// authorizeWrite loads the target record for scoped callers and checks its client link.
func (s *Service) authorizeWrite(ctx context.Context, id Identity, schema models.Schema, recordID string) error {
	if !id.Scoped() {
		return nil
	}
	rec, err := s.store.Find(ctx, schema.Table, recordID)
	if err != nil {
		return fmt.Errorf("load %s: %w", recordID, err)
	}
	if !id.canTouch(rec.Strings(schema.ClientField)) {
		return ErrForbidden
	}
	return nil
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
