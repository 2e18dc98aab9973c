package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"scalerrs-portal-api/internal/auth"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/pagination"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
	"scalerrs-portal-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(e realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type countingObserver struct {
	mu      sync.Mutex
	reasons []string
}

func (o *countingObserver) ObserveDegraded(resource, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons = append(o.reasons, resource+":"+reason)
}

func links(ids ...string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func seedTasks() []records.Record {
	return []records.Record{
		{ID: "recT1", CreatedTime: base, Fields: map[string]any{"Name": "Audit", "Status": "Not Started", "Client Record ID": links("recA"), "Board": "Technical SEO", "Due Date": "2025-03-10"}},
		{ID: "recT2", CreatedTime: base.Add(time.Hour), Fields: map[string]any{"Name": "Copy test", "Status": "In Progress", "Client Record ID": links("recB"), "Board": "CRO", "Due Date": "2025-03-05"}},
	}
}

func seedBriefs(n int, client string) []records.Record {
	out := make([]records.Record, n)
	for i := range out {
		out[i] = records.Record{
			ID:          fmt.Sprintf("recBrief%02d", i),
			CreatedTime: base.Add(time.Duration(i) * time.Minute),
			Fields: map[string]any{
				"Title":            fmt.Sprintf("Brief %02d", i),
				"Brief Status":     models.StatusAwaitingReview,
				"Client Record ID": links(client),
				"Due Date":         base.AddDate(0, 0, i).Format("2006-01-02"),
			},
		}
	}
	return out
}

func newService(t *testing.T, seed map[string][]records.Record) (*Service, *testutil.Store, *recordingPublisher) {
	t.Helper()
	store := testutil.NewStore(t, seed)
	pub := &recordingPublisher{}
	return New(Options{Store: store, Publisher: pub}), store, pub
}

var staff = Identity{UserID: "recStaff", Name: "Sam", Role: models.RoleTeam}

func TestListTasksWithoutCredentialsServesSampleData(t *testing.T) {
	obs := &countingObserver{}
	store := testutil.NewStore(t, nil)
	store.SetConfigured(false)
	svc := New(Options{Store: store, Observer: obs})

	res, err := svc.ListTasks(context.Background(), Identity{}, TaskQuery{})
	require.NoError(t, err)
	require.True(t, res.IsMock())
	require.Equal(t, ReasonConfigurationMissing, res.Degraded.Reason)
	require.Len(t, res.Data, 8)
	require.Zero(t, store.Calls())
	require.Equal(t, []string{"tasks:configuration_missing"}, obs.reasons)
}

func TestListTasksCachesLiveResults(t *testing.T) {
	svc, store, _ := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	ctx := context.Background()

	first, err := svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)
	require.False(t, first.IsMock())
	require.Len(t, first.Data, 2)
	require.Equal(t, "recT2", first.Data[0].ID) // earliest due date first

	second, err := svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)
	require.Equal(t, first.Data, second.Data)
	require.EqualValues(t, 1, store.Selects.Load())

	// a different filter is a different key
	board, err := svc.ListTasks(ctx, staff, TaskQuery{Board: "CRO"})
	require.NoError(t, err)
	require.Len(t, board.Data, 1)
	require.EqualValues(t, 2, store.Selects.Load())
}

func TestListTasksFallsBackWhenUpstreamFails(t *testing.T) {
	svc, store, _ := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	store.FailSelects(&records.StoreError{Kind: records.ErrUnavailable, Message: "timeout"})
	ctx := context.Background()

	res, err := svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)
	require.Equal(t, ReasonUpstreamUnavailable, res.Degraded.Reason)
	require.Len(t, res.Data, 8)
	require.Contains(t, res.Degraded.Message(), "timeout")

	// degraded results are not cached
	store.FailSelects(nil)
	res, err = svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)
	require.False(t, res.IsMock())
	require.EqualValues(t, 2, store.Selects.Load())
}

func TestListTasksFallsBackOnEmptyResult(t *testing.T) {
	svc, _, _ := newService(t, nil)
	res, err := svc.ListTasks(context.Background(), staff, TaskQuery{})
	require.NoError(t, err)
	require.Equal(t, ReasonEmptyResult, res.Degraded.Reason)
	require.NotEmpty(t, res.Data)
}

func TestListingsServeSampleDataWhenStoreRefusesSelect(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unknown base or table", &records.StoreError{Kind: records.ErrNotFound, Type: "NOT_FOUND", Status: 404}},
		{"bad formula", &records.StoreError{Kind: records.ErrRejected, Type: "INVALID_FILTER_BY_FORMULA", Status: 422}},
		{"bad credential", &records.StoreError{Kind: records.ErrNotAuthorized, Type: "AUTHENTICATION_REQUIRED", Status: 401}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newService(t, nil)
			store.FailSelects(tt.err)
			ctx := context.Background()

			tasks, err := svc.ListTasks(ctx, staff, TaskQuery{})
			require.NoError(t, err)
			require.True(t, tasks.IsMock())
			require.Equal(t, ReasonConfigurationInvalid, tasks.Degraded.Reason)
			require.Len(t, tasks.Data, 8)
			require.Contains(t, tasks.Degraded.Message(), "showing sample data")

			briefs, err := svc.ListApprovals(ctx, staff, ApprovalQuery{Type: "briefs", ClientID: "rec123"})
			require.NoError(t, err)
			require.True(t, briefs.IsMock())
			require.Equal(t, ReasonConfigurationInvalid, briefs.Degraded.Reason)
		})
	}
}

func TestListTasksCancelledCallerIsAnError(t *testing.T) {
	svc, store, _ := newService(t, nil)
	store.FailSelects(context.Canceled)
	_, err := svc.ListTasks(context.Background(), staff, TaskQuery{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScopedCallerIsLimitedToOwnClients(t *testing.T) {
	svc, store, _ := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	client := Identity{UserID: "recU", Role: models.RoleClient, ClientIDs: []string{"recA"}}
	ctx := context.Background()

	res, err := svc.ListTasks(ctx, client, TaskQuery{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	require.Equal(t, "recT1", res.Data[0].ID)

	_, err = svc.ListTasks(ctx, client, TaskQuery{ClientID: "recB"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateTaskStatus(ctx, client, "recT2", "Done")
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, store.Updates.Load())
}

func TestListApprovalsRejectsAllWithoutStoreCalls(t *testing.T) {
	svc, store, _ := newService(t, nil)
	for _, clientID := range []string{"all", "", "recA,all"} {
		_, err := svc.ListApprovals(context.Background(), staff, ApprovalQuery{Type: "briefs", ClientID: clientID})
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve), clientID)
		require.Equal(t, `clientId is mandatory (not "all")`, ve.Message)
	}
	require.Zero(t, store.Calls())

	_, err := svc.ListApprovals(context.Background(), staff, ApprovalQuery{Type: "widgets", ClientID: "recA"})
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "type", ve.Field)
}

func TestListApprovalsPaginates(t *testing.T) {
	seed := append(seedBriefs(25, "recA"), seedBriefs(3, "recB")[0])
	seed[len(seed)-1].ID = "recOther"
	svc, store, _ := newService(t, map[string][]records.Record{"Briefs": seed})
	ctx := context.Background()
	q := ApprovalQuery{Type: "briefs", ClientID: "recA", Page: pagination.Request{Page: 1, PageSize: 10}}

	first, err := svc.ListApprovals(ctx, staff, q)
	require.NoError(t, err)
	require.False(t, first.IsMock())
	require.Len(t, first.Data.Items, 10)
	require.Equal(t, "recBrief00", first.Data.Items[0].ID)
	require.NotNil(t, first.Data.Items[0].Brief)
	require.True(t, first.Data.Pagination.HasMore)
	require.Equal(t, 2, first.Data.Pagination.TotalPages)

	q.Page.Page = 3
	third, err := svc.ListApprovals(ctx, staff, q)
	require.NoError(t, err)
	require.Len(t, third.Data.Items, 5)
	require.False(t, third.Data.Pagination.HasMore)
	require.Equal(t, 3, third.Data.Pagination.TotalPages)
	require.GreaterOrEqual(t, third.Data.Pagination.TotalPages, (20+5+9)/10)

	calls := store.Selects.Load()
	_, err = svc.ListApprovals(ctx, staff, q)
	require.NoError(t, err)
	require.Equal(t, calls, store.Selects.Load())

	q.Page.Page = 9
	beyond, err := svc.ListApprovals(ctx, staff, q)
	require.NoError(t, err)
	require.False(t, beyond.IsMock())
	require.Empty(t, beyond.Data.Items)
}

func TestListApprovalsSecondCallServedFromCache(t *testing.T) {
	svc, store, _ := newService(t, map[string][]records.Record{"Briefs": seedBriefs(3, "rec123")})
	q := ApprovalQuery{Type: "briefs", ClientID: "rec123", Page: pagination.Request{Page: 1, PageSize: 10}}
	for range 2 {
		res, err := svc.ListApprovals(context.Background(), staff, q)
		require.NoError(t, err)
		require.Len(t, res.Data.Items, 3)
	}
	require.EqualValues(t, 1, store.Selects.Load())
}

func TestUpdateTaskStatusIsIdempotentAndInvalidates(t *testing.T) {
	svc, store, pub := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	ctx := context.Background()

	_, err := svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)

	for range 2 {
		task, err := svc.UpdateTaskStatus(ctx, staff, "recT1", "Done")
		require.NoError(t, err)
		require.Equal(t, models.TaskDone, task.Status)
		require.Equal(t, "Audit", task.Name)
	}
	require.EqualValues(t, 2, store.Updates.Load())
	require.Len(t, pub.events, 2)
	require.Equal(t, []string{"recA"}, pub.events[0].ClientIDs)

	res, err := svc.ListTasks(ctx, staff, TaskQuery{Status: "Done"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	require.Equal(t, "recT1", res.Data[0].ID)
}

func TestUpdateTaskStatusErrors(t *testing.T) {
	svc, store, _ := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	ctx := context.Background()

	_, err := svc.UpdateTaskStatus(ctx, staff, "", "Done")
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "taskId", ve.Field)

	_, err = svc.UpdateTaskStatus(ctx, staff, "recT1", "Finished")
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "status", ve.Field)

	_, err = svc.UpdateTaskStatus(ctx, staff, "recMissing", "Done")
	require.ErrorIs(t, err, records.ErrNotFound)

	store.FailWrites(&records.StoreError{Kind: records.ErrRejected, Type: "INVALID_VALUE_FOR_COLUMN", Status: 422})
	_, err = svc.UpdateTaskStatus(ctx, staff, "recT1", "Done")
	require.ErrorIs(t, err, records.ErrRejected)

	store.SetConfigured(false)
	_, err = svc.UpdateTaskStatus(ctx, staff, "recT1", "Done")
	require.ErrorIs(t, err, records.ErrNotConfigured)
}

func TestUpdateApprovalStatusWritesReason(t *testing.T) {
	svc, _, pub := newService(t, map[string][]records.Record{"Briefs": seedBriefs(2, "recA")})
	ctx := context.Background()

	item, err := svc.UpdateApprovalStatus(ctx, staff, ApprovalDecision{Type: "briefs", RecordID: "recBrief01", Status: models.StatusChangesRequested, Reason: "Needs sources"})
	require.NoError(t, err)
	require.Equal(t, models.StatusChangesRequested, item.Status)
	require.Equal(t, "Needs sources", item.Reason)
	require.Equal(t, "briefs", pub.events[0].Resource)

	res, err := svc.ListApprovals(ctx, staff, ApprovalQuery{Type: "briefs", ClientID: "recA", Page: pagination.Request{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	require.Len(t, res.Data.Items, 1)

	_, err = svc.UpdateApprovalStatus(ctx, staff, ApprovalDecision{Type: "briefs", RecordID: "recBrief00", Status: models.StatusLive})
	require.Error(t, err)
}

func TestBacklinks(t *testing.T) {
	seed := []records.Record{
		{ID: "recL1", CreatedTime: base, Fields: map[string]any{"Domain": "a.example", "DR": 40, "Status": models.StatusLive, "Went Live On": "2025-02-01", "Client Record ID": links("recA")}},
		{ID: "recL2", CreatedTime: base, Fields: map[string]any{"Domain": "b.example", "DR": 60, "Status": models.StatusAwaitingApproval, "Went Live On": "", "Client Record ID": links("recA")}},
	}
	svc, _, _ := newService(t, map[string][]records.Record{"Backlinks": seed})
	ctx := context.Background()

	res, err := svc.ListBacklinks(ctx, staff, BacklinkQuery{Page: pagination.Request{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	require.Len(t, res.Data.Items, 2)
	require.Equal(t, "recL1", res.Data.Items[0].ID)
	require.Equal(t, 60, res.Data.Items[1].Backlink.DomainRating)

	item, err := svc.UpdateBacklinkStatus(ctx, staff, "recL2", models.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, item.Status)

	res, err = svc.ListBacklinks(ctx, staff, BacklinkQuery{Status: models.StatusApproved, Page: pagination.Request{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	require.Len(t, res.Data.Items, 1)
}

func TestCommentsRoundTrip(t *testing.T) {
	svc, _, pub := newService(t, nil)
	ctx := context.Background()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	empty, err := svc.ListComments(ctx, staff, "recT1")
	require.NoError(t, err)
	require.False(t, empty.IsMock())
	require.Empty(t, empty.Data)

	c, err := svc.AddComment(ctx, staff, NewComment{RecordID: "recT1", Text: "  On it  "})
	require.NoError(t, err)
	require.Equal(t, "On it", c.Text)
	require.Equal(t, "Sam", c.Author)
	require.Equal(t, base, c.CreatedAt.UTC())
	require.Equal(t, "comment_added", pub.events[0].Type)

	thread, err := svc.ListComments(ctx, staff, "recT1")
	require.NoError(t, err)
	require.Len(t, thread.Data, 1)

	_, err = svc.AddComment(ctx, staff, NewComment{RecordID: "recT1"})
	require.Error(t, err)
}

func TestAddCommentAuthorizesAgainstStoredClient(t *testing.T) {
	svc, store, pub := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	client := Identity{UserID: "recU", Name: "Cleo", Role: models.RoleClient, ClientIDs: []string{"recA"}}
	ctx := context.Background()

	// recT2 belongs to recB whatever the caller claims.
	_, err := svc.AddComment(ctx, client, NewComment{RecordID: "recT2", RecordType: "tasks", Text: "Mine now"})
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, store.Creates.Load())

	_, err = svc.AddComment(ctx, client, NewComment{RecordID: "recT1", Text: "No type"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "recordType", verr.Field)

	_, err = svc.AddComment(ctx, client, NewComment{RecordID: "recT1", RecordType: "clients", Text: "Wrong table"})
	require.ErrorAs(t, err, &verr)

	_, err = svc.AddComment(ctx, client, NewComment{RecordID: "recMissing", RecordType: "tasks", Text: "Ghost"})
	require.ErrorIs(t, err, records.ErrNotFound)

	c, err := svc.AddComment(ctx, client, NewComment{RecordID: "recT1", RecordType: "tasks", Text: "Thanks"})
	require.NoError(t, err)
	require.Equal(t, "Cleo", c.Author)
	require.Len(t, pub.events, 1)
	require.Equal(t, []string{"recA"}, pub.events[0].ClientIDs)
}

func TestKPIsAndChecklist(t *testing.T) {
	seed := map[string][]records.Record{
		"KPIs": {
			{ID: "recK1", CreatedTime: base, Fields: map[string]any{"Month": "2025-01", "Metric": "Sessions", "Actual": 10, "Target": 12, "Client Record ID": links("recA")}},
			{ID: "recK2", CreatedTime: base, Fields: map[string]any{"Month": "2025-02", "Metric": "Sessions", "Actual": 14, "Target": 13, "Client Record ID": links("recA")}},
		},
		"Checklist": {
			{ID: "recC1", CreatedTime: base, Fields: map[string]any{"Label": "Access", "Order": 1, "Done": false, "Client Record ID": links("recA")}},
		},
	}
	svc, _, _ := newService(t, seed)
	ctx := context.Background()

	kpis, err := svc.ListKPIs(ctx, staff, KPIQuery{ClientID: "recA", From: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, kpis.Data, 1)
	require.Equal(t, "recK2", kpis.Data[0].ID)

	_, err = svc.ListKPIs(ctx, staff, KPIQuery{ClientID: "all"})
	require.Error(t, err)

	list, err := svc.GetChecklist(ctx, staff, "recA")
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	require.False(t, list.Data[0].Done)

	item, err := svc.SetChecklistItem(ctx, staff, "recC1", true)
	require.NoError(t, err)
	require.True(t, item.Done)

	list, err = svc.GetChecklist(ctx, staff, "recA")
	require.NoError(t, err)
	require.True(t, list.Data[0].Done)
}

func TestListClientsScoping(t *testing.T) {
	seed := map[string][]records.Record{"Clients": {
		{ID: "recA", CreatedTime: base, Fields: map[string]any{"Name": "Alpha"}},
		{ID: "recB", CreatedTime: base, Fields: map[string]any{"Name": "Beta"}},
	}}
	svc, store, _ := newService(t, seed)
	ctx := context.Background()

	all, err := svc.ListClients(ctx, staff)
	require.NoError(t, err)
	require.Len(t, all.Data, 2)

	own, err := svc.ListClients(ctx, Identity{Role: models.RoleClient, ClientIDs: []string{"recB"}})
	require.NoError(t, err)
	require.Len(t, own.Data, 1)
	require.Equal(t, "Beta", own.Data[0].Name)
	require.EqualValues(t, 1, store.Selects.Load())
}

func TestAuthenticate(t *testing.T) {
	hash, err := auth.HashPassword("hashed-pw")
	require.NoError(t, err)
	seed := map[string][]records.Record{"Users": {
		{ID: "recU1", CreatedTime: base, Fields: map[string]any{"Name": "Ann", "Email": "Ann@Example.com", "Role": "Client", "Password": "plain-pw", "Client Record ID": links("recA")}},
		{ID: "recU2", CreatedTime: base, Fields: map[string]any{"Name": "Bo", "Email": "bo@example.com", "Role": "Admin", "Password": hash}},
	}}
	svc, store, _ := newService(t, seed)
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "ann@example.com", "plain-pw")
	require.NoError(t, err)
	require.Equal(t, models.RoleClient, u.Role)
	require.Equal(t, []string{"recA"}, u.ClientIDs)
	require.Empty(t, u.Password)

	u, err = svc.Authenticate(ctx, "bo@example.com", "hashed-pw")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, u.Role)

	_, err = svc.Authenticate(ctx, "ann@example.com", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "x")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	store.SetConfigured(false)
	_, err = svc.Authenticate(ctx, "admin@demo.scalerrs.com", "demo-admin")
	require.ErrorIs(t, err, records.ErrNotConfigured)

	demo := New(Options{Store: store, DemoLogin: true})
	u, err = demo.Authenticate(ctx, "admin@demo.scalerrs.com", "demo-admin")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, u.Role)
}

func TestClearCache(t *testing.T) {
	svc, store, _ := newService(t, map[string][]records.Record{"Tasks": seedTasks()})
	ctx := context.Background()
	_, err := svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)

	stats, err := svc.CacheStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Size)
	require.EqualValues(t, 1, stats.Misses)

	n, err := svc.ClearCache(ctx, "tasks")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.ListTasks(ctx, staff, TaskQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 2, store.Selects.Load())

	n, err = svc.ClearCache(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
