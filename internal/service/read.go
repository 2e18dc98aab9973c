package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/mockdata"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/pagination"
	"scalerrs-portal-api/internal/records"
)

// maxListPages bounds unpaginated listings to maxListPages*100 rows.
const maxListPages = 10

// cached is what the request cache holds for a read. Only live results
// (Reason == "") are ever stored; degraded ones travel through single-flight only.
type cached[T any] struct {
	Data   T      `json:"data"`
	Reason Reason `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readSpec[T any] struct {
	resource string
	key      string
	// live loads from the store and reports how many rows it saw.
	live func(ctx context.Context) (T, int, error)
	mock func() T
	// fallbackOnEmpty serves sample data when live saw no rows.
	fallbackOnEmpty bool
}

func read[T any](ctx context.Context, s *Service, spec readSpec[T]) (Result[T], error) {
	if !s.Configured() {
		s.observeDegraded(spec.resource, ReasonConfigurationMissing)
		return Result[T]{
			Data:     spec.mock(),
			Degraded: &Degradation{Reason: ReasonConfigurationMissing, Err: records.ErrNotConfigured},
		}, nil
	}

	v, _, err := cache.Fetch(ctx, s.cache, spec.key, s.cache.TTL(), func(ctx context.Context) (cached[T], bool, error) {
		data, n, err := spec.live(ctx)
		switch {
		case err != nil && !fallsBack(err):
			return cached[T]{}, false, err
		case err != nil:
			reason := fallbackReason(err)
			s.logger.Warn("serving sample data",
				slog.String("resource", spec.resource),
				slog.String("reason", string(reason)),
				slog.Any("error", err))
			return cached[T]{Data: spec.mock(), Reason: reason, Error: err.Error()}, false, nil
		case n == 0 && spec.fallbackOnEmpty:
			return cached[T]{Data: spec.mock(), Reason: ReasonEmptyResult}, false, nil
		}
		return cached[T]{Data: data}, true, nil
	})
	if err != nil {
		return Result[T]{}, err
	}

	res := Result[T]{Data: v.Data}
	if v.Reason != "" {
		d := &Degradation{Reason: v.Reason}
		if v.Error != "" {
			d.Err = errors.New(v.Error)
		}
		res.Degraded = d
		s.observeDegraded(spec.resource, v.Reason)
	}
	return res, nil
}

// fallsBack reports whether a listing failure is answered with sample data.
// Every store failure is; caller mistakes and a departed caller are not.
func fallsBack(err error) bool {
	var verr *models.ValidationError
	return !errors.As(err, &verr) && !errors.Is(err, context.Canceled)
}

// fallbackReason classifies a failed select. A select names no record, so
// NOT_FOUND and rejections point at a wrong base, table or field.
func fallbackReason(err error) Reason {
	switch {
	case errors.Is(err, records.ErrNotConfigured):
		return ReasonConfigurationMissing
	case errors.Is(err, records.ErrNotFound), errors.Is(err, records.ErrRejected), errors.Is(err, records.ErrNotAuthorized):
		return ReasonConfigurationInvalid
	default:
		return ReasonUpstreamUnavailable
	}
}

func (s *Service) observeDegraded(resource string, reason Reason) {
	if s.observer != nil {
		s.observer.ObserveDegraded(resource, string(reason))
	}
}

// selectAll follows offsets until the table is exhausted or maxListPages is reached.
func (s *Service) selectAll(ctx context.Context, q records.SelectQuery) ([]records.Record, error) {
	q.PageSize = pagination.MaxPageSize
	var out []records.Record
	for range maxListPages {
		page, err := s.store.Select(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		q.Offset = page.Offset
	}
	s.logger.Warn("listing truncated", slog.String("table", q.Table), slog.Int("rows", len(out)))
	return out, nil
}

// pageFetcher adapts a select query to the paginator.
func (s *Service) pageFetcher(q records.SelectQuery) pagination.Fetcher {
	return func(ctx context.Context, pageSize int, offset string) (records.Page, error) {
		q.PageSize = pageSize
		q.Offset = offset
		return s.store.Select(ctx, q)
	}
}

// sampleRows selects fallback rows. Client ids that are not sample clients are
// ignored so a real client still sees a representative sample.
func sampleRows(table string, c mockdata.Criteria) []records.Record {
	if !slices.ContainsFunc(c.ClientIDs, mockdata.IsSampleClient) {
		c.ClientIDs = nil
	}
	return mockdata.Select(table, c)
}

// paginateSlice cuts one page out of an in-memory list.
func paginateSlice[T any](items []T, req pagination.Request) ([]T, pagination.Envelope) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = pagination.DefaultPageSize
	}
	start := min((req.Page-1)*req.PageSize, len(items))
	end := min(start+req.PageSize, len(items))
	hasMore := end < len(items)
	page := items[start:end]
	if page == nil {
		page = []T{}
	}
	return page, pagination.Envelope{
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: pagination.TotalPages(req.Page, req.PageSize, len(page), hasMore),
		HasMore:    hasMore,
	}
}

func mapRecords[T any](recs []records.Record, fn func(records.Record) T) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		out = append(out, fn(r))
	}
	return out
}
