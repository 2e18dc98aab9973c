// Package service implements the portal operations on top of the record store,
// the request cache and the fallback dataset.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/formula"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/pagination"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
)

var (
	ErrForbidden          = errors.New("not allowed for this caller")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Reason explains why a result carries fallback data.
type Reason string

const (
	ReasonConfigurationMissing Reason = "configuration_missing"
	ReasonConfigurationInvalid Reason = "configuration_invalid"
	ReasonUpstreamUnavailable  Reason = "upstream_unavailable"
	ReasonEmptyResult          Reason = "empty_result"
)

// Degradation marks a Result as fallback data.
type Degradation struct {
	Reason Reason
	Err    error
}

// Message is the advisory text shown next to fallback data.
func (d *Degradation) Message() string {
	switch d.Reason {
	case ReasonConfigurationMissing:
		return "Record store credentials are not configured; showing sample data"
	case ReasonEmptyResult:
		return "No records found; showing sample data"
	case ReasonConfigurationInvalid:
		if d.Err != nil {
			return "Record store refused the query, check the base id and table names; showing sample data: " + d.Err.Error()
		}
		return "Record store refused the query, check the base id and table names; showing sample data"
	default:
		if d.Err != nil {
			return "Record store unavailable; showing sample data: " + d.Err.Error()
		}
		return "Record store unavailable; showing sample data"
	}
}

// Result is live data, or fallback data when Degraded is set.
type Result[T any] struct {
	Data     T
	Degraded *Degradation
}

// IsMock reports whether Data is fallback data.
func (r Result[T]) IsMock() bool { return r.Degraded != nil }

// Identity is the caller as established by the HTTP layer.
type Identity struct {
	UserID    string
	Name      string
	Role      models.Role
	ClientIDs []string
}

// Scoped reports whether the caller is restricted to its own clients.
// Callers that presented no identity are not scoped.
func (id Identity) Scoped() bool { return id.Role == models.RoleClient }

// Publisher receives change events; realtime.Hub implements it.
type Publisher interface {
	Publish(e realtime.Event)
}

// DegradationObserver counts fallback responses; metrics.Recorder implements it.
type DegradationObserver interface {
	ObserveDegraded(resource, reason string)
}

// Options wires the collaborators of a Service.
type Options struct {
	Store     records.Store
	Cache     *cache.RequestCache
	Logger    *slog.Logger
	Publisher Publisher
	Observer  DegradationObserver
	// DemoLogin accepts the sample users when the store cannot authenticate.
	DemoLogin bool
}

// Service is the portal's application layer. It is safe for concurrent use.
type Service struct {
	store     records.Store
	cache     *cache.RequestCache
	pager     *pagination.Paginator
	logger    *slog.Logger
	publisher Publisher
	observer  DegradationObserver
	demoLogin bool
}

// New builds a Service. A nil cache gets a private in-memory one.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rc := opts.Cache
	if rc == nil {
		rc = cache.NewRequestCache(nil, cache.RequestCacheOptions{Logger: logger})
	}
	return &Service{
		store:     opts.Store,
		cache:     rc,
		pager:     pagination.NewPaginator(rc, logger),
		logger:    logger.With(slog.String("component", "service")),
		publisher: opts.Publisher,
		observer:  opts.Observer,
		demoLogin: opts.DemoLogin,
	}
}

// Configured reports whether the record store can be called at all.
func (s *Service) Configured() bool {
	if s.store == nil {
		return false
	}
	if c, ok := s.store.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

// scope resolves the client ids a query is restricted to. requested may be a
// comma separated list. A nil result means "every client".
func (id Identity) scope(requested string, mandatory bool) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(requested, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	if mandatory {
		if len(ids) == 0 {
			return nil, formula.ValidateClientID("")
		}
		for _, cid := range ids {
			if err := formula.ValidateClientID(cid); err != nil {
				return nil, err
			}
		}
	} else if slices.ContainsFunc(ids, func(cid string) bool { return strings.EqualFold(cid, models.AllClients) }) {
		// "all" on an optional scope is the unfiltered view.
		ids = nil
	}

	if !id.Scoped() {
		return formula.NormalizeClientIDs(ids), nil
	}
	if len(id.ClientIDs) == 0 {
		return nil, ErrForbidden
	}
	if len(ids) == 0 {
		return formula.NormalizeClientIDs(id.ClientIDs), nil
	}
	for _, cid := range ids {
		if !slices.Contains(id.ClientIDs, cid) {
			return nil, ErrForbidden
		}
	}
	return formula.NormalizeClientIDs(ids), nil
}

// canTouch reports whether a scoped caller may write a record linked to linked.
func (id Identity) canTouch(linked []string) bool {
	if !id.Scoped() {
		return true
	}
	for _, cid := range linked {
		if slices.Contains(id.ClientIDs, cid) {
			return true
		}
	}
	return false
}

func (s *Service) publish(e realtime.Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

func (s *Service) invalidate(ctx context.Context, prefixes ...string) {
	for _, p := range prefixes {
		if _, err := s.cache.ClearPrefix(ctx, p); err != nil {
			s.logger.Warn("cache invalidation failed", slog.String("prefix", p), slog.Any("error", err))
		}
	}
}

// checkWritable fails writes fast when the store has no credentials.
func (s *Service) checkWritable() error {
	if !s.Configured() {
		return records.ErrNotConfigured
	}
	return nil
}
