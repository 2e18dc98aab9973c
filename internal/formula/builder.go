package formula

import (
	"sort"
	"strings"
	"time"

	"scalerrs-portal-api/internal/models"
)

// Filter is the caller-facing description of a scoped select.
type Filter struct {
	ClientField   string
	ClientIDs     []string
	RequireClient bool

	StatusField string
	Statuses    []string

	SearchFields []string
	Search       string

	DateField string
	From      time.Time
	To        time.Time

	Extra []Expr
}

// ValidateClientID fails fast on a missing id or the "all" sentinel.
func ValidateClientID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, models.AllClients) {
		return &models.ValidationError{Field: "clientId", Message: `clientId is mandatory (not "all")`}
	}
	return nil
}

// NormalizeClientIDs trims, de-duplicates and sorts ids so equal sets encode identically.
func NormalizeClientIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Build renders f as AND(status, OR(clients...), search, dates, extra...).
func Build(f Filter) (Expr, error) {
	ids := NormalizeClientIDs(f.ClientIDs)
	if f.RequireClient && len(ids) == 0 {
		return "", ValidateClientID("")
	}
	for _, id := range f.ClientIDs {
		if strings.EqualFold(strings.TrimSpace(id), models.AllClients) {
			return "", ValidateClientID(id)
		}
	}
	if len(ids) > 0 && f.ClientField == "" {
		return "", &models.ValidationError{Field: "clientId", Message: "resource cannot be scoped by client"}
	}

	var status []Expr
	for _, s := range f.Statuses {
		if s = strings.TrimSpace(s); s != "" {
			status = append(status, Eq(f.StatusField, s))
		}
	}

	clients := make([]Expr, 0, len(ids))
	for _, id := range ids {
		clients = append(clients, Contains(f.ClientField, id))
	}

	var search []Expr
	if text := strings.TrimSpace(f.Search); text != "" {
		for _, field := range f.SearchFields {
			search = append(search, Search(field, text))
		}
	}

	var dates []Expr
	if f.DateField != "" {
		if !f.From.IsZero() {
			dates = append(dates, OnOrAfter(f.DateField, f.From))
		}
		if !f.To.IsZero() {
			dates = append(dates, Before(f.DateField, f.To))
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return "", &models.ValidationError{Field: "to", Message: "to must not be before from"}
	}

	parts := []Expr{Or(status...), Or(clients...), Or(search...)}
	parts = append(parts, dates...)
	parts = append(parts, f.Extra...)
	return And(parts...), nil
}
