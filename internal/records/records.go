package records

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is an ephemeral copy of a row owned by the external record store.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// SortField orders a select by one field.
type SortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // asc | desc
}

// SelectQuery describes one page request against a table.
type SelectQuery struct {
	Table    string
	Filter   string
	Sort     []SortField
	PageSize int
	Offset   string
	Fields   []string
	View     string
}

// Page is one page of records. An empty Offset means there are no further pages.
type Page struct {
	Records []Record
	Offset  string
}

// Store is the subset of the hosted record database the portal relies on.
// All writes are single-record upserts.
type Store interface {
	Select(ctx context.Context, q SelectQuery) (Page, error)
	Find(ctx context.Context, table, id string) (Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (Record, error)
}

// String returns a field as text. Single-element arrays (lookup fields) are unwrapped.
func (r Record) String(field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) == 0 {
			return ""
		}
		return fmt.Sprint(t[0])
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Strings returns a linked-record or multi-select field as a string slice.
func (r Record) Strings(field string) []string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

// Float returns a numeric field, parsing strings when needed.
func (r Record) Float(field string) float64 {
	switch t := r.Fields[field].(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case []any:
		if len(t) > 0 {
			return Record{Fields: map[string]any{field: t[0]}}.Float(field)
		}
	}
	return 0
}

// Int returns a numeric field rounded to the nearest integer.
func (r Record) Int(field string) int {
	return int(math.Round(r.Float(field)))
}

// Bool returns a checkbox field.
func (r Record) Bool(field string) bool {
	switch t := r.Fields[field].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	}
	return false
}
