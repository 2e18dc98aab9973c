package models

import (
	"time"

	"scalerrs-portal-api/internal/records"
)

// Comment is a note left on a task or deliverable.
type Comment struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	Author    string    `json:"author"`
	Role      Role      `json:"role,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentFromRecord normalizes a Comments row.
func CommentFromRecord(r records.Record) Comment {
	created := r.CreatedTime
	if raw := r.String("Created At"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			created = t
		}
	}
	return Comment{
		ID:        r.ID,
		RecordID:  r.String("Record ID"),
		Author:    r.String("Author"),
		Role:      Role(r.String("Role")),
		Text:      r.String("Comment"),
		CreatedAt: created,
	}
}

// KPI is one monthly metric with its target and projection.
type KPI struct {
	ID        string   `json:"id"`
	ClientIDs []string `json:"clientIds"`
	Month     string   `json:"month"`
	Metric    string   `json:"metric"`
	Actual    float64  `json:"actual"`
	Target    float64  `json:"target"`
	Projected float64  `json:"projected"`
}

// KPIFromRecord normalizes a KPIs row.
func KPIFromRecord(r records.Record) KPI {
	return KPI{
		ID:        r.ID,
		ClientIDs: r.Strings(FieldClientID),
		Month:     r.String("Month"),
		Metric:    r.String("Metric"),
		Actual:    r.Float("Actual"),
		Target:    r.Float("Target"),
		Projected: r.Float("Projected"),
	}
}

// Client is an agency customer.
type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ClientFromRecord normalizes a Clients row.
func ClientFromRecord(r records.Record) Client {
	return Client{
		ID:      r.ID,
		Name:    r.String("Name"),
		Website: r.String("Website"),
		Status:  r.String("Status"),
	}
}

// ChecklistItem is one onboarding/checklist entry for a client.
type ChecklistItem struct {
	ID        string   `json:"id"`
	ClientIDs []string `json:"clientIds"`
	Section   string   `json:"section"`
	Label     string   `json:"label"`
	Done      bool     `json:"done"`
	Order     int      `json:"order"`
}

// ChecklistFromRecord normalizes a Checklist row.
func ChecklistFromRecord(r records.Record) ChecklistItem {
	return ChecklistItem{
		ID:        r.ID,
		ClientIDs: r.Strings(FieldClientID),
		Section:   r.String("Section"),
		Label:     r.String("Label"),
		Done:      r.Bool("Done"),
		Order:     r.Int("Order"),
	}
}
