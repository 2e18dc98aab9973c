package models

import "strings"

// ResourceType identifies a portal listing and the table that backs it.
type ResourceType string

const (
	ResourceKeywords  ResourceType = "keywords"
	ResourceBriefs    ResourceType = "briefs"
	ResourceArticles  ResourceType = "articles"
	ResourceBacklinks ResourceType = "backlinks"
	ResourceTasks     ResourceType = "tasks"
	ResourceComments  ResourceType = "comments"
	ResourceKPIs      ResourceType = "kpis"
	ResourceClients   ResourceType = "clients"
	ResourceChecklist ResourceType = "checklist"
	ResourceUsers     ResourceType = "users"
)

// Schema maps a resource onto its table and the columns the filter builder needs.
type Schema struct {
	Table        string
	ClientField  string // text/lookup column holding client record ids
	StatusField  string
	SearchFields []string
	DateField    string
	SortField    string

	// PendingStatuses are the statuses that mean "waiting on the client".
	PendingStatuses []string
	// DecisionStatuses are the statuses a caller may move an item to.
	DecisionStatuses []string
}

var schemas = map[ResourceType]Schema{
	ResourceKeywords: {
		Table:            "Keywords",
		ClientField:      "Client Record ID",
		StatusField:      "Keyword Approvals",
		SearchFields:     []string{"Main Keyword"},
		DateField:        "Due Date",
		SortField:        "Due Date",
		PendingStatuses:  []string{StatusAwaitingApproval},
		DecisionStatuses: []string{StatusApproved, StatusRejected, StatusChangesRequested},
	},
	ResourceBriefs: {
		Table:            "Briefs",
		ClientField:      "Client Record ID",
		StatusField:      "Brief Status",
		SearchFields:     []string{"Title", "Main Keyword"},
		DateField:        "Due Date",
		SortField:        "Due Date",
		PendingStatuses:  []string{StatusAwaitingReview},
		DecisionStatuses: []string{StatusApproved, StatusRejected, StatusChangesRequested},
	},
	ResourceArticles: {
		Table:            "Articles",
		ClientField:      "Client Record ID",
		StatusField:      "Article Status",
		SearchFields:     []string{"Title", "Main Keyword"},
		DateField:        "Due Date",
		SortField:        "Due Date",
		PendingStatuses:  []string{StatusAwaitingReview},
		DecisionStatuses: []string{StatusApproved, StatusRejected, StatusChangesRequested},
	},
	ResourceBacklinks: {
		Table:            "Backlinks",
		ClientField:      "Client Record ID",
		StatusField:      "Status",
		SearchFields:     []string{"Domain", "Target URL"},
		DateField:        "Went Live On",
		SortField:        "Went Live On",
		PendingStatuses:  []string{StatusAwaitingApproval},
		DecisionStatuses: []string{StatusApproved, StatusRejected, StatusLive},
	},
	ResourceTasks: {
		Table:            "Tasks",
		ClientField:      "Client Record ID",
		StatusField:      "Status",
		SearchFields:     []string{"Name", "Notes"},
		DateField:        "Due Date",
		SortField:        "Due Date",
		DecisionStatuses: []string{string(TaskNotStarted), string(TaskInProgress), string(TaskBlocked), string(TaskDone)},
	},
	ResourceComments: {
		Table:     "Comments",
		SortField: "Created At",
	},
	ResourceKPIs: {
		Table:       "KPIs",
		ClientField: "Client Record ID",
		DateField:   "Month",
		SortField:   "Month",
	},
	ResourceClients: {
		Table:        "Clients",
		SearchFields: []string{"Name"},
		SortField:    "Name",
	},
	ResourceChecklist: {
		Table:       "Checklist",
		ClientField: "Client Record ID",
		SortField:   "Order",
	},
	ResourceUsers: {
		Table: "Users",
	},
}

// SchemaFor returns the table schema of t.
func SchemaFor(t ResourceType) (Schema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// ParseApprovalType accepts the resource types served by the approvals listing.
func ParseApprovalType(raw string) (ResourceType, error) {
	switch t := ResourceType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ResourceKeywords, ResourceBriefs, ResourceArticles, ResourceBacklinks:
		return t, nil
	case "":
		return "", &ValidationError{Field: "type", Message: "type is required"}
	default:
		return "", NewValidationError("type", "unsupported approval type %q", raw)
	}
}

// ParseCommentTarget accepts the resource types whose records carry a client link
// and can therefore be commented on by a client.
func ParseCommentTarget(raw string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(raw)))
	if t == "" {
		return "", &ValidationError{Field: "recordType", Message: "recordType is required"}
	}
	if s, ok := schemas[t]; !ok || s.ClientField == "" {
		return "", NewValidationError("recordType", "unsupported record type %q", raw)
	}
	return t, nil
}

// AllowsStatus reports whether status is a valid target for a write on s.
func (s Schema) AllowsStatus(status string) bool {
	for _, candidate := range s.DecisionStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}
