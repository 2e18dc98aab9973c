package models

import "scalerrs-portal-api/internal/records"

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "Not Started"
	TaskInProgress TaskStatus = "In Progress"
	TaskBlocked    TaskStatus = "Blocked"
	TaskDone       TaskStatus = "Done"
)

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "High"
	PriorityMedium TaskPriority = "Medium"
	PriorityLow    TaskPriority = "Low"
)

// TaskBoard groups tasks on the portal task pages.
type TaskBoard string

const (
	BoardTechnicalSEO TaskBoard = "Technical SEO"
	BoardCRO          TaskBoard = "CRO"
	BoardStrategy     TaskBoard = "Strategy / Ad-hoc"
)

// Task field names in the Tasks table.
const (
	TaskFieldName       = "Name"
	TaskFieldStatus     = "Status"
	TaskFieldPriority   = "Priority"
	TaskFieldImpact     = "Impact"
	TaskFieldEffort     = "Effort"
	TaskFieldAssignedTo = "Assigned To"
	TaskFieldClientID   = "Client Record ID"
	TaskFieldClient     = "Client"
	TaskFieldBoard      = "Board"
	TaskFieldDueDate    = "Due Date"
	TaskFieldNotes      = "Notes"
	TaskFieldComments   = "Comment Count"
)

// Task represents a task in the portal
type Task struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority,omitempty"`
	Impact       int          `json:"impact,omitempty"`
	Effort       string       `json:"effort,omitempty"`
	AssignedTo   string       `json:"assignedTo,omitempty"`
	ClientIDs    []string     `json:"clientIds"`
	Client       string       `json:"client,omitempty"`
	Board        TaskBoard    `json:"board,omitempty"`
	DueDate      string       `json:"dueDate,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CommentCount int          `json:"commentCount"`
}

// TaskFromRecord normalizes a Tasks row.
func TaskFromRecord(r records.Record) Task {
	status := TaskStatus(r.String(TaskFieldStatus))
	if status == "" {
		status = TaskNotStarted
	}
	return Task{
		ID:           r.ID,
		Name:         r.String(TaskFieldName),
		Status:       status,
		Priority:     TaskPriority(r.String(TaskFieldPriority)),
		Impact:       r.Int(TaskFieldImpact),
		Effort:       r.String(TaskFieldEffort),
		AssignedTo:   r.String(TaskFieldAssignedTo),
		ClientIDs:    r.Strings(TaskFieldClientID),
		Client:       r.String(TaskFieldClient),
		Board:        TaskBoard(r.String(TaskFieldBoard)),
		DueDate:      r.String(TaskFieldDueDate),
		Notes:        r.String(TaskFieldNotes),
		CommentCount: r.Int(TaskFieldComments),
	}
}
