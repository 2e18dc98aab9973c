package models

import "scalerrs-portal-api/internal/records"

// Approval statuses shared by the deliverable tables.
const (
	StatusAwaitingApproval = "Awaiting Client Approval"
	StatusAwaitingReview   = "Awaiting Client Review"
	StatusApproved         = "Approved"
	StatusRejected         = "Rejected"
	StatusChangesRequested = "Changes Requested"
	StatusLive             = "Live"
)

// Common deliverable field names.
const (
	FieldTitle       = "Title"
	FieldMainKeyword = "Main Keyword"
	FieldClientID    = "Client Record ID"
	FieldClient      = "Client"
	FieldDueDate     = "Due Date"
	FieldMonth       = "Month"
	FieldDocumentURL = "Document Link"
	FieldWriter      = "Writer"
	FieldReason      = "Rejection Reason"
)

type KeywordDetails struct {
	Volume     int    `json:"volume"`
	Difficulty int    `json:"difficulty"`
	Intent     string `json:"intent,omitempty"`
	TargetPage string `json:"targetPage,omitempty"`
}

type BriefDetails struct {
	Month       string `json:"month,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
	Writer      string `json:"writer,omitempty"`
}

type ArticleDetails struct {
	Month        string `json:"month,omitempty"`
	DocumentURL  string `json:"documentUrl,omitempty"`
	Writer       string `json:"writer,omitempty"`
	WordCount    int    `json:"wordCount,omitempty"`
	PublishedURL string `json:"publishedUrl,omitempty"`
}

type BacklinkDetails struct {
	Domain       string `json:"domain"`
	DomainRating int    `json:"domainRating"`
	LinkType     string `json:"linkType,omitempty"`
	TargetURL    string `json:"targetUrl,omitempty"`
	WentLiveOn   string `json:"wentLiveOn,omitempty"`
}

// ApprovalItem is one deliverable awaiting (or past) a client decision.
// Exactly one of the detail pointers is set, matching Type.
type ApprovalItem struct {
	Type      ResourceType `json:"type"`
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Status    string       `json:"status"`
	ClientIDs []string     `json:"clientIds"`
	Client    string       `json:"client,omitempty"`
	DueDate   string       `json:"dueDate,omitempty"`
	Reason    string       `json:"reason,omitempty"`

	Keyword  *KeywordDetails  `json:"keyword,omitempty"`
	Brief    *BriefDetails    `json:"brief,omitempty"`
	Article  *ArticleDetails  `json:"article,omitempty"`
	Backlink *BacklinkDetails `json:"backlink,omitempty"`
}

// ApprovalFromRecord normalizes a deliverable row of type t.
func ApprovalFromRecord(t ResourceType, r records.Record) ApprovalItem {
	schema, _ := SchemaFor(t)
	item := ApprovalItem{
		Type:      t,
		ID:        r.ID,
		Status:    r.String(schema.StatusField),
		ClientIDs: r.Strings(FieldClientID),
		Client:    r.String(FieldClient),
		DueDate:   r.String(FieldDueDate),
		Reason:    r.String(FieldReason),
	}

	switch t {
	case ResourceKeywords:
		item.Title = r.String(FieldMainKeyword)
		item.Keyword = &KeywordDetails{
			Volume:     r.Int("Search Volume"),
			Difficulty: r.Int("Keyword Difficulty"),
			Intent:     r.String("Intent"),
			TargetPage: r.String("Target Page"),
		}
	case ResourceBriefs:
		item.Title = firstNonEmpty(r.String(FieldTitle), r.String(FieldMainKeyword))
		item.Brief = &BriefDetails{
			Month:       r.String(FieldMonth),
			DocumentURL: r.String(FieldDocumentURL),
			Writer:      r.String(FieldWriter),
		}
	case ResourceArticles:
		item.Title = firstNonEmpty(r.String(FieldTitle), r.String(FieldMainKeyword))
		item.Article = &ArticleDetails{
			Month:        r.String(FieldMonth),
			DocumentURL:  r.String(FieldDocumentURL),
			Writer:       r.String(FieldWriter),
			WordCount:    r.Int("Word Count"),
			PublishedURL: r.String("Published URL"),
		}
	case ResourceBacklinks:
		item.Title = r.String("Domain")
		item.DueDate = r.String("Went Live On")
		item.Backlink = &BacklinkDetails{
			Domain:       r.String("Domain"),
			DomainRating: r.Int("DR"),
			LinkType:     r.String("Link Type"),
			TargetURL:    r.String("Target URL"),
			WentLiveOn:   r.String("Went Live On"),
		}
	}
	return item
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
