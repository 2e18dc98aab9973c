// Package mockdata holds the fixed sample dataset served when the record store
// cannot be reached or is not configured.
package mockdata

import (
	"slices"
	"time"

	"scalerrs-portal-api/internal/records"
)

// Sample client ids. Every sample row is linked to one of them.
const (
	ClientAcme      = "recMockClientAcme"
	ClientNorthwind = "recMockClientNorthwind"
)

var created = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

func rec(id string, day int, fields map[string]any) records.Record {
	return records.Record{ID: id, CreatedTime: created.AddDate(0, 0, day), Fields: fields}
}

func link(ids ...string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

var tables = map[string][]records.Record{
	"Tasks": {
		rec("recMockTask1", 0, map[string]any{"Name": "Fix broken internal links", "Status": "In Progress", "Priority": "High", "Impact": 5, "Effort": "M", "Assigned To": "Maya Chen", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Board": "Technical SEO", "Due Date": "2025-02-03", "Comment Count": 2}),
		rec("recMockTask2", 1, map[string]any{"Name": "Compress hero images", "Status": "Not Started", "Priority": "Medium", "Impact": 3, "Effort": "S", "Assigned To": "Liam Ortiz", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Board": "Technical SEO", "Due Date": "2025-02-10"}),
		rec("recMockTask3", 2, map[string]any{"Name": "Add FAQ schema to service pages", "Status": "Done", "Priority": "Medium", "Impact": 4, "Effort": "S", "Assigned To": "Maya Chen", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Board": "Technical SEO", "Due Date": "2025-01-27", "Comment Count": 1}),
		rec("recMockTask4", 3, map[string]any{"Name": "A/B test booking CTA copy", "Status": "In Progress", "Priority": "High", "Impact": 5, "Effort": "L", "Assigned To": "Priya Nair", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Board": "CRO", "Due Date": "2025-02-14"}),
		rec("recMockTask5", 4, map[string]any{"Name": "Simplify checkout form", "Status": "Blocked", "Priority": "High", "Impact": 4, "Effort": "M", "Assigned To": "Priya Nair", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Board": "CRO", "Due Date": "2025-02-21", "Notes": "Waiting on dev access to staging."}),
		rec("recMockTask6", 5, map[string]any{"Name": "Quarterly keyword gap analysis", "Status": "Not Started", "Priority": "Low", "Impact": 3, "Effort": "M", "Assigned To": "Liam Ortiz", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Board": "Strategy / Ad-hoc", "Due Date": "2025-03-03"}),
		rec("recMockTask7", 6, map[string]any{"Name": "Local citation cleanup", "Status": "Done", "Priority": "Medium", "Impact": 2, "Effort": "S", "Assigned To": "Maya Chen", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Board": "Strategy / Ad-hoc", "Due Date": "2025-01-20"}),
		rec("recMockTask8", 7, map[string]any{"Name": "Set up GA4 conversion events", "Status": "In Progress", "Priority": "Medium", "Impact": 4, "Effort": "M", "Assigned To": "Priya Nair", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Board": "CRO", "Due Date": "2025-02-07", "Comment Count": 3}),
	},
	"Keywords": {
		rec("recMockKw1", 0, map[string]any{"Main Keyword": "lightweight hiking tent", "Keyword Approvals": "Awaiting Client Approval", "Search Volume": 4400, "Keyword Difficulty": 38, "Intent": "Commercial", "Target Page": "/tents/lightweight", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Due Date": "2025-02-01"}),
		rec("recMockKw2", 1, map[string]any{"Main Keyword": "best trail running shoes", "Keyword Approvals": "Awaiting Client Approval", "Search Volume": 9900, "Keyword Difficulty": 52, "Intent": "Commercial", "Target Page": "/shoes/trail", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Due Date": "2025-02-01"}),
		rec("recMockKw3", 2, map[string]any{"Main Keyword": "invisalign cost", "Keyword Approvals": "Awaiting Client Approval", "Search Volume": 18100, "Keyword Difficulty": 45, "Intent": "Informational", "Target Page": "/invisalign", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Due Date": "2025-02-05"}),
		rec("recMockKw4", 3, map[string]any{"Main Keyword": "emergency dentist near me", "Keyword Approvals": "Approved", "Search Volume": 33100, "Keyword Difficulty": 61, "Intent": "Transactional", "Target Page": "/emergency", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Due Date": "2025-01-25"}),
	},
	"Briefs": {
		rec("recMockBrief1", 0, map[string]any{"Title": "How to choose a backpacking tent", "Main Keyword": "lightweight hiking tent", "Brief Status": "Awaiting Client Review", "Month": "February 2025", "Document Link": "https://docs.example.com/brief-tents", "Writer": "Sam Reed", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Due Date": "2025-02-04"}),
		rec("recMockBrief2", 1, map[string]any{"Title": "Trail shoes vs hiking boots", "Main Keyword": "best trail running shoes", "Brief Status": "Awaiting Client Review", "Month": "February 2025", "Document Link": "https://docs.example.com/brief-shoes", "Writer": "Sam Reed", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Due Date": "2025-02-11"}),
		rec("recMockBrief3", 2, map[string]any{"Title": "What does Invisalign really cost?", "Main Keyword": "invisalign cost", "Brief Status": "Awaiting Client Review", "Month": "February 2025", "Document Link": "https://docs.example.com/brief-invisalign", "Writer": "Jo Park", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Due Date": "2025-02-06"}),
	},
	"Articles": {
		rec("recMockArticle1", 0, map[string]any{"Title": "The ultralight tent buying guide", "Main Keyword": "lightweight hiking tent", "Article Status": "Awaiting Client Review", "Month": "January 2025", "Document Link": "https://docs.example.com/article-tents", "Writer": "Sam Reed", "Word Count": 2100, "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Due Date": "2025-01-30"}),
		rec("recMockArticle2", 1, map[string]any{"Title": "Dental emergencies: what to do first", "Main Keyword": "emergency dentist near me", "Article Status": "Awaiting Client Review", "Month": "January 2025", "Document Link": "https://docs.example.com/article-emergency", "Writer": "Jo Park", "Word Count": 1650, "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental", "Due Date": "2025-01-31"}),
		rec("recMockArticle3", 2, map[string]any{"Title": "Caring for your down sleeping bag", "Main Keyword": "down sleeping bag care", "Article Status": "Live", "Month": "December 2024", "Word Count": 1400, "Published URL": "https://acme.example.com/blog/down-care", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor", "Due Date": "2024-12-20"}),
	},
	"Backlinks": {
		rec("recMockLink1", 0, map[string]any{"Domain": "outdoorgearlab.example", "DR": 72, "Link Type": "Guest Post", "Target URL": "https://acme.example.com/tents/lightweight", "Status": "Awaiting Client Approval", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor"}),
		rec("recMockLink2", 1, map[string]any{"Domain": "trailtalk.example", "DR": 55, "Link Type": "Niche Edit", "Target URL": "https://acme.example.com/shoes/trail", "Status": "Live", "Went Live On": "2025-01-14", "Client Record ID": link(ClientAcme), "Client": "Acme Outdoor"}),
		rec("recMockLink3", 2, map[string]any{"Domain": "smilehealth.example", "DR": 63, "Link Type": "Guest Post", "Target URL": "https://northwind.example.com/invisalign", "Status": "Awaiting Client Approval", "Client Record ID": link(ClientNorthwind), "Client": "Northwind Dental"}),
	},
	"Comments": {
		rec("recMockComment1", 0, map[string]any{"Record ID": "recMockTask1", "Author": "Maya Chen", "Role": "Team Member", "Comment": "Crawl finished, 42 broken links found.", "Created At": "2025-01-07T10:00:00Z"}),
		rec("recMockComment2", 1, map[string]any{"Record ID": "recMockTask1", "Author": "Acme Marketing", "Role": "Client", "Comment": "Please prioritise the product pages.", "Created At": "2025-01-08T15:30:00Z"}),
		rec("recMockComment3", 2, map[string]any{"Record ID": "recMockTask3", "Author": "Maya Chen", "Role": "Team Member", "Comment": "Schema validated in Search Console.", "Created At": "2025-01-09T08:45:00Z"}),
	},
	"KPIs": {
		rec("recMockKpi1", 0, map[string]any{"Month": "2025-01", "Metric": "Organic Sessions", "Actual": 18250, "Target": 17500, "Projected": 18000, "Client Record ID": link(ClientAcme)}),
		rec("recMockKpi2", 1, map[string]any{"Month": "2025-02", "Metric": "Organic Sessions", "Target": 19000, "Projected": 19400, "Client Record ID": link(ClientAcme)}),
		rec("recMockKpi3", 2, map[string]any{"Month": "2025-01", "Metric": "Leads", "Actual": 96, "Target": 110, "Projected": 104, "Client Record ID": link(ClientNorthwind)}),
		rec("recMockKpi4", 3, map[string]any{"Month": "2025-02", "Metric": "Leads", "Target": 120, "Projected": 115, "Client Record ID": link(ClientNorthwind)}),
	},
	"Clients": {
		rec(ClientAcme, 0, map[string]any{"Name": "Acme Outdoor", "Website": "https://acme.example.com", "Status": "Active"}),
		rec(ClientNorthwind, 1, map[string]any{"Name": "Northwind Dental", "Website": "https://northwind.example.com", "Status": "Active"}),
	},
	"Checklist": {
		rec("recMockCheck1", 0, map[string]any{"Section": "Access", "Label": "Grant Search Console access", "Done": true, "Order": 1, "Client Record ID": link(ClientAcme)}),
		rec("recMockCheck2", 1, map[string]any{"Section": "Access", "Label": "Grant GA4 access", "Done": false, "Order": 2, "Client Record ID": link(ClientAcme)}),
		rec("recMockCheck3", 2, map[string]any{"Section": "Brand", "Label": "Share brand voice guidelines", "Done": false, "Order": 3, "Client Record ID": link(ClientAcme)}),
		rec("recMockCheck4", 3, map[string]any{"Section": "Access", "Label": "Grant Search Console access", "Done": true, "Order": 1, "Client Record ID": link(ClientNorthwind)}),
		rec("recMockCheck5", 4, map[string]any{"Section": "Access", "Label": "Grant CMS access", "Done": true, "Order": 2, "Client Record ID": link(ClientNorthwind)}),
	},
	// Demo logins, only honoured when demo login is enabled in config.
	"Users": {
		rec("recMockUserAdmin", 0, map[string]any{"Name": "Demo Admin", "Email": "admin@demo.scalerrs.com", "Role": "Admin", "Password": "demo-admin"}),
		rec("recMockUserClient", 1, map[string]any{"Name": "Acme Marketing", "Email": "client@demo.scalerrs.com", "Role": "Client", "Password": "demo-client", "Client Record ID": link(ClientAcme)}),
	},
}

// Tables lists the tables that have sample rows.
func Tables() []string {
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Records returns a copy of the sample rows of table, in creation order.
func Records(table string) []records.Record {
	src := tables[table]
	out := make([]records.Record, len(src))
	for i, r := range src {
		fields := make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			if list, ok := v.([]any); ok {
				v = slices.Clone(list)
			}
			fields[k] = v
		}
		out[i] = records.Record{ID: r.ID, CreatedTime: r.CreatedTime, Fields: fields}
	}
	return out
}

// Criteria narrows sample rows the way a store filter would.
type Criteria struct {
	ClientField string
	ClientIDs   []string
	StatusField string
	Statuses    []string
	Match       func(records.Record) bool
}

// Select returns the sample rows of table matching c. Rows match when they link
// any of the client ids (if given) and carry any of the statuses (if given).
func Select(table string, c Criteria) []records.Record {
	var out []records.Record
	for _, r := range Records(table) {
		if len(c.ClientIDs) > 0 && c.ClientField != "" && !linksAny(r.Strings(c.ClientField), c.ClientIDs) {
			continue
		}
		if len(c.Statuses) > 0 && c.StatusField != "" && !slices.Contains(c.Statuses, r.String(c.StatusField)) {
			continue
		}
		if c.Match != nil && !c.Match(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func linksAny(linked, want []string) bool {
	for _, id := range want {
		if slices.Contains(linked, id) {
			return true
		}
	}
	return false
}

// IsSampleClient reports whether id is one of the sample client ids.
func IsSampleClient(id string) bool {
	return id == ClientAcme || id == ClientNorthwind
}
