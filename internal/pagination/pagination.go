package pagination

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/records"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Request is a client-facing page request.
type Request struct {
	Page     int
	PageSize int
	Cursor   string
}

// Envelope is the pagination block returned next to the items.
type Envelope struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ParseRequest reads page (default 1), pageSize (default 10, max 100) and an
// optional store cursor. Malformed numbers fall back to the defaults.
func ParseRequest(page, pageSize, cursor string) Request {
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil || p < 1 {
		p = 1
	}
	size, err := strconv.Atoi(strings.TrimSpace(pageSize))
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Request{Page: p, PageSize: size, Cursor: strings.TrimSpace(cursor)}
}

// TotalPages derives the page count from what has been observed, since the store
// reports no totals: ceil(seen/pageSize), plus one more page when the store says
// there is more.
func TotalPages(page, pageSize, itemsOnPage int, hasMore bool) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	seen := (page-1)*pageSize + itemsOnPage
	total := (seen + pageSize - 1) / pageSize
	if hasMore {
		if total < page {
			total = page
		}
		total++
	}
	if total < 1 {
		total = 1
	}
	return total
}

// Fetcher loads one page of size records starting at the store's offset token.
type Fetcher func(ctx context.Context, pageSize int, offset string) (records.Page, error)

// Paginator translates page numbers onto the store's forward-only offset tokens.
// The token that starts each page is memoized in the request cache so later
// requests for deep pages skip the walk.
type Paginator struct {
	cache  *cache.RequestCache
	logger *slog.Logger
}

// NewPaginator returns a Paginator memoizing cursors in rc. rc and logger may be nil.
func NewPaginator(rc *cache.RequestCache, logger *slog.Logger) *Paginator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Paginator{cache: rc, logger: logger}
}

// Fetch returns the records of req.Page and the matching envelope. baseKey
// identifies the query without its page so cursors of distinct queries never mix.
func (p *Paginator) Fetch(ctx context.Context, baseKey string, req Request, fetch Fetcher) (records.Page, Envelope, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = DefaultPageSize
	}

	start, offset := 1, ""
	switch {
	case req.Cursor != "":
		start, offset = req.Page, req.Cursor
	case req.Page > 1:
		start, offset = p.nearestCursor(ctx, baseKey, req.Page)
	}

	// Walk forward until the requested page, discarding intermediate pages.
	for page := start; page < req.Page; page++ {
		res, err := fetch(ctx, req.PageSize, offset)
		if err != nil {
			return records.Page{}, Envelope{}, err
		}
		if res.Offset == "" {
			// The data ends before the requested page.
			return records.Page{}, Envelope{
				Page:       req.Page,
				PageSize:   req.PageSize,
				TotalPages: TotalPages(page, req.PageSize, len(res.Records), false),
			}, nil
		}
		offset = res.Offset
		p.remember(ctx, baseKey, page+1, offset)
	}

	res, err := fetch(ctx, req.PageSize, offset)
	if err != nil {
		return records.Page{}, Envelope{}, err
	}
	hasMore := res.Offset != ""
	if hasMore {
		p.remember(ctx, baseKey, req.Page+1, res.Offset)
	}
	return res, Envelope{
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: TotalPages(req.Page, req.PageSize, len(res.Records), hasMore),
		HasMore:    hasMore,
		NextCursor: res.Offset,
	}, nil
}

func (p *Paginator) nearestCursor(ctx context.Context, baseKey string, page int) (int, string) {
	if p.cache == nil {
		return 1, ""
	}
	for k := page; k > 1; k-- {
		if token, ok := cache.Peek[string](ctx, p.cache, cursorKey(baseKey, k)); ok && token != "" {
			return k, token
		}
	}
	return 1, ""
}

func (p *Paginator) remember(ctx context.Context, baseKey string, page int, token string) {
	if p.cache == nil || token == "" {
		return
	}
	if err := cache.Put(ctx, p.cache, cursorKey(baseKey, page), token, 0); err != nil {
		p.logger.Debug("cursor memo not stored",
			slog.String("key", baseKey),
			slog.Int("page", page),
			slog.Any("error", err))
	}
}

func cursorKey(baseKey string, page int) string {
	return baseKey + "#cursor=" + strconv.Itoa(page)
}
