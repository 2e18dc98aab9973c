package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scalerrs-portal-api/internal/records"
)

const (
	DefaultAPIURL     = "https://api.airtable.com"
	DefaultContentURL = "https://content.airtable.com"
	maxPageSize       = 100
)

// Config addresses one base with a bearer credential.
type Config struct {
	APIKey     string
	BaseID     string
	APIURL     string
	ContentURL string
	Timeout    time.Duration
}

// Configured reports whether both the credential and the base id are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseID) != ""
}

// CallObserver receives one observation per upstream call. metrics.Recorder implements it.
type CallObserver interface {
	ObserveUpstream(table, operation, outcome string, duration time.Duration)
}

// Client talks to the hosted record store over its REST API. It performs no retries.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   *slog.Logger
	observer CallObserver
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver records call outcomes.
func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// New builds a client. An unconfigured client is valid; every call returns records.ErrNotConfigured.
func New(cfg Config, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.ContentURL == "" {
		cfg.ContentURL = DefaultContentURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "airtable"))
	return c
}

// Configured reports whether calls will reach the store.
func (c *Client) Configured() bool { return c.cfg.Configured() }

type apiRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset"`
}

type writeRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast,omitempty"`
}

// Select fetches one page of a table.
func (c *Client) Select(ctx context.Context, q records.SelectQuery) (records.Page, error) {
	params := url.Values{}
	if q.Filter != "" {
		params.Set("filterByFormula", q.Filter)
	}
	for i, s := range q.Sort {
		dir := strings.ToLower(s.Direction)
		if dir != "desc" {
			dir = "asc"
		}
		params.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		params.Set(fmt.Sprintf("sort[%d][direction]", i), dir)
	}
	size := q.PageSize
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}
	params.Set("pageSize", strconv.Itoa(size))
	if q.Offset != "" {
		params.Set("offset", q.Offset)
	}
	for _, f := range q.Fields {
		params.Add("fields[]", f)
	}
	if q.View != "" {
		params.Set("view", q.View)
	}

	var out listResponse
	if err := c.do(ctx, q.Table, "select", http.MethodGet, c.tableURL(q.Table)+"?"+params.Encode(), nil, &out); err != nil {
		return records.Page{}, err
	}
	page := records.Page{Offset: out.Offset, Records: make([]records.Record, 0, len(out.Records))}
	for _, r := range out.Records {
		page.Records = append(page.Records, toRecord(r))
	}
	return page, nil
}

// Find fetches one record by id.
func (c *Client) Find(ctx context.Context, table, id string) (records.Record, error) {
	var out apiRecord
	if err := c.do(ctx, table, "find", http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &out); err != nil {
		return records.Record{}, err
	}
	return toRecord(out), nil
}

// Create inserts one record.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (records.Record, error) {
	var out apiRecord
	body := writeRequest{Fields: fields, Typecast: true}
	if err := c.do(ctx, table, "create", http.MethodPost, c.tableURL(table), body, &out); err != nil {
		return records.Record{}, err
	}
	return toRecord(out), nil
}

// Update patches one record; fields not named are left untouched.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (records.Record, error) {
	var out apiRecord
	body := writeRequest{Fields: fields, Typecast: true}
	if err := c.do(ctx, table, "update", http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(id), body, &out); err != nil {
		return records.Record{}, err
	}
	return toRecord(out), nil
}

// Attachment is binary content appended to an attachment field.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type uploadRequest struct {
	ContentType string `json:"contentType"`
	File        []byte `json:"file"` // encoding/json emits base64
	Filename    string `json:"filename"`
}

// UploadAttachment appends a file to field of recordID through the content endpoint.
func (c *Client) UploadAttachment(ctx context.Context, recordID, field string, a Attachment) (records.Record, error) {
	if a.Filename == "" || len(a.Data) == 0 {
		return records.Record{}, &records.StoreError{Kind: records.ErrRejected, Message: "attachment filename and content required", Status: http.StatusBadRequest}
	}
	if a.ContentType == "" {
		a.ContentType = http.DetectContentType(a.Data)
	}
	endpoint := strings.TrimRight(c.cfg.ContentURL, "/") + "/v0/" + url.PathEscape(c.cfg.BaseID) + "/" +
		url.PathEscape(recordID) + "/" + url.PathEscape(field) + "/uploadAttachment"
	var out apiRecord
	body := uploadRequest{ContentType: a.ContentType, File: a.Data, Filename: a.Filename}
	if err := c.do(ctx, field, "upload", http.MethodPost, endpoint, body, &out); err != nil {
		return records.Record{}, err
	}
	return toRecord(out), nil
}

func (c *Client) tableURL(table string) string {
	return strings.TrimRight(c.cfg.APIURL, "/") + "/v0/" + url.PathEscape(c.cfg.BaseID) + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, table, op, method, endpoint string, body, out any) error {
	if !c.Configured() {
		return records.ErrNotConfigured
	}
	start := time.Now()
	err := c.roundTrip(ctx, method, endpoint, body, out)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		c.logger.Warn("record store call failed",
			slog.String("table", table),
			slog.String("operation", op),
			slog.String("outcome", outcome),
			slog.Any("error", err))
	}
	if c.observer != nil {
		c.observer.ObserveUpstream(table, op, outcome, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("airtable: %s %s: %w", op, table, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &records.StoreError{Kind: records.ErrUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &records.StoreError{Kind: records.ErrUnavailable, Message: err.Error(), Status: resp.StatusCode}
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &records.StoreError{Kind: records.ErrUnavailable, Message: "malformed response: " + err.Error(), Status: resp.StatusCode}
	}
	return nil
}

func toRecord(r apiRecord) records.Record {
	created, _ := time.Parse(time.RFC3339, r.CreatedTime)
	fields := r.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return records.Record{ID: r.ID, CreatedTime: created, Fields: fields}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return "not_found"
	case errors.Is(err, records.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, records.ErrRejected):
		return "rejected"
	default:
		return "unavailable"
	}
}

var _ records.Store = (*Client)(nil)
