package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"scalerrs-portal-api/internal/records"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Row is one record of any table, with its fields kept as a JSON document.
type Row struct {
	ID        string    `gorm:"primaryKey"`
	Table     string    `gorm:"column:table_name;index;not null"`
	Fields    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName specifies the table name for Row Model
func (Row) TableName() string {
	return "records"
}

// Store is a local record store backed by sqlite through gorm. It mirrors the
// hosted store's contract for offline development and end-to-end tests.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the sqlite file at path and runs migrations.
// Using glebarez/sqlite which is a pure Go implementation (no CGO required)
func Open(path string, log *slog.Logger) (*Store, error) {
	if path == "" {
		path = "portal-records.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}
	if strings.Contains(path, ":memory:") {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database: pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log.Info("local record store ready", slog.String("path", path))
	return &Store{db: db, logger: log.With(slog.String("component", "database"))}, nil
}

// NewInMemory opens a private in-memory database.
func NewInMemory() (*Store, error) {
	return Open(":memory:", nil)
}

// DB returns the gorm handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Select evaluates the formula in process over the table's rows. Offsets are
// opaque to callers but are plain start indexes here.
func (s *Store) Select(ctx context.Context, q records.SelectQuery) (records.Page, error) {
	filter, err := compileFormula(q.Filter)
	if err != nil {
		return records.Page{}, &records.StoreError{Kind: records.ErrRejected, Type: "INVALID_FILTER_BY_FORMULA", Message: err.Error(), Status: 422}
	}

	var rows []Row
	if err := s.db.WithContext(ctx).Where("table_name = ?", q.Table).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return records.Page{}, &records.StoreError{Kind: records.ErrUnavailable, Message: err.Error()}
	}

	matched := make([]records.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			s.logger.Warn("skipping undecodable row", slog.String("id", row.ID), slog.Any("error", err))
			continue
		}
		ok, err := filter.eval(rec.Fields)
		if err != nil {
			return records.Page{}, &records.StoreError{Kind: records.ErrRejected, Type: "INVALID_FILTER_BY_FORMULA", Message: err.Error(), Status: 422}
		}
		if truthy(ok) {
			matched = append(matched, rec)
		}
	}
	sortRecords(matched, q.Sort)

	start := 0
	if q.Offset != "" {
		start, err = strconv.Atoi(q.Offset)
		if err != nil || start < 0 {
			return records.Page{}, &records.StoreError{Kind: records.ErrRejected, Type: "LIST_RECORDS_ITERATOR_NOT_AVAILABLE", Status: 422}
		}
	}
	size := q.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	page := records.Page{Records: matched[start:end]}
	if end < len(matched) {
		page.Offset = strconv.Itoa(end)
	}
	return page, nil
}

// Find loads one record.
func (s *Store) Find(ctx context.Context, table, id string) (records.Record, error) {
	row, err := s.find(ctx, table, id)
	if err != nil {
		return records.Record{}, err
	}
	return row.record()
}

// Create inserts a record with a generated rec-style id.
func (s *Store) Create(ctx context.Context, table string, fields map[string]any) (records.Record, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return records.Record{}, fmt.Errorf("database: encode fields: %w", err)
	}
	row := Row{
		ID:     newRecordID(),
		Table:  table,
		Fields: string(payload),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return records.Record{}, &records.StoreError{Kind: records.ErrUnavailable, Message: err.Error()}
	}
	return row.record()
}

// newRecordID mimics the hosted store's "rec" prefixed ids.
func newRecordID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

// Update merges fields into an existing record.
func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) (records.Record, error) {
	var out records.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Row
		if err := tx.Where("id = ? AND table_name = ?", id, table).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &records.StoreError{Kind: records.ErrNotFound, Type: "NOT_FOUND", Status: 404}
			}
			return err
		}
		rec, err := row.record()
		if err != nil {
			return err
		}
		for k, v := range fields {
			rec.Fields[k] = v
		}
		payload, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		if err := tx.Model(&row).Update("fields", string(payload)).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		var se *records.StoreError
		if errors.As(err, &se) {
			return records.Record{}, err
		}
		return records.Record{}, &records.StoreError{Kind: records.ErrUnavailable, Message: err.Error()}
	}
	return out, nil
}

// Seed inserts records with fixed ids, replacing rows that already exist.
func (s *Store) Seed(ctx context.Context, table string, recs []records.Record) error {
	for _, r := range recs {
		payload, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("database: encode %s: %w", r.ID, err)
		}
		created := r.CreatedTime
		if created.IsZero() {
			created = time.Now().UTC()
		}
		row := Row{ID: r.ID, Table: table, Fields: string(payload), CreatedAt: created}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("database: seed %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Store) find(ctx context.Context, table, id string) (Row, error) {
	var row Row
	err := s.db.WithContext(ctx).Where("id = ? AND table_name = ?", id, table).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Row{}, &records.StoreError{Kind: records.ErrNotFound, Type: "NOT_FOUND", Status: 404}
		}
		return Row{}, &records.StoreError{Kind: records.ErrUnavailable, Message: err.Error()}
	}
	return row, nil
}

func (r Row) record() (records.Record, error) {
	fields := map[string]any{}
	if r.Fields != "" {
		if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
			return records.Record{}, fmt.Errorf("database: decode %s: %w", r.ID, err)
		}
	}
	return records.Record{ID: r.ID, CreatedTime: r.CreatedAt, Fields: fields}, nil
}

func sortRecords(recs []records.Record, order []records.SortField) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, o := range order {
			a, b := text(recs[i].Fields[o.Field]), text(recs[j].Fields[o.Field])
			if a == b {
				continue
			}
			if o.Direction == "desc" {
				return a > b
			}
			return a < b
		}
		return false
	})
}

var _ records.Store = (*Store)(nil)
