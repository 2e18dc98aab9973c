package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scalerrs-portal-api/internal/auth"
	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/formula"
	"scalerrs-portal-api/internal/mockdata"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/records"
)

// CacheStats reports the request cache counters and contents.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, error) {
	return s.cache.Stats(ctx)
}

// ClearCache evicts every key under prefix, or everything when prefix is empty.
func (s *Service) ClearCache(ctx context.Context, prefix string) (int, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" {
		return s.cache.ClearPrefix(ctx, prefix)
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Clear(ctx); err != nil {
		return 0, err
	}
	s.logger.Info("cache cleared", slog.Int("removed", stats.Size))
	return stats.Size, nil
}

// Authenticate checks email and password against the Users table. With demo
// login enabled, the sample users are accepted while the store is unusable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, &models.ValidationError{Field: "email", Message: "email is required"}
	}
	if password == "" {
		return models.User{}, &models.ValidationError{Field: "password", Message: "password is required"}
	}

	var users []models.User
	err := records.ErrNotConfigured
	if s.Configured() {
		schema, _ := models.SchemaFor(models.ResourceUsers)
		var page records.Page
		page, err = s.store.Select(ctx, records.SelectQuery{
			Table:    schema.Table,
			Filter:   string(formula.EqFold("Email", email)),
			PageSize: 1,
		})
		if err == nil {
			users = mapRecords(page.Records, models.UserFromRecord)
		}
	}
	if err != nil {
		if !s.demoLogin || !records.IsDegradable(err) {
			return models.User{}, fmt.Errorf("authenticate: %w", err)
		}
		s.logger.Warn("record store unusable, checking demo users", slog.Any("error", err))
		users = mapRecords(mockdata.Records("Users"), models.UserFromRecord)
	}

	for _, u := range users {
		if u.Email != email {
			continue
		}
		if !auth.VerifyPassword(u.Password, password) {
			return models.User{}, ErrInvalidCredentials
		}
		u.Password = ""
		return u, nil
	}
	return models.User{}, ErrInvalidCredentials
}
