package records

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrUnavailable   = errors.New("record store unavailable")
	ErrRejected      = errors.New("record store rejected the request")
	ErrNotConfigured = errors.New("record store credentials not configured")
)

// StoreError carries the structured error returned by the record store.
// Kind is one of the package sentinels so callers can use errors.Is.
type StoreError struct {
	Kind    error
	Type    string
	Message string
	Status  int
}

func (e *StoreError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Type != "" {
		return fmt.Sprintf("%s (%s, status %d)", msg, e.Type, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.Status)
}

func (e *StoreError) Unwrap() error { return e.Kind }

// IsDegradable reports whether a read failure should be answered with fallback data.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrNotAuthorized)
}
