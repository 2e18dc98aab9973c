package airtable

import (
	"encoding/json"
	"net/http"
	"strings"

	"scalerrs-portal-api/internal/records"
)

// The store answers errors either as {"error":"NOT_FOUND"} or
// {"error":{"type":"INVALID_PERMISSIONS","message":"..."}}.
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func decodeError(status int, body []byte) error {
	detail := errorDetail{}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		var code string
		if json.Unmarshal(env.Error, &code) == nil {
			detail.Type = code
		} else {
			_ = json.Unmarshal(env.Error, &detail)
		}
	}
	return &records.StoreError{
		Kind:    kindFor(status, detail.Type),
		Type:    detail.Type,
		Message: detail.Message,
		Status:  status,
	}
}

func kindFor(status int, errType string) error {
	switch strings.ToUpper(errType) {
	case "NOT_FOUND", "MODEL_ID_NOT_FOUND", "TABLE_NOT_FOUND":
		return records.ErrNotFound
	case "NOT_AUTHORIZED", "AUTHENTICATION_REQUIRED", "INVALID_PERMISSIONS", "INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND":
		return records.ErrNotAuthorized
	}
	switch {
	case status == http.StatusNotFound:
		return records.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return records.ErrNotAuthorized
	case status == http.StatusTooManyRequests || status >= 500:
		return records.ErrUnavailable
	default:
		return records.ErrRejected
	}
}
