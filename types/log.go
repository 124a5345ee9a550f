package types

import (
	"encoding/json"
	"time"
)

// RequestLog is the audit record of one API request.
type RequestLog struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"userId,omitempty" db:"user_id"`
	Method         string          `json:"method" db:"method"`
	Path           string          `json:"path" db:"path"`
	StatusCode     int             `json:"statusCode" db:"status_code"`
	IPAddress      string          `json:"ipAddress" db:"ip_address"`
	UserAgent      string          `json:"userAgent" db:"user_agent"`
	RequestBody    json.RawMessage `json:"requestBody,omitempty" db:"request_body"`
	ResponseTimeMS int64           `json:"responseTime" db:"response_time_ms"`
	ErrorMessage   string          `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

// LogFilter narrows audit log listings.
type LogFilter struct {
	Method     string
	StatusCode int
	UserID     string
	From       *time.Time
	To         *time.Time
	Page       Page
}
