package models

import (
	"encoding/json"
	"time"
)

type LogLevel struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SeverityOrder *int   `json:"severity_order,omitempty"`
}

type EventType struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
}

// LogEntry is one event reported by a device.
type LogEntry struct {
	ID                   int64           `json:"id"`
	ATMID                int64           `json:"atm_id"`
	EventTimestamp       time.Time       `json:"event_timestamp"`
	LogLevelID           int64           `json:"log_level_id"`
	EventTypeID          *int64          `json:"event_type_id"`
	Message              string          `json:"message"`
	Payload              json.RawMessage `json:"payload,omitempty"`
	IsAlert              bool            `json:"is_alert"`
	AcknowledgedByUserID *int64          `json:"acknowledged_by_user_id"`
	AcknowledgedAt       *time.Time      `json:"acknowledged_at"`
	RecordedAt           time.Time       `json:"recorded_at"`
	LogLevel             LogLevel        `json:"log_level"`
	EventType            *EventType      `json:"event_type"`
}

// Acknowledged reports whether an operator already confirmed the alert.
func (l LogEntry) Acknowledged() bool {
	return l.AcknowledgedAt != nil
}

// LogInput is what a device posts to POST /atms/{id}/logs/.
type LogInput struct {
	EventTimestamp time.Time      `json:"event_timestamp"`
	Message        string         `json:"message"`
	LogLevelID     int64          `json:"log_level_id"`
	EventTypeID    *int64         `json:"event_type_id,omitempty"`
	IsAlert        bool           `json:"is_alert"`
	Payload        map[string]any `json:"payload"`
}
