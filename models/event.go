package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventKind classifies an entry on a request's audit timeline
type EventKind string

const (
	EventCreated             EventKind = "created"
	EventSubmitted           EventKind = "submitted"
	EventAssigned            EventKind = "assigned"
	EventReassigned          EventKind = "reassigned"
	EventReviewStarted       EventKind = "review_started"
	EventDocumentsRequested  EventKind = "documents_requested"
	EventDocumentsCompleted  EventKind = "documents_completed"
	EventApproved            EventKind = "approved"
	EventRejected            EventKind = "rejected"
	EventEscalated           EventKind = "escalated"
	EventStatusChanged       EventKind = "status_changed"
	EventPriorityChanged     EventKind = "priority_changed"
	EventComment             EventKind = "comment"
	EventInternalNote        EventKind = "internal_note"
	EventDocumentUploaded    EventKind = "document_uploaded"
	EventDocumentVerified    EventKind = "document_verified"
	EventExpired             EventKind = "expired"
	EventUpdated             EventKind = "updated"
	EventAuthorizationIssued EventKind = "authorization_issued"
)

// Metadata holds structured key/value details of an event, stored as JSON
type Metadata map[string]any

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	if len(data) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// RequestEvent is one immutable entry on a request's timeline.
// Events are append-only: they are never updated or deleted.
type RequestEvent struct {
	ID                 int64     `json:"id"`
	RequestID          int64     `json:"request_id"`
	Actor              string    `json:"actor,omitempty"` // empty means system-generated
	Kind               EventKind `json:"kind"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Metadata           Metadata  `json:"metadata,omitempty"`
	VisibleToApplicant bool      `json:"visible_to_applicant"`
	Internal           bool      `json:"internal"`
	CreatedAt          time.Time `json:"created_at"`
}

// ActorName returns the acting party or "system" for automatic events
func (e *RequestEvent) ActorName() string {
	if e.Actor == "" {
		return "system"
	}
	return e.Actor
}
