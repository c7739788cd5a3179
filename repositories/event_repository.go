package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
)

// EventRepository interface defines timeline event database operations.
// The timeline is append-only: there is no update or delete.
type EventRepository interface {
	Append(event *models.RequestEvent) error
	ListByRequest(requestID int64, includeInternal bool) ([]models.RequestEvent, error)
}

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

// Append inserts a new event at the end of a request's timeline
func (r *eventRepository) Append(event *models.RequestEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Metadata == nil {
		event.Metadata = models.Metadata{}
	}

	result, err := r.db.Exec(`
		INSERT INTO request_events (request_id, actor, kind, title, description, metadata, visible_to_applicant, internal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.RequestID, event.Actor, string(event.Kind), event.Title, event.Description,
		event.Metadata, event.VisibleToApplicant, event.Internal, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted event ID: %w", err)
	}
	event.ID = id
	return nil
}

// ListByRequest retrieves a request's timeline in chronological order.
// Internal notes are filtered out unless includeInternal is set.
func (r *eventRepository) ListByRequest(requestID int64, includeInternal bool) ([]models.RequestEvent, error) {
	query := `
		SELECT id, request_id, actor, kind, title, description, metadata, visible_to_applicant, internal, created_at
		FROM request_events WHERE request_id = ?
	`
	if !includeInternal {
		query += " AND internal = 0"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.RequestEvent
	for rows.Next() {
		var e models.RequestEvent
		var kind string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Actor, &kind, &e.Title, &e.Description,
			&e.Metadata, &e.VisibleToApplicant, &e.Internal, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = models.EventKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}
