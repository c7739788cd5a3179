package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
)

// EscalationRepository interface defines escalation ticket database operations
type EscalationRepository interface {
	Create(esc *models.Escalation) error
	GetByID(id int64) (*models.Escalation, error)
	Update(esc *models.Escalation) error
	ListOpen() ([]models.Escalation, error)
	ListByRequest(requestID int64) ([]models.Escalation, error)
}

type escalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new escalation repository
func NewEscalationRepository(db *sql.DB) EscalationRepository {
	return &escalationRepository{db: db}
}

const escalationColumns = `
	id, code, request_id, kind, priority, raised_by, assigned_to, motive,
	description, status, resolved_by, decision, resolution, due_at,
	resolved_at, created_at, updated_at
`

// Create inserts a new escalation ticket
func (r *escalationRepository) Create(esc *models.Escalation) error {
	now := time.Now().UTC()
	esc.CreatedAt = now
	esc.UpdatedAt = now

	result, err := r.db.Exec(`
		INSERT INTO escalations (code, request_id, kind, priority, raised_by, assigned_to, motive,
			description, status, resolved_by, decision, resolution, due_at, resolved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, esc.Code, esc.RequestID, string(esc.Kind), string(esc.Priority), esc.RaisedBy, esc.AssignedTo,
		esc.Motive, esc.Description, string(esc.Status), esc.ResolvedBy, string(esc.Decision),
		esc.Resolution, nullTime(esc.DueAt), nullTime(esc.ResolvedAt), esc.CreatedAt, esc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted escalation ID: %w", err)
	}
	esc.ID = id
	return nil
}

// GetByID retrieves an escalation by ID
func (r *escalationRepository) GetByID(id int64) (*models.Escalation, error) {
	row := r.db.QueryRow(`SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id)
	esc, err := scanEscalation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	return esc, nil
}

// Update persists the mutable fields of an escalation
func (r *escalationRepository) Update(esc *models.Escalation) error {
	esc.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE escalations SET
			kind = ?, priority = ?, assigned_to = ?, motive = ?, description = ?,
			status = ?, resolved_by = ?, decision = ?, resolution = ?,
			due_at = ?, resolved_at = ?, updated_at = ?
		WHERE id = ?
	`, string(esc.Kind), string(esc.Priority), esc.AssignedTo, esc.Motive, esc.Description,
		string(esc.Status), esc.ResolvedBy, string(esc.Decision), esc.Resolution,
		nullTime(esc.DueAt), nullTime(esc.ResolvedAt), esc.UpdatedAt, esc.ID)
	if err != nil {
		return fmt.Errorf("failed to update escalation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOpen retrieves all unresolved escalations, oldest first so the
// supervisor queue surfaces the longest-waiting tickets
func (r *escalationRepository) ListOpen() ([]models.Escalation, error) {
	rows, err := r.db.Query(`
		SELECT `+escalationColumns+` FROM escalations
		WHERE status IN (?, ?) ORDER BY created_at ASC
	`, string(models.EscalationPending), string(models.EscalationInReview))
	if err != nil {
		return nil, fmt.Errorf("failed to query open escalations: %w", err)
	}
	defer rows.Close()
	return collectEscalations(rows)
}

// ListByRequest retrieves every escalation ever raised against a request
func (r *escalationRepository) ListByRequest(requestID int64) ([]models.Escalation, error) {
	rows, err := r.db.Query(`
		SELECT `+escalationColumns+` FROM escalations
		WHERE request_id = ? ORDER BY created_at ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query request escalations: %w", err)
	}
	defer rows.Close()
	return collectEscalations(rows)
}

func collectEscalations(rows *sql.Rows) ([]models.Escalation, error) {
	var escalations []models.Escalation
	for rows.Next() {
		esc, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, *esc)
	}
	return escalations, rows.Err()
}

func scanEscalation(row rowScanner) (*models.Escalation, error) {
	var esc models.Escalation
	var kind, priority, status, decision string
	var dueAt, resolvedAt sql.NullTime

	err := row.Scan(&esc.ID, &esc.Code, &esc.RequestID, &kind, &priority, &esc.RaisedBy,
		&esc.AssignedTo, &esc.Motive, &esc.Description, &status, &esc.ResolvedBy,
		&decision, &esc.Resolution, &dueAt, &resolvedAt, &esc.CreatedAt, &esc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	esc.Kind = models.EscalationKind(kind)
	esc.Priority = models.EscalationPriority(priority)
	esc.Status = models.EscalationStatus(status)
	esc.Decision = models.EscalationDecision(decision)
	esc.DueAt = timePtr(dueAt)
	esc.ResolvedAt = timePtr(resolvedAt)
	return &esc, nil
}
