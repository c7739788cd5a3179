package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
)

// AuditRepository interface defines HTTP audit log database operations
type AuditRepository interface {
	Create(entry *models.AuditLogEntry) error
	ListRecent(limit int) ([]models.AuditLogEntry, error)
}

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create inserts a new audit log entry
func (r *auditRepository) Create(entry *models.AuditLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO audit_log (timestamp, actor, method, path, form_data, user_agent, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.Timestamp, entry.Actor, entry.Method, entry.Path, entry.FormData, entry.UserAgent, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted audit entry ID: %w", err)
	}
	entry.ID = id
	return nil
}

// ListRecent retrieves the most recent audit log entries
func (r *auditRepository) ListRecent(limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT id, timestamp, actor, method, path, form_data, user_agent, ip_address
		FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Method, &e.Path, &e.FormData, &e.UserAgent, &e.IPAddress); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
