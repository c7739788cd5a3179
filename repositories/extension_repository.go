package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
)

// ExtensionRepository interface defines extension request database operations
type ExtensionRepository interface {
	Create(ext *models.ExtensionRequest) error
	GetByID(id int64) (*models.ExtensionRequest, error)
	Update(ext *models.ExtensionRequest) error
	ListByAuthorization(authorizationID int64) ([]models.ExtensionRequest, error)
	ListPending() ([]models.ExtensionRequest, error)
}

type extensionRepository struct {
	db *sql.DB
}

// NewExtensionRepository creates a new extension repository
func NewExtensionRepository(db *sql.DB) ExtensionRepository {
	return &extensionRepository{db: db}
}

const extensionColumns = `
	id, code, authorization_id, current_expiry, requested_expiry, reason,
	requested_by, status, processed_by, processed_at, notes, rejection_reason, created_at
`

// Create inserts a new extension request
func (r *extensionRepository) Create(ext *models.ExtensionRequest) error {
	ext.CreatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		INSERT INTO extension_requests (code, authorization_id, current_expiry, requested_expiry,
			reason, requested_by, status, processed_by, processed_at, notes, rejection_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ext.Code, ext.AuthorizationID, ext.CurrentExpiry, ext.RequestedExpiry,
		ext.Reason, ext.RequestedBy, string(ext.Status), ext.ProcessedBy,
		nullTime(ext.ProcessedAt), ext.Notes, ext.RejectionReason, ext.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create extension request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted extension ID: %w", err)
	}
	ext.ID = id
	return nil
}

// GetByID retrieves an extension request by ID
func (r *extensionRepository) GetByID(id int64) (*models.ExtensionRequest, error) {
	row := r.db.QueryRow(`SELECT `+extensionColumns+` FROM extension_requests WHERE id = ?`, id)
	ext, err := scanExtension(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extension request: %w", err)
	}
	return ext, nil
}

// Update persists the decision fields of an extension request
func (r *extensionRepository) Update(ext *models.ExtensionRequest) error {
	result, err := r.db.Exec(`
		UPDATE extension_requests SET
			status = ?, processed_by = ?, processed_at = ?, notes = ?, rejection_reason = ?
		WHERE id = ?
	`, string(ext.Status), ext.ProcessedBy, nullTime(ext.ProcessedAt),
		ext.Notes, ext.RejectionReason, ext.ID)
	if err != nil {
		return fmt.Errorf("failed to update extension request: %w", err)
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

// ListByAuthorization retrieves every extension ever requested for a credential
func (r *extensionRepository) ListByAuthorization(authorizationID int64) ([]models.ExtensionRequest, error) {
	rows, err := r.db.Query(`
		SELECT `+extensionColumns+` FROM extension_requests
		WHERE authorization_id = ? ORDER BY created_at ASC
	`, authorizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query extensions: %w", err)
	}
	defer rows.Close()
	return collectExtensions(rows)
}

// ListPending retrieves all undecided extension requests, oldest first
func (r *extensionRepository) ListPending() ([]models.ExtensionRequest, error) {
	rows, err := r.db.Query(`
		SELECT `+extensionColumns+` FROM extension_requests
		WHERE status = ? ORDER BY created_at ASC
	`, string(models.ExtensionPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending extensions: %w", err)
	}
	defer rows.Close()
	return collectExtensions(rows)
}

func collectExtensions(rows *sql.Rows) ([]models.ExtensionRequest, error) {
	var exts []models.ExtensionRequest
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extension: %w", err)
		}
		exts = append(exts, *ext)
	}
	return exts, rows.Err()
}

func scanExtension(row rowScanner) (*models.ExtensionRequest, error) {
	var ext models.ExtensionRequest
	var status string
	var processedAt sql.NullTime

	err := row.Scan(&ext.ID, &ext.Code, &ext.AuthorizationID, &ext.CurrentExpiry,
		&ext.RequestedExpiry, &ext.Reason, &ext.RequestedBy, &status,
		&ext.ProcessedBy, &processedAt, &ext.Notes, &ext.RejectionReason, &ext.CreatedAt)
	if err != nil {
		return nil, err
	}

	ext.Status = models.ExtensionStatus(status)
	ext.ProcessedAt = timePtr(processedAt)
	return &ext, nil
}
