package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
)

// AccessRepository interface defines gate access log and discrepancy
// database operations. Access entries are append-only.
type AccessRepository interface {
	CreateEntry(entry *models.AccessEntry) error
	GetEntry(id int64) (*models.AccessEntry, error)
	ListEntriesByAuthorization(authorizationID int64) ([]models.AccessEntry, error)
	CreateDiscrepancy(disc *models.Discrepancy) error
	GetDiscrepancy(id int64) (*models.Discrepancy, error)
	UpdateDiscrepancy(disc *models.Discrepancy) error
	ListOpenDiscrepancies() ([]models.Discrepancy, error)
}

type accessRepository struct {
	db *sql.DB
}

// NewAccessRepository creates a new access repository
func NewAccessRepository(db *sql.DB) AccessRepository {
	return &accessRepository{db: db}
}

const accessEntryColumns = `
	id, authorization_id, direction, vehicle_plate, driver_name, officer,
	status, document_verified, vehicle_verified, driver_verified, notes,
	denial_reason, ip_address, recorded_at
`

// CreateEntry appends a gate admission or denial record
func (r *accessRepository) CreateEntry(entry *models.AccessEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO access_entries (authorization_id, direction, vehicle_plate, driver_name,
			officer, status, document_verified, vehicle_verified, driver_verified, notes,
			denial_reason, ip_address, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.AuthorizationID, string(entry.Direction), entry.VehiclePlate, entry.DriverName,
		entry.Officer, string(entry.Status), entry.DocumentVerified, entry.VehicleVerified,
		entry.DriverVerified, entry.Notes, entry.DenialReason, entry.IPAddress, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to create access entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted access entry ID: %w", err)
	}
	entry.ID = id
	return nil
}

// GetEntry retrieves a single access entry by ID
func (r *accessRepository) GetEntry(id int64) (*models.AccessEntry, error) {
	row := r.db.QueryRow(`SELECT `+accessEntryColumns+` FROM access_entries WHERE id = ?`, id)
	entry, err := scanAccessEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access entry: %w", err)
	}
	return entry, nil
}

// ListEntriesByAuthorization retrieves the gate history of a credential,
// most recent first
func (r *accessRepository) ListEntriesByAuthorization(authorizationID int64) ([]models.AccessEntry, error) {
	rows, err := r.db.Query(`
		SELECT `+accessEntryColumns+` FROM access_entries
		WHERE authorization_id = ? ORDER BY recorded_at DESC, id DESC
	`, authorizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query access entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AccessEntry
	for rows.Next() {
		entry, err := scanAccessEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

const discrepancyColumns = `
	id, code, access_entry_id, kind, description, reported_by, status,
	assigned_to, resolved_by, resolution, resolved_at, created_at
`

// CreateDiscrepancy records a breach found during a gate checklist
func (r *accessRepository) CreateDiscrepancy(disc *models.Discrepancy) error {
	disc.CreatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		INSERT INTO discrepancies (code, access_entry_id, kind, description, reported_by,
			status, assigned_to, resolved_by, resolution, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, disc.Code, disc.AccessEntryID, string(disc.Kind), disc.Description, disc.ReportedBy,
		string(disc.Status), disc.AssignedTo, disc.ResolvedBy, disc.Resolution,
		nullTime(disc.ResolvedAt), disc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create discrepancy: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted discrepancy ID: %w", err)
	}
	disc.ID = id
	return nil
}

// GetDiscrepancy retrieves a discrepancy by ID
func (r *accessRepository) GetDiscrepancy(id int64) (*models.Discrepancy, error) {
	row := r.db.QueryRow(`SELECT `+discrepancyColumns+` FROM discrepancies WHERE id = ?`, id)
	disc, err := scanDiscrepancy(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discrepancy: %w", err)
	}
	return disc, nil
}

// UpdateDiscrepancy persists the handling fields of a discrepancy
func (r *accessRepository) UpdateDiscrepancy(disc *models.Discrepancy) error {
	result, err := r.db.Exec(`
		UPDATE discrepancies SET
			status = ?, assigned_to = ?, resolved_by = ?, resolution = ?, resolved_at = ?
		WHERE id = ?
	`, string(disc.Status), disc.AssignedTo, disc.ResolvedBy, disc.Resolution,
		nullTime(disc.ResolvedAt), disc.ID)
	if err != nil {
		return fmt.Errorf("failed to update discrepancy: %w", err)
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

// ListOpenDiscrepancies retrieves unresolved discrepancies, oldest first
func (r *accessRepository) ListOpenDiscrepancies() ([]models.Discrepancy, error) {
	rows, err := r.db.Query(`
		SELECT `+discrepancyColumns+` FROM discrepancies
		WHERE status IN (?, ?) ORDER BY created_at ASC
	`, string(models.DiscrepancyReported), string(models.DiscrepancyInReview))
	if err != nil {
		return nil, fmt.Errorf("failed to query open discrepancies: %w", err)
	}
	defer rows.Close()

	var discs []models.Discrepancy
	for rows.Next() {
		disc, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discrepancy: %w", err)
		}
		discs = append(discs, *disc)
	}
	return discs, rows.Err()
}

func scanAccessEntry(row rowScanner) (*models.AccessEntry, error) {
	var entry models.AccessEntry
	var direction, status string

	err := row.Scan(&entry.ID, &entry.AuthorizationID, &direction, &entry.VehiclePlate,
		&entry.DriverName, &entry.Officer, &status, &entry.DocumentVerified,
		&entry.VehicleVerified, &entry.DriverVerified, &entry.Notes,
		&entry.DenialReason, &entry.IPAddress, &entry.RecordedAt)
	if err != nil {
		return nil, err
	}

	entry.Direction = models.AccessDirection(direction)
	entry.Status = models.AccessStatus(status)
	return &entry, nil
}

func scanDiscrepancy(row rowScanner) (*models.Discrepancy, error) {
	var disc models.Discrepancy
	var kind, status string
	var resolvedAt sql.NullTime

	err := row.Scan(&disc.ID, &disc.Code, &disc.AccessEntryID, &kind, &disc.Description,
		&disc.ReportedBy, &status, &disc.AssignedTo, &disc.ResolvedBy, &disc.Resolution,
		&resolvedAt, &disc.CreatedAt)
	if err != nil {
		return nil, err
	}

	disc.Kind = models.DiscrepancyKind(kind)
	disc.Status = models.DiscrepancyStatus(status)
	disc.ResolvedAt = timePtr(resolvedAt)
	return &disc, nil
}
