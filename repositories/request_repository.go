package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/naviport/portaccess/models"
)

// RequestFilter narrows request listings
type RequestFilter struct {
	Status     models.RequestStatus
	AssignedTo string
	Company    string
	Limit      int
}

// RequestRepository interface defines access request database operations
type RequestRepository interface {
	Create(req *models.AccessRequest) error
	GetByID(id int64) (*models.AccessRequest, error)
	GetByCode(code string) (*models.AccessRequest, error)
	Update(req *models.AccessRequest) error
	Delete(id int64) error
	List(filter RequestFilter) ([]models.AccessRequest, error)
	FindActiveByVessel(imoNumber string, excludeID int64) (*models.AccessRequest, error)
	ReplaceVehicles(requestID int64, vehicles []models.Vehicle) error
	GetVehicles(requestID int64) ([]models.Vehicle, error)
	AddDocument(doc *models.Document) error
	GetDocuments(requestID int64) ([]models.Document, error)
	SetDocumentVerified(documentID int64, verified bool) error
	CountByStatus() (map[models.RequestStatus]int, error)
}

type requestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB) RequestRepository {
	return &requestRepository{db: db}
}

const requestColumns = `
	id, code, imo_number, shipping_line, company_name, company_rnc,
	applicant_name, applicant_id, port, place, purpose, description,
	entry_at, exit_at, status, priority, assigned_to,
	evaluation_comments, rejection_reason, evaluated_at,
	sla_hours, due_at, submitted_at, created_at, updated_at
`

// Create inserts a new access request together with its declared vehicles
func (r *requestRepository) Create(req *models.AccessRequest) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin request insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	result, err := tx.Exec(`
		INSERT INTO access_requests (
			code, imo_number, shipping_line, company_name, company_rnc,
			applicant_name, applicant_id, port, place, purpose, description,
			entry_at, exit_at, status, priority, assigned_to,
			evaluation_comments, rejection_reason, evaluated_at,
			sla_hours, due_at, submitted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.Code, nullString(req.IMONumber), req.ShippingLine, req.CompanyName, req.CompanyRNC,
		req.ApplicantName, req.ApplicantID, req.Port, req.Place, req.Purpose, req.Description,
		req.EntryAt, req.ExitAt, string(req.Status), string(req.Priority), req.AssignedTo,
		req.EvaluationComments, req.RejectionReason, nullTime(req.EvaluatedAt),
		req.SLAHours, nullTime(req.DueAt), nullTime(req.SubmittedAt), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted request ID: %w", err)
	}
	req.ID = id

	for i := range req.Vehicles {
		req.Vehicles[i].RequestID = id
		if err := insertVehicle(tx, &req.Vehicles[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves an access request by ID, including vehicles
func (r *requestRepository) GetByID(id int64) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = ?`
	return r.getOne(query, id)
}

// GetByCode retrieves an access request by its human code
func (r *requestRepository) GetByCode(code string) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE code = ?`
	return r.getOne(query, code)
}

func (r *requestRepository) getOne(query string, arg any) (*models.AccessRequest, error) {
	req, err := scanRequest(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	vehicles, err := r.GetVehicles(req.ID)
	if err != nil {
		return nil, err
	}
	req.Vehicles = vehicles
	return req, nil
}

// Update persists all mutable fields of an access request
func (r *requestRepository) Update(req *models.AccessRequest) error {
	req.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE access_requests SET
			imo_number = ?, shipping_line = ?, company_name = ?, company_rnc = ?,
			applicant_name = ?, applicant_id = ?, port = ?, place = ?, purpose = ?,
			description = ?, entry_at = ?, exit_at = ?, status = ?, priority = ?,
			assigned_to = ?, evaluation_comments = ?, rejection_reason = ?,
			evaluated_at = ?, sla_hours = ?, due_at = ?, submitted_at = ?, updated_at = ?
		WHERE id = ?
	`,
		nullString(req.IMONumber), req.ShippingLine, req.CompanyName, req.CompanyRNC,
		req.ApplicantName, req.ApplicantID, req.Port, req.Place, req.Purpose,
		req.Description, req.EntryAt, req.ExitAt, string(req.Status), string(req.Priority),
		req.AssignedTo, req.EvaluationComments, req.RejectionReason,
		nullTime(req.EvaluatedAt), req.SLAHours, nullTime(req.DueAt), nullTime(req.SubmittedAt), req.UpdatedAt,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
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

// Delete removes a request. The service layer only permits this for drafts.
func (r *requestRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM access_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
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

// List retrieves requests matching the filter, newest first
func (r *requestRepository) List(filter RequestFilter) ([]models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests`
	var conds []string
	var args []any

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.Company != "" {
		conds = append(conds, "company_name = ?")
		args = append(args, filter.Company)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// FindActiveByVessel returns the request blocking a new submission for the
// same vessel, or ErrNotFound when the vessel has no active request.
func (r *requestRepository) FindActiveByVessel(imoNumber string, excludeID int64) (*models.AccessRequest, error) {
	placeholders := make([]string, len(models.VesselActiveStatuses))
	args := []any{imoNumber}
	for i, s := range models.VesselActiveStatuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	args = append(args, excludeID)

	query := `SELECT ` + requestColumns + ` FROM access_requests
		WHERE imo_number = ? AND status IN (` + strings.Join(placeholders, ", ") + `) AND id != ?
		ORDER BY created_at ASC LIMIT 1`

	req, err := scanRequest(r.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active vessel request: %w", err)
	}
	return req, nil
}

// ReplaceVehicles swaps the declared vehicle list of a request
func (r *requestRepository) ReplaceVehicles(requestID int64, vehicles []models.Vehicle) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin vehicle replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM request_vehicles WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("failed to clear vehicles: %w", err)
	}
	for i := range vehicles {
		vehicles[i].RequestID = requestID
		if err := insertVehicle(tx, &vehicles[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetVehicles retrieves the declared vehicles of a request
func (r *requestRepository) GetVehicles(requestID int64) ([]models.Vehicle, error) {
	rows, err := r.db.Query(`
		SELECT id, request_id, plate, kind, driver_name, driver_license
		FROM request_vehicles WHERE request_id = ? ORDER BY id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.RequestID, &v.Plate, &v.Kind, &v.DriverName, &v.DriverLicense); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// AddDocument records an opaque document handle on a request
func (r *requestRepository) AddDocument(doc *models.Document) error {
	doc.UploadedAt = time.Now().UTC()
	result, err := r.db.Exec(`
		INSERT INTO request_documents (request_id, handle, kind, original_name, size, verified, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.RequestID, doc.Handle, doc.Kind, doc.OriginalName, doc.Size, doc.Verified, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted document ID: %w", err)
	}
	doc.ID = id
	return nil
}

// GetDocuments retrieves the document references of a request
func (r *requestRepository) GetDocuments(requestID int64) ([]models.Document, error) {
	rows, err := r.db.Query(`
		SELECT id, request_id, handle, kind, original_name, size, verified, uploaded_at
		FROM request_documents WHERE request_id = ? ORDER BY uploaded_at DESC, id DESC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.RequestID, &d.Handle, &d.Kind, &d.OriginalName, &d.Size, &d.Verified, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetDocumentVerified flips the verification flag on a document reference
func (r *requestRepository) SetDocumentVerified(documentID int64, verified bool) error {
	result, err := r.db.Exec(`UPDATE request_documents SET verified = ? WHERE id = ?`, verified, documentID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
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

// CountByStatus returns how many requests are in each status
func (r *requestRepository) CountByStatus() (map[models.RequestStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM access_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.RequestStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.RequestStatus(status)] = count
	}
	return counts, rows.Err()
}

func insertVehicle(tx *sql.Tx, v *models.Vehicle) error {
	result, err := tx.Exec(`
		INSERT INTO request_vehicles (request_id, plate, kind, driver_name, driver_license)
		VALUES (?, ?, ?, ?, ?)
	`, v.RequestID, v.Plate, v.Kind, v.DriverName, v.DriverLicense)
	if err != nil {
		return fmt.Errorf("failed to insert vehicle %s: %w", v.Plate, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted vehicle ID: %w", err)
	}
	v.ID = id
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.AccessRequest, error) {
	var req models.AccessRequest
	var imo sql.NullString
	var status, priority string
	var evaluatedAt, dueAt, submittedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.Code, &imo, &req.ShippingLine, &req.CompanyName, &req.CompanyRNC,
		&req.ApplicantName, &req.ApplicantID, &req.Port, &req.Place, &req.Purpose, &req.Description,
		&req.EntryAt, &req.ExitAt, &status, &priority, &req.AssignedTo,
		&req.EvaluationComments, &req.RejectionReason, &evaluatedAt,
		&req.SLAHours, &dueAt, &submittedAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if imo.Valid {
		req.IMONumber = imo.String
	}
	req.Status = models.RequestStatus(status)
	req.Priority = models.Priority(priority)
	req.EvaluatedAt = timePtr(evaluatedAt)
	req.DueAt = timePtr(dueAt)
	req.SubmittedAt = timePtr(submittedAt)
	return &req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
