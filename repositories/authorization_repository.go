package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
)

// AuthorizationFilter narrows authorization listings
type AuthorizationFilter struct {
	Status  models.AuthorizationStatus
	Company string
	Limit   int
}

// AuthorizationRepository interface defines credential database operations
type AuthorizationRepository interface {
	Create(auth *models.Authorization) error
	GetByID(id int64) (*models.Authorization, error)
	GetByToken(token string) (*models.Authorization, error)
	GetByRequestID(requestID int64) (*models.Authorization, error)
	Update(auth *models.Authorization) error
	List(filter AuthorizationFilter) ([]models.Authorization, error)
}

type authorizationRepository struct {
	db *sql.DB
}

// NewAuthorizationRepository creates a new authorization repository
func NewAuthorizationRepository(db *sql.DB) AuthorizationRepository {
	return &authorizationRepository{db: db}
}

const authorizationColumns = `
	id, code, token, request_id, company_name, company_rnc,
	representative_name, representative_id, port, purpose,
	valid_from, valid_until, vehicles, status, issued_by,
	created_at, updated_at, revoked_at, revoked_by, revocation_reason
`

// Create inserts a newly issued authorization
func (r *authorizationRepository) Create(auth *models.Authorization) error {
	now := time.Now().UTC()
	auth.CreatedAt = now
	auth.UpdatedAt = now

	result, err := r.db.Exec(`
		INSERT INTO authorizations (code, token, request_id, company_name, company_rnc,
			representative_name, representative_id, port, purpose, valid_from, valid_until,
			vehicles, status, issued_by, created_at, updated_at, revoked_at, revoked_by, revocation_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, auth.Code, auth.Token, auth.RequestID, auth.CompanyName, auth.CompanyRNC,
		auth.RepresentativeName, auth.RepresentativeID, auth.Port, auth.Purpose,
		auth.ValidFrom, auth.ValidUntil, auth.Vehicles, string(auth.Status), auth.IssuedBy,
		auth.CreatedAt, auth.UpdatedAt, nullTime(auth.RevokedAt), auth.RevokedBy, auth.RevocationReason)
	if err != nil {
		return fmt.Errorf("failed to create authorization: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted authorization ID: %w", err)
	}
	auth.ID = id
	return nil
}

// GetByID retrieves an authorization by ID
func (r *authorizationRepository) GetByID(id int64) (*models.Authorization, error) {
	return r.getOne(`SELECT `+authorizationColumns+` FROM authorizations WHERE id = ?`, id)
}

// GetByToken retrieves an authorization by its opaque verification token
func (r *authorizationRepository) GetByToken(token string) (*models.Authorization, error) {
	return r.getOne(`SELECT `+authorizationColumns+` FROM authorizations WHERE token = ?`, token)
}

// GetByRequestID retrieves the one authorization issued for a request
func (r *authorizationRepository) GetByRequestID(requestID int64) (*models.Authorization, error) {
	return r.getOne(`SELECT `+authorizationColumns+` FROM authorizations WHERE request_id = ?`, requestID)
}

func (r *authorizationRepository) getOne(query string, arg any) (*models.Authorization, error) {
	auth, err := scanAuthorization(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}
	return auth, nil
}

// Update persists the mutable fields of an authorization
func (r *authorizationRepository) Update(auth *models.Authorization) error {
	auth.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE authorizations SET
			valid_from = ?, valid_until = ?, vehicles = ?, status = ?,
			revoked_at = ?, revoked_by = ?, revocation_reason = ?, updated_at = ?
		WHERE id = ?
	`, auth.ValidFrom, auth.ValidUntil, auth.Vehicles, string(auth.Status),
		nullTime(auth.RevokedAt), auth.RevokedBy, auth.RevocationReason, auth.UpdatedAt, auth.ID)
	if err != nil {
		return fmt.Errorf("failed to update authorization: %w", err)
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

// List retrieves authorizations matching the filter, newest first
func (r *authorizationRepository) List(filter AuthorizationFilter) ([]models.Authorization, error) {
	query := `SELECT ` + authorizationColumns + ` FROM authorizations`
	var args []any
	where := ""

	if filter.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Company != "" {
		if where == "" {
			where = " WHERE company_name = ?"
		} else {
			where += " AND company_name = ?"
		}
		args = append(args, filter.Company)
	}
	query += where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query authorizations: %w", err)
	}
	defer rows.Close()

	var auths []models.Authorization
	for rows.Next() {
		auth, err := scanAuthorization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan authorization: %w", err)
		}
		auths = append(auths, *auth)
	}
	return auths, rows.Err()
}

func scanAuthorization(row rowScanner) (*models.Authorization, error) {
	var auth models.Authorization
	var status string
	var revokedAt sql.NullTime

	err := row.Scan(&auth.ID, &auth.Code, &auth.Token, &auth.RequestID, &auth.CompanyName,
		&auth.CompanyRNC, &auth.RepresentativeName, &auth.RepresentativeID, &auth.Port,
		&auth.Purpose, &auth.ValidFrom, &auth.ValidUntil, &auth.Vehicles, &status,
		&auth.IssuedBy, &auth.CreatedAt, &auth.UpdatedAt, &revokedAt, &auth.RevokedBy,
		&auth.RevocationReason)
	if err != nil {
		return nil, err
	}

	auth.Status = models.AuthorizationStatus(status)
	auth.RevokedAt = timePtr(revokedAt)
	return &auth, nil
}
