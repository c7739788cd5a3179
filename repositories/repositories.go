package repositories

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a record does not exist. Controllers map it
// to 404 so verifiers can distinguish "unknown" from "invalid state".
var ErrNotFound = errors.New("record not found")

// Repositories struct holds all repository interfaces
type Repositories struct {
	Codes          CodeRepository
	Requests       RequestRepository
	Events         EventRepository
	Escalations    EscalationRepository
	Authorizations AuthorizationRepository
	Extensions     ExtensionRepository
	Access         AccessRepository
	Audit          AuditRepository
}

// NewRepositories creates and initializes all repositories
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Codes:          NewCodeRepository(db),
		Requests:       NewRequestRepository(db),
		Events:         NewEventRepository(db),
		Escalations:    NewEscalationRepository(db),
		Authorizations: NewAuthorizationRepository(db),
		Extensions:     NewExtensionRepository(db),
		Access:         NewAccessRepository(db),
		Audit:          NewAuditRepository(db),
	}
}
