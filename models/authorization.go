package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AuthorizationStatus is the lifecycle state of an issued credential
type AuthorizationStatus string

const (
	AuthorizationActive   AuthorizationStatus = "active"
	AuthorizationExpired  AuthorizationStatus = "expired"
	AuthorizationRevoked  AuthorizationStatus = "revoked"
	AuthorizationConsumed AuthorizationStatus = "consumed"
)

// VerificationStatus is the answer given to a scanner at the gate
type VerificationStatus string

const (
	VerificationValid       VerificationStatus = "valid"
	VerificationNotYetValid VerificationStatus = "not_yet_valid"
	VerificationExpired     VerificationStatus = "expired"
	VerificationRevoked     VerificationStatus = "revoked"
	VerificationConsumed    VerificationStatus = "consumed"
	VerificationNotFound    VerificationStatus = "not_found"
)

// VehicleSnapshot is a vehicle copied onto an authorization at issuance time
type VehicleSnapshot struct {
	Plate   string `json:"plate"`
	Kind    string `json:"kind"`
	Driver  string `json:"driver"`
	License string `json:"license,omitempty"`
}

// VehicleSnapshots is the JSON-stored list of authorized vehicles
type VehicleSnapshots []VehicleSnapshot

// Value implements driver.Valuer
func (v VehicleSnapshots) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (v *VehicleSnapshots) Scan(src any) error {
	if src == nil {
		*v = VehicleSnapshots{}
		return nil
	}
	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("unsupported vehicle snapshot type %T", src)
	}
	if len(data) == 0 {
		*v = VehicleSnapshots{}
		return nil
	}
	return json.Unmarshal(data, v)
}

// Authorization is the scanner-verifiable credential minted from an
// approved request. All applicant data is an immutable snapshot taken at
// issuance; the validity window changes only through the extension workflow.
type Authorization struct {
	ID                 int64               `json:"id"`
	Code               string              `json:"code"`
	Token              string              `json:"token"`
	RequestID          int64               `json:"request_id"`
	CompanyName        string              `json:"company_name"`
	CompanyRNC         string              `json:"company_rnc"`
	RepresentativeName string              `json:"representative_name"`
	RepresentativeID   string              `json:"representative_id"`
	Port               string              `json:"port"`
	Purpose            string              `json:"purpose"`
	ValidFrom          time.Time           `json:"valid_from"`
	ValidUntil         time.Time           `json:"valid_until"`
	Vehicles           VehicleSnapshots    `json:"vehicles"`
	Status             AuthorizationStatus `json:"status"`
	IssuedBy           string              `json:"issued_by"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	RevokedAt          *time.Time          `json:"revoked_at,omitempty"`
	RevokedBy          string              `json:"revoked_by,omitempty"`
	RevocationReason   string              `json:"revocation_reason,omitempty"`
}

// CurrentlyValid reports whether the authorization admits traffic right now
func (a *Authorization) CurrentlyValid(now time.Time) bool {
	return a.Status == AuthorizationActive &&
		!now.Before(a.ValidFrom) && !now.After(a.ValidUntil)
}

// AccessDirection distinguishes gate entries from exits
type AccessDirection string

const (
	AccessEntryDirection AccessDirection = "entry"
	AccessExitDirection  AccessDirection = "exit"
)

// AccessStatus is the outcome of a gate verification
type AccessStatus string

const (
	AccessAdmitted AccessStatus = "admitted"
	AccessDenied   AccessStatus = "denied"
)

// AccessEntry is one append-only record of a field admission or denial
type AccessEntry struct {
	ID               int64           `json:"id"`
	AuthorizationID  int64           `json:"authorization_id"`
	Direction        AccessDirection `json:"direction"`
	VehiclePlate     string          `json:"vehicle_plate"`
	DriverName       string          `json:"driver_name"`
	Officer          string          `json:"officer"`
	Status           AccessStatus    `json:"status"`
	DocumentVerified bool            `json:"document_verified"`
	VehicleVerified  bool            `json:"vehicle_verified"`
	DriverVerified   bool            `json:"driver_verified"`
	Notes            string          `json:"notes,omitempty"`
	DenialReason     string          `json:"denial_reason,omitempty"`
	IPAddress        string          `json:"ip_address,omitempty"`
	RecordedAt       time.Time       `json:"recorded_at"`
}

// ChecklistPassed reports whether every verification flag was checked
func (e *AccessEntry) ChecklistPassed() bool {
	return e.DocumentVerified && e.VehicleVerified && e.DriverVerified
}

// DiscrepancyKind classifies a breach found at the gate
type DiscrepancyKind string

const (
	DiscrepancyWrongVehicle    DiscrepancyKind = "wrong_vehicle"
	DiscrepancyWrongDriver     DiscrepancyKind = "wrong_driver"
	DiscrepancyExpiredDocument DiscrepancyKind = "expired_document"
	DiscrepancyIllegibleDoc    DiscrepancyKind = "illegible_document"
	DiscrepancyExpiredAuth     DiscrepancyKind = "expired_authorization"
	DiscrepancyIncorrectData   DiscrepancyKind = "incorrect_data"
	DiscrepancyOther           DiscrepancyKind = "other"
)

// DiscrepancyStatus is the lifecycle state of a breach ticket
type DiscrepancyStatus string

const (
	DiscrepancyReported DiscrepancyStatus = "reported"
	DiscrepancyInReview DiscrepancyStatus = "in_review"
	DiscrepancyResolved DiscrepancyStatus = "resolved"
	DiscrepancyClosed   DiscrepancyStatus = "closed"
)

// Discrepancy is a breach record raised from a failed gate checklist
type Discrepancy struct {
	ID            int64             `json:"id"`
	Code          string            `json:"code"`
	AccessEntryID int64             `json:"access_entry_id"`
	Kind          DiscrepancyKind   `json:"kind"`
	Description   string            `json:"description"`
	ReportedBy    string            `json:"reported_by"`
	Status        DiscrepancyStatus `json:"status"`
	AssignedTo    string            `json:"assigned_to,omitempty"`
	ResolvedBy    string            `json:"resolved_by,omitempty"`
	Resolution    string            `json:"resolution,omitempty"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
