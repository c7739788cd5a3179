package models

import (
	"regexp"
	"time"
)

// RequestStatus is the lifecycle state of an access request
type RequestStatus string

const (
	StatusDraft              RequestStatus = "draft"
	StatusSubmitted          RequestStatus = "submitted"
	StatusUnassigned         RequestStatus = "unassigned"
	StatusPending            RequestStatus = "pending"
	StatusInReview           RequestStatus = "in_review"
	StatusDocumentsRequested RequestStatus = "documents_requested"
	StatusApproved           RequestStatus = "approved"
	StatusRejected           RequestStatus = "rejected"
	StatusExpired            RequestStatus = "expired"
	StatusEscalated          RequestStatus = "escalated"
)

// Terminal reports whether no further transitions are allowed from the status
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Open reports whether the request still awaits an evaluation outcome
func (s RequestStatus) Open() bool {
	switch s {
	case StatusSubmitted, StatusUnassigned, StatusPending, StatusInReview,
		StatusDocumentsRequested, StatusEscalated:
		return true
	}
	return false
}

// VesselActiveStatuses are the statuses that count against the
// one-active-request-per-vessel rule. Approved requests keep blocking new
// ones until they expire or are otherwise closed out.
var VesselActiveStatuses = []RequestStatus{
	StatusSubmitted,
	StatusUnassigned,
	StatusPending,
	StatusInReview,
	StatusDocumentsRequested,
	StatusEscalated,
	StatusApproved,
}

// Priority is the urgency tier of an access request
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
	PriorityVIP      Priority = "vip"
)

// Valid reports whether p is a known request priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityCritical, PriorityVIP:
		return true
	}
	return false
}

// AccessRequest represents a petition for time-bounded port access
type AccessRequest struct {
	ID                 int64         `json:"id"`
	Code               string        `json:"code"`
	IMONumber          string        `json:"imo_number,omitempty"`
	ShippingLine       string        `json:"shipping_line,omitempty"`
	CompanyName        string        `json:"company_name"`
	CompanyRNC         string        `json:"company_rnc"`
	ApplicantName      string        `json:"applicant_name"`
	ApplicantID        string        `json:"applicant_id"`
	Port               string        `json:"port"`
	Place              string        `json:"place,omitempty"`
	Purpose            string        `json:"purpose"`
	Description        string        `json:"description"`
	EntryAt            time.Time     `json:"entry_at"`
	ExitAt             time.Time     `json:"exit_at"`
	Status             RequestStatus `json:"status"`
	Priority           Priority      `json:"priority"`
	AssignedTo         string        `json:"assigned_to,omitempty"`
	EvaluationComments string        `json:"evaluation_comments,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	EvaluatedAt        *time.Time    `json:"evaluated_at,omitempty"`
	SLAHours           int           `json:"sla_hours"`
	DueAt              *time.Time    `json:"due_at,omitempty"`
	SubmittedAt        *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	// Overdue is computed at read time and never stored
	Overdue bool `json:"overdue"`

	Vehicles []Vehicle `json:"vehicles,omitempty"`
}

// IsOverdue reports whether the request's due time has passed while it is
// still open. Terminal and draft requests are never overdue.
func (r *AccessRequest) IsOverdue(now time.Time) bool {
	if r.DueAt == nil || !r.Status.Open() {
		return false
	}
	return now.After(*r.DueAt)
}

// Editable reports whether the applicant may still modify the request
func (r *AccessRequest) Editable() bool {
	switch r.Status {
	case StatusDraft, StatusSubmitted, StatusDocumentsRequested:
		return true
	}
	return false
}

// Vehicle is a vehicle declared on an access request
type Vehicle struct {
	ID            int64  `json:"id"`
	RequestID     int64  `json:"request_id"`
	Plate         string `json:"plate"`
	Kind          string `json:"kind"`
	DriverName    string `json:"driver_name"`
	DriverLicense string `json:"driver_license,omitempty"`
}

// Document is an opaque reference to an uploaded file held by the
// external document store. The core records metadata only.
type Document struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	Handle       string    `json:"handle"`
	Kind         string    `json:"kind"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	Verified     bool      `json:"verified"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

var (
	plateRe = regexp.MustCompile(`^[A-Z]{1,3}-\d{4}$`)
	imoRe   = regexp.MustCompile(`^\d{7}$`)
)

// VehicleForm carries a declared vehicle on request creation/update
type VehicleForm struct {
	Plate         string `json:"plate"`
	Kind          string `json:"kind"`
	DriverName    string `json:"driver_name"`
	DriverLicense string `json:"driver_license"`
}

// RequestForm carries applicant-supplied data for creating or updating a request
type RequestForm struct {
	IMONumber     string        `json:"imo_number"`
	ShippingLine  string        `json:"shipping_line"`
	CompanyName   string        `json:"company_name"`
	CompanyRNC    string        `json:"company_rnc"`
	ApplicantName string        `json:"applicant_name"`
	ApplicantID   string        `json:"applicant_id"`
	Port          string        `json:"port"`
	Place         string        `json:"place"`
	Purpose       string        `json:"purpose"`
	Description   string        `json:"description"`
	EntryAt       time.Time     `json:"entry_at"`
	ExitAt        time.Time     `json:"exit_at"`
	Priority      Priority      `json:"priority"`
	Vehicles      []VehicleForm `json:"vehicles"`
}

// Validate validates the request form data
func (f *RequestForm) Validate() ValidationErrors {
	var errs ValidationErrors

	if f.CompanyName == "" {
		errs = append(errs, ValidationError{Field: "company_name", Message: "company name is required"})
	}
	if f.ApplicantName == "" {
		errs = append(errs, ValidationError{Field: "applicant_name", Message: "applicant name is required"})
	}
	if f.Port == "" {
		errs = append(errs, ValidationError{Field: "port", Message: "destination port is required"})
	}
	if f.Purpose == "" {
		errs = append(errs, ValidationError{Field: "purpose", Message: "access purpose is required"})
	}
	if f.EntryAt.IsZero() {
		errs = append(errs, ValidationError{Field: "entry_at", Message: "entry time is required"})
	}
	if f.ExitAt.IsZero() {
		errs = append(errs, ValidationError{Field: "exit_at", Message: "exit time is required"})
	}
	if !f.EntryAt.IsZero() && !f.ExitAt.IsZero() && !f.ExitAt.After(f.EntryAt) {
		errs = append(errs, ValidationError{Field: "exit_at", Message: "exit time must be after entry time"})
	}
	if f.IMONumber != "" && !imoRe.MatchString(f.IMONumber) {
		errs = append(errs, ValidationError{Field: "imo_number", Message: "IMO number must be 7 digits"})
	}
	if f.Priority != "" && !f.Priority.Valid() {
		errs = append(errs, ValidationError{Field: "priority", Message: "unknown priority"})
	}
	for _, v := range f.Vehicles {
		if !plateRe.MatchString(v.Plate) {
			errs = append(errs, ValidationError{Field: "vehicles", Message: "invalid plate format, use ABC-1234: " + v.Plate})
		}
		if v.DriverName == "" {
			errs = append(errs, ValidationError{Field: "vehicles", Message: "driver name is required for plate " + v.Plate})
		}
	}

	return errs
}
