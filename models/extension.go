package models

import "time"

// ExtensionStatus is the decision state of an extension request
type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionRejected ExtensionStatus = "rejected"
)

// ExtensionRequest is a petition to prolong an authorization's validity.
// The current expiry is snapshotted at creation for audit purposes; once
// decided the record is immutable.
type ExtensionRequest struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	AuthorizationID int64           `json:"authorization_id"`
	CurrentExpiry   time.Time       `json:"current_expiry"`
	RequestedExpiry time.Time       `json:"requested_expiry"`
	Reason          string          `json:"reason"`
	RequestedBy     string          `json:"requested_by"`
	Status          ExtensionStatus `json:"status"`
	ProcessedBy     string          `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Decided reports whether the extension has reached its final outcome
func (e *ExtensionRequest) Decided() bool {
	return e.Status != ExtensionPending
}

// ExtensionDays returns how many whole days of extension were requested
func (e *ExtensionRequest) ExtensionDays() int {
	return int(e.RequestedExpiry.Sub(e.CurrentExpiry).Hours() / 24)
}
