package models

import "time"

// EscalationKind classifies why a request was escalated
type EscalationKind string

const (
	EscalationVIPCase        EscalationKind = "vip_case"
	EscalationComplexCase    EscalationKind = "complex_case"
	EscalationSpecialDocs    EscalationKind = "special_documentation"
	EscalationOverdueRequest EscalationKind = "overdue_request"
	EscalationDiscrepancy    EscalationKind = "serious_discrepancy"
	EscalationManualReview   EscalationKind = "manual_review"
	EscalationOther          EscalationKind = "other"
)

// EscalationPriority is tiered independently of the request's priority
type EscalationPriority string

const (
	EscalationLow      EscalationPriority = "low"
	EscalationMedium   EscalationPriority = "medium"
	EscalationHigh     EscalationPriority = "high"
	EscalationCritical EscalationPriority = "critical"
)

// Valid reports whether p is a known escalation priority
func (p EscalationPriority) Valid() bool {
	switch p {
	case EscalationLow, EscalationMedium, EscalationHigh, EscalationCritical:
		return true
	}
	return false
}

// EscalationStatus is the lifecycle state of an escalation ticket
type EscalationStatus string

const (
	EscalationPending    EscalationStatus = "pending"
	EscalationInReview   EscalationStatus = "in_review"
	EscalationResolved   EscalationStatus = "resolved"
	EscalationReassigned EscalationStatus = "reassigned"
	EscalationClosed     EscalationStatus = "closed"
)

// EscalationDecision is the supervisor's resolution outcome, which drives
// the owning request's next transition
type EscalationDecision string

const (
	DecisionApprove          EscalationDecision = "approve"
	DecisionReject           EscalationDecision = "reject"
	DecisionRequestDocuments EscalationDecision = "request_documents"
	DecisionReassign         EscalationDecision = "reassign"
	DecisionOther            EscalationDecision = "other"
)

// Valid reports whether d is a known resolution decision
func (d EscalationDecision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionRequestDocuments, DecisionReassign, DecisionOther:
		return true
	}
	return false
}

// Escalation is a supervisor-facing ticket raised against an open request
type Escalation struct {
	ID          int64              `json:"id"`
	Code        string             `json:"code"`
	RequestID   int64              `json:"request_id"`
	Kind        EscalationKind     `json:"kind"`
	Priority    EscalationPriority `json:"priority"`
	RaisedBy    string             `json:"raised_by"`
	AssignedTo  string             `json:"assigned_to,omitempty"`
	Motive      string             `json:"motive"`
	Description string             `json:"description,omitempty"`
	Status      EscalationStatus   `json:"status"`
	ResolvedBy  string             `json:"resolved_by,omitempty"`
	Decision    EscalationDecision `json:"decision,omitempty"`
	Resolution  string             `json:"resolution,omitempty"`
	DueAt       *time.Time         `json:"due_at,omitempty"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// OpenForResolution reports whether the escalation can still be resolved
func (e *Escalation) OpenForResolution() bool {
	return e.Status == EscalationPending || e.Status == EscalationInReview
}

// IsOverdue reports whether the escalation's due time has passed unresolved
func (e *Escalation) IsOverdue(now time.Time) bool {
	if e.DueAt == nil || !e.OpenForResolution() {
		return false
	}
	return now.After(*e.DueAt)
}
