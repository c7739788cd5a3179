package services

import (
	"time"

	"github.com/naviport/portaccess/models"
)

// requestSLA maps request priority to the evaluation window in hours.
// VIP cases carry a contractual one-hour response commitment.
var requestSLA = map[models.Priority]int{
	models.PriorityVIP:      1,
	models.PriorityCritical: 2,
	models.PriorityHigh:     8,
	models.PriorityNormal:   24,
}

// escalationSLA maps escalation priority to the resolution window in hours
var escalationSLA = map[models.EscalationPriority]int{
	models.EscalationCritical: 1,
	models.EscalationHigh:     4,
	models.EscalationMedium:   12,
	models.EscalationLow:      24,
}

// RequestSLAHours returns the evaluation window for a request priority.
// Unknown priorities fall back to the normal window.
func RequestSLAHours(priority models.Priority) int {
	if hours, ok := requestSLA[priority]; ok {
		return hours
	}
	return requestSLA[models.PriorityNormal]
}

// RequestDueAt computes the evaluation deadline for a request submitted at
// the given time
func RequestDueAt(priority models.Priority, submittedAt time.Time) time.Time {
	return submittedAt.Add(time.Duration(RequestSLAHours(priority)) * time.Hour)
}

// EscalationSLAHours returns the resolution window for an escalation priority.
// Unknown priorities fall back to the low window.
func EscalationSLAHours(priority models.EscalationPriority) int {
	if hours, ok := escalationSLA[priority]; ok {
		return hours
	}
	return escalationSLA[models.EscalationLow]
}

// EscalationDueAt computes the resolution deadline for an escalation raised
// at the given time
func EscalationDueAt(priority models.EscalationPriority, raisedAt time.Time) time.Time {
	return raisedAt.Add(time.Duration(EscalationSLAHours(priority)) * time.Hour)
}
