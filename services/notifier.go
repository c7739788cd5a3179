package services

import (
	"log"
)

// Notification codes sent to the delivery layer. The core decides when a
// notification is due; rendering and transport live outside this module.
const (
	NotifyRequestSubmitted     = "request_submitted"
	NotifyRequestAssigned      = "request_assigned"
	NotifyDocumentsRequested   = "documents_requested"
	NotifyRequestApproved      = "request_approved"
	NotifyRequestRejected      = "request_rejected"
	NotifyRequestEscalated     = "request_escalated"
	NotifyRequestExpired       = "request_expired"
	NotifyAuthorizationIssued  = "authorization_issued"
	NotifyAuthorizationRevoked = "authorization_revoked"
	NotifyExtensionRequested   = "extension_requested"
	NotifyExtensionApproved    = "extension_approved"
	NotifyExtensionRejected    = "extension_rejected"
	NotifyDiscrepancyReported  = "discrepancy_reported"
)

// Notifier delivers workflow notifications to interested parties. A failed
// delivery must never fail the operation that triggered it, so
// implementations are expected to swallow their own errors.
type Notifier interface {
	Notify(code string, recipient string, payload map[string]any)
}

// logNotifier is the default delivery: it writes the notification to the
// process log. Production deployments plug in a real channel.
type logNotifier struct{}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) Notify(code string, recipient string, payload map[string]any) {
	log.Printf("notify %s -> %s: %v", code, recipient, payload)
}
