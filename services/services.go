package services

import (
	"log"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

// Config carries the tunables the services need from the environment
type Config struct {
	// BaseURL is the public prefix embedded into credential QR codes
	BaseURL string

	// AutoExpire enables lazy expiry of open requests whose access window
	// passed without a decision
	AutoExpire bool
}

// Services struct holds all service interfaces
type Services struct {
	Requests       RequestService
	Escalations    EscalationService
	Authorizations AuthorizationService
	Extensions     ExtensionService
	Notifier       Notifier
}

// NewServices creates and initializes all services
func NewServices(repos *repositories.Repositories, cfg Config) *Services {
	notifier := NewLogNotifier()
	authorizations := NewAuthorizationService(repos, notifier, cfg.BaseURL)
	requests := NewRequestService(repos, authorizations, notifier, cfg.AutoExpire)
	escalations := NewEscalationService(repos, requests, notifier)
	extensions := NewExtensionService(repos, notifier)

	return &Services{
		Requests:       requests,
		Escalations:    escalations,
		Authorizations: authorizations,
		Extensions:     extensions,
		Notifier:       notifier,
	}
}

// logEventFailure reports a timeline append that could not be persisted.
// The triggering operation has already committed, so the failure is logged
// rather than propagated.
func logEventFailure(requestID int64, kind models.EventKind, err error) {
	log.Printf("failed to record %s event for request %d: %v", kind, requestID, err)
}
