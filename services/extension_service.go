package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

var (
	// ErrExtensionDecided is returned when a decided extension is processed
	// again
	ErrExtensionDecided = errors.New("extension request is already decided")

	// ErrExtensionPendingExists is returned when an authorization already
	// has an undecided extension request
	ErrExtensionPendingExists = errors.New("authorization has a pending extension request")

	// ErrNotExtendable is returned when an extension is requested for a
	// credential that is not active
	ErrNotExtendable = errors.New("authorization is not active")
)

// ExtensionService interface defines validity extension operations
type ExtensionService interface {
	Request(authorizationID int64, requestedExpiry time.Time, reason string, actor string) (*models.ExtensionRequest, error)
	Approve(id int64, notes string, actor string) (*models.ExtensionRequest, error)
	Reject(id int64, reason string, actor string) (*models.ExtensionRequest, error)
	Get(id int64) (*models.ExtensionRequest, error)
	ListPending() ([]models.ExtensionRequest, error)
	ListByAuthorization(authorizationID int64) ([]models.ExtensionRequest, error)
}

type extensionService struct {
	extensions     repositories.ExtensionRepository
	authorizations repositories.AuthorizationRepository
	events         repositories.EventRepository
	codes          repositories.CodeRepository
	notifier       Notifier
}

// NewExtensionService creates a new extension service
func NewExtensionService(repos *repositories.Repositories, notifier Notifier) ExtensionService {
	return &extensionService{
		extensions:     repos.Extensions,
		authorizations: repos.Authorizations,
		events:         repos.Events,
		codes:          repos.Codes,
		notifier:       notifier,
	}
}

// Request opens a petition to prolong an active credential. The current
// expiry is snapshotted so the decision is auditable even after later
// extensions move the window again.
func (s *extensionService) Request(authorizationID int64, requestedExpiry time.Time, reason string, actor string) (*models.ExtensionRequest, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	auth, err := s.authorizations.GetByID(authorizationID)
	if err != nil {
		return nil, err
	}
	if auth.Status != models.AuthorizationActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotExtendable, auth.Code, auth.Status)
	}
	if !requestedExpiry.After(auth.ValidUntil) {
		return nil, fmt.Errorf("%w: requested expiry must be after current expiry %s",
			ErrValidation, models.FormatDateTime(auth.ValidUntil))
	}

	pending, err := s.extensions.ListByAuthorization(authorizationID)
	if err != nil {
		return nil, err
	}
	for _, ext := range pending {
		if !ext.Decided() {
			return nil, fmt.Errorf("%w: %s", ErrExtensionPendingExists, ext.Code)
		}
	}

	code, err := s.codes.Allocate(models.CodeExtension, timeNow().Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate extension code: %w", err)
	}

	ext := &models.ExtensionRequest{
		Code:            code,
		AuthorizationID: authorizationID,
		CurrentExpiry:   auth.ValidUntil,
		RequestedExpiry: requestedExpiry,
		Reason:          reason,
		RequestedBy:     actor,
		Status:          models.ExtensionPending,
	}
	if err := s.extensions.Create(ext); err != nil {
		return nil, err
	}

	s.notifier.Notify(NotifyExtensionRequested, "", map[string]any{
		"code":          ext.Code,
		"authorization": auth.Code,
		"days":          ext.ExtensionDays(),
	})
	return ext, nil
}

// Approve grants the extension. The only field that changes on the
// credential is its expiry; the token, code and snapshot stay intact, so
// already-printed passes remain scannable.
func (s *extensionService) Approve(id int64, notes string, actor string) (*models.ExtensionRequest, error) {
	ext, err := s.extensions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if ext.Decided() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExtensionDecided, ext.Code, ext.Status)
	}

	auth, err := s.authorizations.GetByID(ext.AuthorizationID)
	if err != nil {
		return nil, err
	}
	if auth.Status != models.AuthorizationActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotExtendable, auth.Code, auth.Status)
	}

	now := timeNow()
	ext.Status = models.ExtensionApproved
	ext.ProcessedBy = actor
	ext.ProcessedAt = &now
	ext.Notes = notes

	if err := s.extensions.Update(ext); err != nil {
		return nil, err
	}

	auth.ValidUntil = ext.RequestedExpiry
	if err := s.authorizations.Update(auth); err != nil {
		return nil, err
	}

	s.record(auth.RequestID, actor, "Authorization extended",
		fmt.Sprintf("Validity extended to %s (%s)", models.FormatDateTime(ext.RequestedExpiry), ext.Code),
		models.Metadata{"extension_code": ext.Code, "valid_until": ext.RequestedExpiry.Format(time.RFC3339)})
	s.notifier.Notify(NotifyExtensionApproved, ext.RequestedBy, map[string]any{
		"code":          ext.Code,
		"authorization": auth.Code,
		"valid_until":   ext.RequestedExpiry,
	})
	return ext, nil
}

// Reject declines the extension, leaving the credential untouched
func (s *extensionService) Reject(id int64, reason string, actor string) (*models.ExtensionRequest, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	ext, err := s.extensions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if ext.Decided() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExtensionDecided, ext.Code, ext.Status)
	}

	now := timeNow()
	ext.Status = models.ExtensionRejected
	ext.ProcessedBy = actor
	ext.ProcessedAt = &now
	ext.RejectionReason = reason

	if err := s.extensions.Update(ext); err != nil {
		return nil, err
	}

	s.notifier.Notify(NotifyExtensionRejected, ext.RequestedBy, map[string]any{
		"code":   ext.Code,
		"reason": reason,
	})
	return ext, nil
}

// Get retrieves an extension request by ID
func (s *extensionService) Get(id int64) (*models.ExtensionRequest, error) {
	return s.extensions.GetByID(id)
}

// ListPending retrieves the queue of undecided extension requests
func (s *extensionService) ListPending() ([]models.ExtensionRequest, error) {
	return s.extensions.ListPending()
}

// ListByAuthorization retrieves a credential's extension history
func (s *extensionService) ListByAuthorization(authorizationID int64) ([]models.ExtensionRequest, error) {
	return s.extensions.ListByAuthorization(authorizationID)
}

func (s *extensionService) record(requestID int64, actor string, title, description string, metadata models.Metadata) {
	event := &models.RequestEvent{
		RequestID:          requestID,
		Actor:              actor,
		Kind:               models.EventStatusChanged,
		Title:              title,
		Description:        description,
		Metadata:           metadata,
		VisibleToApplicant: true,
	}
	if err := s.events.Append(event); err != nil {
		logEventFailure(requestID, event.Kind, err)
	}
}
