package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

var (
	// ErrRequestNotApproved is returned when issuance is attempted for a
	// request that has not been approved
	ErrRequestNotApproved = errors.New("request is not approved")

	// ErrAlreadyIssued is returned when a request already carries an
	// authorization
	ErrAlreadyIssued = errors.New("authorization already issued for request")

	// ErrNotRevocable is returned when revocation is attempted on an
	// already revoked credential
	ErrNotRevocable = errors.New("authorization is already revoked")
)

// VerificationResult is the gate-facing answer for a scanned token. The
// authorization is included only when the token resolved to a record.
type VerificationResult struct {
	Status        models.VerificationStatus `json:"status"`
	Authorization *models.Authorization     `json:"authorization,omitempty"`
}

// Admissible reports whether the credential admits traffic
func (r *VerificationResult) Admissible() bool {
	return r.Status == models.VerificationValid
}

// AccessForm carries the gate officer's checklist for one passage
type AccessForm struct {
	Direction        models.AccessDirection `json:"direction"`
	VehiclePlate     string                 `json:"vehicle_plate"`
	DriverName       string                 `json:"driver_name"`
	Officer          string                 `json:"officer"`
	DocumentVerified bool                   `json:"document_verified"`
	VehicleVerified  bool                   `json:"vehicle_verified"`
	DriverVerified   bool                   `json:"driver_verified"`
	Notes            string                 `json:"notes"`
	IPAddress        string                 `json:"ip_address"`
}

// AuthorizationService interface defines credential lifecycle operations
type AuthorizationService interface {
	Issue(requestID int64, actor string) (*models.Authorization, error)
	Verify(token string) (*VerificationResult, error)
	Revoke(id int64, reason string, actor string) (*models.Authorization, error)
	Credential(id int64, size int) ([]byte, error)
	RecordAccess(token string, form *AccessForm) (*models.AccessEntry, error)
	AccessLog(authorizationID int64) ([]models.AccessEntry, error)
	ReportDiscrepancy(accessEntryID int64, kind models.DiscrepancyKind, description string, actor string) (*models.Discrepancy, error)
	ResolveDiscrepancy(id int64, resolution string, actor string) (*models.Discrepancy, error)
	OpenDiscrepancies() ([]models.Discrepancy, error)
	Get(id int64) (*models.Authorization, error)
	GetByRequest(requestID int64) (*models.Authorization, error)
	List(filter repositories.AuthorizationFilter) ([]models.Authorization, error)
}

type authorizationService struct {
	authorizations repositories.AuthorizationRepository
	requests       repositories.RequestRepository
	access         repositories.AccessRepository
	events         repositories.EventRepository
	codes          repositories.CodeRepository
	notifier       Notifier
	baseURL        string
}

// NewAuthorizationService creates a new authorization service. baseURL is
// the public prefix embedded into credential QR codes.
func NewAuthorizationService(repos *repositories.Repositories, notifier Notifier, baseURL string) AuthorizationService {
	return &authorizationService{
		authorizations: repos.Authorizations,
		requests:       repos.Requests,
		access:         repos.Access,
		events:         repos.Events,
		codes:          repos.Codes,
		notifier:       notifier,
		baseURL:        baseURL,
	}
}

// Issue mints the credential for an approved request. All applicant data is
// snapshotted so later edits to the request cannot alter an issued pass.
func (s *authorizationService) Issue(requestID int64, actor string) (*models.Authorization, error) {
	req, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: %s is %s", ErrRequestNotApproved, req.Code, req.Status)
	}

	if _, err := s.authorizations.GetByRequestID(requestID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyIssued, req.Code)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	now := timeNow()
	code, err := s.codes.Allocate(models.CodeAuthorization, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate authorization code: %w", err)
	}

	snapshots := make(models.VehicleSnapshots, 0, len(req.Vehicles))
	for _, v := range req.Vehicles {
		snapshots = append(snapshots, models.VehicleSnapshot{
			Plate:   v.Plate,
			Kind:    v.Kind,
			Driver:  v.DriverName,
			License: v.DriverLicense,
		})
	}

	auth := &models.Authorization{
		Code:               code,
		Token:              uuid.NewString(),
		RequestID:          req.ID,
		CompanyName:        req.CompanyName,
		CompanyRNC:         req.CompanyRNC,
		RepresentativeName: req.ApplicantName,
		RepresentativeID:   req.ApplicantID,
		Port:               req.Port,
		Purpose:            req.Purpose,
		ValidFrom:          req.EntryAt,
		ValidUntil:         req.ExitAt,
		Vehicles:           snapshots,
		Status:             models.AuthorizationActive,
		IssuedBy:           actor,
	}
	if err := s.authorizations.Create(auth); err != nil {
		return nil, err
	}

	s.recordRequestEvent(req.ID, actor, models.EventAuthorizationIssued, "Authorization issued",
		fmt.Sprintf("Credential %s valid %s to %s", auth.Code,
			models.FormatDateTime(auth.ValidFrom), models.FormatDateTime(auth.ValidUntil)),
		models.Metadata{"authorization_code": auth.Code})
	s.notifier.Notify(NotifyAuthorizationIssued, req.ApplicantName,
		map[string]any{"code": auth.Code, "request": req.Code})

	return auth, nil
}

// Verify resolves a scanned token to its admission answer. Expiry is lazy:
// an active credential past its window is flipped to expired here, on read.
func (s *authorizationService) Verify(token string) (*VerificationResult, error) {
	auth, err := s.authorizations.GetByToken(token)
	if errors.Is(err, repositories.ErrNotFound) {
		return &VerificationResult{Status: models.VerificationNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	now := timeNow()
	switch auth.Status {
	case models.AuthorizationRevoked:
		return &VerificationResult{Status: models.VerificationRevoked, Authorization: auth}, nil
	case models.AuthorizationConsumed:
		return &VerificationResult{Status: models.VerificationConsumed, Authorization: auth}, nil
	case models.AuthorizationExpired:
		return &VerificationResult{Status: models.VerificationExpired, Authorization: auth}, nil
	}

	if now.After(auth.ValidUntil) {
		auth.Status = models.AuthorizationExpired
		if err := s.authorizations.Update(auth); err != nil {
			return nil, fmt.Errorf("failed to persist expiry: %w", err)
		}
		return &VerificationResult{Status: models.VerificationExpired, Authorization: auth}, nil
	}
	if now.Before(auth.ValidFrom) {
		return &VerificationResult{Status: models.VerificationNotYetValid, Authorization: auth}, nil
	}

	return &VerificationResult{Status: models.VerificationValid, Authorization: auth}, nil
}

// Revoke withdraws a credential permanently. Revocation is one-way and
// independent of the validity window; only an already revoked credential
// is refused.
func (s *authorizationService) Revoke(id int64, reason string, actor string) (*models.Authorization, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: revocation reason is required", ErrValidation)
	}

	auth, err := s.authorizations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if auth.Status == models.AuthorizationRevoked {
		return nil, fmt.Errorf("%w: %s is already revoked", ErrNotRevocable, auth.Code)
	}

	now := timeNow()
	auth.Status = models.AuthorizationRevoked
	auth.RevokedAt = &now
	auth.RevokedBy = actor
	auth.RevocationReason = reason

	if err := s.authorizations.Update(auth); err != nil {
		return nil, err
	}

	s.recordRequestEvent(auth.RequestID, actor, models.EventStatusChanged, "Authorization revoked",
		reason, models.Metadata{"authorization_code": auth.Code})
	s.notifier.Notify(NotifyAuthorizationRevoked, auth.RepresentativeName,
		map[string]any{"code": auth.Code, "reason": reason})

	return auth, nil
}

// Credential renders the QR credential for an authorization as a PNG. The
// QR payload is only the public verification URL; no applicant data is
// encoded in the image.
func (s *authorizationService) Credential(id int64, size int) ([]byte, error) {
	auth, err := s.authorizations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}

	url := fmt.Sprintf("%s/verify/%s", s.baseURL, auth.Token)
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render credential: %w", err)
	}
	return png, nil
}

// RecordAccess logs one gate passage against a scanned token. The outcome
// is denied when the credential does not verify or the officer's checklist
// is incomplete; the entry is recorded either way.
func (s *authorizationService) RecordAccess(token string, form *AccessForm) (*models.AccessEntry, error) {
	if form.Officer == "" {
		return nil, fmt.Errorf("%w: officer is required", ErrValidation)
	}
	if form.Direction != models.AccessEntryDirection && form.Direction != models.AccessExitDirection {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidation, form.Direction)
	}

	result, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	if result.Authorization == nil {
		return nil, repositories.ErrNotFound
	}

	entry := &models.AccessEntry{
		AuthorizationID:  result.Authorization.ID,
		Direction:        form.Direction,
		VehiclePlate:     form.VehiclePlate,
		DriverName:       form.DriverName,
		Officer:          form.Officer,
		DocumentVerified: form.DocumentVerified,
		VehicleVerified:  form.VehicleVerified,
		DriverVerified:   form.DriverVerified,
		Notes:            form.Notes,
		IPAddress:        form.IPAddress,
	}

	switch {
	case !result.Admissible():
		entry.Status = models.AccessDenied
		entry.DenialReason = fmt.Sprintf("credential %s", result.Status)
	case !entry.ChecklistPassed():
		entry.Status = models.AccessDenied
		entry.DenialReason = "verification checklist incomplete"
	default:
		entry.Status = models.AccessAdmitted
	}

	if err := s.access.CreateEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AccessLog lists the gate history of a credential
func (s *authorizationService) AccessLog(authorizationID int64) ([]models.AccessEntry, error) {
	if _, err := s.authorizations.GetByID(authorizationID); err != nil {
		return nil, err
	}
	return s.access.ListEntriesByAuthorization(authorizationID)
}

// ReportDiscrepancy opens a breach ticket against a recorded gate passage
func (s *authorizationService) ReportDiscrepancy(accessEntryID int64, kind models.DiscrepancyKind, description string, actor string) (*models.Discrepancy, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if _, err := s.access.GetEntry(accessEntryID); err != nil {
		return nil, err
	}

	code, err := s.codes.Allocate(models.CodeDiscrepancy, timeNow().Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate discrepancy code: %w", err)
	}

	disc := &models.Discrepancy{
		Code:          code,
		AccessEntryID: accessEntryID,
		Kind:          kind,
		Description:   description,
		ReportedBy:    actor,
		Status:        models.DiscrepancyReported,
	}
	if err := s.access.CreateDiscrepancy(disc); err != nil {
		return nil, err
	}

	s.notifier.Notify(NotifyDiscrepancyReported, "", map[string]any{"code": disc.Code, "kind": string(kind)})
	return disc, nil
}

// ResolveDiscrepancy closes a breach ticket with its resolution
func (s *authorizationService) ResolveDiscrepancy(id int64, resolution string, actor string) (*models.Discrepancy, error) {
	if resolution == "" {
		return nil, fmt.Errorf("%w: resolution is required", ErrValidation)
	}

	disc, err := s.access.GetDiscrepancy(id)
	if err != nil {
		return nil, err
	}
	if disc.Status == models.DiscrepancyResolved || disc.Status == models.DiscrepancyClosed {
		return nil, fmt.Errorf("%w: discrepancy %s is already %s", ErrInvalidTransition, disc.Code, disc.Status)
	}

	now := timeNow()
	disc.Status = models.DiscrepancyResolved
	disc.ResolvedBy = actor
	disc.Resolution = resolution
	disc.ResolvedAt = &now

	if err := s.access.UpdateDiscrepancy(disc); err != nil {
		return nil, err
	}
	return disc, nil
}

// OpenDiscrepancies lists unresolved breach tickets
func (s *authorizationService) OpenDiscrepancies() ([]models.Discrepancy, error) {
	return s.access.ListOpenDiscrepancies()
}

// Get retrieves an authorization by ID
func (s *authorizationService) Get(id int64) (*models.Authorization, error) {
	return s.authorizations.GetByID(id)
}

// GetByRequest retrieves the authorization issued for a request
func (s *authorizationService) GetByRequest(requestID int64) (*models.Authorization, error) {
	return s.authorizations.GetByRequestID(requestID)
}

// List retrieves authorizations matching the filter
func (s *authorizationService) List(filter repositories.AuthorizationFilter) ([]models.Authorization, error) {
	return s.authorizations.List(filter)
}

func (s *authorizationService) recordRequestEvent(requestID int64, actor string, kind models.EventKind, title, description string, metadata models.Metadata) {
	event := &models.RequestEvent{
		RequestID:          requestID,
		Actor:              actor,
		Kind:               kind,
		Title:              title,
		Description:        description,
		Metadata:           metadata,
		VisibleToApplicant: true,
	}
	if err := s.events.Append(event); err != nil {
		logEventFailure(requestID, kind, err)
	}
}
