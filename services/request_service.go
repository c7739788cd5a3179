package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

var (
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the request's current state
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRequestNotEditable is returned when applicant data is modified
	// after the request left its editable states
	ErrRequestNotEditable = errors.New("request is no longer editable")

	// ErrVesselHasActiveRequest is returned when a submission would violate
	// the one-active-request-per-vessel rule
	ErrVesselHasActiveRequest = errors.New("vessel already has an active request")

	// ErrValidation wraps form validation failures
	ErrValidation = errors.New("validation failed")
)

// timeNow is overridable in tests
var timeNow = func() time.Time {
	return time.Now().UTC()
}

// allowedTransitions is the request state machine. Terminal states have no
// outgoing edges.
var allowedTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.StatusDraft:      {models.StatusSubmitted},
	models.StatusSubmitted:  {models.StatusUnassigned, models.StatusPending, models.StatusRejected, models.StatusExpired, models.StatusEscalated},
	models.StatusUnassigned: {models.StatusPending, models.StatusExpired, models.StatusEscalated},
	models.StatusPending:    {models.StatusInReview, models.StatusUnassigned, models.StatusExpired, models.StatusEscalated},
	models.StatusInReview: {models.StatusDocumentsRequested, models.StatusApproved, models.StatusRejected,
		models.StatusPending, models.StatusExpired, models.StatusEscalated},
	models.StatusDocumentsRequested: {models.StatusInReview, models.StatusExpired, models.StatusEscalated},
	models.StatusEscalated: {models.StatusApproved, models.StatusRejected, models.StatusDocumentsRequested,
		models.StatusInReview, models.StatusExpired},
}

// CanTransition reports whether the state machine allows moving a request
// from one status to another
func CanTransition(from, to models.RequestStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApproveResult is the outcome of an approval. IssueWarning is set when the
// request was approved but the authorization could not be minted; the
// approval itself is never rolled back for an issuance failure.
type ApproveResult struct {
	Request       *models.AccessRequest `json:"request"`
	Authorization *models.Authorization `json:"authorization,omitempty"`
	IssueWarning  string                `json:"issue_warning,omitempty"`
}

// RequestService interface defines access request workflow operations
type RequestService interface {
	Create(form *models.RequestForm, actor string) (*models.AccessRequest, error)
	Update(id int64, form *models.RequestForm, actor string) (*models.AccessRequest, error)
	Submit(id int64, actor string) (*models.AccessRequest, error)
	Assign(id int64, evaluator string, actor string) (*models.AccessRequest, error)
	StartReview(id int64, actor string) (*models.AccessRequest, error)
	Approve(id int64, comments string, actor string) (*ApproveResult, error)
	Reject(id int64, reason string, actor string) (*models.AccessRequest, error)
	RequestDocuments(id int64, details string, actor string) (*models.AccessRequest, error)
	ResubmitDocuments(id int64, actor string) (*models.AccessRequest, error)
	ChangePriority(id int64, priority models.Priority, actor string) (*models.AccessRequest, error)
	Expire(id int64, actor string) (*models.AccessRequest, error)
	Delete(id int64, actor string) error
	AddComment(id int64, text string, internal bool, actor string) (*models.RequestEvent, error)
	AddDocument(id int64, doc *models.Document, actor string) error
	VerifyDocument(requestID, documentID int64, actor string) error
	Documents(requestID int64) ([]models.Document, error)
	Get(id int64) (*models.AccessRequest, error)
	GetByCode(code string) (*models.AccessRequest, error)
	List(filter repositories.RequestFilter) ([]models.AccessRequest, error)
	Timeline(id int64, includeInternal bool) ([]models.RequestEvent, error)
	StatusSummary() (map[models.RequestStatus]int, error)
}

type requestService struct {
	requests   repositories.RequestRepository
	events     repositories.EventRepository
	codes      repositories.CodeRepository
	issuer     AuthorizationService
	notifier   Notifier
	autoExpire bool
}

// NewRequestService creates a new request service. The issuer mints
// authorizations on approval; autoExpire enables lazy expiry of requests
// whose access window passed without a decision.
func NewRequestService(repos *repositories.Repositories, issuer AuthorizationService, notifier Notifier, autoExpire bool) RequestService {
	return &requestService{
		requests:   repos.Requests,
		events:     repos.Events,
		codes:      repos.Codes,
		issuer:     issuer,
		notifier:   notifier,
		autoExpire: autoExpire,
	}
}

// Create validates the form and stores a new draft request with a freshly
// allocated code
func (s *requestService) Create(form *models.RequestForm, actor string) (*models.AccessRequest, error) {
	if errs := form.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs.GetMessages(), "; "))
	}

	now := timeNow()
	code, err := s.codes.Allocate(models.CodeRequest, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate request code: %w", err)
	}

	priority := form.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	req := &models.AccessRequest{
		Code:          code,
		IMONumber:     form.IMONumber,
		ShippingLine:  form.ShippingLine,
		CompanyName:   form.CompanyName,
		CompanyRNC:    form.CompanyRNC,
		ApplicantName: form.ApplicantName,
		ApplicantID:   form.ApplicantID,
		Port:          form.Port,
		Place:         form.Place,
		Purpose:       form.Purpose,
		Description:   form.Description,
		EntryAt:       form.EntryAt,
		ExitAt:        form.ExitAt,
		Status:        models.StatusDraft,
		Priority:      priority,
		SLAHours:      RequestSLAHours(priority),
		Vehicles:      vehiclesFromForm(form.Vehicles),
	}

	if err := s.requests.Create(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventCreated, "Request created",
		fmt.Sprintf("Draft %s created for %s", req.Code, req.CompanyName), nil, false)

	return req, nil
}

// Update replaces applicant-supplied data while the request is still editable
func (s *requestService) Update(id int64, form *models.RequestForm, actor string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !req.Editable() {
		return nil, fmt.Errorf("%w: status %s", ErrRequestNotEditable, req.Status)
	}
	if errs := form.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs.GetMessages(), "; "))
	}

	req.IMONumber = form.IMONumber
	req.ShippingLine = form.ShippingLine
	req.CompanyName = form.CompanyName
	req.CompanyRNC = form.CompanyRNC
	req.ApplicantName = form.ApplicantName
	req.ApplicantID = form.ApplicantID
	req.Port = form.Port
	req.Place = form.Place
	req.Purpose = form.Purpose
	req.Description = form.Description
	req.EntryAt = form.EntryAt
	req.ExitAt = form.ExitAt

	if err := s.requests.Update(req); err != nil {
		return nil, err
	}
	if err := s.requests.ReplaceVehicles(req.ID, vehiclesFromForm(form.Vehicles)); err != nil {
		return nil, err
	}
	req.Vehicles, err = s.requests.GetVehicles(req.ID)
	if err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventUpdated, "Request updated", "", nil, false)
	return req, nil
}

// Submit moves a draft into the evaluation pipeline, starting the SLA clock.
// Submission is refused while the vessel has another active request.
func (s *requestService) Submit(id int64, actor string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, models.StatusSubmitted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusSubmitted)
	}

	if req.IMONumber != "" {
		blocking, err := s.requests.FindActiveByVessel(req.IMONumber, req.ID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		if blocking != nil {
			return nil, fmt.Errorf("%w: IMO %s is held by %s", ErrVesselHasActiveRequest, req.IMONumber, blocking.Code)
		}
	}

	now := timeNow()
	due := RequestDueAt(req.Priority, now)
	req.Status = models.StatusSubmitted
	req.SubmittedAt = &now
	req.SLAHours = RequestSLAHours(req.Priority)
	req.DueAt = &due

	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventSubmitted, "Request submitted",
		fmt.Sprintf("Evaluation due by %s", models.FormatDateTime(due)),
		models.Metadata{"due_at": due.Format(time.RFC3339), "sla_hours": req.SLAHours}, false)
	s.notifier.Notify(NotifyRequestSubmitted, req.ApplicantName, map[string]any{"code": req.Code})

	return req, nil
}

// Assign hands the request to an evaluator and moves it to pending
func (s *requestService) Assign(id int64, evaluator string, actor string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if evaluator == "" {
		return nil, fmt.Errorf("%w: evaluator is required", ErrValidation)
	}

	kind := models.EventAssigned
	title := "Request assigned"
	if req.AssignedTo != "" && req.AssignedTo != evaluator {
		kind = models.EventReassigned
		title = "Request reassigned"
	}

	if req.Status != models.StatusPending {
		if !CanTransition(req.Status, models.StatusPending) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusPending)
		}
		req.Status = models.StatusPending
	}
	previous := req.AssignedTo
	req.AssignedTo = evaluator

	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, kind, title,
		fmt.Sprintf("Assigned to %s", evaluator),
		models.Metadata{"evaluator": evaluator, "previous": previous}, true)
	s.notifier.Notify(NotifyRequestAssigned, evaluator, map[string]any{"code": req.Code})

	return req, nil
}

// StartReview marks the assigned evaluator as actively reviewing. Only
// pending requests qualify: escalated ones return to review solely through
// escalation resolution, resubmissions through ResubmitDocuments.
func (s *requestService) StartReview(id int64, actor string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusInReview)
	}

	req.Status = models.StatusInReview
	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventReviewStarted, "Review started", "", nil, true)
	return req, nil
}

// Approve closes the evaluation positively and mints the authorization.
// The approval is committed before issuance: if minting fails the request
// stays approved and the result carries a warning for manual follow-up.
func (s *requestService) Approve(id int64, comments string, actor string) (*ApproveResult, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, models.StatusApproved) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusApproved)
	}

	now := timeNow()
	req.Status = models.StatusApproved
	req.EvaluationComments = comments
	req.EvaluatedAt = &now

	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventApproved, "Request approved", comments, nil, false)
	s.notifier.Notify(NotifyRequestApproved, req.ApplicantName, map[string]any{"code": req.Code})

	result := &ApproveResult{Request: req}
	auth, err := s.issuer.Issue(req.ID, actor)
	if err != nil {
		result.IssueWarning = fmt.Sprintf("request approved but authorization not issued: %v", err)
		s.record(req.ID, actor, models.EventInternalNote, "Authorization issuance failed", result.IssueWarning, nil, true)
		return result, nil
	}
	result.Authorization = auth
	return result, nil
}

// Reject closes the evaluation negatively. A reason is mandatory.
func (s *requestService) Reject(id int64, reason string, actor string) (*models.AccessRequest, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, models.StatusRejected) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusRejected)
	}

	now := timeNow()
	req.Status = models.StatusRejected
	req.RejectionReason = reason
	req.EvaluatedAt = &now

	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventRejected, "Request rejected", reason, nil, false)
	s.notifier.Notify(NotifyRequestRejected, req.ApplicantName, map[string]any{"code": req.Code, "reason": reason})

	return req, nil
}

// RequestDocuments pauses the evaluation until the applicant completes
// the named documentation
func (s *requestService) RequestDocuments(id int64, details string, actor string) (*models.AccessRequest, error) {
	req, err := s.transition(id, models.StatusDocumentsRequested)
	if err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventDocumentsRequested, "Documents requested", details, nil, false)
	s.notifier.Notify(NotifyDocumentsRequested, req.ApplicantName, map[string]any{"code": req.Code, "details": details})
	return req, nil
}

// ResubmitDocuments returns a documents_requested request to review after
// the applicant responded
func (s *requestService) ResubmitDocuments(id int64, actor string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusDocumentsRequested {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusInReview)
	}

	req.Status = models.StatusInReview
	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventDocumentsCompleted, "Documents completed",
		"Review resumed after document resubmission", nil, false)
	return req, nil
}

// ChangePriority re-tiers an open request and recomputes its deadline from
// the original submission time
func (s *requestService) ChangePriority(id int64, priority models.Priority, actor string) (*models.AccessRequest, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request %s is closed", ErrInvalidTransition, req.Code)
	}
	if req.Priority == priority {
		return req, nil
	}

	previous := req.Priority
	req.Priority = priority
	req.SLAHours = RequestSLAHours(priority)
	if req.SubmittedAt != nil {
		due := RequestDueAt(priority, *req.SubmittedAt)
		req.DueAt = &due
	}

	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventPriorityChanged, "Priority changed",
		fmt.Sprintf("Priority %s -> %s", previous, priority),
		models.Metadata{"from": string(previous), "to": string(priority)}, true)
	return req, nil
}

// Expire closes an open request whose access window lapsed without a decision
func (s *requestService) Expire(id int64, actor string) (*models.AccessRequest, error) {
	req, err := s.transition(id, models.StatusExpired)
	if err != nil {
		return nil, err
	}

	s.record(req.ID, actor, models.EventExpired, "Request expired",
		"Access window passed without a decision", nil, false)
	s.notifier.Notify(NotifyRequestExpired, req.ApplicantName, map[string]any{"code": req.Code})
	return req, nil
}

// Delete removes a request. Only drafts may be deleted; everything past
// submission is part of the audit record.
func (s *requestService) Delete(id int64, actor string) error {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return err
	}
	if req.Status != models.StatusDraft {
		return fmt.Errorf("%w: only drafts can be deleted, %s is %s", ErrInvalidTransition, req.Code, req.Status)
	}
	return s.requests.Delete(id)
}

// AddComment appends a comment or internal note to the timeline
func (s *requestService) AddComment(id int64, text string, internal bool, actor string) (*models.RequestEvent, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", ErrValidation)
	}
	if _, err := s.requests.GetByID(id); err != nil {
		return nil, err
	}

	kind := models.EventComment
	title := "Comment"
	if internal {
		kind = models.EventInternalNote
		title = "Internal note"
	}

	event := &models.RequestEvent{
		RequestID:          id,
		Actor:              actor,
		Kind:               kind,
		Title:              title,
		Description:        text,
		VisibleToApplicant: !internal,
		Internal:           internal,
	}
	if err := s.events.Append(event); err != nil {
		return nil, err
	}
	return event, nil
}

// AddDocument registers an uploaded document reference on an editable request
func (s *requestService) AddDocument(id int64, doc *models.Document, actor string) error {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return err
	}
	if !req.Editable() {
		return fmt.Errorf("%w: status %s", ErrRequestNotEditable, req.Status)
	}

	doc.RequestID = id
	if err := s.requests.AddDocument(doc); err != nil {
		return err
	}

	s.record(id, actor, models.EventDocumentUploaded, "Document uploaded",
		doc.OriginalName, models.Metadata{"handle": doc.Handle, "kind": doc.Kind}, false)
	return nil
}

// VerifyDocument marks a document as checked by the evaluator
func (s *requestService) VerifyDocument(requestID, documentID int64, actor string) error {
	if _, err := s.requests.GetByID(requestID); err != nil {
		return err
	}
	if err := s.requests.SetDocumentVerified(documentID, true); err != nil {
		return err
	}

	s.record(requestID, actor, models.EventDocumentVerified, "Document verified",
		"", models.Metadata{"document_id": documentID}, true)
	return nil
}

// Documents lists the document references of a request
func (s *requestService) Documents(requestID int64) ([]models.Document, error) {
	if _, err := s.requests.GetByID(requestID); err != nil {
		return nil, err
	}
	return s.requests.GetDocuments(requestID)
}

// Get retrieves a request by ID. With auto-expiry enabled, an open request
// whose exit time has passed is expired on read.
func (s *requestService) Get(id int64) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.afterRead(req)
}

// GetByCode retrieves a request by its human code
func (s *requestService) GetByCode(code string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByCode(code)
	if err != nil {
		return nil, err
	}
	return s.afterRead(req)
}

func (s *requestService) afterRead(req *models.AccessRequest) (*models.AccessRequest, error) {
	now := timeNow()
	if s.autoExpire && req.Status.Open() && now.After(req.ExitAt) {
		return s.Expire(req.ID, "")
	}
	req.Overdue = req.IsOverdue(now)
	return req, nil
}

// List retrieves requests matching the filter with the overdue flag computed
func (s *requestService) List(filter repositories.RequestFilter) ([]models.AccessRequest, error) {
	reqs, err := s.requests.List(filter)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	for i := range reqs {
		reqs[i].Overdue = reqs[i].IsOverdue(now)
	}
	return reqs, nil
}

// Timeline retrieves a request's event history
func (s *requestService) Timeline(id int64, includeInternal bool) ([]models.RequestEvent, error) {
	if _, err := s.requests.GetByID(id); err != nil {
		return nil, err
	}
	return s.events.ListByRequest(id, includeInternal)
}

// StatusSummary counts requests per status
func (s *requestService) StatusSummary() (map[models.RequestStatus]int, error) {
	return s.requests.CountByStatus()
}

// transition performs a guarded status change without extra field updates
func (s *requestService) transition(id int64, to models.RequestStatus) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, to)
	}
	req.Status = to
	if err := s.requests.Update(req); err != nil {
		return nil, err
	}
	return req, nil
}

// record appends a timeline event, logging instead of failing the caller
// when the append itself fails
func (s *requestService) record(requestID int64, actor string, kind models.EventKind, title, description string, metadata models.Metadata, internal bool) {
	event := &models.RequestEvent{
		RequestID:          requestID,
		Actor:              actor,
		Kind:               kind,
		Title:              title,
		Description:        description,
		Metadata:           metadata,
		VisibleToApplicant: !internal,
		Internal:           internal,
	}
	if err := s.events.Append(event); err != nil {
		logEventFailure(requestID, kind, err)
	}
}

func vehiclesFromForm(forms []models.VehicleForm) []models.Vehicle {
	vehicles := make([]models.Vehicle, 0, len(forms))
	for _, f := range forms {
		vehicles = append(vehicles, models.Vehicle{
			Plate:         strings.ToUpper(f.Plate),
			Kind:          f.Kind,
			DriverName:    f.DriverName,
			DriverLicense: f.DriverLicense,
		})
	}
	return vehicles
}
