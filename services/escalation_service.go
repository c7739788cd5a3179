package services

import (
	"errors"
	"fmt"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

var (
	// ErrEscalationClosed is returned when a decided escalation is resolved
	// again
	ErrEscalationClosed = errors.New("escalation is already resolved")

	// ErrRequestNotEscalatable is returned when a closed or draft request
	// is escalated
	ErrRequestNotEscalatable = errors.New("request cannot be escalated")
)

// EscalationForm carries the evaluator's reason for raising an escalation
type EscalationForm struct {
	Kind        models.EscalationKind     `json:"kind"`
	Priority    models.EscalationPriority `json:"priority"`
	Motive      string                    `json:"motive"`
	Description string                    `json:"description"`
	AssignedTo  string                    `json:"assigned_to"`
}

// ResolveForm carries the supervisor's decision on an escalation
type ResolveForm struct {
	Decision   models.EscalationDecision `json:"decision"`
	Resolution string                    `json:"resolution"`
	ReassignTo string                    `json:"reassign_to"`
}

// EscalationResolution is the combined outcome of resolving an escalation:
// the closed ticket plus whatever the decision did to the owning request
type EscalationResolution struct {
	Escalation    *models.Escalation    `json:"escalation"`
	Request       *models.AccessRequest `json:"request,omitempty"`
	Authorization *models.Authorization `json:"authorization,omitempty"`
	IssueWarning  string                `json:"issue_warning,omitempty"`
}

// EscalationService interface defines escalation workflow operations
type EscalationService interface {
	Raise(requestID int64, form *EscalationForm, actor string) (*models.Escalation, error)
	StartReview(id int64, actor string) (*models.Escalation, error)
	Resolve(id int64, form *ResolveForm, actor string) (*EscalationResolution, error)
	Get(id int64) (*models.Escalation, error)
	ListOpen() ([]models.Escalation, error)
	ListByRequest(requestID int64) ([]models.Escalation, error)
}

type escalationService struct {
	escalations repositories.EscalationRepository
	requests    repositories.RequestRepository
	events      repositories.EventRepository
	codes       repositories.CodeRepository
	requestSvc  RequestService
	notifier    Notifier
}

// NewEscalationService creates a new escalation service. Resolution
// decisions are written back to the owning request through the request
// service so the usual transition guards and events apply.
func NewEscalationService(repos *repositories.Repositories, requestSvc RequestService, notifier Notifier) EscalationService {
	return &escalationService{
		escalations: repos.Escalations,
		requests:    repos.Requests,
		events:      repos.Events,
		codes:       repos.Codes,
		requestSvc:  requestSvc,
		notifier:    notifier,
	}
}

// Raise opens an escalation ticket and moves the owning request into the
// escalated state, freezing its normal evaluation path
func (s *escalationService) Raise(requestID int64, form *EscalationForm, actor string) (*models.Escalation, error) {
	if form.Motive == "" {
		return nil, fmt.Errorf("%w: motive is required", ErrValidation)
	}
	if !form.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown escalation priority %q", ErrValidation, form.Priority)
	}

	req, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, models.StatusEscalated) {
		return nil, fmt.Errorf("%w: %s is %s", ErrRequestNotEscalatable, req.Code, req.Status)
	}

	now := timeNow()
	code, err := s.codes.Allocate(models.CodeEscalation, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate escalation code: %w", err)
	}

	due := EscalationDueAt(form.Priority, now)
	esc := &models.Escalation{
		Code:        code,
		RequestID:   requestID,
		Kind:        form.Kind,
		Priority:    form.Priority,
		RaisedBy:    actor,
		AssignedTo:  form.AssignedTo,
		Motive:      form.Motive,
		Description: form.Description,
		Status:      models.EscalationPending,
		DueAt:       &due,
	}
	if err := s.escalations.Create(esc); err != nil {
		return nil, err
	}

	req.Status = models.StatusEscalated
	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	s.record(requestID, actor, models.EventEscalated, "Request escalated",
		form.Motive, models.Metadata{
			"escalation_code": esc.Code,
			"kind":            string(esc.Kind),
			"priority":        string(esc.Priority),
		})
	s.notifier.Notify(NotifyRequestEscalated, esc.AssignedTo,
		map[string]any{"code": esc.Code, "request": req.Code, "due_at": due})

	return esc, nil
}

// StartReview marks an escalation as taken up by a supervisor
func (s *escalationService) StartReview(id int64, actor string) (*models.Escalation, error) {
	esc, err := s.escalations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if esc.Status != models.EscalationPending {
		return nil, fmt.Errorf("%w: escalation %s is %s", ErrInvalidTransition, esc.Code, esc.Status)
	}

	esc.Status = models.EscalationInReview
	if esc.AssignedTo == "" {
		esc.AssignedTo = actor
	}
	if err := s.escalations.Update(esc); err != nil {
		return nil, err
	}
	return esc, nil
}

// Resolve closes an escalation and writes the decision back onto the
// owning request: approvals and rejections finish the request outright,
// document requests and reassignments return it to the evaluation path.
func (s *escalationService) Resolve(id int64, form *ResolveForm, actor string) (*EscalationResolution, error) {
	if !form.Decision.Valid() {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, form.Decision)
	}
	if form.Resolution == "" {
		return nil, fmt.Errorf("%w: resolution is required", ErrValidation)
	}
	if form.Decision == models.DecisionReassign && form.ReassignTo == "" {
		return nil, fmt.Errorf("%w: reassign target is required", ErrValidation)
	}

	esc, err := s.escalations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !esc.OpenForResolution() {
		return nil, fmt.Errorf("%w: %s is %s", ErrEscalationClosed, esc.Code, esc.Status)
	}

	// The decision is applied to the request before the escalation is
	// closed: if the write-back fails the escalation stays open and the
	// supervisor can retry.
	result := &EscalationResolution{}

	switch form.Decision {
	case models.DecisionApprove:
		approve, err := s.requestSvc.Approve(esc.RequestID, form.Resolution, actor)
		if err != nil {
			return nil, err
		}
		result.Request = approve.Request
		result.Authorization = approve.Authorization
		result.IssueWarning = approve.IssueWarning

	case models.DecisionReject:
		req, err := s.requestSvc.Reject(esc.RequestID, form.Resolution, actor)
		if err != nil {
			return nil, err
		}
		result.Request = req

	case models.DecisionRequestDocuments:
		req, err := s.requestSvc.RequestDocuments(esc.RequestID, form.Resolution, actor)
		if err != nil {
			return nil, err
		}
		result.Request = req

	case models.DecisionReassign:
		req, err := s.returnToReview(esc.RequestID, form.ReassignTo, actor)
		if err != nil {
			return nil, err
		}
		result.Request = req

	case models.DecisionOther:
		req, err := s.returnToReview(esc.RequestID, "", actor)
		if err != nil {
			return nil, err
		}
		result.Request = req
	}

	now := timeNow()
	esc.Status = models.EscalationResolved
	esc.ResolvedBy = actor
	esc.Decision = form.Decision
	esc.Resolution = form.Resolution
	esc.ResolvedAt = &now

	if err := s.escalations.Update(esc); err != nil {
		return nil, fmt.Errorf("decision applied but escalation not closed: %w", err)
	}

	result.Escalation = esc
	return result, nil
}

// returnToReview moves an escalated request back to review, optionally
// under a new evaluator. This is the only path out of the escalated state
// that resumes evaluation; the public review action refuses it.
func (s *escalationService) returnToReview(requestID int64, evaluator string, actor string) (*models.AccessRequest, error) {
	req, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, models.StatusInReview) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.StatusInReview)
	}

	previous := req.AssignedTo
	req.Status = models.StatusInReview
	if evaluator != "" {
		req.AssignedTo = evaluator
	}
	if err := s.requests.Update(req); err != nil {
		return nil, err
	}

	if evaluator != "" && evaluator != previous {
		s.record(requestID, actor, models.EventReassigned, "Request reassigned",
			fmt.Sprintf("Reassigned to %s after escalation", evaluator),
			models.Metadata{"evaluator": evaluator, "previous": previous})
	} else {
		s.record(requestID, actor, models.EventReviewStarted, "Review resumed",
			"Returned to review after escalation", nil)
	}
	return req, nil
}

// Get retrieves an escalation with the overdue flag computed
func (s *escalationService) Get(id int64) (*models.Escalation, error) {
	return s.escalations.GetByID(id)
}

// ListOpen retrieves the supervisor queue of unresolved escalations
func (s *escalationService) ListOpen() ([]models.Escalation, error) {
	return s.escalations.ListOpen()
}

// ListByRequest retrieves the escalation history of a request
func (s *escalationService) ListByRequest(requestID int64) ([]models.Escalation, error) {
	return s.escalations.ListByRequest(requestID)
}

func (s *escalationService) record(requestID int64, actor string, kind models.EventKind, title, description string, metadata models.Metadata) {
	event := &models.RequestEvent{
		RequestID:          requestID,
		Actor:              actor,
		Kind:               kind,
		Title:              title,
		Description:        description,
		Metadata:           metadata,
		VisibleToApplicant: false,
		Internal:           true,
	}
	if err := s.events.Append(event); err != nil {
		logEventFailure(requestID, kind, err)
	}
}
