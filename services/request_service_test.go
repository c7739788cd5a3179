package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

func TestRequestServiceCreate(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)

	assert.Equal(t, "SOL-2026-001", req.Code)
	assert.Equal(t, models.StatusDraft, req.Status)
	assert.Nil(t, req.DueAt)
	assert.Nil(t, req.SubmittedAt)
	require.Len(t, req.Vehicles, 1)
	assert.Equal(t, "ABC-1234", req.Vehicles[0].Plate)

	// Codes keep incrementing within the year
	second, err := srvs.Requests.Create(validForm("7654321"), "pedro.castillo")
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-002", second.Code)

	// The creation event is on the timeline
	events, err := srvs.Requests.Timeline(req.ID, true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCreated, events[0].Kind)
}

func TestRequestServiceCreateValidation(t *testing.T) {
	srvs, _ := newTestServices(t)

	form := validForm("9434761")
	form.CompanyName = ""
	_, err := srvs.Requests.Create(form, "pedro.castillo")
	assert.ErrorIs(t, err, ErrValidation)

	form = validForm("123")
	_, err = srvs.Requests.Create(form, "pedro.castillo")
	assert.ErrorIs(t, err, ErrValidation)

	form = validForm("9434761")
	form.ExitAt = form.EntryAt.Add(-time.Hour)
	_, err = srvs.Requests.Create(form, "pedro.castillo")
	assert.ErrorIs(t, err, ErrValidation)

	form = validForm("9434761")
	form.Vehicles[0].Plate = "not a plate"
	_, err = srvs.Requests.Create(form, "pedro.castillo")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRequestServiceSubmitStartsSLAClock(t *testing.T) {
	srvs, _ := newTestServices(t)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fixedNow(t, now)

	form := validForm("9434761")
	form.Priority = models.PriorityVIP
	req, err := srvs.Requests.Create(form, "pedro.castillo")
	require.NoError(t, err)

	submitted, err := srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.NotNil(t, submitted.DueAt)
	assert.Equal(t, 1, submitted.SLAHours)
	assert.Equal(t, now.Add(time.Hour), *submitted.DueAt)
}

func TestRequestServiceVesselUniqueness(t *testing.T) {
	srvs, _ := newTestServices(t)

	first, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(first.ID, "pedro.castillo")
	require.NoError(t, err)

	// A second submission for the same vessel is refused
	second, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(second.ID, "pedro.castillo")
	assert.ErrorIs(t, err, ErrVesselHasActiveRequest)

	// A different vessel is unaffected
	other, err := srvs.Requests.Create(validForm("7654321"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(other.ID, "pedro.castillo")
	assert.NoError(t, err)

	// Once the blocking request is rejected, the vessel frees up
	_, err = srvs.Requests.Assign(first.ID, "maria.perez", "coordinator")
	require.NoError(t, err)
	_, err = srvs.Requests.StartReview(first.ID, "maria.perez")
	require.NoError(t, err)
	_, err = srvs.Requests.Reject(first.ID, "Incomplete documentation", "maria.perez")
	require.NoError(t, err)

	_, err = srvs.Requests.Submit(second.ID, "pedro.castillo")
	assert.NoError(t, err)
}

func TestRequestServiceApproveIssuesAuthorization(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")

	assert.Equal(t, models.StatusApproved, result.Request.Status)
	assert.NotNil(t, result.Request.EvaluatedAt)
	assert.Empty(t, result.IssueWarning)

	auth := result.Authorization
	require.NotNil(t, auth)
	assert.Equal(t, "AUT-2026-001", auth.Code)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, models.AuthorizationActive, auth.Status)

	// The credential snapshots the request data
	assert.Equal(t, result.Request.CompanyName, auth.CompanyName)
	assert.Equal(t, result.Request.ApplicantName, auth.RepresentativeName)
	assert.Equal(t, result.Request.EntryAt, auth.ValidFrom)
	assert.Equal(t, result.Request.ExitAt, auth.ValidUntil)
	require.Len(t, auth.Vehicles, 1)
	assert.Equal(t, "ABC-1234", auth.Vehicles[0].Plate)

	// Issuance is visible on the timeline
	events, err := srvs.Requests.Timeline(result.Request.ID, true)
	require.NoError(t, err)
	var kinds []models.EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, models.EventApproved)
	assert.Contains(t, kinds, models.EventAuthorizationIssued)
}

func TestRequestServiceTerminalStatesAreImmutable(t *testing.T) {
	srvs, _ := newTestServices(t)

	result := approvedRequest(t, srvs, "9434761")
	id := result.Request.ID

	_, err := srvs.Requests.Reject(id, "too late", "maria.perez")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = srvs.Requests.Submit(id, "pedro.castillo")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = srvs.Requests.Expire(id, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = srvs.Requests.Update(id, validForm("9434761"), "pedro.castillo")
	assert.ErrorIs(t, err, ErrRequestNotEditable)

	_, err = srvs.Requests.ChangePriority(id, models.PriorityVIP, "maria.perez")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestServiceRejectRequiresReason(t *testing.T) {
	srvs, _ := newTestServices(t)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Assign(req.ID, "maria.perez", "coordinator")
	require.NoError(t, err)
	_, err = srvs.Requests.StartReview(req.ID, "maria.perez")
	require.NoError(t, err)

	_, err = srvs.Requests.Reject(req.ID, "", "maria.perez")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRequestServiceDocumentCycle(t *testing.T) {
	srvs, _ := newTestServices(t)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Assign(req.ID, "maria.perez", "coordinator")
	require.NoError(t, err)
	_, err = srvs.Requests.StartReview(req.ID, "maria.perez")
	require.NoError(t, err)

	paused, err := srvs.Requests.RequestDocuments(req.ID, "Need updated crew list", "maria.perez")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDocumentsRequested, paused.Status)

	// The applicant may upload while documents are requested
	doc := &models.Document{Handle: "doc-store/abc", Kind: "crew_list", OriginalName: "crew.pdf", Size: 1024}
	require.NoError(t, srvs.Requests.AddDocument(req.ID, doc, "pedro.castillo"))

	resumed, err := srvs.Requests.ResubmitDocuments(req.ID, "pedro.castillo")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, resumed.Status)

	require.NoError(t, srvs.Requests.VerifyDocument(req.ID, doc.ID, "maria.perez"))
	docs, err := srvs.Requests.Documents(req.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Verified)
}

func TestRequestServiceRejectBeforeAssignment(t *testing.T) {
	srvs, _ := newTestServices(t)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)

	// Evaluators may reject a freshly submitted request without taking it
	// into review first
	rejected, err := srvs.Requests.Reject(req.ID, "Vessel not expected at this port", "maria.perez")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
}

func TestRequestServiceRejectWhileDocumentsPending(t *testing.T) {
	srvs, _ := newTestServices(t)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Assign(req.ID, "maria.perez", "coordinator")
	require.NoError(t, err)
	_, err = srvs.Requests.StartReview(req.ID, "maria.perez")
	require.NoError(t, err)
	_, err = srvs.Requests.RequestDocuments(req.ID, "Need updated crew list", "maria.perez")
	require.NoError(t, err)

	// A parked request cannot be rejected until evaluation resumes
	_, err = srvs.Requests.Reject(req.ID, "Documentation never arrived", "maria.perez")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = srvs.Requests.ResubmitDocuments(req.ID, "pedro.castillo")
	require.NoError(t, err)
	rejected, err := srvs.Requests.Reject(req.ID, "Documentation never arrived", "maria.perez")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
}

func TestRequestServiceChangePriorityRecomputesDeadline(t *testing.T) {
	srvs, _ := newTestServices(t)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fixedNow(t, now)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	submitted, err := srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), *submitted.DueAt)

	// Upgrading the priority re-anchors the deadline to the original
	// submission time
	upgraded, err := srvs.Requests.ChangePriority(req.ID, models.PriorityCritical, "coordinator")
	require.NoError(t, err)
	assert.Equal(t, 2, upgraded.SLAHours)
	assert.Equal(t, now.Add(2*time.Hour), *upgraded.DueAt)
}

func TestRequestServiceOverdueComputedOnRead(t *testing.T) {
	srvs, _ := newTestServices(t)
	submitTime := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fixedNow(t, submitTime)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(req.ID, "pedro.castillo")
	require.NoError(t, err)

	fresh, err := srvs.Requests.Get(req.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Overdue)

	// 25 hours later the normal-priority deadline has passed
	fixedNow(t, submitTime.Add(25*time.Hour))
	late, err := srvs.Requests.Get(req.ID)
	require.NoError(t, err)
	assert.True(t, late.Overdue)
	// Overdue is a read-time flag, the status does not change
	assert.Equal(t, models.StatusSubmitted, late.Status)
}

func TestRequestServiceDeleteOnlyDrafts(t *testing.T) {
	srvs, _ := newTestServices(t)

	draft, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)
	require.NoError(t, srvs.Requests.Delete(draft.ID, "pedro.castillo"))
	_, err = srvs.Requests.Get(draft.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	submitted, err := srvs.Requests.Create(validForm("7654321"), "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.Submit(submitted.ID, "pedro.castillo")
	require.NoError(t, err)
	err = srvs.Requests.Delete(submitted.ID, "pedro.castillo")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestServiceTimelineInternalFilter(t *testing.T) {
	srvs, _ := newTestServices(t)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)

	_, err = srvs.Requests.AddComment(req.ID, "Vessel arriving ahead of schedule", false, "pedro.castillo")
	require.NoError(t, err)
	_, err = srvs.Requests.AddComment(req.ID, "Check sanctions list before approval", true, "maria.perez")
	require.NoError(t, err)

	visible, err := srvs.Requests.Timeline(req.ID, false)
	require.NoError(t, err)
	for _, e := range visible {
		assert.False(t, e.Internal)
	}
	assert.Len(t, visible, 2) // created + public comment

	all, err := srvs.Requests.Timeline(req.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
