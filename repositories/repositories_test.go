package repositories

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naviport/portaccess/database"
	"github.com/naviport/portaccess/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	// Initialize test database using the actual migration system
	if err := database.InitializeDatabase(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		database.CloseDB()
	})

	return database.GetDB()
}

func testRequest(code string) *models.AccessRequest {
	return &models.AccessRequest{
		Code:          code,
		IMONumber:     "9434761",
		ShippingLine:  "Maritima del Este",
		CompanyName:   "Agencia Naviera Sur",
		CompanyRNC:    "131-55555-1",
		ApplicantName: "Pedro Castillo",
		ApplicantID:   "001-1234567-8",
		Port:          "Puerto Caucedo",
		Purpose:       "Crew change and provisioning",
		EntryAt:       time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		ExitAt:        time.Date(2026, 9, 3, 18, 0, 0, 0, time.UTC),
		Status:        models.StatusDraft,
		Priority:      models.PriorityNormal,
		SLAHours:      24,
	}
}

func TestCodeRepositoryAllocate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCodeRepository(db)

	code, err := repo.Allocate(models.CodeRequest, 2026)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-001", code)

	code, err = repo.Allocate(models.CodeRequest, 2026)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-002", code)

	// Sequences are independent per year and per kind
	code, err = repo.Allocate(models.CodeRequest, 2027)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2027-001", code)

	code, err = repo.Allocate(models.CodeAuthorization, 2026)
	require.NoError(t, err)
	assert.Equal(t, "AUT-2026-001", code)

	code, err = repo.Allocate(models.CodeEscalation, 2026)
	require.NoError(t, err)
	assert.Equal(t, "ESC-2026-001", code)

	// Extensions use a four-digit sequence
	code, err = repo.Allocate(models.CodeExtension, 2026)
	require.NoError(t, err)
	assert.Equal(t, "EXT-2026-0001", code)

	code, err = repo.Allocate(models.CodeDiscrepancy, 2026)
	require.NoError(t, err)
	assert.Equal(t, "DISC-2026-001", code)
}

func TestCodeRepositoryAllocateSkipsTakenCodes(t *testing.T) {
	db := setupTestDB(t)
	codes := NewCodeRepository(db)
	requests := NewRequestRepository(db)

	// A request inserted out of band occupies SOL-2026-001
	req := testRequest("SOL-2026-001")
	require.NoError(t, requests.Create(req))

	code, err := codes.Allocate(models.CodeRequest, 2026)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-002", code)
}

func TestCodeRepositoryAllocateConcurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCodeRepository(db)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan string, n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := repo.Allocate(models.CodeRequest, 2026)
			if err != nil {
				errs <- err
				return
			}
			results <- code
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent allocation failed: %v", err)
	}

	seen := make(map[string]bool)
	for code := range results {
		assert.False(t, seen[code], "duplicate code allocated: %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, n)
}

func TestRequestRepositoryCRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)

	req := testRequest("SOL-2026-001")
	req.Vehicles = []models.Vehicle{
		{Plate: "ABC-1234", Kind: "truck", DriverName: "Luis Gomez"},
	}
	require.NoError(t, repo.Create(req))
	assert.NotZero(t, req.ID)
	assert.NotZero(t, req.Vehicles[0].ID)

	retrieved, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-001", retrieved.Code)
	assert.Equal(t, models.StatusDraft, retrieved.Status)
	require.Len(t, retrieved.Vehicles, 1)
	assert.Equal(t, "ABC-1234", retrieved.Vehicles[0].Plate)

	byCode, err := repo.GetByCode("SOL-2026-001")
	require.NoError(t, err)
	assert.Equal(t, req.ID, byCode.ID)

	retrieved.Status = models.StatusSubmitted
	now := time.Now().UTC()
	retrieved.SubmittedAt = &now
	require.NoError(t, repo.Update(retrieved))

	updated, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, updated.Status)
	require.NotNil(t, updated.SubmittedAt)

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusSubmitted])

	_, err = repo.GetByID(9999)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(req.ID))
	_, err = repo.GetByID(req.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestRepositoryList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)

	for i := 1; i <= 3; i++ {
		req := testRequest(fmt.Sprintf("SOL-2026-%03d", i))
		req.IMONumber = fmt.Sprintf("900000%d", i)
		if i == 3 {
			req.Status = models.StatusInReview
			req.AssignedTo = "maria.perez"
		}
		require.NoError(t, repo.Create(req))
	}

	all, err := repo.List(RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inReview, err := repo.List(RequestFilter{Status: models.StatusInReview})
	require.NoError(t, err)
	require.Len(t, inReview, 1)
	assert.Equal(t, "maria.perez", inReview[0].AssignedTo)

	assigned, err := repo.List(RequestFilter{AssignedTo: "maria.perez"})
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	limited, err := repo.List(RequestFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRequestRepositoryFindActiveByVessel(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)

	active := testRequest("SOL-2026-001")
	active.Status = models.StatusSubmitted
	require.NoError(t, repo.Create(active))

	closed := testRequest("SOL-2026-002")
	closed.IMONumber = "7654321"
	closed.Status = models.StatusRejected
	require.NoError(t, repo.Create(closed))

	// Same vessel, different request: blocked by the submitted one
	found, err := repo.FindActiveByVessel("9434761", 0)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-001", found.Code)

	// The holding request itself is excluded
	_, err = repo.FindActiveByVessel("9434761", active.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Rejected requests do not block
	_, err = repo.FindActiveByVessel("7654321", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	// Approved requests keep blocking
	approved := testRequest("SOL-2026-003")
	approved.IMONumber = "1111111"
	approved.Status = models.StatusApproved
	require.NoError(t, repo.Create(approved))

	found, err = repo.FindActiveByVessel("1111111", 0)
	require.NoError(t, err)
	assert.Equal(t, "SOL-2026-003", found.Code)
}

func TestRequestRepositoryVehiclesAndDocuments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)

	req := testRequest("SOL-2026-001")
	require.NoError(t, repo.Create(req))

	require.NoError(t, repo.ReplaceVehicles(req.ID, []models.Vehicle{
		{Plate: "AAA-1111", DriverName: "Driver One"},
		{Plate: "BBB-2222", DriverName: "Driver Two"},
	}))
	vehicles, err := repo.GetVehicles(req.ID)
	require.NoError(t, err)
	assert.Len(t, vehicles, 2)

	require.NoError(t, repo.ReplaceVehicles(req.ID, []models.Vehicle{
		{Plate: "CCC-3333", DriverName: "Driver Three"},
	}))
	vehicles, err = repo.GetVehicles(req.ID)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "CCC-3333", vehicles[0].Plate)

	doc := &models.Document{
		RequestID:    req.ID,
		Handle:       "doc-store/abc123",
		Kind:         "crew_list",
		OriginalName: "crew.pdf",
		Size:         2048,
	}
	require.NoError(t, repo.AddDocument(doc))
	assert.NotZero(t, doc.ID)

	require.NoError(t, repo.SetDocumentVerified(doc.ID, true))

	docs, err := repo.GetDocuments(req.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Verified)
}

func TestEventRepositoryAppendOnly(t *testing.T) {
	db := setupTestDB(t)
	requests := NewRequestRepository(db)
	events := NewEventRepository(db)

	req := testRequest("SOL-2026-001")
	require.NoError(t, requests.Create(req))

	first := &models.RequestEvent{
		RequestID:          req.ID,
		Actor:              "pedro.castillo",
		Kind:               models.EventCreated,
		Title:              "Request created",
		VisibleToApplicant: true,
	}
	require.NoError(t, events.Append(first))
	assert.NotZero(t, first.ID)

	second := &models.RequestEvent{
		RequestID: req.ID,
		Kind:      models.EventInternalNote,
		Title:     "Internal note",
		Internal:  true,
		Metadata:  models.Metadata{"check": "sanctions list"},
	}
	require.NoError(t, events.Append(second))

	visible, err := events.ListByRequest(req.ID, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, models.EventCreated, visible[0].Kind)
	// System events carry an empty actor
	assert.Equal(t, "pedro.castillo", visible[0].Actor)

	all, err := events.ListByRequest(req.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sanctions list", all[1].Metadata["check"])
	assert.Equal(t, "system", all[1].ActorName())
}

func TestEscalationRepository(t *testing.T) {
	db := setupTestDB(t)
	requests := NewRequestRepository(db)
	escalations := NewEscalationRepository(db)

	req := testRequest("SOL-2026-001")
	require.NoError(t, requests.Create(req))

	due := time.Now().UTC().Add(4 * time.Hour)
	esc := &models.Escalation{
		Code:      "ESC-2026-001",
		RequestID: req.ID,
		Kind:      models.EscalationVIPCase,
		Priority:  models.EscalationHigh,
		RaisedBy:  "maria.perez",
		Motive:    "VIP delegation on board",
		Status:    models.EscalationPending,
		DueAt:     &due,
	}
	require.NoError(t, escalations.Create(esc))
	assert.NotZero(t, esc.ID)

	open, err := escalations.ListOpen()
	require.NoError(t, err)
	require.Len(t, open, 1)

	resolvedAt := time.Now().UTC()
	esc.Status = models.EscalationResolved
	esc.ResolvedBy = "supervisor.diaz"
	esc.Decision = models.DecisionApprove
	esc.Resolution = "Cleared by harbormaster"
	esc.ResolvedAt = &resolvedAt
	require.NoError(t, escalations.Update(esc))

	open, err = escalations.ListOpen()
	require.NoError(t, err)
	assert.Empty(t, open)

	byRequest, err := escalations.ListByRequest(req.ID)
	require.NoError(t, err)
	require.Len(t, byRequest, 1)
	assert.Equal(t, models.DecisionApprove, byRequest[0].Decision)
}

func TestAuthorizationRepository(t *testing.T) {
	db := setupTestDB(t)
	requests := NewRequestRepository(db)
	authorizations := NewAuthorizationRepository(db)

	req := testRequest("SOL-2026-001")
	req.Status = models.StatusApproved
	require.NoError(t, requests.Create(req))

	auth := &models.Authorization{
		Code:               "AUT-2026-001",
		Token:              "7f8de4a1-3c1b-4f2e-9a50-111122223333",
		RequestID:          req.ID,
		CompanyName:        req.CompanyName,
		RepresentativeName: req.ApplicantName,
		Port:               req.Port,
		Purpose:            req.Purpose,
		ValidFrom:          req.EntryAt,
		ValidUntil:         req.ExitAt,
		Vehicles: models.VehicleSnapshots{
			{Plate: "ABC-1234", Driver: "Luis Gomez"},
		},
		Status:   models.AuthorizationActive,
		IssuedBy: "maria.perez",
	}
	require.NoError(t, authorizations.Create(auth))

	byToken, err := authorizations.GetByToken(auth.Token)
	require.NoError(t, err)
	assert.Equal(t, "AUT-2026-001", byToken.Code)
	require.Len(t, byToken.Vehicles, 1)
	assert.Equal(t, "ABC-1234", byToken.Vehicles[0].Plate)

	byRequest, err := authorizations.GetByRequestID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.ID, byRequest.ID)

	_, err = authorizations.GetByToken("unknown-token")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC()
	byToken.Status = models.AuthorizationRevoked
	byToken.RevokedAt = &now
	byToken.RevokedBy = "supervisor.diaz"
	byToken.RevocationReason = "security incident"
	require.NoError(t, authorizations.Update(byToken))

	revoked, err := authorizations.List(AuthorizationFilter{Status: models.AuthorizationRevoked})
	require.NoError(t, err)
	require.Len(t, revoked, 1)
	assert.Equal(t, "security incident", revoked[0].RevocationReason)
}

func TestExtensionRepository(t *testing.T) {
	db := setupTestDB(t)
	requests := NewRequestRepository(db)
	authorizations := NewAuthorizationRepository(db)
	extensions := NewExtensionRepository(db)

	req := testRequest("SOL-2026-001")
	require.NoError(t, requests.Create(req))
	auth := &models.Authorization{
		Code: "AUT-2026-001", Token: "tok-1", RequestID: req.ID,
		CompanyName: req.CompanyName, RepresentativeName: req.ApplicantName,
		Port: req.Port, Purpose: req.Purpose,
		ValidFrom: req.EntryAt, ValidUntil: req.ExitAt,
		Status: models.AuthorizationActive,
	}
	require.NoError(t, authorizations.Create(auth))

	ext := &models.ExtensionRequest{
		Code:            "EXT-2026-0001",
		AuthorizationID: auth.ID,
		CurrentExpiry:   auth.ValidUntil,
		RequestedExpiry: auth.ValidUntil.Add(48 * time.Hour),
		Reason:          "Cargo operations delayed by weather",
		RequestedBy:     "pedro.castillo",
		Status:          models.ExtensionPending,
	}
	require.NoError(t, extensions.Create(ext))

	pending, err := extensions.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].ExtensionDays())

	now := time.Now().UTC()
	ext.Status = models.ExtensionApproved
	ext.ProcessedBy = "supervisor.diaz"
	ext.ProcessedAt = &now
	require.NoError(t, extensions.Update(ext))

	pending, err = extensions.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	history, err := extensions.ListByAuthorization(auth.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ExtensionApproved, history[0].Status)
}

func TestAccessRepository(t *testing.T) {
	db := setupTestDB(t)
	requests := NewRequestRepository(db)
	authorizations := NewAuthorizationRepository(db)
	access := NewAccessRepository(db)

	req := testRequest("SOL-2026-001")
	require.NoError(t, requests.Create(req))
	auth := &models.Authorization{
		Code: "AUT-2026-001", Token: "tok-1", RequestID: req.ID,
		CompanyName: req.CompanyName, RepresentativeName: req.ApplicantName,
		Port: req.Port, Purpose: req.Purpose,
		ValidFrom: req.EntryAt, ValidUntil: req.ExitAt,
		Status: models.AuthorizationActive,
	}
	require.NoError(t, authorizations.Create(auth))

	entry := &models.AccessEntry{
		AuthorizationID:  auth.ID,
		Direction:        models.AccessEntryDirection,
		VehiclePlate:     "ABC-1234",
		DriverName:       "Luis Gomez",
		Officer:          "officer.ramirez",
		Status:           models.AccessDenied,
		DocumentVerified: true,
		VehicleVerified:  false,
		DriverVerified:   true,
		DenialReason:     "verification checklist incomplete",
	}
	require.NoError(t, access.CreateEntry(entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.ChecklistPassed())

	entries, err := access.ListEntriesByAuthorization(auth.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AccessDenied, entries[0].Status)

	disc := &models.Discrepancy{
		Code:          "DISC-2026-001",
		AccessEntryID: entry.ID,
		Kind:          models.DiscrepancyWrongVehicle,
		Description:   "Plate does not match the authorized list",
		ReportedBy:    "officer.ramirez",
		Status:        models.DiscrepancyReported,
	}
	require.NoError(t, access.CreateDiscrepancy(disc))

	open, err := access.ListOpenDiscrepancies()
	require.NoError(t, err)
	require.Len(t, open, 1)

	now := time.Now().UTC()
	disc.Status = models.DiscrepancyResolved
	disc.ResolvedBy = "supervisor.diaz"
	disc.Resolution = "Vehicle re-registered, pass reprinted"
	disc.ResolvedAt = &now
	require.NoError(t, access.UpdateDiscrepancy(disc))

	open, err = access.ListOpenDiscrepancies()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAuditRepository(t *testing.T) {
	db := setupTestDB(t)
	audit := NewAuditRepository(db)

	entry := &models.AuditLogEntry{
		Actor:     "maria.perez",
		Method:    "POST",
		Path:      "/requests/1/approve",
		FormData:  `{"comments":"all documents in order"}`,
		UserAgent: "test-agent",
		IPAddress: "10.0.0.5",
	}
	require.NoError(t, audit.Create(entry))
	assert.NotZero(t, entry.ID)

	entries, err := audit.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "maria.perez", entries[0].Actor)
	assert.Equal(t, "/requests/1/approve", entries[0].Path)
}
