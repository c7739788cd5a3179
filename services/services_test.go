package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/naviport/portaccess/database"
	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

// newTestServices wires the full service stack against a temporary
// database created through the real migration path.
func newTestServices(t *testing.T) (*Services, *repositories.Repositories) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := database.InitializeDatabase(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		database.CloseDB()
	})

	repos := repositories.NewRepositories(database.GetDB())
	srvs := NewServices(repos, Config{BaseURL: "http://localhost:8080"})
	return srvs, repos
}

// fixedNow pins the service clock for the duration of the test
func fixedNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
}

func validForm(imo string) *models.RequestForm {
	return &models.RequestForm{
		IMONumber:     imo,
		ShippingLine:  "Maritima del Este",
		CompanyName:   "Agencia Naviera Sur",
		CompanyRNC:    "131-55555-1",
		ApplicantName: "Pedro Castillo",
		ApplicantID:   "001-1234567-8",
		Port:          "Puerto Caucedo",
		Purpose:       "Crew change and provisioning",
		EntryAt:       time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		ExitAt:        time.Date(2026, 9, 3, 18, 0, 0, 0, time.UTC),
		Priority:      models.PriorityNormal,
		Vehicles: []models.VehicleForm{
			{Plate: "ABC-1234", Kind: "truck", DriverName: "Luis Gomez", DriverLicense: "L-0099"},
		},
	}
}

// approvedRequest walks a fresh request through the happy path up to
// approval and returns the approval result
func approvedRequest(t *testing.T, srvs *Services, imo string) *ApproveResult {
	t.Helper()

	req, err := srvs.Requests.Create(validForm(imo), "pedro.castillo")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := srvs.Requests.Submit(req.ID, "pedro.castillo"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := srvs.Requests.Assign(req.ID, "maria.perez", "coordinator"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := srvs.Requests.StartReview(req.ID, "maria.perez"); err != nil {
		t.Fatalf("start review: %v", err)
	}
	result, err := srvs.Requests.Approve(req.ID, "Documents in order", "maria.perez")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return result
}
