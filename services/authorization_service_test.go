package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naviport/portaccess/models"
)

func TestAuthorizationServiceIssueOncePerRequest(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")
	require.NotNil(t, result.Authorization)

	// Approval already issued the credential; a second mint is refused
	_, err := srvs.Authorizations.Issue(result.Request.ID, "maria.perez")
	assert.ErrorIs(t, err, ErrAlreadyIssued)
}

func TestAuthorizationServiceIssueRequiresApproval(t *testing.T) {
	srvs, _ := newTestServices(t)

	req, err := srvs.Requests.Create(validForm("9434761"), "pedro.castillo")
	require.NoError(t, err)

	_, err = srvs.Authorizations.Issue(req.ID, "maria.perez")
	assert.ErrorIs(t, err, ErrRequestNotApproved)
}

func TestAuthorizationServiceVerify(t *testing.T) {
	srvs, _ := newTestServices(t)

	// Inside the validity window
	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))
	result := approvedRequest(t, srvs, "9434761")
	token := result.Authorization.Token

	verdict, err := srvs.Authorizations.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationValid, verdict.Status)
	assert.True(t, verdict.Admissible())

	// Unknown tokens are an outcome, not an error
	verdict, err = srvs.Authorizations.Verify("no-such-token")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationNotFound, verdict.Status)
	assert.Nil(t, verdict.Authorization)
}

func TestAuthorizationServiceVerifyBeforeWindow(t *testing.T) {
	srvs, _ := newTestServices(t)

	// Approved before the entry time opens
	fixedNow(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	result := approvedRequest(t, srvs, "9434761")

	verdict, err := srvs.Authorizations.Verify(result.Authorization.Token)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationNotYetValid, verdict.Status)
	assert.False(t, verdict.Admissible())
}

func TestAuthorizationServiceLazyExpiry(t *testing.T) {
	srvs, repos := newTestServices(t)

	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))
	result := approvedRequest(t, srvs, "9434761")
	token := result.Authorization.Token

	// Scan after the window closed: the stored status flips to expired
	fixedNow(t, time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC))
	verdict, err := srvs.Authorizations.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationExpired, verdict.Status)

	stored, err := repos.Authorizations.GetByToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.AuthorizationExpired, stored.Status)

	// Lazy expiry does not shield the credential from revocation
	revoked, err := srvs.Authorizations.Revoke(stored.ID, "incident", "supervisor.diaz")
	require.NoError(t, err)
	assert.Equal(t, models.AuthorizationRevoked, revoked.Status)

	// Once revoked it verifies as revoked, not expired
	verdict, err = srvs.Authorizations.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRevoked, verdict.Status)
}

func TestAuthorizationServiceRevoke(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")
	authID := result.Authorization.ID

	_, err := srvs.Authorizations.Revoke(authID, "", "supervisor.diaz")
	assert.ErrorIs(t, err, ErrValidation)

	revoked, err := srvs.Authorizations.Revoke(authID, "Security incident at berth 4", "supervisor.diaz")
	require.NoError(t, err)
	assert.Equal(t, models.AuthorizationRevoked, revoked.Status)
	assert.Equal(t, "supervisor.diaz", revoked.RevokedBy)
	require.NotNil(t, revoked.RevokedAt)

	// A revoked credential verifies as revoked, never as valid again
	verdict, err := srvs.Authorizations.Verify(result.Authorization.Token)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRevoked, verdict.Status)

	// And cannot be revoked twice
	_, err = srvs.Authorizations.Revoke(authID, "again", "supervisor.diaz")
	assert.ErrorIs(t, err, ErrNotRevocable)
}

func TestAuthorizationServiceCredentialPNG(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")

	png, err := srvs.Authorizations.Credential(result.Authorization.ID, 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}

func TestAuthorizationServiceRecordAccess(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")
	token := result.Authorization.Token

	// Full checklist: admitted
	entry, err := srvs.Authorizations.RecordAccess(token, &AccessForm{
		Direction:        models.AccessEntryDirection,
		VehiclePlate:     "ABC-1234",
		DriverName:       "Luis Gomez",
		Officer:          "officer.ramirez",
		DocumentVerified: true,
		VehicleVerified:  true,
		DriverVerified:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessAdmitted, entry.Status)

	// Incomplete checklist: denied, but still recorded
	denied, err := srvs.Authorizations.RecordAccess(token, &AccessForm{
		Direction:        models.AccessExitDirection,
		Officer:          "officer.ramirez",
		DocumentVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessDenied, denied.Status)
	assert.Equal(t, "verification checklist incomplete", denied.DenialReason)

	log, err := srvs.Authorizations.AccessLog(result.Authorization.ID)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestAuthorizationServiceRecordAccessOnRevokedCredential(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")
	_, err := srvs.Authorizations.Revoke(result.Authorization.ID, "incident", "supervisor.diaz")
	require.NoError(t, err)

	entry, err := srvs.Authorizations.RecordAccess(result.Authorization.Token, &AccessForm{
		Direction:        models.AccessEntryDirection,
		Officer:          "officer.ramirez",
		DocumentVerified: true,
		VehicleVerified:  true,
		DriverVerified:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessDenied, entry.Status)
	assert.Equal(t, "credential revoked", entry.DenialReason)
}

func TestAuthorizationServiceDiscrepancies(t *testing.T) {
	srvs, _ := newTestServices(t)
	fixedNow(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))

	result := approvedRequest(t, srvs, "9434761")
	entry, err := srvs.Authorizations.RecordAccess(result.Authorization.Token, &AccessForm{
		Direction:        models.AccessEntryDirection,
		VehiclePlate:     "ZZZ-9999",
		Officer:          "officer.ramirez",
		DocumentVerified: true,
		DriverVerified:   true,
	})
	require.NoError(t, err)

	disc, err := srvs.Authorizations.ReportDiscrepancy(entry.ID, models.DiscrepancyWrongVehicle,
		"Plate ZZZ-9999 is not on the authorized list", "officer.ramirez")
	require.NoError(t, err)
	assert.Equal(t, "DISC-2026-001", disc.Code)
	assert.Equal(t, models.DiscrepancyReported, disc.Status)

	open, err := srvs.Authorizations.OpenDiscrepancies()
	require.NoError(t, err)
	require.Len(t, open, 1)

	resolved, err := srvs.Authorizations.ResolveDiscrepancy(disc.ID,
		"Vehicle list corrected, new pass printed", "supervisor.diaz")
	require.NoError(t, err)
	assert.Equal(t, models.DiscrepancyResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = srvs.Authorizations.ResolveDiscrepancy(disc.ID, "again", "supervisor.diaz")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
