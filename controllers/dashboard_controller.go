package controllers

import (
	"net/http"

	"github.com/naviport/portaccess/services"
)

// DashboardController handles the operational summary endpoint
type DashboardController struct {
	services *services.Services
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(services *services.Services) *DashboardController {
	return &DashboardController{services: services}
}

// Summary handles GET /summary — request counts per status plus the open
// supervisor queues
func (c *DashboardController) Summary(w http.ResponseWriter, r *http.Request) {
	statuses, err := c.services.Requests.StatusSummary()
	if err != nil {
		respondError(w, err)
		return
	}

	escalations, err := c.services.Escalations.ListOpen()
	if err != nil {
		respondError(w, err)
		return
	}

	extensions, err := c.services.Extensions.ListPending()
	if err != nil {
		respondError(w, err)
		return
	}

	discrepancies, err := c.services.Authorizations.OpenDiscrepancies()
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requests_by_status": statuses,
		"open_escalations":   len(escalations),
		"pending_extensions": len(extensions),
		"open_discrepancies": len(discrepancies),
	})
}
