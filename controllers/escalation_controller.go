package controllers

import (
	"net/http"

	"github.com/naviport/portaccess/middleware"
	"github.com/naviport/portaccess/services"
)

// EscalationController handles supervisor escalation endpoints
type EscalationController struct {
	services *services.Services
}

// NewEscalationController creates a new escalation controller
func NewEscalationController(services *services.Services) *EscalationController {
	return &EscalationController{services: services}
}

// List handles GET /escalations — the supervisor queue of open tickets
func (c *EscalationController) List(w http.ResponseWriter, r *http.Request) {
	escalations, err := c.services.Escalations.ListOpen()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"escalations": escalations})
}

// Get handles GET /escalations/{id}
func (c *EscalationController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid escalation ID"})
		return
	}

	esc, err := c.services.Escalations.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, esc)
}

// StartReview handles POST /escalations/{id}/review
func (c *EscalationController) StartReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid escalation ID"})
		return
	}

	esc, err := c.services.Escalations.StartReview(id, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, esc)
}

// Resolve handles POST /escalations/{id}/resolve
func (c *EscalationController) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid escalation ID"})
		return
	}

	var form services.ResolveForm
	if err := decodeBody(r, &form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := c.services.Escalations.Resolve(id, &form, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
