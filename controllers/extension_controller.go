package controllers

import (
	"net/http"
	"time"

	"github.com/naviport/portaccess/middleware"
	"github.com/naviport/portaccess/services"
)

// ExtensionController handles validity extension endpoints
type ExtensionController struct {
	services *services.Services
}

// NewExtensionController creates a new extension controller
func NewExtensionController(services *services.Services) *ExtensionController {
	return &ExtensionController{services: services}
}

// List handles GET /extensions — the queue of pending petitions
func (c *ExtensionController) List(w http.ResponseWriter, r *http.Request) {
	exts, err := c.services.Extensions.ListPending()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"extensions": exts})
}

// Get handles GET /extensions/{id}
func (c *ExtensionController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid extension ID"})
		return
	}

	ext, err := c.services.Extensions.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ext)
}

// Create handles POST /authorizations/{id}/extensions
func (c *ExtensionController) Create(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid authorization ID"})
		return
	}

	var body struct {
		RequestedExpiry time.Time `json:"requested_expiry"`
		Reason          string    `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ext, err := c.services.Extensions.Request(id, body.RequestedExpiry, body.Reason, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ext)
}

// History handles GET /authorizations/{id}/extensions
func (c *ExtensionController) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid authorization ID"})
		return
	}

	exts, err := c.services.Extensions.ListByAuthorization(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"extensions": exts})
}

// Approve handles POST /extensions/{id}/approve
func (c *ExtensionController) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid extension ID"})
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ext, err := c.services.Extensions.Approve(id, body.Notes, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ext)
}

// Reject handles POST /extensions/{id}/reject
func (c *ExtensionController) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid extension ID"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ext, err := c.services.Extensions.Reject(id, body.Reason, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ext)
}
