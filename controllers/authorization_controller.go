package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/naviport/portaccess/middleware"
	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
	"github.com/naviport/portaccess/services"
)

// AuthorizationController handles credential and gate endpoints
type AuthorizationController struct {
	services *services.Services
}

// NewAuthorizationController creates a new authorization controller
func NewAuthorizationController(services *services.Services) *AuthorizationController {
	return &AuthorizationController{services: services}
}

// List handles GET /authorizations
func (c *AuthorizationController) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.AuthorizationFilter{
		Status:  models.AuthorizationStatus(r.URL.Query().Get("status")),
		Company: r.URL.Query().Get("company"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	auths, err := c.services.Authorizations.List(filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"authorizations": auths})
}

// Get handles GET /authorizations/{id}
func (c *AuthorizationController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid authorization ID"})
		return
	}

	auth, err := c.services.Authorizations.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, auth)
}

// Verify handles GET /verify/{token} — the public scanner endpoint. The
// answer is always 200 with a status field; an unknown token is not an
// HTTP error, it is a verification outcome.
func (c *AuthorizationController) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := c.services.Authorizations.Verify(chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Credential handles GET /authorizations/{id}/credential — the printable
// QR pass as a PNG
func (c *AuthorizationController) Credential(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid authorization ID"})
		return
	}

	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil || size < 0 || size > 2048 {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size"})
			return
		}
	}

	png, err := c.services.Authorizations.Credential(id, size)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Revoke handles POST /authorizations/{id}/revoke
func (c *AuthorizationController) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid authorization ID"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	auth, err := c.services.Authorizations.Revoke(id, body.Reason, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, auth)
}

// RecordAccess handles POST /access/{token} — the gate officer's checklist
func (c *AuthorizationController) RecordAccess(w http.ResponseWriter, r *http.Request) {
	var form services.AccessForm
	if err := decodeBody(r, &form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if form.Officer == "" {
		form.Officer = middleware.Actor(r)
	}

	entry, err := c.services.Authorizations.RecordAccess(chi.URLParam(r, "token"), &form)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// AccessLog handles GET /authorizations/{id}/access
func (c *AuthorizationController) AccessLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid authorization ID"})
		return
	}

	entries, err := c.services.Authorizations.AccessLog(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ReportDiscrepancy handles POST /access/entries/{id}/discrepancies
func (c *AuthorizationController) ReportDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid access entry ID"})
		return
	}

	var body struct {
		Kind        models.DiscrepancyKind `json:"kind"`
		Description string                 `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	disc, err := c.services.Authorizations.ReportDiscrepancy(id, body.Kind, body.Description, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, disc)
}

// ListDiscrepancies handles GET /discrepancies
func (c *AuthorizationController) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	discs, err := c.services.Authorizations.OpenDiscrepancies()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"discrepancies": discs})
}

// ResolveDiscrepancy handles POST /discrepancies/{id}/resolve
func (c *AuthorizationController) ResolveDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discrepancy ID"})
		return
	}

	var body struct {
		Resolution string `json:"resolution"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	disc, err := c.services.Authorizations.ResolveDiscrepancy(id, body.Resolution, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, disc)
}
