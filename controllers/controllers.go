package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/naviport/portaccess/repositories"
	"github.com/naviport/portaccess/services"
)

// respondJSON writes data as a JSON response with the given status code
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondError maps a service error onto its HTTP status and writes a JSON
// error body
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrRequestNotEditable),
		errors.Is(err, services.ErrVesselHasActiveRequest),
		errors.Is(err, services.ErrRequestNotApproved),
		errors.Is(err, services.ErrAlreadyIssued),
		errors.Is(err, services.ErrNotRevocable),
		errors.Is(err, services.ErrNotExtendable),
		errors.Is(err, services.ErrEscalationClosed),
		errors.Is(err, services.ErrRequestNotEscalatable),
		errors.Is(err, services.ErrExtensionDecided),
		errors.Is(err, services.ErrExtensionPendingExists):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
		respondJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody parses a JSON request body into dst
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// pathID parses the {id} URL parameter
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// Controllers holds all controller instances
type Controllers struct {
	Requests       *RequestController
	Escalations    *EscalationController
	Authorizations *AuthorizationController
	Extensions     *ExtensionController
	Dashboard      *DashboardController
}

// NewControllers creates and initializes all controller instances
func NewControllers(services *services.Services) *Controllers {
	return &Controllers{
		Requests:       NewRequestController(services),
		Escalations:    NewEscalationController(services),
		Authorizations: NewAuthorizationController(services),
		Extensions:     NewExtensionController(services),
		Dashboard:      NewDashboardController(services),
	}
}
