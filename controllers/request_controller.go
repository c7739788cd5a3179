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

// RequestController handles access request endpoints
type RequestController struct {
	services *services.Services
}

// NewRequestController creates a new request controller
func NewRequestController(services *services.Services) *RequestController {
	return &RequestController{services: services}
}

// List handles GET /requests
func (c *RequestController) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.RequestFilter{
		Status:     models.RequestStatus(r.URL.Query().Get("status")),
		AssignedTo: r.URL.Query().Get("assigned_to"),
		Company:    r.URL.Query().Get("company"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	requests, err := c.services.Requests.List(filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// Create handles POST /requests
func (c *RequestController) Create(w http.ResponseWriter, r *http.Request) {
	var form models.RequestForm
	if err := decodeBody(r, &form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req, err := c.services.Requests.Create(&form, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

// Get handles GET /requests/{id}
func (c *RequestController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	req, err := c.services.Requests.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// GetByCode handles GET /requests/code/{code}
func (c *RequestController) GetByCode(w http.ResponseWriter, r *http.Request) {
	req, err := c.services.Requests.GetByCode(chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// Update handles PUT /requests/{id}
func (c *RequestController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var form models.RequestForm
	if err := decodeBody(r, &form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req, err := c.services.Requests.Update(id, &form, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// Delete handles DELETE /requests/{id}
func (c *RequestController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	if err := c.services.Requests.Delete(id, middleware.Actor(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Submit handles POST /requests/{id}/submit
func (c *RequestController) Submit(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, func(id int64, actor string) (*models.AccessRequest, error) {
		return c.services.Requests.Submit(id, actor)
	})
}

// Assign handles POST /requests/{id}/assign
func (c *RequestController) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var body struct {
		Evaluator string `json:"evaluator"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req, err := c.services.Requests.Assign(id, body.Evaluator, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// StartReview handles POST /requests/{id}/review
func (c *RequestController) StartReview(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, func(id int64, actor string) (*models.AccessRequest, error) {
		return c.services.Requests.StartReview(id, actor)
	})
}

// Approve handles POST /requests/{id}/approve
func (c *RequestController) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var body struct {
		Comments string `json:"comments"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := c.services.Requests.Approve(id, body.Comments, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Reject handles POST /requests/{id}/reject
func (c *RequestController) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req, err := c.services.Requests.Reject(id, body.Reason, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// RequestDocuments handles POST /requests/{id}/request-documents
func (c *RequestController) RequestDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var body struct {
		Details string `json:"details"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req, err := c.services.Requests.RequestDocuments(id, body.Details, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// ResubmitDocuments handles POST /requests/{id}/resubmit
func (c *RequestController) ResubmitDocuments(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, func(id int64, actor string) (*models.AccessRequest, error) {
		return c.services.Requests.ResubmitDocuments(id, actor)
	})
}

// ChangePriority handles POST /requests/{id}/priority
func (c *RequestController) ChangePriority(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var body struct {
		Priority models.Priority `json:"priority"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req, err := c.services.Requests.ChangePriority(id, body.Priority, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// Expire handles POST /requests/{id}/expire
func (c *RequestController) Expire(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, func(id int64, actor string) (*models.AccessRequest, error) {
		return c.services.Requests.Expire(id, actor)
	})
}

// Timeline handles GET /requests/{id}/timeline
func (c *RequestController) Timeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	includeInternal := r.URL.Query().Get("internal") == "true"
	events, err := c.services.Requests.Timeline(id, includeInternal)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// AddComment handles POST /requests/{id}/comments
func (c *RequestController) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var body struct {
		Text     string `json:"text"`
		Internal bool   `json:"internal"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	event, err := c.services.Requests.AddComment(id, body.Text, body.Internal, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// Documents handles GET /requests/{id}/documents
func (c *RequestController) Documents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	docs, err := c.services.Requests.Documents(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// AddDocument handles POST /requests/{id}/documents
func (c *RequestController) AddDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var doc models.Document
	if err := decodeBody(r, &doc); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if doc.Handle == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "document handle is required"})
		return
	}

	if err := c.services.Requests.AddDocument(id, &doc, middleware.Actor(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

// VerifyDocument handles POST /requests/{id}/documents/{docID}/verify
func (c *RequestController) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}
	docID, err := strconv.ParseInt(chi.URLParam(r, "docID"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	if err := c.services.Requests.VerifyDocument(id, docID, middleware.Actor(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// Escalations handles GET /requests/{id}/escalations
func (c *RequestController) Escalations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	escalations, err := c.services.Escalations.ListByRequest(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"escalations": escalations})
}

// Escalate handles POST /requests/{id}/escalate
func (c *RequestController) Escalate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var form services.EscalationForm
	if err := decodeBody(r, &form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	esc, err := c.services.Escalations.Raise(id, &form, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, esc)
}

// transition runs a body-less status change handler
func (c *RequestController) transition(w http.ResponseWriter, r *http.Request, fn func(int64, string) (*models.AccessRequest, error)) {
	id, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	req, err := fn(id, middleware.Actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}
