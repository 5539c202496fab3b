package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/service"
)

var validate = validator.New()

// ConnectionHandler handles data source connection endpoints
type ConnectionHandler struct {
	connectionService *service.ConnectionService
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connectionService *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connectionService: connectionService}
}

// Create handles connection creation
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.ConnectionCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	conn, err := h.connectionService.Create(r.Context(), input)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Created(w, conn)
}

// List handles listing all registered connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	connections, err := h.connectionService.List(r.Context())
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, connections)
}

// Get handles getting a connection by ID
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	conn, err := h.connectionService.GetByID(r.Context(), connectionID)
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, conn)
}

// Update handles updating a connection
func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	var input domain.ConnectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	conn, err := h.connectionService.Update(r.Context(), connectionID, input)
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, conn)
}

// Delete handles deleting a connection
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	if err := h.connectionService.Delete(r.Context(), connectionID); err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.NoContent(w)
}

// Test probes a stored connection's credentials
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	if err := h.connectionService.TestConnection(r.Context(), connectionID); err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.BadRequest(w, map[string]any{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	response.OK(w, map[string]any{
		"connected": true,
		"message":   "Connection successful",
	})
}

// parseIDParam parses a UUID path parameter, writing the 400 itself
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
