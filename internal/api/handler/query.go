package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/service"
)

// QueryHandler handles the query pipeline endpoints
type QueryHandler struct {
	queryService *service.QueryService
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryService *service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// Ask runs one conversational turn. Pipeline failures come back as a 200
// with the error inside the turn payload; only setup failures map to
// HTTP errors.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}

	var req domain.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.queryService.Ask(r.Context(), sessionID, req)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		var qerr *domain.QueryError
		if errors.As(err, &qerr) {
			// Introspection failed; the data source is the upstream here
			response.Error(w, http.StatusBadGateway, qerr)
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, result)
}

// Generate produces a statement without executing it
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	var req domain.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.queryService.Generate(r.Context(), connectionID, req)
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		var qerr *domain.QueryError
		if errors.As(err, &qerr) {
			if qerr.Kind == domain.ErrKindSynthesis || qerr.Kind == domain.ErrKindIntrospection {
				response.Error(w, http.StatusBadGateway, qerr)
				return
			}
			// The generated statement failed validation; report it with
			// the statement so the caller can inspect it
			response.Error(w, http.StatusUnprocessableEntity, qerr)
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, result)
}

// GetSchema returns the schema snapshot for a connection
func (h *QueryHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	schema, err := h.queryService.GetSchema(r.Context(), connectionID)
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, schema)
}

// RefreshSchema drops the cached snapshot and introspects again
func (h *QueryHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	schema, err := h.queryService.RefreshSchema(r.Context(), connectionID)
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, schema)
}
