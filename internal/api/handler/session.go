package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/service"
)

// SessionHandler handles chat session endpoints
type SessionHandler struct {
	queryService *service.QueryService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(queryService *service.QueryService) *SessionHandler {
	return &SessionHandler{queryService: queryService}
}

// Create creates a session bound to a connection. The response carries the
// session token used by all turn endpoints.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.SessionCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	sess, token, err := h.queryService.CreateSession(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Created(w, map[string]any{
		"session": sess,
		"token":   token,
	})
}

// List returns sessions, most recently active first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 20)

	sessions, err := h.queryService.ListSessions(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list sessions")
		return
	}

	response.OK(w, sessions)
}

// ListByConnection returns the sessions bound to one connection
func (h *SessionHandler) ListByConnection(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	limit, offset := paginationParams(r, 20)

	sessions, err := h.queryService.ListSessionsByConnection(r.Context(), connectionID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list sessions")
		return
	}

	response.OK(w, sessions)
}

// Get returns one session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}

	sess, err := h.queryService.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to fetch session")
		return
	}

	response.OK(w, sess)
}

// GetTurns returns the persisted turns of a session, oldest first
func (h *SessionHandler) GetTurns(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	turns, err := h.queryService.GetSessionTurns(r.Context(), sessionID, limit)
	if err != nil {
		response.InternalError(w, "failed to fetch session turns")
		return
	}

	response.OK(w, turns)
}

// Delete deletes a session, its turns and its context window
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}

	if err := h.queryService.DeleteSession(r.Context(), sessionID); err != nil {
		response.InternalError(w, "failed to delete session")
		return
	}

	response.NoContent(w)
}

func paginationParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
