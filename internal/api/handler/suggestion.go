package handler

import (
	"net/http"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/service"
)

type SuggestionHandler struct {
	queryService *service.QueryService
}

func NewSuggestionHandler(queryService *service.QueryService) *SuggestionHandler {
	return &SuggestionHandler{queryService: queryService}
}

// GetSuggestions returns suggested questions for a connection. An unknown
// connection simply has no history, so it yields an empty list rather than
// an error.
func (h *SuggestionHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := parseIDParam(w, r, "connectionID")
	if !ok {
		return
	}

	suggestions, err := h.queryService.GetSuggestedQuestions(r.Context(), connectionID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.OK(w, suggestions)
}
