package handler

import (
	"net/http"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/repository/postgres"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/repository/redis"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including database connectivity
func ReadyCheck(db *postgres.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "database not ready")
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns the registered providers and their models
func ListLLMProviders(llmRouter *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        llmRouter.GetProvidersInfo(),
			"default_provider": llmRouter.DefaultProvider(),
		})
	}
}

// FlushCache clears all schema snapshots from Redis
func FlushCache(schemaCache *redis.SchemaCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := schemaCache.FlushAll(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "failed to flush cache: "+err.Error())
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}
