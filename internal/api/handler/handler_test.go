package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/handler"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
)

type stubProvider struct {
	name       string
	configured bool
}

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) AvailableModels() []string { return []string{"stub-1", "stub-2"} }
func (s *stubProvider) DefaultModel() string      { return "stub-1" }
func (s *stubProvider) IsConfigured() bool        { return s.configured }

func (s *stubProvider) GenerateSQL(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	return &llm.Response{SQL: "SELECT 1", Model: model}, nil
}

func (s *stubProvider) Complete(ctx context.Context, system, prompt, model string) (string, error) {
	return "ok", nil
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["success"] != true {
		t.Error("expected success to be true")
	}

	data, ok := response["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data to be a map")
	}

	if data["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", data["status"])
	}
}

func TestListLLMProviders(t *testing.T) {
	router := llm.NewRouter("stub")
	router.RegisterProvider(&stubProvider{name: "stub", configured: true}, 0)
	router.RegisterProvider(&stubProvider{name: "other", configured: false}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/llm-providers", nil)
	rec := httptest.NewRecorder()

	handler.ListLLMProviders(router)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Providers []struct {
				Name       string `json:"name"`
				Default    bool   `json:"default"`
				Configured bool   `json:"configured"`
			} `json:"providers"`
			DefaultProvider string `json:"default_provider"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !response.Success {
		t.Error("expected success to be true")
	}
	if response.Data.DefaultProvider != "stub" {
		t.Errorf("default_provider = %q, want stub", response.Data.DefaultProvider)
	}
	if len(response.Data.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(response.Data.Providers))
	}
	for _, p := range response.Data.Providers {
		if p.Name == "stub" && (!p.Default || !p.Configured) {
			t.Errorf("stub provider flags = %+v, want default and configured", p)
		}
		if p.Name == "other" && p.Configured {
			t.Error("other provider should be unconfigured")
		}
	}
}

// Malformed path IDs are rejected before any service is touched, so a nil
// service is safe here.
func TestInvalidIDParamRejected(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/connections/{connectionID}/suggestions", handler.NewSuggestionHandler(nil).GetSuggestions)

	req := httptest.NewRequest(http.MethodGet, "/connections/not-a-uuid/suggestions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["success"] != false {
		t.Error("expected success to be false")
	}
	if response["error"] != "invalid connectionID" {
		t.Errorf("error = %v, want invalid connectionID", response["error"])
	}
}

func TestAskRejectsMalformedBody(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/sessions/{sessionID}/ask", handler.NewQueryHandler(nil).Ask)

	req := httptest.NewRequest(http.MethodPost, "/sessions/7b8e54c7-18a8-4f5e-9f68-1d2ad3127b02/ask", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sessions/7b8e54c7-18a8-4f5e-9f68-1d2ad3127b02/ask", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/sessions/{sessionID}/ask", handler.NewQueryHandler(nil).Ask)

	req := makeJSONRequest(http.MethodPost, "/sessions/7b8e54c7-18a8-4f5e-9f68-1d2ad3127b02/ask", map[string]any{"question": ""})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// Helper to make JSON request
func makeJSONRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}
