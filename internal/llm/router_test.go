package llm_test

import (
	"context"
	"testing"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
)

type stubProvider struct {
	name       string
	configured bool
	calls      int
}

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) AvailableModels() []string { return []string{"stub-1"} }
func (s *stubProvider) DefaultModel() string      { return "stub-1" }
func (s *stubProvider) IsConfigured() bool        { return s.configured }

func (s *stubProvider) GenerateSQL(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	s.calls++
	return &llm.Response{SQL: "SELECT 1", Model: "stub-1"}, nil
}

func (s *stubProvider) Complete(ctx context.Context, system, prompt, model string) (string, error) {
	s.calls++
	return "ok", nil
}

func TestRouterGetProvider(t *testing.T) {
	router := llm.NewRouter("alpha")
	router.RegisterProvider(&stubProvider{name: "alpha", configured: true}, 0)
	router.RegisterProvider(&stubProvider{name: "beta", configured: false}, 0)

	p, err := router.GetProvider("alpha")
	if err != nil {
		t.Fatalf("GetProvider(alpha) error = %v", err)
	}
	if p.Name() != "alpha" {
		t.Errorf("Name() = %q, want alpha", p.Name())
	}

	// Empty name falls back to the default
	p, err = router.GetProvider("")
	if err != nil {
		t.Fatalf("GetProvider(\"\") error = %v", err)
	}
	if p.Name() != "alpha" {
		t.Errorf("default provider = %q, want alpha", p.Name())
	}

	if _, err := router.GetProvider("missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := router.GetProvider("beta"); err == nil {
		t.Error("expected error for unconfigured provider")
	}
}

func TestRouterListProviders(t *testing.T) {
	router := llm.NewRouter("zeta")
	router.RegisterProvider(&stubProvider{name: "zeta", configured: true}, 0)
	router.RegisterProvider(&stubProvider{name: "alpha", configured: true}, 0)
	router.RegisterProvider(&stubProvider{name: "omega", configured: false}, 0)

	names := router.ListProviders()
	if len(names) != 2 {
		t.Fatalf("ListProviders() returned %d names, want 2", len(names))
	}
	if names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("ListProviders() = %v, want [alpha zeta]", names)
	}
}

func TestRouterThrottledProvider(t *testing.T) {
	stub := &stubProvider{name: "alpha", configured: true}
	router := llm.NewRouter("alpha")
	// Generous budget so both calls pass without blocking
	router.RegisterProvider(stub, 600)

	p, err := router.GetProvider("alpha")
	if err != nil {
		t.Fatalf("GetProvider() error = %v", err)
	}

	resp, err := p.GenerateSQL(context.Background(), llm.Request{Question: "q"}, "")
	if err != nil {
		t.Fatalf("GenerateSQL() error = %v", err)
	}
	if resp.SQL != "SELECT 1" {
		t.Errorf("SQL = %q, want SELECT 1", resp.SQL)
	}

	if _, err := p.Complete(context.Background(), "sys", "prompt", ""); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if stub.calls != 2 {
		t.Errorf("underlying provider saw %d calls, want 2", stub.calls)
	}

	// Wrapped provider keeps reporting the underlying identity
	if p.Name() != "alpha" || p.DefaultModel() != "stub-1" {
		t.Error("wrapper should pass metadata through to the underlying provider")
	}
}

func TestRouterGetProvidersInfo(t *testing.T) {
	router := llm.NewRouter("beta")
	router.RegisterProvider(&stubProvider{name: "beta", configured: true}, 0)
	router.RegisterProvider(&stubProvider{name: "alpha", configured: false}, 0)

	infos := router.GetProvidersInfo()
	if len(infos) != 2 {
		t.Fatalf("GetProvidersInfo() returned %d entries, want 2", len(infos))
	}
	if infos[0].Name != "alpha" || infos[1].Name != "beta" {
		t.Errorf("infos should be sorted by name, got %v then %v", infos[0].Name, infos[1].Name)
	}
	if !infos[1].Default {
		t.Error("beta should be flagged as the default provider")
	}
	if infos[0].Configured {
		t.Error("alpha should be reported as unconfigured")
	}
	if infos[1].DefaultModel != "stub-1" {
		t.Errorf("DefaultModel = %q, want stub-1", infos[1].DefaultModel)
	}
}
