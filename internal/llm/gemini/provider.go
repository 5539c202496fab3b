package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Provider implements llm.Provider for Google Gemini
type Provider struct {
	apiKey       string
	defaultModel string
}

// NewProvider creates a new Gemini provider
func NewProvider(apiKey, defaultModel string) llm.Provider {
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "gemini"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-1.0-pro",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// GenerateSQL generates a candidate statement from natural language
func (p *Provider) GenerateSQL(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}
	if model == "" {
		model = p.defaultModel
	}

	prompt := llm.BuildPrompt(req)

	start := time.Now()
	output, tokens, err := p.generate(ctx, model, "", prompt)
	if err != nil {
		return nil, err
	}

	return &llm.Response{
		SQL:         llm.ExtractSQL(output),
		Explanation: output,
		Model:       model,
		TokensUsed:  tokens,
		LatencyMs:   time.Since(start).Milliseconds(),
	}, nil
}

// Complete runs a plain completion
func (p *Provider) Complete(ctx context.Context, system, prompt, model string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("gemini provider is not configured (missing API key)")
	}
	if model == "" {
		model = p.defaultModel
	}
	output, _, err := p.generate(ctx, model, system, prompt)
	return output, err
}

func (p *Provider) generate(ctx context.Context, model, system, prompt string) (string, int, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	generativeModel := client.GenerativeModel(model)
	// Temperature 0 for deterministic generation
	var temperature float32 = 0.0
	generativeModel.Temperature = &temperature
	if system != "" {
		generativeModel.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := generativeModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", 0, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0, fmt.Errorf("empty response from gemini")
	}

	var output string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output += string(text)
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return output, tokens, nil
}
