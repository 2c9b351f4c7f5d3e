// Package analysis extracts marketing angles from a product description.
// Results are cached on the product row and reused until explicitly
// invalidated, so a channel fleet promoting the same product pays for the
// analysis once.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"loom/internal/services"
	"loom/internal/services/llm"
	"loom/internal/store"
)

const systemPrompt = `You are a direct-response marketing analyst. Given a product,
identify what makes it sell in short-form video ads. Respond with JSON only:
{"benefits": ["..."], "target_audience": "...", "pain_points": ["..."], "product_type": "physical|cpa_offer"}`

// Result is the validated product analysis.
type Result struct {
	Benefits       []string `json:"benefits"`
	TargetAudience string   `json:"target_audience"`
	PainPoints     []string `json:"pain_points"`
	ProductType    string   `json:"product_type"`
}

// Validate enforces the structural contract at the provider boundary.
func (r *Result) Validate() error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "analysis", "validate", "nil result", nil)
	}
	if len(r.Benefits) == 0 {
		return services.Wrap(services.ErrValidation, "analysis", "validate", "no benefits", nil)
	}
	if strings.TrimSpace(r.TargetAudience) == "" {
		return services.Wrap(services.ErrValidation, "analysis", "validate", "missing target audience", nil)
	}
	if len(r.PainPoints) == 0 {
		return services.Wrap(services.ErrValidation, "analysis", "validate", "no pain points", nil)
	}
	return nil
}

// Parse decodes and validates a cached or freshly generated analysis payload.
func Parse(payload string) (*Result, error) {
	var result Result
	if err := llm.DecodeJSON(payload, &result); err != nil {
		return nil, services.Wrap(services.ErrValidation, "analysis", "parse", "decode payload", err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// Completer is the slice of the chat client the provider needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider generates product analyses through the chat completion API.
type Provider struct {
	client Completer
}

// NewProvider builds a provider over the shared chat client.
func NewProvider(client Completer) *Provider {
	return &Provider{client: client}
}

// Analyze produces a validated analysis for the product and returns both the
// typed result and the raw JSON for caching.
func (p *Provider) Analyze(ctx context.Context, product *store.Product) (*Result, string, error) {
	if product == nil {
		return nil, "", services.Wrap(services.ErrValidation, "analysis", "analyze", "nil product", nil)
	}
	userPrompt := fmt.Sprintf("Product: %s\nKind: %s\nDescription: %s\nURL: %s",
		product.Name, product.Kind, product.Description, product.URL)
	payload, err := p.client.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "analysis", "analyze", "chat completion", err)
	}
	result, err := Parse(payload)
	if err != nil {
		return nil, "", err
	}
	canonical, err := json.Marshal(result)
	if err != nil {
		return nil, "", fmt.Errorf("encode analysis: %w", err)
	}
	return result, string(canonical), nil
}
