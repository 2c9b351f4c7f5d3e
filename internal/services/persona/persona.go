// Package persona creates the on-camera character a channel speaks through.
// Each channel owns exactly one persona for its lifetime; the store's
// conditional write decides the winner when two pipelines race to create it.
package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"loom/internal/services"
	"loom/internal/services/analysis"
	"loom/internal/services/llm"
)

const systemPrompt = `You are a casting director for user-generated-content style
video ads. Invent a believable everyday person to present the product. Respond
with JSON only:
{"name": "...", "age": 27, "occupation": "...", "tone": "...", "speaking_style": "..."}`

// Result is the validated channel persona.
type Result struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Occupation    string `json:"occupation"`
	Tone          string `json:"tone"`
	SpeakingStyle string `json:"speaking_style"`
}

// Validate enforces the structural contract at the provider boundary.
func (r *Result) Validate() error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "persona", "validate", "nil result", nil)
	}
	if strings.TrimSpace(r.Name) == "" {
		return services.Wrap(services.ErrValidation, "persona", "validate", "missing name", nil)
	}
	if r.Age < 18 || r.Age > 80 {
		return services.Wrap(services.ErrValidation, "persona", "validate",
			fmt.Sprintf("age %d outside plausible range", r.Age), nil)
	}
	if strings.TrimSpace(r.SpeakingStyle) == "" {
		return services.Wrap(services.ErrValidation, "persona", "validate", "missing speaking style", nil)
	}
	return nil
}

// Parse decodes and validates a cached or freshly generated persona payload.
func Parse(payload string) (*Result, error) {
	var result Result
	if err := llm.DecodeJSON(payload, &result); err != nil {
		return nil, services.Wrap(services.ErrValidation, "persona", "parse", "decode payload", err)
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

// Provider generates personas through the chat completion API.
type Provider struct {
	client Completer
}

// NewProvider builds a provider over the shared chat client.
func NewProvider(client Completer) *Provider {
	return &Provider{client: client}
}

// Generate invents a persona suited to the product analysis and the target
// platform. Returns the typed result and the raw JSON for caching.
func (p *Provider) Generate(ctx context.Context, platform string, a *analysis.Result) (*Result, string, error) {
	if a == nil {
		return nil, "", services.Wrap(services.ErrValidation, "persona", "generate", "nil analysis", nil)
	}
	userPrompt := fmt.Sprintf(
		"Platform: %s\nTarget audience: %s\nProduct benefits: %s\nPain points: %s",
		platform, a.TargetAudience,
		strings.Join(a.Benefits, "; "), strings.Join(a.PainPoints, "; "))
	payload, err := p.client.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "persona", "generate", "chat completion", err)
	}
	result, err := Parse(payload)
	if err != nil {
		return nil, "", err
	}
	canonical, err := json.Marshal(result)
	if err != nil {
		return nil, "", fmt.Errorf("encode persona: %w", err)
	}
	return result, string(canonical), nil
}
