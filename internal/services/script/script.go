// Package script generates three-scene ad scripts in a channel persona's
// voice. Several candidates are requested and one is selected
// deterministically so reruns with the same inputs pick the same script.
package script

import (
	"context"
	"fmt"
	"strings"

	"loom/internal/services"
	"loom/internal/services/analysis"
	"loom/internal/services/llm"
	"loom/internal/services/persona"
)

// SceneCount is the fixed number of scenes per script.
const SceneCount = 3

const creativeTemperature = 0.9

const systemPrompt = `You write scripts for short-form user-generated-content video
ads. Scripts have exactly 3 scenes: a hook (18-22 words), the pitch (20-24
words), and a call to action (17-20 words). Write natural spoken dialogue in
the persona's voice. Respond with JSON only:
{"scenes": [{"dialogue": "..."}, {"dialogue": "..."}, {"dialogue": "..."}]}`

// Scene is one spoken segment of a script.
type Scene struct {
	Dialogue string `json:"dialogue"`
}

// Result is one validated script candidate.
type Result struct {
	Scenes []Scene `json:"scenes"`
}

// Dialogues returns the scene dialogues in order.
func (r *Result) Dialogues() []string {
	out := make([]string, len(r.Scenes))
	for i, scene := range r.Scenes {
		out[i] = scene.Dialogue
	}
	return out
}

// WordCount returns the total spoken words across all scenes.
func (r *Result) WordCount() int {
	total := 0
	for _, scene := range r.Scenes {
		total += len(strings.Fields(scene.Dialogue))
	}
	return total
}

// Validate enforces the structural contract: exactly three non-empty scenes.
// Word-band misses are not checked here; the storyboard reports those as
// non-fatal findings.
func (r *Result) Validate() error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "script", "validate", "nil result", nil)
	}
	if len(r.Scenes) != SceneCount {
		return services.Wrap(services.ErrValidation, "script", "validate",
			fmt.Sprintf("expected %d scenes, got %d", SceneCount, len(r.Scenes)), nil)
	}
	for i, scene := range r.Scenes {
		if strings.TrimSpace(scene.Dialogue) == "" {
			return services.Wrap(services.ErrValidation, "script", "validate",
				fmt.Sprintf("scene %d dialogue is empty", i+1), nil)
		}
	}
	return nil
}

// Parse decodes and validates a generated script payload.
func Parse(payload string) (*Result, error) {
	var result Result
	if err := llm.DecodeJSON(payload, &result); err != nil {
		return nil, services.Wrap(services.ErrValidation, "script", "parse", "decode payload", err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// Completer is the slice of the chat client the provider needs.
type Completer interface {
	CompleteCreativeJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Provider generates script candidates through the chat completion API.
type Provider struct {
	client Completer
}

// NewProvider builds a provider over the shared chat client.
func NewProvider(client Completer) *Provider {
	return &Provider{client: client}
}

// Generate requests candidate scripts and returns the selected one. A
// candidate that fails structural validation is skipped rather than aborting
// the batch; generation fails only when no candidate survives.
func (p *Provider) Generate(ctx context.Context, per *persona.Result, a *analysis.Result, candidates int, selection string) (*Result, error) {
	if per == nil || a == nil {
		return nil, services.Wrap(services.ErrValidation, "script", "generate", "missing persona or analysis", nil)
	}
	if candidates < 1 {
		candidates = 1
	}
	userPrompt := fmt.Sprintf(
		"Persona: %s, %d, %s. Tone: %s. Speaking style: %s.\nTarget audience: %s\nBenefits: %s\nPain points: %s",
		per.Name, per.Age, per.Occupation, per.Tone, per.SpeakingStyle,
		a.TargetAudience, strings.Join(a.Benefits, "; "), strings.Join(a.PainPoints, "; "))

	var (
		survivors []*Result
		lastErr   error
	)
	for i := 0; i < candidates; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := p.client.CompleteCreativeJSON(ctx, systemPrompt, userPrompt, creativeTemperature)
		if err != nil {
			lastErr = services.Wrap(services.ErrTransient, "script", "generate",
				fmt.Sprintf("candidate %d", i+1), err)
			continue
		}
		result, err := Parse(payload)
		if err != nil {
			lastErr = err
			continue
		}
		survivors = append(survivors, result)
	}
	if len(survivors) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, services.Wrap(services.ErrTransient, "script", "generate", "no candidates produced", nil)
	}
	return Select(survivors, selection), nil
}

// Select picks one script from the surviving candidates. "shortest" picks
// the fewest total words (ties broken by order); anything else picks the
// first.
func Select(candidates []*Result, selection string) *Result {
	if len(candidates) == 0 {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(selection), "shortest") {
		best := candidates[0]
		for _, candidate := range candidates[1:] {
			if candidate.WordCount() < best.WordCount() {
				best = candidate
			}
		}
		return best
	}
	return candidates[0]
}
