package publish

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"loom/internal/logging"
	"loom/internal/services/persona"
)

const captionSystemPrompt = `You write short social media captions for product
videos. One or two sentences in the persona's voice, 2-4 relevant hashtags,
no emojis at the start. Respond with the caption text only.`

const defaultCaptionModel = "claude-haiku-4-5"

// Captioner generates post captions, falling back to a static caption when
// generation fails so publishing never blocks on the caption.
type Captioner struct {
	apiKey string
	model  string
	logger *slog.Logger
}

// NewCaptioner builds a captioner. An empty API key disables generation;
// every caption falls back to the static template.
func NewCaptioner(apiKey, model string, logger *slog.Logger) *Captioner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(model) == "" {
		model = defaultCaptionModel
	}
	return &Captioner{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		logger: logging.NewComponentLogger(logger, "captioner"),
	}
}

// Caption produces a caption for the product in the persona's voice.
func (c *Captioner) Caption(productName string, per *persona.Result) string {
	fallback := staticCaption(productName)
	if c.apiKey == "" {
		return fallback
	}

	userPrompt := fmt.Sprintf("Product: %s", productName)
	if per != nil {
		userPrompt = fmt.Sprintf("Product: %s\nPersona: %s, %s. Tone: %s.",
			productName, per.Name, per.Occupation, per.Tone)
	}
	settings := types.RequestSettings{
		Model:       c.model,
		MaxTokens:   200,
		Temperature: 0.7,
	}
	response, err := anthropic.PromptWithSettings(captionSystemPrompt, userPrompt, "", c.apiKey, settings)
	if err != nil {
		c.logger.Warn("caption generation failed, using fallback", logging.Error(err))
		return fallback
	}
	if len(response.Content) == 0 || strings.TrimSpace(response.Content[0].Text) == "" {
		c.logger.Warn("caption generation returned empty content, using fallback")
		return fallback
	}
	return strings.TrimSpace(response.Content[0].Text)
}

func staticCaption(productName string) string {
	name := strings.TrimSpace(productName)
	if name == "" {
		return "You need to see this. #fyp #musthave"
	}
	return fmt.Sprintf("Obsessed with my %s. You need to see this. #fyp #musthave", name)
}
