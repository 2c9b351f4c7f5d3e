// Package storyboard turns a three-scene script into a timed shot plan for
// the render service. Scene durations follow fixed weights over the total
// runtime; dialogue length is checked against per-scene word bands but a
// band miss is reported, not fatal, since the render service tolerates
// slightly off-length narration.
package storyboard

import (
	"fmt"
	"strings"

	"loom/internal/services"
)

// SceneCount is the fixed number of scenes per video.
const SceneCount = 3

var sceneWeights = [SceneCount]float64{0.32, 0.36, 0.32}

// wordBands holds the inclusive dialogue word range per scene.
var wordBands = [SceneCount][2]int{
	{18, 22},
	{20, 24},
	{17, 20},
}

var allowedTotals = map[int]struct{}{10: {}, 15: {}, 25: {}}

// Scene is one timed segment of the storyboard.
type Scene struct {
	Index           int    `json:"index"`
	Dialogue        string `json:"dialogue"`
	DurationSeconds int    `json:"duration_seconds"`
	WordCount       int    `json:"word_count"`
}

// Storyboard is the timed plan submitted to the render service.
type Storyboard struct {
	Scenes       []Scene `json:"scenes"`
	TotalSeconds int     `json:"total_seconds"`
}

// Finding reports a dialogue that falls outside its scene's word band.
type Finding struct {
	SceneIndex int
	WordCount  int
	Min        int
	Max        int
}

func (f Finding) String() string {
	return fmt.Sprintf("scene %d: %d words outside band %d-%d", f.SceneIndex+1, f.WordCount, f.Min, f.Max)
}

// Build assembles a storyboard from exactly three scene dialogues. The first
// two scenes take their weighted share of the runtime rounded to whole
// seconds; the final scene absorbs the remainder so durations always sum to
// totalSeconds. Returned findings flag word-band misses and should be logged
// by the caller; they never block production.
func Build(dialogues []string, totalSeconds int) (*Storyboard, []Finding, error) {
	if len(dialogues) != SceneCount {
		return nil, nil, services.Wrap(services.ErrValidation, "storyboard", "build",
			fmt.Sprintf("expected %d scenes, got %d", SceneCount, len(dialogues)), nil)
	}
	if _, ok := allowedTotals[totalSeconds]; !ok {
		return nil, nil, services.Wrap(services.ErrValidation, "storyboard", "build",
			fmt.Sprintf("unsupported total duration %ds", totalSeconds), nil)
	}
	for i, dialogue := range dialogues {
		if strings.TrimSpace(dialogue) == "" {
			return nil, nil, services.Wrap(services.ErrValidation, "storyboard", "build",
				fmt.Sprintf("scene %d dialogue is empty", i+1), nil)
		}
	}

	sb := &Storyboard{
		Scenes:       make([]Scene, SceneCount),
		TotalSeconds: totalSeconds,
	}
	remaining := totalSeconds
	for i, dialogue := range dialogues {
		duration := remaining
		if i < SceneCount-1 {
			duration = int(float64(totalSeconds)*sceneWeights[i] + 0.5)
			remaining -= duration
		}
		sb.Scenes[i] = Scene{
			Index:           i,
			Dialogue:        strings.TrimSpace(dialogue),
			DurationSeconds: duration,
			WordCount:       len(strings.Fields(dialogue)),
		}
	}

	var findings []Finding
	for i, scene := range sb.Scenes {
		band := wordBands[i]
		if scene.WordCount < band[0] || scene.WordCount > band[1] {
			findings = append(findings, Finding{
				SceneIndex: i,
				WordCount:  scene.WordCount,
				Min:        band[0],
				Max:        band[1],
			})
		}
	}
	return sb, findings, nil
}
