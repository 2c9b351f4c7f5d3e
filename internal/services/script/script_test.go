package script_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"loom/internal/services"
	"loom/internal/services/analysis"
	"loom/internal/services/persona"
	"loom/internal/services/script"
)

type fakeCompleter struct {
	payloads []string
	err      error
	calls    int
}

func (f *fakeCompleter) CompleteCreativeJSON(ctx context.Context, system, user string, temperature float64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	payload := f.payloads[(f.calls-1)%len(f.payloads)]
	return payload, nil
}

func scriptJSON(dialogues ...string) string {
	var sb strings.Builder
	sb.WriteString(`{"scenes":[`)
	for i, d := range dialogues {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"dialogue":"` + d + `"}`)
	}
	sb.WriteString(`]}`)
	return sb.String()
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

var (
	testPersona = &persona.Result{
		Name: "Maya", Age: 27, Occupation: "nurse",
		Tone: "warm", SpeakingStyle: "casual",
	}
	testAnalysis = &analysis.Result{
		Benefits:       []string{"saves time"},
		TargetAudience: "busy parents",
		PainPoints:     []string{"no free time"},
		ProductType:    "physical",
	}
)

func TestGenerateSelectsFirstCandidate(t *testing.T) {
	completer := &fakeCompleter{payloads: []string{
		scriptJSON(words(20), words(22), words(18)),
		scriptJSON(words(19), words(21), words(17)),
	}}
	provider := script.NewProvider(completer)

	got, err := provider.Generate(context.Background(), testPersona, testAnalysis, 2, "first")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("calls = %d, want 2", completer.calls)
	}
	if got.WordCount() != 60 {
		t.Errorf("selected word count = %d, want first candidate (60)", got.WordCount())
	}
}

func TestGenerateSelectsShortestCandidate(t *testing.T) {
	completer := &fakeCompleter{payloads: []string{
		scriptJSON(words(22), words(24), words(20)),
		scriptJSON(words(18), words(20), words(17)),
		scriptJSON(words(20), words(22), words(18)),
	}}
	provider := script.NewProvider(completer)

	got, err := provider.Generate(context.Background(), testPersona, testAnalysis, 3, "shortest")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.WordCount() != 55 {
		t.Errorf("selected word count = %d, want shortest candidate (55)", got.WordCount())
	}
}

func TestGenerateSkipsInvalidCandidates(t *testing.T) {
	// First candidate has only two scenes; generation should still succeed
	// from the second.
	completer := &fakeCompleter{payloads: []string{
		scriptJSON(words(20), words(22)),
		scriptJSON(words(20), words(22), words(18)),
	}}
	provider := script.NewProvider(completer)

	got, err := provider.Generate(context.Background(), testPersona, testAnalysis, 2, "first")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got.Scenes) != script.SceneCount {
		t.Errorf("scenes = %d, want %d", len(got.Scenes), script.SceneCount)
	}
}

func TestGenerateFailsWhenNoCandidateSurvives(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection reset")}
	provider := script.NewProvider(completer)

	_, err := provider.Generate(context.Background(), testPersona, testAnalysis, 3, "first")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}

func TestParseRejectsEmptyDialogue(t *testing.T) {
	_, err := script.Parse(scriptJSON(words(20), "", words(18)))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
