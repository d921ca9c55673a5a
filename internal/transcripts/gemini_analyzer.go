package transcripts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiAnalyzer judges transcript substance with Google's Gemini API.
type GeminiAnalyzer struct {
	client    *genai.Client
	modelName string
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer. Close releases the
// underlying client.
func NewGeminiAnalyzer(ctx context.Context, apiKey, modelName string) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("transcripts: gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("transcripts: create gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client, modelName: modelName}, nil
}

func (a *GeminiAnalyzer) Close() error {
	return a.client.Close()
}

// Analyze sends the transcript text to Gemini and parses its verdict.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, t *Transcript) (Analysis, Usage, error) {
	model := a.client.GenerativeModel(a.modelName)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(128)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(analyzerSystemPrompt)},
	}

	started := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(t.Text))
	if err != nil {
		return Analysis{}, Usage{}, fmt.Errorf("transcripts: gemini generate: %w", err)
	}

	usage := Usage{Model: a.modelName, Duration: time.Since(started)}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Analysis{}, usage, errors.New("transcripts: empty gemini response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	analysis, err := parseVerdict(sb.String())
	if err != nil {
		return Analysis{}, usage, err
	}
	return analysis, usage, nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
