package transcripts

import (
	"context"
	"fmt"
	"strings"
)

const (
	// AnalyzerAuto picks Bedrock when configured, then Gemini, then the heuristic.
	AnalyzerAuto = "auto"
	// AnalyzerBedrock forces the Bedrock model when credentials exist.
	AnalyzerBedrock = "bedrock"
	// AnalyzerGemini forces the Gemini model when an API key exists.
	AnalyzerGemini = "gemini"
	// AnalyzerHeuristic uses speaker/length counting with no model call.
	AnalyzerHeuristic = "heuristic"
)

// AnalyzerSelectionConfig captures the credentials needed to build an analyzer.
type AnalyzerSelectionConfig struct {
	Preference     string
	BedrockClient  bedrockConverseAPI
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModel    string
}

// BuildAnalyzer instantiates an Analyzer based on the preferred backend.
// It returns the analyzer and the backend that was selected. The heuristic
// needs no configuration, so auto selection always succeeds.
func BuildAnalyzer(ctx context.Context, cfg AnalyzerSelectionConfig) (Analyzer, string, error) {
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = AnalyzerAuto
	}

	bedrockReady := cfg.BedrockClient != nil && cfg.BedrockModelID != ""
	geminiReady := cfg.GeminiAPIKey != ""

	switch preference {
	case AnalyzerBedrock:
		if !bedrockReady {
			return nil, "", fmt.Errorf("transcripts: bedrock analyzer not configured")
		}
		a, err := NewBedrockAnalyzer(cfg.BedrockClient, cfg.BedrockModelID)
		return a, AnalyzerBedrock, err
	case AnalyzerGemini:
		if !geminiReady {
			return nil, "", fmt.Errorf("transcripts: gemini analyzer not configured")
		}
		a, err := NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		return a, AnalyzerGemini, err
	case AnalyzerHeuristic:
		return NewHeuristicAnalyzer(), AnalyzerHeuristic, nil
	case AnalyzerAuto:
		if bedrockReady {
			a, err := NewBedrockAnalyzer(cfg.BedrockClient, cfg.BedrockModelID)
			return a, AnalyzerBedrock, err
		}
		if geminiReady {
			a, err := NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			return a, AnalyzerGemini, err
		}
		return NewHeuristicAnalyzer(), AnalyzerHeuristic, nil
	default:
		return nil, "", fmt.Errorf("transcripts: unknown analyzer %q", preference)
	}
}
