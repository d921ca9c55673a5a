package transcripts

import (
	"context"
	"strings"
	"time"
)

// Analysis is the analyzer's judgement of a transcript.
type Analysis struct {
	// Substantive reports whether the transcript contains real two-party
	// dialogue rather than hold music, voicemail, or a closer talking to
	// an empty room.
	Substantive bool
	// Speakers is the analyzer's count of distinct speakers, which may
	// correct the recording pipeline's diarization.
	Speakers int
}

// Usage captures the token spend of one analyzer invocation, recorded as a
// cost record by the caller.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// Analyzer judges transcript substance. Implementations may call an
// external model; the heuristic implementation is deterministic and free.
type Analyzer interface {
	Analyze(ctx context.Context, t *Transcript) (Analysis, Usage, error)
}

// HeuristicAnalyzer applies a deterministic decision without model calls:
// it trusts the pipeline's speaker count and treats any transcript whose
// lines alternate between at least two labeled speakers as substantive.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates the deterministic analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Analyze counts distinct "Name:" speaker labels when the pipeline did not
// provide a speaker count.
func (a *HeuristicAnalyzer) Analyze(_ context.Context, t *Transcript) (Analysis, Usage, error) {
	speakers := t.Speakers
	if speakers == 0 && t.Text != "" {
		speakers = countLabeledSpeakers(t.Text)
	}
	return Analysis{
		Substantive: speakers >= 2,
		Speakers:    speakers,
	}, Usage{}, nil
}

func countLabeledSpeakers(text string) int {
	seen := map[string]struct{}{}
	for _, line := range strings.Split(text, "\n") {
		label, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" || len(label) > 40 || strings.ContainsAny(label, ".?!") {
			continue
		}
		seen[strings.ToLower(label)] = struct{}{}
	}
	return len(seen)
}

var _ Analyzer = (*HeuristicAnalyzer)(nil)
