package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

const analyzerSystemPrompt = `You review sales call transcripts. Answer with a single JSON object:
{"substantive": bool, "speakers": int}
"substantive" is true only when at least two distinct people hold a real conversation.
Voicemail greetings, hold music descriptions, and one person narrating alone are not substantive.`

// BedrockAnalyzer judges transcript substance with a Bedrock model.
type BedrockAnalyzer struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockAnalyzer creates a Bedrock-backed analyzer.
func NewBedrockAnalyzer(api bedrockConverseAPI, modelID string) (*BedrockAnalyzer, error) {
	if api == nil {
		return nil, errors.New("transcripts: bedrock client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("transcripts: bedrock model id is required")
	}
	return &BedrockAnalyzer{api: api, modelID: modelID}, nil
}

// Analyze sends the transcript text to the model and parses its verdict.
func (a *BedrockAnalyzer) Analyze(ctx context.Context, t *Transcript) (Analysis, Usage, error) {
	started := time.Now()
	out, err := a.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(a.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: analyzerSystemPrompt},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: t.Text},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(128),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return Analysis{}, Usage{}, fmt.Errorf("transcripts: bedrock converse: %w", err)
	}

	usage := Usage{Model: a.modelID, Duration: time.Since(started)}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			usage.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			usage.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return Analysis{}, usage, err
	}
	analysis, err := parseVerdict(text)
	if err != nil {
		return Analysis{}, usage, err
	}
	return analysis, usage, nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("transcripts: unexpected bedrock output type")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(textBlock.Value)
		}
	}
	return sb.String(), nil
}

func parseVerdict(text string) (Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Analysis{}, fmt.Errorf("transcripts: no JSON verdict in model output")
	}
	var verdict struct {
		Substantive bool `json:"substantive"`
		Speakers    int  `json:"speakers"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &verdict); err != nil {
		return Analysis{}, fmt.Errorf("transcripts: parse verdict: %w", err)
	}
	return Analysis{Substantive: verdict.Substantive, Speakers: verdict.Speakers}, nil
}

var _ Analyzer = (*BedrockAnalyzer)(nil)
