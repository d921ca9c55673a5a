package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/calendar"
	appconfig "github.com/The-Ops-King/closerMetrix-sub003/internal/config"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/transcripts"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// BuildEventSource connects to Google Calendar using the base64-encoded
// service account credentials. Returns an error when credentials are
// missing; the processing side cannot run without event detail.
func BuildEventSource(ctx context.Context, cfg *appconfig.Config, calendars calendar.CalendarResolver, logger *logging.Logger) (calendar.EventSource, error) {
	if strings.TrimSpace(cfg.CalendarCredentialsB64) == "" {
		return nil, fmt.Errorf("bootstrap: CALENDAR_CREDENTIALS_B64 is required")
	}
	svc, err := calendar.NewGoogleService(ctx, cfg.CalendarCredentialsB64)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: calendar service: %w", err)
	}
	return calendar.NewGoogleSource(svc, calendars, logger), nil
}

// BuildTranscriptProvider returns the S3-backed transcript source, or nil
// when no bucket is configured.
func BuildTranscriptProvider(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) transcripts.Provider {
	if strings.TrimSpace(cfg.TranscriptBucket) == "" {
		if logger != nil {
			logger.Warn("no transcript bucket configured; transcript processing disabled")
		}
		return nil
	}
	return transcripts.NewS3Provider(s3.NewFromConfig(awsCfg), cfg.TranscriptBucket, logger)
}

// BuildTranscriptAnalyzer selects the analyzer backend per configuration.
func BuildTranscriptAnalyzer(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (transcripts.Analyzer, string, error) {
	selection := transcripts.AnalyzerSelectionConfig{
		Preference:     cfg.TranscriptAnalyzer,
		BedrockModelID: cfg.BedrockModelID,
		GeminiAPIKey:   cfg.GeminiAPIKey,
	}
	if cfg.BedrockModelID != "" {
		selection.BedrockClient = bedrockruntime.NewFromConfig(awsCfg)
	}

	analyzer, backend, err := transcripts.BuildAnalyzer(ctx, selection)
	if err != nil {
		return nil, "", err
	}
	if logger != nil {
		logger.Info("transcript analyzer selected", "backend", backend)
	}
	return analyzer, backend, nil
}
