package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 2*time.Hour, cfg.OutcomeGracePeriod)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 500, cfg.MinTranscriptChars)
	assert.Equal(t, 2, cfg.MinSpeakers)
	assert.Equal(t, "auto", cfg.TranscriptAnalyzer)
	assert.Equal(t, 3, cfg.CalendarRetryAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OUTCOME_GRACE_PERIOD", "45m")
	t.Setenv("MIN_TRANSCRIPT_CHARS", "1000")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("TRANSCRIPT_ANALYZER", "Bedrock")
	t.Setenv("MODEL_INPUT_COST_PER_1K", "0.001")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Minute, cfg.OutcomeGracePeriod)
	assert.Equal(t, 1000, cfg.MinTranscriptChars)
	assert.True(t, cfg.UseMemoryQueue)
	assert.Equal(t, "bedrock", cfg.TranscriptAnalyzer)
	assert.Equal(t, 0.001, cfg.ModelInputCostPer1K)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("SWEEP_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
}
