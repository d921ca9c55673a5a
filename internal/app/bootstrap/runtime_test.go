package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/The-Ops-King/closerMetrix-sub003/internal/config"
)

func TestBuildTenantSettingsFallsBackWithoutRedis(t *testing.T) {
	cfg := &appconfig.Config{
		OutcomeGracePeriod: 3 * time.Hour,
		MinTranscriptChars: 400,
		MinSpeakers:        2,
	}

	provider := BuildTenantSettings(nil, cfg, nil)
	require.NotNil(t, provider)

	settings, err := provider.Settings(context.Background(), "org-a")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, settings.OutcomeGracePeriod)
	assert.Equal(t, 400, settings.MinTranscriptChars)

	calID, err := provider.CalendarID(context.Background(), "org-a")
	require.NoError(t, err)
	assert.Equal(t, "primary", calID)
}

func TestBuildAlertServiceWithoutTransport(t *testing.T) {
	svc := BuildAlertService(&appconfig.Config{}, aws.Config{}, nil)
	require.NotNil(t, svc)
}

func TestSplitRecipients(t *testing.T) {
	assert.Equal(t, []string{"ops@acme.io", "oncall@acme.io"}, splitRecipients("ops@acme.io, oncall@acme.io,"))
	assert.Nil(t, splitRecipients("  "))
}
