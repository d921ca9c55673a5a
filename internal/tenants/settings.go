// Package tenants provides per-tenant pipeline settings and their persistence.
package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Settings holds tenant-specific knobs for the classification pipeline.
// Zero values fall back to the deployment-wide defaults at read time.
type Settings struct {
	OrgID string `json:"org_id"`
	// OutcomeGracePeriod is how long after a call's scheduled end the
	// sweeper waits for a transcript before marking the call ghosted.
	OutcomeGracePeriod time.Duration `json:"outcome_grace_period,omitempty"`
	// MinTranscriptChars is the substantive-dialogue length floor.
	MinTranscriptChars int `json:"min_transcript_chars,omitempty"`
	// MinSpeakers is the substantive-dialogue speaker floor.
	MinSpeakers int `json:"min_speakers,omitempty"`
	// DefaultCloser is assigned to calls whose calendar event names no owner.
	DefaultCloser string `json:"default_closer,omitempty"`
	// CalendarID is the tenant's Google calendar to poll. Empty means the
	// tenant's primary calendar.
	CalendarID string `json:"calendar_id,omitempty"`
}

// Defaults are the deployment-wide fallbacks applied when a tenant has not
// overridden a knob.
type Defaults struct {
	OutcomeGracePeriod time.Duration
	MinTranscriptChars int
	MinSpeakers        int
}

// SettingsProvider resolves effective settings for a tenant.
type SettingsProvider interface {
	Settings(ctx context.Context, orgID string) (*Settings, error)
}

// Store persists tenant settings in Redis.
type Store struct {
	redis    *redis.Client
	defaults Defaults
}

// NewStore creates a tenant settings store.
func NewStore(redisClient *redis.Client, defaults Defaults) *Store {
	return &Store{redis: redisClient, defaults: defaults}
}

func (s *Store) key(orgID string) string {
	return fmt.Sprintf("tenant:settings:%s", orgID)
}

// Settings retrieves a tenant's settings with defaults applied for any
// knob the tenant has not overridden. A tenant with no stored settings
// gets pure defaults.
func (s *Store) Settings(ctx context.Context, orgID string) (*Settings, error) {
	settings := &Settings{OrgID: orgID}

	data, err := s.redis.Get(ctx, s.key(orgID)).Bytes()
	switch {
	case err == redis.Nil:
		// no overrides stored
	case err != nil:
		return nil, fmt.Errorf("tenants: get settings: %w", err)
	default:
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("tenants: unmarshal settings: %w", err)
		}
		settings.OrgID = orgID
	}

	if settings.OutcomeGracePeriod <= 0 {
		settings.OutcomeGracePeriod = s.defaults.OutcomeGracePeriod
	}
	if settings.MinTranscriptChars <= 0 {
		settings.MinTranscriptChars = s.defaults.MinTranscriptChars
	}
	if settings.MinSpeakers <= 0 {
		settings.MinSpeakers = s.defaults.MinSpeakers
	}
	return settings, nil
}

// Set saves tenant settings overrides.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("tenants: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.OrgID), data, 0).Err(); err != nil {
		return fmt.Errorf("tenants: set settings: %w", err)
	}
	return nil
}

// CalendarID resolves the tenant's watched calendar, defaulting to the
// primary calendar when no override is stored.
func (s *Store) CalendarID(ctx context.Context, orgID string) (string, error) {
	settings, err := s.Settings(ctx, orgID)
	if err != nil {
		return "", err
	}
	if settings.CalendarID == "" {
		return "primary", nil
	}
	return settings.CalendarID, nil
}

var _ SettingsProvider = (*Store)(nil)

// StaticProvider serves the deployment defaults for every tenant. It backs
// deployments that run without Redis.
type StaticProvider struct {
	defaults Defaults
}

// NewStaticProvider creates a provider with no per-tenant overrides.
func NewStaticProvider(defaults Defaults) *StaticProvider {
	return &StaticProvider{defaults: defaults}
}

// Settings returns the deployment defaults for any org.
func (p *StaticProvider) Settings(_ context.Context, orgID string) (*Settings, error) {
	return &Settings{
		OrgID:              orgID,
		OutcomeGracePeriod: p.defaults.OutcomeGracePeriod,
		MinTranscriptChars: p.defaults.MinTranscriptChars,
		MinSpeakers:        p.defaults.MinSpeakers,
	}, nil
}

// CalendarID always resolves the tenant's primary calendar.
func (p *StaticProvider) CalendarID(_ context.Context, _ string) (string, error) {
	return "primary", nil
}

var _ SettingsProvider = (*StaticProvider)(nil)
