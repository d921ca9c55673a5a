// Package bootstrap wires shared infrastructure for the api and worker
// binaries so both share the same Redis/alerting/provider selection.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/alerts"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calendar"
	appconfig "github.com/The-Ops-King/closerMetrix-sub003/internal/config"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/tenants"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// TenantSettings combines per-tenant settings lookup with calendar
// resolution; both the Redis-backed store and the static fallback satisfy it.
type TenantSettings interface {
	tenants.SettingsProvider
	calendar.CalendarResolver
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildTenantSettings returns the Redis-backed settings store, falling back
// to deployment defaults when Redis is unavailable.
func BuildTenantSettings(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) TenantSettings {
	defaults := tenants.Defaults{
		OutcomeGracePeriod: cfg.OutcomeGracePeriod,
		MinTranscriptChars: cfg.MinTranscriptChars,
		MinSpeakers:        cfg.MinSpeakers,
	}
	if redisClient == nil {
		if logger != nil {
			logger.Warn("tenant settings store disabled; using deployment defaults for all orgs")
		}
		return tenants.NewStaticProvider(defaults)
	}
	return tenants.NewStore(redisClient, defaults)
}

// BuildAlertService selects an email transport for operator alerts: SendGrid
// when an API key is configured, SES when a verified sender is, and a
// log-only stub otherwise.
func BuildAlertService(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *alerts.Service {
	if logger == nil {
		logger = logging.Default()
	}

	recipients := splitRecipients(cfg.AlertRecipients)

	var sender alerts.EmailSender
	preference := cfg.AlertEmailProvider
	if preference == "" {
		preference = "auto"
	}

	if (preference == "auto" || preference == "sendgrid") && cfg.SendGridAPIKey != "" {
		if sg := alerts.NewSendGridSender(alerts.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sg != nil {
			sender = sg
			logger.Info("alert email transport selected", "provider", "sendgrid")
		}
	}
	if sender == nil && (preference == "auto" || preference == "ses") && cfg.SESFromEmail != "" {
		if ses := alerts.NewSESSender(sesv2.NewFromConfig(awsCfg), alerts.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); ses != nil {
			sender = ses
			logger.Info("alert email transport selected", "provider", "ses")
		}
	}
	if sender == nil {
		sender = alerts.NewStubEmailSender(logger)
		logger.Warn("no alert email transport configured; alerts will only be logged")
	}

	return alerts.NewService(sender, recipients, logger)
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
