// Package bootstrap wires configuration into the running service.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/pharmacy-assistant/internal/auditlog"
	"github.com/wolfman30/pharmacy-assistant/internal/calendar"
	appconfig "github.com/wolfman30/pharmacy-assistant/internal/config"
	"github.com/wolfman30/pharmacy-assistant/internal/notify"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; free/busy cache disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildCalendar returns the configured calendar gateway, wrapped in the
// free/busy cache when a Redis client is supplied.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (calendar.Gateway, error) {
	var gateway calendar.Gateway
	switch cfg.CalendarProvider {
	case "google":
		g, err := calendar.NewGoogleGateway(ctx, calendar.GoogleConfig{
			CalendarID:          cfg.GoogleCalendarID,
			ServiceAccountEmail: cfg.GoogleServiceAccountEmail,
			PrivateKey:          cfg.GoogleServiceAccountKey,
			TimeZone:            cfg.ClinicTimezone,
			Timeout:             cfg.CalendarTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
		}
		gateway = g
	case "memory", "":
		logger.Warn("using in-memory calendar; appointments are lost on restart")
		gateway = calendar.NewMemoryGateway()
	default:
		return nil, fmt.Errorf("bootstrap: unknown calendar provider %q", cfg.CalendarProvider)
	}

	if redisClient != nil && cfg.FreeBusyCacheTTL > 0 {
		logger.Info("free/busy cache enabled", "ttl", cfg.FreeBusyCacheTTL)
		gateway = calendar.NewCachedGateway(gateway, redisClient, cfg.FreeBusyCacheTTL, logger)
	}
	return gateway, nil
}

// BuildAuditSink returns the spreadsheet sink when GSHEET_ID is set and a
// log-only sink otherwise.
func BuildAuditSink(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (auditlog.Sink, error) {
	if strings.TrimSpace(cfg.GSheetID) == "" {
		return auditlog.NewLogSink(logger), nil
	}
	creds, err := calendar.ServiceAccountJSON(cfg.GoogleServiceAccountEmail, cfg.GoogleServiceAccountKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: audit sheet credentials: %w", err)
	}
	sink, err := auditlog.NewSheetsSink(ctx, auditlog.SheetsConfig{
		SpreadsheetID: cfg.GSheetID,
		Tab:           cfg.GSheetTab,
	}, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: audit sheet: %w", err)
	}
	return sink, nil
}

// BuildNotifier returns a SendGrid sender, or a logging stub without an API key.
func BuildNotifier(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		return sender
	}
	return notify.NewStubEmailSender(logger)
}
