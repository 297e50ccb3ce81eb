package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/ghuser/lendingclub/pkg/config"
)

const requestTraceSampleRate = 0.2

// SetupSentry initializes the Sentry SDK. No-op when SENTRY_DSN is empty.
// Every event carries the store and clock modes so a report can be tied to
// the deployment shape that produced it.
func SetupSentry(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentryOptions(cfg)); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(deploymentTags(cfg))
	})
	return nil
}

func sentryOptions(cfg *config.Config) sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.ServiceName + "@" + cfg.ServiceVersion,
		ServerName:       cfg.ServiceName,
		TracesSampleRate: requestTraceSampleRate,
	}
}

func deploymentTags(cfg *config.Config) map[string]string {
	return map[string]string{
		"store_mode": cfg.StoreMode,
		"clock_mode": cfg.ClockMode,
	}
}

// SentryFlush flushes buffered events before process exit.
func SentryFlush() {
	sentry.Flush(2 * time.Second)
}

// SentryMiddleware captures panics and re-raises them for logger.Recovery,
// which writes the 500.
func SentryMiddleware() func(http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle
}

// CaptureError reports err with the given tags. No-op when Sentry is off.
func CaptureError(err error, tags map[string]string) {
	hub := sentry.CurrentHub()
	if err == nil || hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}
