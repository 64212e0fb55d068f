package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

const flushTimeout = 2 * time.Second

// SentryConfig holds error reporting settings.
type SentryConfig struct {
	DSN         string
	Environment string
	SampleRate  float64
	Release     string
}

// InitSentry configures error reporting and returns a flush func to run
// before exit. Without a DSN reporting is disabled and flush is a no-op.
func InitSentry(cfg SentryConfig) (func(), error) {
	if cfg.DSN == "" {
		log.Info().Msg("SENTRY_DSN not set, error reporting disabled")
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
		Release:     cfg.Release,
	}); err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Float64("sample_rate", cfg.SampleRate).
		Msg("sentry initialized")

	return func() { sentry.Flush(flushTimeout) }, nil
}

// CapturePanic reports a recovered panic value with the given tags.
func CapturePanic(recovered interface{}, tags map[string]string) {
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.Recover(recovered)
	})
}

// CaptureError reports an error that is handled but unexpected.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// Recover must be deferred directly. It swallows a panic, logs it and
// reports it so the calling goroutine can end cleanly.
func Recover(scope string, tags map[string]string) {
	r := recover()
	if r == nil {
		return
	}

	reported := map[string]string{"scope": scope}
	event := log.Error().Str("scope", scope).Interface("panic", r)
	for k, v := range tags {
		event = event.Str(k, v)
		reported[k] = v
	}
	event.Msg("recovered from panic")

	CapturePanic(r, reported)
}
