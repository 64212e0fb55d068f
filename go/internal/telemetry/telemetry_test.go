package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerAddsServiceFields(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	setupLogger(&buf, "debug", "production")
	log.Debug().Str("room_id", "ABC1234").Msg("room created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "poker-everest-server", line["service"])
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "ABC1234", line["room_id"])
	assert.Equal(t, "debug", line["level"])
}

func TestSetupLoggerLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			setupLogger(&buf, tt.level, "development")
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

type capturedEvents struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capturedEvents) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) all() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sentry.Event(nil), c.events...)
}

func captureSentry(t *testing.T) *capturedEvents {
	t.Helper()
	captured := &capturedEvents{}
	require.NoError(t, sentry.Init(sentry.ClientOptions{BeforeSend: captured.beforeSend}))
	t.Cleanup(func() { _ = sentry.Init(sentry.ClientOptions{}) })
	return captured
}

func TestRecoverReportsPanic(t *testing.T) {
	captured := captureSentry(t)

	func() {
		defer Recover("connection", map[string]string{"connection_id": "c1"})
		panic("boom")
	}()

	events := captured.all()
	require.Len(t, events, 1)
	assert.Equal(t, "connection", events[0].Tags["scope"])
	assert.Equal(t, "c1", events[0].Tags["connection_id"])
}

func TestRecoverWithoutPanic(t *testing.T) {
	captured := captureSentry(t)

	func() {
		defer Recover("connection", nil)
	}()

	assert.Empty(t, captured.all())
}

func TestCaptureError(t *testing.T) {
	captured := captureSentry(t)

	CaptureError(nil, nil)
	CaptureError(errors.New("store exploded"), map[string]string{"room_id": "R1"})

	events := captured.all()
	require.Len(t, events, 1)
	assert.Equal(t, "R1", events[0].Tags["room_id"])
}

func TestInitSentryWithoutDSN(t *testing.T) {
	flush, err := InitSentry(SentryConfig{})
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}
