package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/poker-everest/go/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStore struct{ health store.Health }

func (s fixedStore) Health(context.Context) store.Health { return s.health }

type fixedBus struct{ connected bool }

func (b fixedBus) Connected() bool { return b.connected }

func TestCountersAndGauges(t *testing.T) {
	m := NewPrometheusMetrics()

	m.RoomCreated()
	m.RoomCreated()
	m.VoteSubmitted()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetActiveRooms(7)
	m.EventHandled("vote", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.roomsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.disconnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsHandled.WithLabelValues("vote", "ok")))
}

func TestHandlerExposesPokerMetrics(t *testing.T) {
	m := NewPrometheusMetrics()
	m.HostClaimed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	for _, name := range []string{
		"poker_connections_total",
		"poker_disconnections_total",
		"poker_rooms_created_total",
		"poker_rooms_deleted_total",
		"poker_votes_submitted_total",
		"poker_reactions_sent_total",
		"poker_timer_auto_reveals_total",
		"poker_timer_updates_total",
		"poker_host_claims_total 1",
		"poker_active_connections",
		"poker_active_rooms",
		"poker_store_ready",
	} {
		assert.True(t, strings.Contains(string(body), name), name)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name      string
		health    store.Health
		bus       BusHealth
		wantCode  int
		wantGauge float64
	}{
		{
			name:      "shared store ok",
			health:    store.Health{Mode: store.ModeShared, Configured: true, Connected: true},
			wantCode:  http.StatusOK,
			wantGauge: 1,
		},
		{
			name:      "not configured",
			health:    store.Health{Mode: store.ModeLocal},
			wantCode:  http.StatusOK,
			wantGauge: 1,
		},
		{
			name:      "configured but unreachable",
			health:    store.Health{Mode: store.ModeLocal, Configured: true},
			wantCode:  http.StatusServiceUnavailable,
			wantGauge: 0,
		},
		{
			name:      "bus down",
			health:    store.Health{Mode: store.ModeLocal},
			bus:       fixedBus{connected: false},
			wantCode:  http.StatusServiceUnavailable,
			wantGauge: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPrometheusMetrics()
			checker := NewHealthChecker(fixedStore{health: tt.health}, tt.bus, m, nil)

			rec := httptest.NewRecorder()
			checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantGauge, testutil.ToFloat64(m.storeReady))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.health.Status(), body["store_status"])
		})
	}
}

func TestLivenessReportsUptime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	checker := NewHealthChecker(fixedStore{}, nil, nil, clock)
	clock.Advance(90 * time.Second)

	rec := httptest.NewRecorder()
	checker.ServeLive(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 90.0, body["uptime_seconds"])
}
