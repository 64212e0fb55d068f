package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/poker-everest/go/internal/store"
	"github.com/rs/zerolog/log"
)

// StoreHealth defines what the checker needs from the room store.
type StoreHealth interface {
	Health(ctx context.Context) store.Health
}

// BusHealth defines what the checker needs from the room fan-out bus.
type BusHealth interface {
	Connected() bool
}

type HealthStatus struct {
	Healthy      bool
	Store        store.Health
	BusConnected bool
	Errors       []string
}

// HealthChecker serves liveness and readiness for the service.
type HealthChecker struct {
	store     StoreHealth
	bus       BusHealth
	metrics   *PrometheusMetrics
	clock     clockwork.Clock
	startedAt time.Time
}

// NewHealthChecker builds a checker. bus and metrics may be nil.
func NewHealthChecker(st StoreHealth, bus BusHealth, metrics *PrometheusMetrics, clock clockwork.Clock) *HealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthChecker{
		store:     st,
		bus:       bus,
		metrics:   metrics,
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// Check reports readiness: a configured store that cannot be reached, or a
// disconnected bus, makes the service unready.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:      true,
		Store:        h.store.Health(ctx),
		BusConnected: true,
		Errors:       []string{},
	}

	if !status.Store.Ready() {
		status.Healthy = false
		status.Errors = append(status.Errors, "room store unreachable")
	}

	if h.bus != nil {
		status.BusConnected = h.bus.Connected()
		if !status.BusConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.metrics != nil {
		h.metrics.SetStoreReady(status.Store.Ready())
	}
	return status
}

// Uptime is the time since the checker was created.
func (h *HealthChecker) Uptime() time.Duration {
	return h.clock.Since(h.startedAt)
}

// ServeLive handles GET /health.
func (h *HealthChecker) ServeLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(h.Uptime().Seconds()),
		"timestamp":      h.clock.Now().UTC(),
	})
}

// ServeHTTP handles GET /ready.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"healthy":         status.Healthy,
		"store_mode":      status.Store.Mode,
		"store_status":    status.Store.Status(),
		"store_connected": status.Store.Connected,
		"bus_connected":   status.BusConnected,
		"errors":          status.Errors,
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode health response")
	}
}
