package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the cross-process room bus
type NATSConfig struct {
	URL           string
	SubjectPrefix string // room messages go to <prefix>.<room id>
	ClientName    string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS bus configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "poker.rooms",
		ClientName:    "poker-gateway",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBus publishes room envelopes on core NATS subjects and delivers
// everything published under the prefix, including this process's own
// messages, back to the local connections.
type NATSBus struct {
	nc     *nats.Conn
	config NATSConfig

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewNATSBus connects to NATS.
func NewNATSBus(config NATSConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name(config.ClientName),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("subject_prefix", config.SubjectPrefix).Msg("NATS room bus connected")
	return &NATSBus{nc: nc, config: config}, nil
}

func (b *NATSBus) subject(roomID string) string {
	return b.config.SubjectPrefix + "." + roomID
}

func (b *NATSBus) Publish(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.nc.Publish(b.subject(env.RoomID), data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.subject(env.RoomID), err)
	}
	return nil
}

// Subscribe starts delivery. NATS invokes the handler from one goroutine
// per subscription, which keeps per-room order.
func (b *NATSBus) Subscribe(deliver DeliverFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		return fmt.Errorf("room bus already subscribed")
	}

	sub, err := b.nc.Subscribe(b.config.SubjectPrefix+".*", func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal room envelope")
			return
		}
		deliver(env)
	})
	if err != nil {
		return fmt.Errorf("subscribe to room bus: %w", err)
	}
	b.sub = sub
	return nil
}

func (b *NATSBus) Connected() bool {
	return b.nc.IsConnected()
}

// Close drops the subscription and the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe from room bus")
		}
	}
	b.nc.Close()
	return nil
}
