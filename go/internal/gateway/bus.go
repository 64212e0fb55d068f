package gateway

import (
	"encoding/json"
	"sync"
)

// Envelope is one encoded room message on its way to every process that
// holds connections for the room.
type Envelope struct {
	RoomID string `json:"roomId"`
	// MigratedFrom is set when the room changed its id; receivers repoint
	// their connections before delivering.
	MigratedFrom string          `json:"migratedFrom,omitempty"`
	Frame        json.RawMessage `json:"frame"`
}

// DeliverFunc hands a received envelope to the local connections.
type DeliverFunc func(env Envelope)

// Bus fans room messages out to every gateway process. Envelopes for one
// room are delivered in publish order.
type Bus interface {
	Publish(env Envelope) error
	Subscribe(deliver DeliverFunc) error
	Connected() bool
	Close() error
}

// LocalBus delivers envelopes in-process. It serves single instance
// deployments and tests.
type LocalBus struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(env Envelope) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()

	if deliver != nil {
		deliver(env)
	}
	return nil
}

func (b *LocalBus) Subscribe(deliver DeliverFunc) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) Connected() bool { return true }

func (b *LocalBus) Close() error { return nil }
