package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/playperu/tuttifrutti/internal/room"
)

// Broker is an in-process pub/sub for room events, keyed by room code. Each
// websocket session subscribes its outbound channel to the room it joined.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[chan []byte]struct{}),
		logger: logger,
	}
}

func (b *Broker) Subscribe(code string, ch chan []byte) {
	b.mu.Lock()
	if b.subs[code] == nil {
		b.subs[code] = make(map[chan []byte]struct{})
	}
	b.subs[code][ch] = struct{}{}
	b.mu.Unlock()
}

func (b *Broker) Unsubscribe(code string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[code], ch)
	if len(b.subs[code]) == 0 {
		delete(b.subs, code)
	}
	b.mu.Unlock()
}

func (b *Broker) Subscribers(code string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[code])
}

// Publish sends an event to every session in the room. It never blocks: a
// session whose buffer is full misses the event.
func (b *Broker) Publish(code string, ev room.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("encoding event", "room", code, "type", ev.Type, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[code] {
		select {
		case ch <- data:
		default:
			b.logger.Warn("dropped event for slow session", "room", code, "type", ev.Type)
		}
	}
}
