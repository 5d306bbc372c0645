package server

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/playperu/tuttifrutti/internal/room"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker(slog.New(slog.DiscardHandler))
	a, c, other := make(chan []byte, 1), make(chan []byte, 1), make(chan []byte, 1)
	b.Subscribe("1234", a)
	b.Subscribe("1234", c)
	b.Subscribe("9999", other)

	b.Publish("1234", room.Event{Type: room.EventGameReset})

	for _, ch := range []chan []byte{a, c} {
		select {
		case data := <-ch:
			var ev struct{ Type string }
			if err := json.Unmarshal(data, &ev); err != nil || ev.Type != room.EventGameReset {
				t.Errorf("event = %s (%v)", data, err)
			}
		default:
			t.Error("subscriber got nothing")
		}
	}
	if len(other) != 0 {
		t.Error("event leaked to another room")
	}
}

func TestBrokerDropsForFullBuffer(t *testing.T) {
	b := NewBroker(slog.New(slog.DiscardHandler))
	ch := make(chan []byte, 1)
	b.Subscribe("1234", ch)

	b.Publish("1234", room.Event{Type: room.EventCalculating})
	b.Publish("1234", room.Event{Type: room.EventGameReset})

	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1", len(ch))
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker(slog.New(slog.DiscardHandler))
	ch := make(chan []byte, 1)
	b.Subscribe("1234", ch)
	if n := b.Subscribers("1234"); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}

	b.Unsubscribe("1234", ch)
	b.Publish("1234", room.Event{Type: room.EventGameReset})

	if n := b.Subscribers("1234"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
	if len(ch) != 0 {
		t.Error("unsubscribed channel received an event")
	}
}
