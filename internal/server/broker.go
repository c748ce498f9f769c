package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/crzliang/gzbot/internal/journal"
)

// Broker is an in-process pub/sub that streams delivery outcomes to SSE
// subscribers. It satisfies broadcast.Recorder.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan []byte]struct{})}
}

func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Record publishes e to every subscriber. Slow subscribers miss entries.
func (b *Broker) Record(_ context.Context, e journal.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
	return nil
}
