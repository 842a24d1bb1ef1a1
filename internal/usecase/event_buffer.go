package usecase

import (
	"sync"

	"github.com/vitos/liquidation_hunter/internal/domain"
)

// EventBuffer keeps a fixed number of raw liquidation events per symbol.
// Oldest events are evicted FIFO; appends may interleave with rebuild reads,
// which always see an immutable snapshot.
type EventBuffer struct {
	mu       sync.Mutex
	rings    map[string]*eventRing
	capacity int
}

type eventRing struct {
	events []domain.RawLiquidationEvent
	head   int // index of the oldest event
	size   int
}

func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		rings:    make(map[string]*eventRing),
		capacity: capacity,
	}
}

// Append records an event, evicting the oldest one at capacity.
func (b *EventBuffer) Append(ev domain.RawLiquidationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[ev.Symbol]
	if !ok {
		r = &eventRing{events: make([]domain.RawLiquidationEvent, b.capacity)}
		b.rings[ev.Symbol] = r
	}
	if r.size < b.capacity {
		r.events[(r.head+r.size)%b.capacity] = ev
		r.size++
		return
	}
	r.events[r.head] = ev
	r.head = (r.head + 1) % b.capacity
}

// Snapshot copies the symbol's events in arrival order. The returned slice is
// owned by the caller; later appends never mutate it.
func (b *EventBuffer) Snapshot(symbol string) []domain.RawLiquidationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[symbol]
	if !ok || r.size == 0 {
		return nil
	}
	out := make([]domain.RawLiquidationEvent, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.events[(r.head+i)%b.capacity]
	}
	return out
}

func (b *EventBuffer) Len(symbol string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rings[symbol]; ok {
		return r.size
	}
	return 0
}
