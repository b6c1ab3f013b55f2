// =============================================================================
// pkg/events/events.go - Import Error Event Bus
// =============================================================================
//
// Non-fatal import failures (malformed lines, unreachable files, store
// failures) are published here instead of being returned to the caller.
// Delivery is synchronous and fire-and-forget: a subscriber that panics is
// recovered and never affects the import run.
//
// =============================================================================

package events

import (
	"sync"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

// Subscriber receives one import error.
type Subscriber func(e types.ImportError)

// Bus fans ImportError events out to its subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
	panics int64
}

type subscription struct {
	id int
	fn Subscriber
}

var _ interfaces.Emitter = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers e to every subscriber in subscription order.
func (b *Bus) Emit(e types.ImportError) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.fn, e)
	}
}

// Panics returns how many subscriber calls panicked.
func (b *Bus) Panics() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.panics
}

func (b *Bus) deliver(fn Subscriber, e types.ImportError) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.panics++
			b.mu.Unlock()
		}
	}()
	fn(e)
}

// LogSubscriber returns a Subscriber that writes each event to the error log.
func LogSubscriber(logger interfaces.Logger) Subscriber {
	return func(e types.ImportError) {
		if e.Source == "" {
			logger.Error("import error [%s]: %v", errors.CodeOf(e.Err), e.Err)
			return
		}
		logger.Error("import error [%s] %s@%d: %v", errors.CodeOf(e.Err), e.Source, e.Offset, e.Err)
	}
}
