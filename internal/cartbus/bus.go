// Package cartbus fans cart events out to live storefront listeners.
package cartbus

import (
	"context"
	"sync"
	"time"

	"catalog-service/internal/models"

	"github.com/sirupsen/logrus"
)

// Event types
const (
	ItemAdded   = "cart.item.added"
	ItemRemoved = "cart.item.removed"
)

// Event is one change to a cart
type Event struct {
	Type     string           `json:"type"`
	TenantID string           `json:"tenantId"`
	CartID   string           `json:"cartId"`
	Item     *models.CartItem `json:"item,omitempty"`
	At       time.Time        `json:"at"`
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Bus delivers events to the subscribers of the cart they belong to.
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
	logger *logrus.Entry
}

// New creates a bus; buffer is the per-subscriber channel capacity
func New(buffer int, logger *logrus.Logger) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger.WithField("component", "cartbus"),
	}
}

func cartKey(tenantID, cartID string) string {
	return tenantID + ":" + cartID
}

// Subscribe registers a listener for one cart. The returned channel is
// closed by the unsubscribe func or when ctx is done, whichever comes first.
func (b *Bus) Subscribe(ctx context.Context, tenantID, cartID string) (<-chan Event, func()) {
	key := cartKey(tenantID, cartID)
	sub := &subscriber{ch: make(chan Event, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*subscriber]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[key], sub)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			close(sub.ch)
			b.mu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()

	return sub.ch, unsubscribe
}

// Publish delivers e to the listeners of its cart and returns how many
// received it
func (b *Bus) Publish(e Event) int {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.subs[cartKey(e.TenantID, e.CartID)] {
		select {
		case sub.ch <- e:
			delivered++
		default:
			b.logger.WithFields(logrus.Fields{
				"cart_id": e.CartID,
				"type":    e.Type,
			}).Debug("Dropped cart event for slow subscriber")
		}
	}
	return delivered
}

// Subscribers returns the number of listeners of a cart
func (b *Bus) Subscribers(tenantID, cartID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[cartKey(tenantID, cartID)])
}
