// Package notify propagates unread-count change signals between the
// components that write conversations and the views that render badges.
// Counts are never cached: every signal makes the subscriber recompute
// from the conversation store.
package notify

import (
	"context"
	"log"
	"strings"
	"sync"

	"astroconnect/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

// AstrologerScope aggregates every question with an unread user message.
const AstrologerScope = "astrologer"

// UserScope names the notification scope for one question's user side.
func UserScope(questionID string) string {
	return "user-" + questionID
}

const (
	channelPrefix  = "notificationsUpdated:"
	storageChannel = "storage"
)

// Handler receives the freshly recomputed count for its scope.
type Handler func(count int)

type subscriber struct {
	handler Handler
	// wake is buffered with size 1: a burst of signals within one turn
	// collapses into a single recompute.
	wake chan struct{}
	done chan struct{}
}

// Broker is a scope-keyed publish/subscribe hub. Signals fan out to
// in-process subscribers directly and, when a Redis client is attached,
// across processes via pub/sub channels named after the scope. Scope
// keys are opaque; producer and consumer only have to agree on them.
type Broker struct {
	mu     sync.Mutex
	store  storage.ConversationStore
	rdb    *redis.Client
	subs   map[string]map[int]*subscriber
	nextID int

	ctx    context.Context
	cancel context.CancelFunc
	pubsub *redis.PubSub
}

// NewBroker builds a broker over the store. rdb may be nil, in which
// case signals stay in-process.
func NewBroker(store storage.ConversationStore, rdb *redis.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		store:  store,
		rdb:    rdb,
		subs:   make(map[string]map[int]*subscriber),
		ctx:    ctx,
		cancel: cancel,
	}
}

// CountForScope recomputes the unread count for a scope from the store.
func (b *Broker) CountForScope(scope string) int {
	if scope == AstrologerScope {
		return b.store.AstrologerNotificationCount()
	}
	if questionID, ok := strings.CutPrefix(scope, "user-"); ok {
		return b.store.UserNotificationCount(questionID)
	}
	return 0
}

// Subscribe registers a handler for a scope and returns its unsubscribe
// function. The handler runs once immediately with the current count,
// then once per coalesced signal. It also fires on the generic
// storage-changed fallback, so changes the scoped signal cannot see
// (another process, another backend writer) still reach it.
func (b *Broker) Subscribe(scope string, handler Handler) (unsubscribe func()) {
	sub := &subscriber{
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[scope] == nil {
		b.subs[scope] = make(map[int]*subscriber)
	}
	b.subs[scope][id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.wake:
				sub.handler(b.CountForScope(scope))
			case <-sub.done:
				return
			}
		}
	}()

	sub.signal() // initial count

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[scope], id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Signal broadcasts that a scope's count may have changed. In-process
// subscribers wake immediately; with Redis attached the signal is also
// published for other processes. The local dispatch and the looped-back
// pub/sub delivery collapse into one recompute through the coalescing
// wake channel.
func (b *Broker) Signal(scope string) {
	b.dispatch(scope)
	if b.rdb != nil {
		if err := b.rdb.Publish(b.ctx, channelPrefix+scope, scope).Err(); err != nil {
			log.Printf("ERROR: Failed to publish notification signal for %q: %v", scope, err)
		}
	}
}

// SignalStorageChanged is the generic fallback: every subscriber, in
// every scope, recomputes.
func (b *Broker) SignalStorageChanged() {
	b.dispatchAll()
	if b.rdb != nil {
		if err := b.rdb.Publish(b.ctx, storageChannel, "changed").Err(); err != nil {
			log.Printf("ERROR: Failed to publish storage-changed signal: %v", err)
		}
	}
}

// StartListener subscribes to the Redis signal channels and feeds them
// into local dispatch. No-op without a Redis client.
func (b *Broker) StartListener() {
	if b.rdb == nil {
		return
	}
	b.pubsub = b.rdb.PSubscribe(b.ctx, channelPrefix+"*", storageChannel)

	go func() {
		ch := b.pubsub.Channel()
		for msg := range ch {
			if msg.Channel == storageChannel {
				b.dispatchAll()
				continue
			}
			b.dispatch(strings.TrimPrefix(msg.Channel, channelPrefix))
		}
	}()
}

// Close stops the Redis listener. In-process subscriptions are released
// by their own unsubscribe functions.
func (b *Broker) Close() {
	b.cancel()
	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			log.Printf("ERROR: Failed to close notification pubsub: %v", err)
		}
	}
}

func (b *Broker) dispatch(scope string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[scope] {
		sub.signal()
	}
}

func (b *Broker) dispatchAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, scoped := range b.subs {
		for _, sub := range scoped {
			sub.signal()
		}
	}
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default: // a recompute is already pending
	}
}
