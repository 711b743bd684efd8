package chatsync

import (
	"context"
	"sync"
	"time"

	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/storage"
)

// InboxWatcher reconciles the astrologer's whole inbox the way a
// Synchronizer reconciles one open chat: a tick on the polling interval
// plus broker signals as an immediate wakeup. Unlike a Synchronizer it
// never clears notifications; it only reports the unread-question count
// when it moves.
type InboxWatcher struct {
	store    storage.ConversationStore
	broker   *notify.Broker
	interval time.Duration
	onCount  func(int)

	lastCount int // Run goroutine only; -1 until the first pass
	wake      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewInboxWatcher builds a watcher over the astrologer scope. broker may
// be nil; then the watcher relies on ticks alone. A non-positive
// interval falls back to DefaultInterval. onCount runs on the watcher's
// goroutine.
func NewInboxWatcher(store storage.ConversationStore, broker *notify.Broker, interval time.Duration, onCount func(int)) *InboxWatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &InboxWatcher{
		store:     store,
		broker:    broker,
		interval:  interval,
		onCount:   onCount,
		lastCount: -1,
		wake:      make(chan struct{}, 1),
	}
}

// Run performs one immediate pass and then reconciles until the context
// is cancelled or Stop is called. Start it as a goroutine.
func (w *InboxWatcher) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	if w.broker != nil {
		unsubscribe := w.broker.Subscribe(notify.AstrologerScope, func(int) {
			select {
			case w.wake <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	w.pass()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass()
		case <-w.wake:
			w.pass()
		}
	}
}

// Stop cancels the reconciliation loop. Safe to call more than once,
// and before Run.
func (w *InboxWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// pass recomputes the unread count and reports it only when it changed
// since the previous pass.
func (w *InboxWatcher) pass() {
	count := w.store.AstrologerNotificationCount()
	if count == w.lastCount {
		return
	}
	w.lastCount = count
	w.onCount(count)
}
