// Package chatsync keeps an open conversation view eventually consistent
// with the conversation store. There is no push channel: each view runs
// one Synchronizer that polls on a fixed interval, with broker signals
// as an immediate wakeup on top. Staleness of up to one interval is
// accepted; this is not a delivery-guarantee mechanism.
package chatsync

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"astroconnect/backend/internal/models"
	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/storage"
)

// DefaultInterval is the reconciliation tick period.
const DefaultInterval = 3 * time.Second

// Snapshot is what a refresh hands to the view: the question plus its
// full thread in ascending CreatedAt order.
type Snapshot struct {
	Question models.Question
	Messages []models.ChatMessage
}

// Synchronizer reconciles one view of one question. On every tick it
// re-reads the thread length and the viewing role's unread flag; if
// either moved it reloads everything, clears the role's notification
// and invokes the refresh callback.
type Synchronizer struct {
	store      storage.ConversationStore
	broker     *notify.Broker
	role       models.Role
	questionID string
	interval   time.Duration
	onRefresh  func(Snapshot)

	lastCount int // messages seen at the previous refresh; Run goroutine only
	suspended atomic.Bool
	wake      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a synchronizer for one open view. broker may be nil; then
// the view relies on ticks alone. A non-positive interval falls back to
// DefaultInterval. onRefresh runs on the synchronizer's goroutine.
func New(store storage.ConversationStore, broker *notify.Broker, role models.Role, questionID string, interval time.Duration, onRefresh func(Snapshot)) *Synchronizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Synchronizer{
		store:      store,
		broker:     broker,
		role:       role,
		questionID: questionID,
		interval:   interval,
		onRefresh:  onRefresh,
		wake:       make(chan struct{}, 1),
	}
}

// Run performs one immediate refresh and then reconciles until the
// context is cancelled or Stop is called. Start it as a goroutine.
func (s *Synchronizer) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.broker != nil {
		unsubscribe := s.broker.Subscribe(s.scope(), func(int) {
			select {
			case s.wake <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	s.refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		case <-s.wake:
			s.tick()
		}
	}
}

// Stop cancels the reconciliation loop. Safe to call more than once,
// and before Run.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Suspend pauses tick work while the view is not visible.
func (s *Synchronizer) Suspend() { s.suspended.Store(true) }

// Resume re-enables tick work and requests an immediate reconciliation,
// so a backgrounded view catches up right away.
func (s *Synchronizer) Resume() {
	s.suspended.Store(false)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) scope() string {
	if s.role == models.RoleAstrologer {
		return notify.AstrologerScope
	}
	return notify.UserScope(s.questionID)
}

// tick compares the persisted state against what the view last saw and
// refreshes when the thread grew or the role has an unseen message.
func (s *Synchronizer) tick() {
	if s.suspended.Load() {
		return
	}

	q, ok := s.store.GetQuestion(s.questionID)
	if !ok {
		return
	}
	unread := q.HasUnreadForUser
	if s.role == models.RoleAstrologer {
		unread = q.HasUnreadForAstrologer
	}
	if len(s.store.ListMessages(s.questionID)) != s.lastCount || unread {
		s.refresh()
	}
}

// refresh reloads question and thread, marks the role's notification as
// seen, re-signals the role's scope so badges drop, and hands the view
// its new snapshot.
func (s *Synchronizer) refresh() {
	q, ok := s.store.GetQuestion(s.questionID)
	if !ok {
		log.Printf("WARNING: Question %s vanished from store; view left stale", s.questionID)
		return
	}
	messages := s.store.ListMessages(s.questionID)
	s.lastCount = len(messages)

	if s.role == models.RoleAstrologer {
		s.store.ClearAstrologerNotification(s.questionID)
	} else {
		s.store.ClearUserNotification(s.questionID)
	}
	if s.broker != nil {
		s.broker.Signal(s.scope())
	}

	if q2, ok := s.store.GetQuestion(s.questionID); ok {
		q = q2 // pick up the cleared flag / status bump
	}
	s.onRefresh(Snapshot{Question: q, Messages: messages})
}
