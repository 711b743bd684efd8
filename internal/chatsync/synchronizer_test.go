package chatsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"astroconnect/backend/internal/chatsync"
	"astroconnect/backend/internal/models"
	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 10 * time.Millisecond

// snapshotRecorder collects refresh callbacks for assertions.
type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots []chatsync.Snapshot
}

func (r *snapshotRecorder) record(s chatsync.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *snapshotRecorder) last() chatsync.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func seedConversation(t *testing.T) (*storage.Service, string) {
	t.Helper()
	svc := storage.NewService(storage.NewMemoryKV())
	q := models.Question{
		ID:           "q_1",
		UserID:       "user_1",
		UserName:     "User 1",
		QuestionText: "Will I find success?",
		CreatedAt:    time.Now(),
		Status:       models.StatusPending,
	}
	opening := models.ChatMessage{
		ID: "m_1", QuestionID: q.ID, Sender: models.RoleUser, Text: q.QuestionText, CreatedAt: q.CreatedAt,
	}
	require.NoError(t, svc.CreateConversation(q, opening))
	return svc, q.ID
}

func TestRun_ImmediateFirstRefresh(t *testing.T) {
	svc, qid := seedConversation(t)
	rec := &snapshotRecorder{}

	sc := chatsync.New(svc, nil, models.RoleUser, qid, time.Hour, rec.record)
	go sc.Run(context.Background())
	defer sc.Stop()

	// The hour-long interval means only the mount refresh can fire.
	waitFor(t, func() bool { return rec.count() >= 1 })
	snap := rec.last()
	assert.Equal(t, qid, snap.Question.ID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Sender)
}

func TestTick_PicksUpAstrologerReply(t *testing.T) {
	svc, qid := seedConversation(t)
	rec := &snapshotRecorder{}

	sc := chatsync.New(svc, nil, models.RoleUser, qid, testInterval, rec.record)
	go sc.Run(context.Background())
	defer sc.Stop()
	waitFor(t, func() bool { return rec.count() >= 1 })

	svc.AppendMessage(qid, models.ChatMessage{
		ID: "m_2", QuestionID: qid, Sender: models.RoleAstrologer,
		Text: "The stars align.", CreatedAt: time.Now(),
	})

	waitFor(t, func() bool { return rec.count() >= 2 && len(rec.last().Messages) == 2 })

	snap := rec.last()
	assert.Equal(t, models.StatusAnswered, snap.Question.Status)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Sender)
	assert.Equal(t, models.RoleAstrologer, snap.Messages[1].Sender)

	// The refresh marks the reply as seen.
	waitFor(t, func() bool {
		q, ok := svc.GetQuestion(qid)
		return ok && !q.HasUnreadForUser
	})
}

func TestTick_ClearsAstrologerNotificationAndBumpsStatus(t *testing.T) {
	svc, qid := seedConversation(t)
	rec := &snapshotRecorder{}

	sc := chatsync.New(svc, nil, models.RoleAstrologer, qid, testInterval, rec.record)
	go sc.Run(context.Background())
	defer sc.Stop()

	waitFor(t, func() bool {
		q, ok := svc.GetQuestion(qid)
		return ok && !q.HasUnreadForAstrologer && q.Status == models.StatusViewedByAstrologer
	})
}

func TestSuspend_PausesPolling(t *testing.T) {
	svc, qid := seedConversation(t)
	rec := &snapshotRecorder{}

	sc := chatsync.New(svc, nil, models.RoleUser, qid, testInterval, rec.record)
	go sc.Run(context.Background())
	defer sc.Stop()
	waitFor(t, func() bool { return rec.count() >= 1 })

	sc.Suspend()
	time.Sleep(3 * testInterval) // let in-flight ticks drain
	before := rec.count()

	svc.AppendMessage(qid, models.ChatMessage{
		ID: "m_2", QuestionID: qid, Sender: models.RoleAstrologer, Text: "reply", CreatedAt: time.Now(),
	})
	time.Sleep(5 * testInterval)
	assert.Equal(t, before, rec.count(), "suspended view must not refresh")

	sc.Resume()
	waitFor(t, func() bool { return rec.count() > before })
	assert.Len(t, rec.last().Messages, 2)
}

func TestStop_ReleasesPolling(t *testing.T) {
	svc, qid := seedConversation(t)
	rec := &snapshotRecorder{}

	sc := chatsync.New(svc, nil, models.RoleUser, qid, testInterval, rec.record)
	go sc.Run(context.Background())
	waitFor(t, func() bool { return rec.count() >= 1 })

	sc.Stop()
	sc.Stop() // idempotent
	time.Sleep(3 * testInterval)
	before := rec.count()

	svc.AppendMessage(qid, models.ChatMessage{
		ID: "m_2", QuestionID: qid, Sender: models.RoleAstrologer, Text: "reply", CreatedAt: time.Now(),
	})
	time.Sleep(5 * testInterval)
	assert.Equal(t, before, rec.count(), "stopped synchronizer must not refresh")
}

func TestBrokerSignal_WakesBeforeNextTick(t *testing.T) {
	svc, qid := seedConversation(t)
	broker := notify.NewBroker(svc, nil)
	defer broker.Close()
	rec := &snapshotRecorder{}

	// Hour-long ticks: only broker signals can drive updates.
	sc := chatsync.New(svc, broker, models.RoleUser, qid, time.Hour, rec.record)
	go sc.Run(context.Background())
	defer sc.Stop()
	waitFor(t, func() bool { return rec.count() >= 1 })

	svc.AppendMessage(qid, models.ChatMessage{
		ID: "m_2", QuestionID: qid, Sender: models.RoleAstrologer, Text: "reply", CreatedAt: time.Now(),
	})
	broker.Signal(notify.UserScope(qid))

	waitFor(t, func() bool { return rec.count() >= 2 && len(rec.last().Messages) == 2 })
}
