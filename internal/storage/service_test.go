package storage_test

import (
	"errors"
	"testing"
	"time"

	"astroconnect/backend/internal/models"
	"astroconnect/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuestion(id string, createdAt time.Time) models.Question {
	return models.Question{
		ID:            id,
		UserID:        "user_1",
		UserName:      "User 1",
		QuestionText:  "What do the stars hold?",
		SpecialNumber: 7,
		CreatedAt:     createdAt,
		Status:        models.StatusPending,
	}
}

func newMessage(id, questionID string, sender models.Role, createdAt time.Time) models.ChatMessage {
	return models.ChatMessage{
		ID:         id,
		QuestionID: questionID,
		Sender:     sender,
		Text:       "hello",
		CreatedAt:  createdAt,
	}
}

func TestListQuestions_NewestFirst(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	base := time.Now()

	svc.PutQuestion(newQuestion("q_old", base.Add(-2*time.Hour)))
	svc.PutQuestion(newQuestion("q_new", base))
	svc.PutQuestion(newQuestion("q_mid", base.Add(-1*time.Hour)))

	questions := svc.ListQuestions()
	require.Len(t, questions, 3)
	assert.Equal(t, "q_new", questions[0].ID)
	assert.Equal(t, "q_mid", questions[1].ID)
	assert.Equal(t, "q_old", questions[2].ID)
}

func TestPutQuestion_UpsertsByID(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	q := newQuestion("q_1", time.Now())
	svc.PutQuestion(q)

	q.Status = models.StatusAnswered
	svc.PutQuestion(q)

	questions := svc.ListQuestions()
	require.Len(t, questions, 1)
	assert.Equal(t, models.StatusAnswered, questions[0].Status)
}

func TestListMessages_AscendingRegardlessOfInsertionOrder(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	base := time.Now()
	svc.PutQuestion(newQuestion("q_1", base))

	svc.AppendMessage("q_1", newMessage("m_3", "q_1", models.RoleUser, base.Add(2*time.Second)))
	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, base))
	svc.AppendMessage("q_1", newMessage("m_2", "q_1", models.RoleAstrologer, base.Add(time.Second)))

	messages := svc.ListMessages("q_1")
	require.Len(t, messages, 3)
	assert.Equal(t, "m_1", messages[0].ID)
	assert.Equal(t, "m_2", messages[1].ID)
	assert.Equal(t, "m_3", messages[2].ID)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestAppendMessage_UnreadFlagRule(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	base := time.Now()
	svc.PutQuestion(newQuestion("q_1", base))

	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, base))
	q, ok := svc.GetQuestion("q_1")
	require.True(t, ok)
	assert.True(t, q.HasUnreadForAstrologer)
	assert.False(t, q.HasUnreadForUser)
	assert.Equal(t, models.StatusPending, q.Status)

	svc.AppendMessage("q_1", newMessage("m_2", "q_1", models.RoleAstrologer, base.Add(time.Second)))
	q, ok = svc.GetQuestion("q_1")
	require.True(t, ok)
	assert.False(t, q.HasUnreadForAstrologer)
	assert.True(t, q.HasUnreadForUser)
	assert.Equal(t, models.StatusAnswered, q.Status)
}

func TestNotificationCounts(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	base := time.Now()

	for _, id := range []string{"q_1", "q_2", "q_3"} {
		svc.PutQuestion(newQuestion(id, base))
	}
	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, base))
	svc.AppendMessage("q_2", newMessage("m_2", "q_2", models.RoleUser, base))
	svc.AppendMessage("q_3", newMessage("m_3", "q_3", models.RoleAstrologer, base))

	assert.Equal(t, 2, svc.AstrologerNotificationCount())
	assert.Equal(t, 1, svc.UserNotificationCount("q_3"))
	assert.Equal(t, 0, svc.UserNotificationCount("q_1"))
	assert.Equal(t, 0, svc.UserNotificationCount("q_missing"))
}

func TestClearNotifications(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	base := time.Now()
	svc.PutQuestion(newQuestion("q_1", base))
	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, base))

	svc.ClearAstrologerNotification("q_1")
	q, _ := svc.GetQuestion("q_1")
	assert.False(t, q.HasUnreadForAstrologer)
	assert.Equal(t, models.StatusViewedByAstrologer, q.Status)

	svc.AppendMessage("q_1", newMessage("m_2", "q_1", models.RoleAstrologer, base.Add(time.Second)))
	svc.ClearUserNotification("q_1")
	q, _ = svc.GetQuestion("q_1")
	assert.False(t, q.HasUnreadForUser)
	assert.Equal(t, models.StatusAnswered, q.Status)
}

func TestCorruptQuestionRecord_ResetsToEmpty(t *testing.T) {
	kv := storage.NewMemoryKV()
	svc := storage.NewService(kv)
	svc.PutQuestion(newQuestion("q_1", time.Now()))

	kv.Corrupt(storage.QuestionsKey)

	assert.Empty(t, svc.ListQuestions())
	assert.False(t, kv.Has(storage.QuestionsKey), "corrupt record should be deleted")

	// Subsequent writes succeed against the reset record.
	svc.PutQuestion(newQuestion("q_2", time.Now()))
	questions := svc.ListQuestions()
	require.Len(t, questions, 1)
	assert.Equal(t, "q_2", questions[0].ID)
}

func TestCorruptChatRecord_ResetsToEmpty(t *testing.T) {
	kv := storage.NewMemoryKV()
	svc := storage.NewService(kv)
	base := time.Now()
	svc.PutQuestion(newQuestion("q_1", base))
	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, base))

	kv.Corrupt(storage.ChatKey("q_1"))

	assert.Empty(t, svc.ListMessages("q_1"))
	svc.AppendMessage("q_1", newMessage("m_2", "q_1", models.RoleUser, base.Add(time.Second)))
	assert.Len(t, svc.ListMessages("q_1"), 1)
}

func TestUnavailableBackend_ReadsEmptyWritesNoop(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.SetUnavailable(true)
	svc := storage.NewService(kv)

	// Nothing below may panic or error out to the caller.
	svc.PutQuestion(newQuestion("q_1", time.Now()))
	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, time.Now()))
	svc.ClearAstrologerNotification("q_1")
	svc.ClearStagedSubmission()

	assert.Empty(t, svc.ListQuestions())
	assert.Empty(t, svc.ListMessages("q_1"))
	assert.Equal(t, 0, svc.AstrologerNotificationCount())
	_, ok := svc.GetQuestion("q_1")
	assert.False(t, ok)
	_, staged := svc.TakeStagedSubmission()
	assert.False(t, staged)
}

func TestNilBackend_ReadsEmptyWritesNoop(t *testing.T) {
	svc := storage.NewService(nil)

	// Nothing below may panic or error out to the caller.
	svc.PutQuestion(newQuestion("q_1", time.Now()))
	svc.AppendMessage("q_1", newMessage("m_1", "q_1", models.RoleUser, time.Now()))
	svc.ClearAstrologerNotification("q_1")
	svc.ClearStagedSubmission()

	assert.Empty(t, svc.ListQuestions())
	assert.Empty(t, svc.ListMessages("q_1"))
	assert.Equal(t, 0, svc.AstrologerNotificationCount())
	_, ok := svc.GetQuestion("q_1")
	assert.False(t, ok)
	assert.Error(t, svc.StageSubmission(models.StagedSubmission{QuestionID: "q_1"}))
	_, staged := svc.TakeStagedSubmission()
	assert.False(t, staged)
}

// failingKV delegates to a MemoryKV but rejects writes to one key, to
// exercise the create-conversation rollback path.
type failingKV struct {
	*storage.MemoryKV
	failPutKey string
}

func (f *failingKV) Put(key string, value []byte) error {
	if key == f.failPutKey {
		return errors.New("disk full")
	}
	return f.MemoryKV.Put(key, value)
}

func TestCreateConversation_CommitsPair(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	base := time.Now()
	q := newQuestion("q_1", base)
	q.HasUnreadForAstrologer = false

	err := svc.CreateConversation(q, newMessage("m_1", "q_1", models.RoleUser, base))
	require.NoError(t, err)

	got, ok := svc.GetQuestion("q_1")
	require.True(t, ok)
	assert.True(t, got.HasUnreadForAstrologer, "opening message must set the astrologer unread flag")
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Len(t, svc.ListMessages("q_1"), 1)
}

func TestCreateConversation_RollsBackQuestionOnMessageFailure(t *testing.T) {
	kv := &failingKV{MemoryKV: storage.NewMemoryKV(), failPutKey: storage.ChatKey("q_1")}
	svc := storage.NewService(kv)

	err := svc.CreateConversation(newQuestion("q_1", time.Now()), newMessage("m_1", "q_1", models.RoleUser, time.Now()))
	require.Error(t, err)

	_, ok := svc.GetQuestion("q_1")
	assert.False(t, ok, "question must not be observable after a failed pair write")
	assert.Empty(t, svc.ListMessages("q_1"))
}

func TestStagedSubmission_TakeIsDestructive(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryKV())
	sub := models.StagedSubmission{QuestionID: "q_1", QuestionText: "Will I find success?", SpecialNumber: 42}

	require.NoError(t, svc.StageSubmission(sub))

	got, ok := svc.TakeStagedSubmission()
	require.True(t, ok)
	assert.Equal(t, sub, got)

	_, ok = svc.TakeStagedSubmission()
	assert.False(t, ok, "second take must find nothing")
}

func TestStagedSubmission_CorruptRecordIsErased(t *testing.T) {
	kv := storage.NewMemoryKV()
	svc := storage.NewService(kv)
	require.NoError(t, svc.StageSubmission(models.StagedSubmission{QuestionID: "q_1"}))

	kv.Corrupt(storage.StagingKey)

	_, ok := svc.TakeStagedSubmission()
	assert.False(t, ok)
	assert.False(t, kv.Has(storage.StagingKey), "corrupt staging record should be erased")
}
