package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"astroconnect/backend/internal/models"
)

// ConversationStore is the contract the rest of the system depends on.
// The Service below is the real implementation; tests may substitute it.
type ConversationStore interface {
	ListQuestions() []models.Question
	GetQuestion(id string) (models.Question, bool)
	PutQuestion(q models.Question)

	ListMessages(questionID string) []models.ChatMessage
	AppendMessage(questionID string, m models.ChatMessage)

	// CreateConversation commits a question and its opening message as a
	// pair: if the message write fails the question is rolled back.
	CreateConversation(q models.Question, opening models.ChatMessage) error

	ClearAstrologerNotification(questionID string)
	ClearUserNotification(questionID string)
	AstrologerNotificationCount() int
	UserNotificationCount(questionID string) int

	StageSubmission(s models.StagedSubmission) error
	TakeStagedSubmission() (models.StagedSubmission, bool)
	ClearStagedSubmission()
}

// Service persists questions and message threads as whole JSON records
// in a KV backend. All mutation is read-modify-write of the full record
// under one mutex, so no reader ever sees a partially updated list.
// Backend failures degrade soft: reads return empty defaults, writes
// become no-ops, corrupt records are discarded and reset.
type Service struct {
	mu sync.Mutex
	kv KV
}

// NewService builds a conversation store over the given backend. A nil
// kv yields a store whose reads are empty and whose writes are no-ops.
func NewService(kv KV) *Service {
	if kv == nil {
		kv = nilKV{}
	}
	return &Service{kv: kv}
}

var _ ConversationStore = (*Service)(nil)

// ListQuestions returns all questions, newest first.
func (s *Service) ListQuestions() []models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadQuestions()
}

// GetQuestion looks a question up by id.
func (s *Service) GetQuestion(id string) (models.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getQuestion(id)
}

// PutQuestion upserts by id and re-sorts the list newest-first.
func (s *Service) PutQuestion(q models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putQuestion(q); err != nil {
		log.Printf("ERROR: Failed to save question %s: %v", q.ID, err)
	}
}

// ListMessages returns a question's thread in ascending CreatedAt order.
func (s *Service) ListMessages(questionID string) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMessages(questionID)
}

// AppendMessage appends to the thread, re-sorts it ascending and applies
// the unread/status rule to the owning question.
func (s *Service) AppendMessage(questionID string, m models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendMessage(questionID, m); err != nil {
		log.Printf("ERROR: Failed to save message for question %s: %v", questionID, err)
		return
	}

	q, ok := s.getQuestion(questionID)
	if !ok {
		return
	}
	applyMessageEffects(&q, m.Sender)
	if err := s.putQuestion(q); err != nil {
		log.Printf("ERROR: Failed to update question %s after message: %v", questionID, err)
	}
}

// CreateConversation writes the question and its opening message as an
// atomic pair. On a message-write failure the question is removed again
// so no caller observes a half-created conversation.
func (s *Service) CreateConversation(q models.Question, opening models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	applyMessageEffects(&q, opening.Sender)
	if err := s.putQuestion(q); err != nil {
		return fmt.Errorf("storage: save question %s: %w", q.ID, err)
	}
	if err := s.appendMessage(q.ID, opening); err != nil {
		if rbErr := s.removeQuestion(q.ID); rbErr != nil {
			log.Printf("ERROR: Rollback of question %s failed: %v", q.ID, rbErr)
		}
		return fmt.Errorf("storage: save opening message for %s: %w", q.ID, err)
	}
	return nil
}

// ClearAstrologerNotification marks the question as seen by the
// astrologer; a pending question becomes viewed_by_astrologer.
func (s *Service) ClearAstrologerNotification(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.getQuestion(questionID)
	if !ok {
		return
	}
	q.HasUnreadForAstrologer = false
	if q.Status == models.StatusPending {
		q.Status = models.StatusViewedByAstrologer
	}
	if err := s.putQuestion(q); err != nil {
		log.Printf("ERROR: Failed to clear astrologer notification for %s: %v", questionID, err)
	}
}

// ClearUserNotification marks the astrologer's reply as seen by the user.
func (s *Service) ClearUserNotification(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.getQuestion(questionID)
	if !ok {
		return
	}
	q.HasUnreadForUser = false
	if err := s.putQuestion(q); err != nil {
		log.Printf("ERROR: Failed to clear user notification for %s: %v", questionID, err)
	}
}

// AstrologerNotificationCount counts questions with an unread user message.
func (s *Service) AstrologerNotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, q := range s.loadQuestions() {
		if q.HasUnreadForAstrologer {
			n++
		}
	}
	return n
}

// UserNotificationCount is 1 while the question holds an unseen reply.
func (s *Service) UserNotificationCount(questionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.getQuestion(questionID); ok && q.HasUnreadForUser {
		return 1
	}
	return 0
}

// StageSubmission writes the single-slot pending submission. Unlike the
// other writes this one reports failure, because the caller is about to
// hand control to a payment redirect and must not do so without the
// record being durable.
func (s *Service) StageSubmission(sub models.StagedSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("storage: marshal staged submission: %w", err)
	}
	if err := s.kv.Put(StagingKey, raw); err != nil {
		return fmt.Errorf("storage: stage submission: %w", err)
	}
	return nil
}

// TakeStagedSubmission reads and erases the staged record in one step.
// A second call, or a call after corruption, reports nothing staged.
func (s *Service) TakeStagedSubmission() (models.StagedSubmission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(StagingKey)
	if err != nil || !ok {
		if err != nil {
			log.Printf("ERROR: Failed to read staged submission: %v", err)
		}
		return models.StagedSubmission{}, false
	}

	var sub models.StagedSubmission
	unmarshalErr := json.Unmarshal(raw, &sub)
	if delErr := s.kv.Delete(StagingKey); delErr != nil {
		log.Printf("ERROR: Failed to erase staged submission: %v", delErr)
	}
	if unmarshalErr != nil {
		log.Printf("WARNING: Discarding corrupt staged submission: %v", unmarshalErr)
		return models.StagedSubmission{}, false
	}
	if sub.QuestionID == "" {
		return models.StagedSubmission{}, false
	}
	return sub, true
}

// ClearStagedSubmission erases the staged record unconditionally.
func (s *Service) ClearStagedSubmission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(StagingKey); err != nil {
		log.Printf("ERROR: Failed to clear staged submission: %v", err)
	}
}

// applyMessageEffects applies the unread/status rule a new message has
// on its question: a user message marks it pending with an unread for
// the astrologer, an astrologer message marks it answered with an unread
// for the user and clears the astrologer's own flag.
func applyMessageEffects(q *models.Question, sender models.Role) {
	switch sender {
	case models.RoleUser:
		q.HasUnreadForAstrologer = true
		q.Status = models.StatusPending
	case models.RoleAstrologer:
		q.HasUnreadForUser = true
		q.HasUnreadForAstrologer = false
		q.Status = models.StatusAnswered
	}
}

// --- internals; callers hold s.mu ---

// loadList reads a whole JSON list record. Missing keys and backend
// failures yield the empty default; a record that fails to parse is
// deleted so the next write starts clean.
func (s *Service) loadList(key string, out any) {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		log.Printf("ERROR: Failed to read record %q: %v", key, err)
		return
	}
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Printf("WARNING: Discarding corrupt record %q: %v", key, err)
		if delErr := s.kv.Delete(key); delErr != nil {
			log.Printf("ERROR: Failed to delete corrupt record %q: %v", key, delErr)
		}
	}
}

func (s *Service) loadQuestions() []models.Question {
	var questions []models.Question
	s.loadList(QuestionsKey, &questions)
	return questions
}

func (s *Service) loadMessages(questionID string) []models.ChatMessage {
	var messages []models.ChatMessage
	s.loadList(ChatKey(questionID), &messages)
	return messages
}

func (s *Service) getQuestion(id string) (models.Question, bool) {
	for _, q := range s.loadQuestions() {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}

func (s *Service) putQuestion(q models.Question) error {
	questions := s.loadQuestions()
	replaced := false
	for i := range questions {
		if questions[i].ID == q.ID {
			questions[i] = q
			replaced = true
			break
		}
	}
	if !replaced {
		questions = append(questions, q)
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].CreatedAt.After(questions[j].CreatedAt)
	})
	return s.writeList(QuestionsKey, questions)
}

func (s *Service) removeQuestion(id string) error {
	questions := s.loadQuestions()
	kept := questions[:0]
	for _, q := range questions {
		if q.ID != id {
			kept = append(kept, q)
		}
	}
	return s.writeList(QuestionsKey, kept)
}

func (s *Service) appendMessage(questionID string, m models.ChatMessage) error {
	messages := append(s.loadMessages(questionID), m)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return s.writeList(ChatKey(questionID), messages)
}

func (s *Service) writeList(key string, list any) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.kv.Put(key, raw)
}
