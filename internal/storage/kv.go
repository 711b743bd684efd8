// Package storage owns the canonical persisted state of the system:
// the question list, the per-question message threads and the
// redirect-staging record. Everything is stored as whole JSON records
// in a key-value backend; every mutation is read-modify-write of the
// full record under a mutex, so readers never observe a partial list.
package storage

import "errors"

// KV is the minimal capability the conversation store needs from a
// persistence backend. Implementations: RedisKV, GormKV, MemoryKV.
type KV interface {
	// Get returns the record for key. The bool is false when the key
	// does not exist; err is reserved for backend failures.
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Keys of the persisted records.
const (
	// QuestionsKey holds the full question list, newest first.
	QuestionsKey = "astro:questions"
	// ChatKeyPrefix + questionID holds that question's message thread.
	ChatKeyPrefix = "astro:chat:"
	// StagingKey holds the single-slot pending submission used across
	// a payment redirect.
	StagingKey = "astro:pending_submission"
)

// ChatKey derives the message-thread key for a question.
func ChatKey(questionID string) string {
	return ChatKeyPrefix + questionID
}

var errNoBackend = errors.New("storage: no backend configured")

// nilKV stands in when NewService is handed no backend. Every operation
// reports the backend missing, so reads degrade to empty defaults and
// writes to logged no-ops.
type nilKV struct{}

func (nilKV) Get(string) ([]byte, bool, error) { return nil, false, errNoBackend }
func (nilKV) Put(string, []byte) error         { return errNoBackend }
func (nilKV) Delete(string) error              { return errNoBackend }
