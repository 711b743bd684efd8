package models

import "time"

// QuestionStatus tracks where a question is in its lifecycle.
type QuestionStatus string

const (
	// StatusPending means the question is waiting for the astrologer.
	StatusPending QuestionStatus = "pending"
	// StatusViewedByAstrologer means the astrologer opened the chat but has not replied yet.
	StatusViewedByAstrologer QuestionStatus = "viewed_by_astrologer"
	// StatusAnswered means the astrologer has sent at least one reply.
	StatusAnswered QuestionStatus = "answered"
)

// Special number bounds accepted on submission.
const (
	MinSpecialNumber = 1
	MaxSpecialNumber = 249
)

// Question is one paid submission and the root of a chat thread.
// The two unread flags are one-per-role: sending a message sets the
// recipient's flag, an astrologer reply also clears the astrologer's own.
type Question struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	QuestionText  string    `json:"question_text"`
	SpecialNumber int       `json:"special_number"`
	CreatedAt     time.Time `json:"created_at"`

	Status                 QuestionStatus `json:"status"`
	HasUnreadForAstrologer bool           `json:"has_unread_for_astrologer"`
	HasUnreadForUser       bool           `json:"has_unread_for_user"`
}
