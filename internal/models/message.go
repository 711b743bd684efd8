package models

import "time"

// Role identifies which side of the conversation authored a message.
type Role string

const (
	RoleUser       Role = "user"
	RoleAstrologer Role = "astrologer"
)

// Valid reports whether the role is one of the two known sides.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAstrologer
}

// Opposite returns the other side of the conversation.
func (r Role) Opposite() Role {
	if r == RoleUser {
		return RoleAstrologer
	}
	return RoleUser
}

// ChatMessage is one turn in a question's thread. Messages are immutable
// and append-only; ordering within a thread is by CreatedAt ascending.
type ChatMessage struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	Sender     Role      `json:"sender"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
