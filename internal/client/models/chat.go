package models

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the assistant conversation history.
// Messages are append-only: there is no update timestamp and no update verb.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (m ChatMessage) EntityID() string { return m.ID }
func (m ChatMessage) Owner() string    { return m.UserID }
