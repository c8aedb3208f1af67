package models

import "time"

// ChatMessage is an authored chat message as recorded by the persistence layer.
// ID and CreatedAt are assigned by the database.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  uint      `gorm:"not null;index" json:"authorId"`
	ProjectID uint      `gorm:"not null;index:idx_project_created" json:"projectId"`
	CreatedAt time.Time `gorm:"index:idx_project_created" json:"createdAt"`

	// Author is only populated when history is read with the author preloaded.
	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// ChatMessageInput is what a client submits; the rest is filled in on persist.
type ChatMessageInput struct {
	Content   string
	AuthorID  uint
	ProjectID uint
}

const (
	AIAuthorID   = "ai-assistant"
	AIAuthorName = "AI Assistant"
)

// AuthorRef carries the display name of a synthesized message's author.
type AuthorRef struct {
	Name string `json:"name"`
}

// AIMessage is synthesized by the AI command interceptor and never persisted.
type AIMessage struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	Author      AuthorRef `json:"author"`
	AuthorID    string    `json:"authorId"`
	ProjectID   RoomKey   `json:"projectId"`
	IsAIMessage bool      `json:"isAIMessage"`
	IsError     bool      `json:"isError,omitempty"`
}
