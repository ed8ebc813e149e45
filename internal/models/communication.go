package models

import (
	"time"

	"gorm.io/datatypes"
)

// Chat agent flavours offered to students.
const (
	ChatAgentGeneral  = "general"
	ChatAgentConcepts = "concepts"
	ChatAgentDebug    = "debug"
	ChatAgentExercise = "exercise"
)

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// ChatSession is a conversation between a student and an AI agent.
type ChatSession struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	StudentID uint          `gorm:"not null;index" json:"student_id"`
	SessionID string        `gorm:"size:36;uniqueIndex;not null" json:"session_id"`
	Topic     string        `gorm:"size:100" json:"topic"`
	AgentType string        `gorm:"size:50;not null" json:"agent_type"`
	IsActive  bool          `gorm:"not null" json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	EndedAt   *time.Time    `json:"ended_at"`
	Messages  []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"messages,omitempty"`
}

// ChatMessage stores a single utterance within a chat session.
type ChatMessage struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	SessionID uint              `gorm:"not null;index" json:"session_id"`
	Role      string            `gorm:"size:16;not null" json:"role"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}
