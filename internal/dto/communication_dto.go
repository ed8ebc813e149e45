package dto

import (
	"time"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// ChatSessionCreateRequest opens a conversation with an AI agent.
type ChatSessionCreateRequest struct {
	Topic     string `json:"topic" validate:"omitempty,max=100"`
	AgentType string `json:"agent_type" validate:"omitempty,oneof=general concepts debug exercise"`
}

// ChatSendRequest posts a student message into a session.
type ChatSendRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ChatSessionResponse serialises a chat session.
type ChatSessionResponse struct {
	ID        uint       `json:"id"`
	SessionID string     `json:"session_id"`
	StudentID uint       `json:"student_id"`
	Topic     string     `json:"topic"`
	AgentType string     `json:"agent_type"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// ChatMessageResponse serialises one chat message.
type ChatMessageResponse struct {
	ID        uint                   `json:"id"`
	SessionID string                 `json:"session_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ChatExchangeResponse returns the stored user message together with the agent reply.
type ChatExchangeResponse struct {
	UserMessage      ChatMessageResponse `json:"user_message"`
	AssistantMessage ChatMessageResponse `json:"assistant_message"`
}

// NewChatSessionResponse converts a ChatSession model into a DTO.
func NewChatSessionResponse(model models.ChatSession) ChatSessionResponse {
	return ChatSessionResponse{
		ID:        model.ID,
		SessionID: model.SessionID,
		StudentID: model.StudentID,
		Topic:     model.Topic,
		AgentType: model.AgentType,
		IsActive:  model.IsActive,
		CreatedAt: model.CreatedAt,
		EndedAt:   model.EndedAt,
	}
}

// NewChatSessionResponseSlice converts a slice of sessions.
func NewChatSessionResponseSlice(items []models.ChatSession) []ChatSessionResponse {
	result := make([]ChatSessionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, NewChatSessionResponse(item))
	}
	return result
}

// NewChatMessageResponse converts a ChatMessage model; sessionID is the public session identifier.
func NewChatMessageResponse(message models.ChatMessage, sessionID string) ChatMessageResponse {
	var metadata map[string]interface{}
	if len(message.Metadata) > 0 {
		metadata = map[string]interface{}(message.Metadata)
	}
	return ChatMessageResponse{
		ID:        message.ID,
		SessionID: sessionID,
		Role:      message.Role,
		Content:   message.Content,
		Metadata:  metadata,
		CreatedAt: message.CreatedAt,
	}
}

// NewChatMessageResponseSlice converts messages belonging to one session.
func NewChatMessageResponseSlice(messages []models.ChatMessage, sessionID string) []ChatMessageResponse {
	result := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		result = append(result, NewChatMessageResponse(message, sessionID))
	}
	return result
}
