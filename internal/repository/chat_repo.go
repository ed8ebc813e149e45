package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// ChatRepository persists chat sessions and their messages.
type ChatRepository interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (models.ChatSession, error)
	ListSessionsByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.ChatSession, int64, error)
	EndSession(ctx context.Context, session *models.ChatSession) error
	SaveMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID uint, skip, limit int) ([]models.ChatMessage, error)
	RecentMessages(ctx context.Context, sessionID uint, limit int) ([]models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	return conn(ctx, r.db).Omit("Messages").Create(session).Error
}

func (r *chatRepository) GetSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var session models.ChatSession
	err := conn(ctx, r.db).Where("session_id = ?", sessionID).First(&session).Error
	return session, err
}

func (r *chatRepository) ListSessionsByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.ChatSession, int64, error) {
	query := conn(ctx, r.db).Model(&models.ChatSession{}).Where("student_id = ?", studentID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.ChatSession
	if err := paginate(query, skip, limit).Order("created_at DESC, id DESC").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *chatRepository) EndSession(ctx context.Context, session *models.ChatSession) error {
	return conn(ctx, r.db).Model(session).
		Select("is_active", "ended_at").
		Updates(session).Error
}

func (r *chatRepository) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	return conn(ctx, r.db).Create(message).Error
}

func (r *chatRepository) ListMessages(ctx context.Context, sessionID uint, skip, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := paginate(conn(ctx, r.db).Where("session_id = ?", sessionID), skip, limit).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// RecentMessages returns the last limit messages in chronological order.
func (r *chatRepository) RecentMessages(ctx context.Context, sessionID uint, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := conn(ctx, r.db).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
