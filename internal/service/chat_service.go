package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/repository"
	"github.com/noah-isme/learnflow-api/pkg/ai"
)

const chatHistoryWindow = 10

// ErrEmptyChatMessage indicates the message had no content left after sanitising.
var ErrEmptyChatMessage = errors.New("message content is empty")

// ChatService manages tutoring conversations between students and AI agents.
type ChatService interface {
	CreateSession(ctx context.Context, actor Actor, req dto.ChatSessionCreateRequest) (dto.ChatSessionResponse, error)
	ListSessions(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.ChatSessionResponse], error)
	ListMessages(ctx context.Context, actor Actor, sessionID string, page dto.PageQuery) ([]dto.ChatMessageResponse, error)
	SendMessage(ctx context.Context, actor Actor, sessionID string, req dto.ChatSendRequest) (dto.ChatExchangeResponse, error)
	EndSession(ctx context.Context, actor Actor, sessionID string) (dto.ChatSessionResponse, error)
}

type chatService struct {
	repo      repository.ChatRepository
	students  repository.StudentRepository
	responder ai.Responder
	publisher events.Publisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewChatService constructs the chat service. A nil responder answers with canned replies.
func NewChatService(repo repository.ChatRepository, students repository.StudentRepository, responder ai.Responder, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	if responder == nil {
		responder = ai.NewCannedResponder()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &chatService{
		repo:      repo,
		students:  students,
		responder: responder,
		publisher: publisher,
		validator: validate,
		sanitizer: sanitizer,
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/learnflow-api/internal/service/chat"),
		now:       time.Now,
	}
}

func (s *chatService) CreateSession(ctx context.Context, actor Actor, req dto.ChatSessionCreateRequest) (dto.ChatSessionResponse, error) {
	if !actor.IsStudent() {
		return dto.ChatSessionResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatSessionResponse{}, err
	}
	if _, err := s.students.GetByID(ctx, actor.ID); err != nil {
		return dto.ChatSessionResponse{}, notFoundAs(err, ErrStudentNotFound)
	}

	agentType := strings.TrimSpace(req.AgentType)
	if agentType == "" {
		agentType = models.ChatAgentGeneral
	}

	session := models.ChatSession{
		StudentID: actor.ID,
		SessionID: uuid.NewString(),
		Topic:     strings.TrimSpace(s.sanitizer.Sanitize(req.Topic)),
		AgentType: agentType,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, &session); err != nil {
		return dto.ChatSessionResponse{}, err
	}

	s.publisher.Publish(ctx, events.TopicStudentEvents, events.IDKey(actor.ID), &events.StudentEvent{
		StudentID: actor.ID,
		Activity:  "chat_session_started",
		Details:   map[string]interface{}{"session_id": session.SessionID, "agent_type": agentType},
	})
	return dto.NewChatSessionResponse(session), nil
}

func (s *chatService) ListSessions(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.ChatSessionResponse], error) {
	if !actor.canReadStudent(studentID) {
		return dto.ListResponse[dto.ChatSessionResponse]{}, ErrForbidden
	}
	page = page.Normalize()
	sessions, total, err := s.repo.ListSessionsByStudent(ctx, studentID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.ChatSessionResponse]{}, err
	}
	return dto.NewListResponse(dto.NewChatSessionResponseSlice(sessions), page, total), nil
}

func (s *chatService) ListMessages(ctx context.Context, actor Actor, sessionID string, page dto.PageQuery) ([]dto.ChatMessageResponse, error) {
	session, err := s.readableSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	messages, err := s.repo.ListMessages(ctx, session.ID, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	return dto.NewChatMessageResponseSlice(messages, session.SessionID), nil
}

// SendMessage stores the student's message, asks the responder for a reply with the
// recent history as context and stores the reply.
func (s *chatService) SendMessage(ctx context.Context, actor Actor, sessionID string, req dto.ChatSendRequest) (dto.ChatExchangeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.send")
	span.SetAttributes(attribute.String("chat.session_id", sessionID))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ChatExchangeResponse{}, err
	}
	session, err := s.ownedSession(ctx, actor, sessionID)
	if err != nil {
		return dto.ChatExchangeResponse{}, err
	}
	if !session.IsActive {
		return dto.ChatExchangeResponse{}, ErrChatSessionClosed
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if content == "" {
		return dto.ChatExchangeResponse{}, ErrEmptyChatMessage
	}

	userMessage := models.ChatMessage{
		SessionID: session.ID,
		Role:      models.ChatRoleUser,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SaveMessage(ctx, &userMessage); err != nil {
		span.RecordError(err)
		return dto.ChatExchangeResponse{}, err
	}
	s.publishMessage(ctx, session, userMessage)

	history, err := s.repo.RecentMessages(ctx, session.ID, chatHistoryWindow)
	if err != nil {
		span.RecordError(err)
		return dto.ChatExchangeResponse{}, err
	}
	turns := make([]ai.Turn, 0, len(history))
	for _, message := range history {
		turns = append(turns, ai.Turn{Role: message.Role, Content: message.Content})
	}

	fallback := false
	reply, err := s.responder.Respond(ctx, session.AgentType, turns)
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("session_id", session.SessionID).Msg("chat responder failed")
		reply = ai.ErrorReply
		fallback = true
	}

	assistantMessage := models.ChatMessage{
		SessionID: session.ID,
		Role:      models.ChatRoleAssistant,
		Content:   reply,
		Metadata:  datatypes.JSONMap{"agent_type": session.AgentType, "fallback": fallback},
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SaveMessage(ctx, &assistantMessage); err != nil {
		span.RecordError(err)
		return dto.ChatExchangeResponse{}, err
	}
	s.publishMessage(ctx, session, assistantMessage)

	return dto.ChatExchangeResponse{
		UserMessage:      dto.NewChatMessageResponse(userMessage, session.SessionID),
		AssistantMessage: dto.NewChatMessageResponse(assistantMessage, session.SessionID),
	}, nil
}

// EndSession closes the session. Ending a closed session returns it unchanged.
func (s *chatService) EndSession(ctx context.Context, actor Actor, sessionID string) (dto.ChatSessionResponse, error) {
	session, err := s.ownedSession(ctx, actor, sessionID)
	if err != nil {
		return dto.ChatSessionResponse{}, err
	}
	if !session.IsActive {
		return dto.NewChatSessionResponse(session), nil
	}

	endedAt := s.now().UTC()
	session.IsActive = false
	session.EndedAt = &endedAt
	if err := s.repo.EndSession(ctx, &session); err != nil {
		return dto.ChatSessionResponse{}, err
	}

	s.publisher.Publish(ctx, events.TopicStudentEvents, events.IDKey(session.StudentID), &events.StudentEvent{
		StudentID: session.StudentID,
		Activity:  "chat_session_ended",
		Details:   map[string]interface{}{"session_id": session.SessionID},
	})
	return dto.NewChatSessionResponse(session), nil
}

func (s *chatService) publishMessage(ctx context.Context, session models.ChatSession, message models.ChatMessage) {
	s.publisher.Publish(ctx, events.TopicChatMessages, session.SessionID, &events.ChatEvent{
		SessionID: session.SessionID,
		StudentID: session.StudentID,
		MessageID: message.ID,
		Role:      message.Role,
		AgentType: session.AgentType,
	})
}

func (s *chatService) loadSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	session, err := s.repo.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return models.ChatSession{}, notFoundAs(err, ErrChatSessionNotFound)
	}
	return session, nil
}

func (s *chatService) ownedSession(ctx context.Context, actor Actor, sessionID string) (models.ChatSession, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !actor.IsStudent() || session.StudentID != actor.ID {
		return models.ChatSession{}, ErrForbidden
	}
	return session, nil
}

func (s *chatService) readableSession(ctx context.Context, actor Actor, sessionID string) (models.ChatSession, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !actor.canReadStudent(session.StudentID) {
		return models.ChatSession{}, ErrForbidden
	}
	return session, nil
}
