package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/repository"
	"github.com/noah-isme/learnflow-api/pkg/ai"
)

type stubResponder struct {
	reply   string
	err     error
	agent   string
	history []ai.Turn
}

func (s *stubResponder) Respond(_ context.Context, agentType string, history []ai.Turn) (string, error) {
	s.agent = agentType
	s.history = append([]ai.Turn(nil), history...)
	return s.reply, s.err
}

func newChatFixture(t *testing.T, responder ai.Responder) (*engineFixture, ChatService) {
	t.Helper()
	f := newEngine(t, engineOptions{})
	svc := NewChatService(
		repository.NewChatRepository(f.db),
		repository.NewStudentRepository(f.db),
		responder,
		f.publisher,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)
	return f, svc
}

func TestChatSendMessageStoresExchange(t *testing.T) {
	responder := &stubResponder{reply: "Try printing the loop variable."}
	f, svc := newChatFixture(t, responder)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, f.studentActor(), dto.ChatSessionCreateRequest{Topic: "loops", AgentType: "debug"})
	require.NoError(t, err)
	require.True(t, session.IsActive)
	require.Len(t, session.SessionID, 36)

	exchange, err := svc.SendMessage(ctx, f.studentActor(), session.SessionID, dto.ChatSendRequest{
		Content: "Why does <script>alert(1)</script>my loop stop?",
	})
	require.NoError(t, err)
	require.Equal(t, "Why does my loop stop?", exchange.UserMessage.Content)
	require.Equal(t, "Try printing the loop variable.", exchange.AssistantMessage.Content)
	require.Equal(t, false, exchange.AssistantMessage.Metadata["fallback"])
	require.Equal(t, "debug", responder.agent)
	require.Len(t, responder.history, 1)
	require.Equal(t, "user", responder.history[0].Role)

	messages, err := svc.ListMessages(ctx, f.teacherActor(), session.SessionID, dto.PageQuery{})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	require.Len(t, f.recorder.onTopic(events.TopicChatMessages), 2)
	require.Len(t, f.recorder.onTopic(events.TopicStudentEvents), 1)
}

func TestChatSendMessageFallsBackOnResponderError(t *testing.T) {
	f, svc := newChatFixture(t, &stubResponder{err: errors.New("rate limited")})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, f.studentActor(), dto.ChatSessionCreateRequest{})
	require.NoError(t, err)
	require.Equal(t, "general", session.AgentType)

	exchange, err := svc.SendMessage(ctx, f.studentActor(), session.SessionID, dto.ChatSendRequest{Content: "hello"})
	require.NoError(t, err)
	require.Equal(t, ai.ErrorReply, exchange.AssistantMessage.Content)
	require.Equal(t, true, exchange.AssistantMessage.Metadata["fallback"])
}

func TestChatCannedResponderWhenUnconfigured(t *testing.T) {
	f, svc := newChatFixture(t, nil)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, f.studentActor(), dto.ChatSessionCreateRequest{AgentType: "concepts"})
	require.NoError(t, err)

	exchange, err := svc.SendMessage(ctx, f.studentActor(), session.SessionID, dto.ChatSendRequest{Content: "What is recursion?"})
	require.NoError(t, err)
	require.NotEmpty(t, exchange.AssistantMessage.Content)
	require.NotEqual(t, ai.ErrorReply, exchange.AssistantMessage.Content)
}

func TestChatSessionLifecycle(t *testing.T) {
	f, svc := newChatFixture(t, &stubResponder{reply: "ok"})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, f.studentActor(), dto.ChatSessionCreateRequest{})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, f.otherActor(), session.SessionID, dto.ChatSendRequest{Content: "hi"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.SendMessage(ctx, f.studentActor(), session.SessionID, dto.ChatSendRequest{Content: "<script>alert(1)</script>"})
	require.ErrorIs(t, err, ErrEmptyChatMessage)

	ended, err := svc.EndSession(ctx, f.studentActor(), session.SessionID)
	require.NoError(t, err)
	require.False(t, ended.IsActive)
	require.NotNil(t, ended.EndedAt)

	again, err := svc.EndSession(ctx, f.studentActor(), session.SessionID)
	require.NoError(t, err)
	require.Equal(t, ended.EndedAt.Unix(), again.EndedAt.Unix())

	_, err = svc.SendMessage(ctx, f.studentActor(), session.SessionID, dto.ChatSendRequest{Content: "hi"})
	require.ErrorIs(t, err, ErrChatSessionClosed)

	_, err = svc.EndSession(ctx, f.studentActor(), "missing")
	require.ErrorIs(t, err, ErrChatSessionNotFound)

	sessions, err := svc.ListSessions(ctx, f.studentActor(), f.student.ID, dto.PageQuery{})
	require.NoError(t, err)
	require.Len(t, sessions.Items, 1)
	_, err = svc.ListSessions(ctx, f.otherActor(), f.student.ID, dto.PageQuery{})
	require.ErrorIs(t, err, ErrForbidden)
}
