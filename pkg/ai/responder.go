package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Agent types understood by the responders.
const (
	AgentGeneral  = "general"
	AgentConcepts = "concepts"
	AgentDebug    = "debug"
	AgentExercise = "exercise"
)

var systemPrompts = map[string]string{
	AgentGeneral:  "You are a helpful educational assistant on the LearnFlow platform. Assist students with their learning queries.",
	AgentConcepts: "You are a subject matter expert. Explain complex concepts in simple terms for students.",
	AgentDebug:    "You are a coding mentor. Help students debug their code by providing guidance and hints rather than direct solutions.",
	AgentExercise: "You are a tutor. Help students work through their exercises step-by-step.",
}

// SystemPrompt returns the persona prompt for agentType, falling back to the general agent.
func SystemPrompt(agentType string) string {
	if prompt, ok := systemPrompts[agentType]; ok {
		return prompt
	}
	return systemPrompts[AgentGeneral]
}

// OpenAIResponder answers tutoring conversations through the chat completion API.
type OpenAIResponder struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIResponder builds a responder using the provided configuration.
func NewOpenAIResponder(cfg OpenAIConfig) (*OpenAIResponder, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	return &OpenAIResponder{
		client: cfg.client(),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/learnflow-api/pkg/ai/openai"),
		logger: cfg.logger().With().Str("component", "ai_responder").Logger(),
	}, nil
}

// Respond prepends the agent persona to history and returns the model reply.
func (r *OpenAIResponder) Respond(parent context.Context, agentType string, history []Turn) (string, error) {
	ctx, span := r.tracer.Start(parent, "openai.respond", trace.WithAttributes(
		attribute.String("model", r.cfg.Model),
		attribute.String("agent_type", agentType),
		attribute.Int("history", len(history)),
	))
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(agentType),
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    providerRole(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := completion(ctx, r.client, "respond", openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Messages:    messages,
	})
	if err != nil {
		failSpan(span, err)
		return "", fmt.Errorf("openai respond: %w", err)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		err := fmt.Errorf("openai respond: empty reply")
		failSpan(span, err)
		return "", err
	}
	return reply, nil
}

func providerRole(role string) string {
	switch role {
	case openai.ChatMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case openai.ChatMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
