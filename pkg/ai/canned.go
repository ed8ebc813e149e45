package ai

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrorReply is returned to the student when neither the provider nor the fallback can answer.
const ErrorReply = "I encountered an error while thinking. Let's try again in a moment."

var cannedReplies = map[string][]string{
	AgentGeneral: {
		"I'm here to help! What would you like to learn about?",
		"That's a great question! Based on what you're studying, you might want to focus on understanding the core concepts first.",
		"I see. Let me help you break this down into smaller parts to make it easier to understand.",
		"Good thinking! Have you tried practicing with some examples to reinforce this concept?",
	},
	AgentConcepts: {
		"This concept is fundamental to programming. Think of it like...",
		"Let me explain this step by step so it makes sense.",
		"This is similar to something you might see in real-world programming.",
		"The key insight here is understanding how these parts work together.",
	},
	AgentDebug: {
		"I see what might be happening. Can you tell me what output you're getting?",
		"Let's trace through your code step by step. What's the first thing that happens?",
		"Here's a hint: check what the value of this variable is at this point.",
		"Try running this part of your code separately to isolate the problem.",
	},
	AgentExercise: {
		"Great effort! Let's work through this together. What part are you stuck on?",
		"You're on the right track! Let me guide you through the next step.",
		"Think about what this step should do. What do you expect to happen?",
		"Good! Now try applying the same logic to solve the rest of the problem.",
	},
}

// CannedResponder answers with fixed tutoring replies, rotating through the agent's list.
type CannedResponder struct {
	next atomic.Uint64
}

// NewCannedResponder constructs a canned responder.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{}
}

// Respond returns the next canned reply for agentType.
func (r *CannedResponder) Respond(_ context.Context, agentType string, _ []Turn) (string, error) {
	replies, ok := cannedReplies[agentType]
	if !ok {
		replies = cannedReplies[AgentGeneral]
	}
	index := r.next.Add(1) - 1
	return replies[index%uint64(len(replies))], nil
}

// FallbackResponder tries primary first and falls back to secondary when it fails.
type FallbackResponder struct {
	primary   Responder
	secondary Responder
	logger    zerolog.Logger
}

// NewFallbackResponder wraps primary with secondary. A nil primary always uses secondary.
func NewFallbackResponder(primary, secondary Responder, logger zerolog.Logger) *FallbackResponder {
	return &FallbackResponder{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "ai_fallback").Logger(),
	}
}

// Respond implements Responder.
func (r *FallbackResponder) Respond(ctx context.Context, agentType string, history []Turn) (string, error) {
	if r.primary != nil {
		reply, err := r.primary.Respond(ctx, agentType, history)
		if err == nil {
			return reply, nil
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		r.logger.Warn().Err(err).Str("agent_type", agentType).Msg("ai responder failed, using fallback")
	}

	if r.secondary == nil {
		return ErrorReply, nil
	}
	return r.secondary.Respond(ctx, agentType, history)
}
