package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "learnflow",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI provider requests",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation", "model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnflow",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed AI provider requests",
	}, []string{"operation", "model"})
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// OpenAIConfig configures clients for any OpenAI-compatible chat completion API.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

func (cfg OpenAIConfig) withDefaults() (OpenAIConfig, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return cfg, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	return cfg, nil
}

func (cfg OpenAIConfig) client() *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(config)
}

func (cfg OpenAIConfig) logger() zerolog.Logger {
	if cfg.Logger.GetLevel() == zerolog.Disabled {
		return zerolog.Nop()
	}
	return cfg.Logger
}

// completion runs one chat completion and records latency and failures.
func completion(ctx context.Context, client *openai.Client, operation string, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(operation, request.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(operation, request.Model).Inc()
		return resp, err
	}
	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(operation, request.Model).Inc()
		return resp, fmt.Errorf("no choices returned from provider")
	}
	return resp, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// OpenAIEvaluator implements Evaluator against the chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	return &OpenAIEvaluator{
		client: cfg.client(),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/learnflow-api/pkg/ai/openai"),
		logger: cfg.logger().With().Str("component", "ai_evaluator").Logger(),
	}, nil
}

// Evaluate sends the evaluation request and parses the JSON verdict.
func (e *OpenAIEvaluator) Evaluate(parent context.Context, input EvaluationInput) (EvaluationResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: evaluatorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildEvaluationPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := completion(ctx, e.client, "evaluate", request)
	if err != nil {
		failSpan(span, err)
		return EvaluationResult{}, fmt.Errorf("openai evaluate: %w", err)
	}

	result, err := parseEvaluationResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		aiFailures.WithLabelValues("evaluate", e.cfg.Model).Inc()
		failSpan(span, err)
		e.logger.Warn().Err(err).Msg("unparseable evaluation response")
		return EvaluationResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}
	span.SetAttributes(attribute.Float64("score", result.Score), attribute.String("verdict", result.Verdict))
	return result, nil
}

const evaluatorSystemPrompt = "You are an automated code reviewer for a programming course. Respond with a JSON object " +
	"containing score (0-1), verdict (\"pass\" or \"fail\"), feedback addressed to the student, and an optional details " +
	"object breaking down the score. Focus on correctness, code quality, and edge cases."

func buildEvaluationPrompt(input EvaluationInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Exercise\n")
	builder.WriteString(input.ExerciseTitle)
	builder.WriteString("\n\n## Description\n")
	builder.WriteString(input.Description)
	if input.StarterCode != "" {
		builder.WriteString("\n\n## Starter Code\n")
		builder.WriteString(input.StarterCode)
	}
	builder.WriteString("\n\n## Language\n")
	builder.WriteString(input.Language)
	builder.WriteString("\n\n## Submission\n")
	builder.WriteString(input.Code)
	if input.ExpectedOutput != "" {
		builder.WriteString("\n\n## Expected Output\n")
		builder.WriteString(input.ExpectedOutput)
	}
	if input.AdditionalNotes != "" {
		builder.WriteString("\n\n## Notes\n")
		builder.WriteString(input.AdditionalNotes)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseEvaluationResponse(content string) (EvaluationResult, error) {
	var data struct {
		Score    float64                `json:"score"`
		Feedback string                 `json:"feedback"`
		Verdict  string                 `json:"verdict"`
		Details  map[string]interface{} `json:"details"`
	}

	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return EvaluationResult{}, fmt.Errorf("parse evaluation json: %w", err)
	}

	if data.Score < 0 {
		data.Score = 0
	}
	if data.Score > 1 {
		data.Score = 1
	}

	return EvaluationResult{
		Score:    data.Score,
		Feedback: data.Feedback,
		Verdict:  strings.ToLower(strings.TrimSpace(data.Verdict)),
		Details:  data.Details,
	}, nil
}
