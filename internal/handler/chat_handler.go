package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/middleware"
	"github.com/noah-isme/learnflow-api/internal/service"
	"github.com/noah-isme/learnflow-api/internal/utils"
)

// ChatHandler exposes tutoring chat sessions.
type ChatHandler struct {
	service   service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler constructs a chat handler.
func NewChatHandler(service service.ChatService, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register wires chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	studentOnly := middleware.RequireRole(middleware.RoleStudent)

	router.Post("/sessions", studentOnly, h.createSession)
	router.Get("/sessions/student/:studentID", h.listSessions)
	router.Get("/sessions/:sessionID/messages", h.listMessages)
	router.Post("/sessions/:sessionID/messages", studentOnly, middleware.RateLimit("chat_message", 20, time.Minute), h.sendMessage)
	router.Post("/sessions/:sessionID/end", studentOnly, h.endSession)
}

func (h *ChatHandler) createSession(c *fiber.Ctx) error {
	var payload dto.ChatSessionCreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	session, err := h.service.CreateSession(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "chat session created", session)
}

func (h *ChatHandler) listSessions(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parsePage(c, h.validator)
	if err != nil {
		return h.handleError(c, err)
	}

	sessions, err := h.service.ListSessions(requestContext(c), actorFromContext(c), studentID, page)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "chat sessions retrieved", sessions)
}

func (h *ChatHandler) listMessages(c *fiber.Ctx) error {
	page, err := parsePage(c, h.validator)
	if err != nil {
		return h.handleError(c, err)
	}

	messages, err := h.service.ListMessages(requestContext(c), actorFromContext(c), sessionParam(c), page)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "chat messages retrieved", messages)
}

func (h *ChatHandler) sendMessage(c *fiber.Ctx) error {
	var payload dto.ChatSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exchange, err := h.service.SendMessage(requestContext(c), actorFromContext(c), sessionParam(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", exchange)
}

func (h *ChatHandler) endSession(c *fiber.Ctx) error {
	session, err := h.service.EndSession(requestContext(c), actorFromContext(c), sessionParam(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "chat session ended", session)
}

func sessionParam(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Params("sessionID"))
}

func (h *ChatHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrChatSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "chat session not found")
	case errors.Is(err, service.ErrChatSessionClosed):
		return utils.SendError(c, fiber.StatusConflict, "chat session has ended")
	case errors.Is(err, service.ErrEmptyChatMessage):
		return utils.SendError(c, fiber.StatusBadRequest, "message content is empty")
	default:
		return handleCommonError(c, h.logger, err)
	}
}
