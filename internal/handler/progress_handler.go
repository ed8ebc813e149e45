package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/middleware"
	"github.com/noah-isme/learnflow-api/internal/service"
	"github.com/noah-isme/learnflow-api/internal/utils"
)

// ProgressHandler exposes the progress rollup.
type ProgressHandler struct {
	service   service.ProgressService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProgressHandler constructs a progress handler.
func NewProgressHandler(service service.ProgressService, validator *validator.Validate, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register wires progress routes.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/student/:studentID", h.listByStudent)
	router.Get("/student/:studentID/exercise/:exerciseID", h.get)
	router.Put("/student/:studentID/exercise/:exerciseID", middleware.RequireRole(middleware.RoleTeacher), h.update)
	router.Get("/exercise/:exerciseID", middleware.RequireRole(middleware.RoleTeacher), h.listByExercise)
}

func (h *ProgressHandler) listByStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parsePage(c, h.validator)
	if err != nil {
		return h.handleError(c, err)
	}

	progress, err := h.service.ListByStudent(requestContext(c), actorFromContext(c), studentID, page)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) listByExercise(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "exerciseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parsePage(c, h.validator)
	if err != nil {
		return h.handleError(c, err)
	}

	progress, err := h.service.ListByExercise(requestContext(c), actorFromContext(c), exerciseID, page)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) get(c *fiber.Ctx) error {
	studentID, exerciseID, err := h.pair(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	progress, err := h.service.Get(requestContext(c), actorFromContext(c), studentID, exerciseID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) update(c *fiber.Ctx) error {
	studentID, exerciseID, err := h.pair(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ProgressUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	progress, err := h.service.Update(requestContext(c), actorFromContext(c), studentID, exerciseID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "progress updated", progress)
}

func (h *ProgressHandler) pair(c *fiber.Ctx) (uint, uint, error) {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return 0, 0, err
	}
	exerciseID, err := parseUintParam(c, "exerciseID")
	if err != nil {
		return 0, 0, err
	}
	return studentID, exerciseID, nil
}

func (h *ProgressHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProgressNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "progress not found")
	case errors.Is(err, service.ErrInvalidProgressTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		return handleCommonError(c, h.logger, err)
	}
}
