package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnflow-api/internal/middleware"
	"github.com/noah-isme/learnflow-api/internal/service"
	"github.com/noah-isme/learnflow-api/internal/utils"
)

// AnalyticsHandler exposes aggregated learning statistics.
type AnalyticsHandler struct {
	service   service.AnalyticsService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAnalyticsHandler constructs an analytics handler.
func NewAnalyticsHandler(service service.AnalyticsService, validator *validator.Validate, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register wires analytics routes.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/student/:studentID/stats", h.studentStats)
	router.Get("/exercise/:exerciseID/stats", h.exerciseStats)
	router.Get("/leaderboard", h.leaderboard)
	router.Get("/students", middleware.RequireRole(middleware.RoleTeacher), h.studentsOverview)
}

func (h *AnalyticsHandler) studentStats(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.service.StudentStats(requestContext(c), actorFromContext(c), studentID)
	if err != nil {
		return handleCommonError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "student stats retrieved", stats)
}

func (h *AnalyticsHandler) exerciseStats(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "exerciseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.service.ExerciseStats(requestContext(c), actorFromContext(c), exerciseID)
	if err != nil {
		return handleCommonError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "exercise stats retrieved", stats)
}

func (h *AnalyticsHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	board, err := h.service.Leaderboard(requestContext(c), actorFromContext(c), limit)
	if err != nil {
		return handleCommonError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", board)
}

func (h *AnalyticsHandler) studentsOverview(c *fiber.Ctx) error {
	page, err := parsePage(c, h.validator)
	if err != nil {
		return handleCommonError(c, h.logger, err)
	}

	overview, err := h.service.StudentsOverview(requestContext(c), actorFromContext(c), page)
	if err != nil {
		return handleCommonError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "students overview retrieved", overview)
}
