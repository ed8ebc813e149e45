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

// QuizHandler exposes the quiz attempt lifecycle.
type QuizHandler struct {
	service   service.QuizService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewQuizHandler constructs a quiz handler.
func NewQuizHandler(service service.QuizService, validator *validator.Validate, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// Register wires quiz routes.
func (h *QuizHandler) Register(router fiber.Router) {
	studentOnly := middleware.RequireRole(middleware.RoleStudent)
	teacherOnly := middleware.RequireRole(middleware.RoleTeacher)

	router.Get("/teacher/stats", teacherOnly, h.teacherStats)
	router.Get("/student/:studentID/submissions", h.listStudentSubmissions)
	router.Post("/:quizID/start", studentOnly, h.start)
	router.Get("/:quizID/submissions", teacherOnly, h.listQuizSubmissions)
	router.Get("/:quizID/submissions/:submissionID", h.getSubmission)
	router.Post("/:quizID/submissions/:submissionID/answer", studentOnly, h.answer)
	router.Post("/:quizID/submissions/:submissionID/complete", studentOnly, h.complete)
}

func (h *QuizHandler) start(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "quizID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Start(requestContext(c), actorFromContext(c), quizID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz started", submission)
}

func (h *QuizHandler) answer(c *fiber.Ctx) error {
	quizID, submissionID, err := h.submissionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuizAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.service.SubmitAnswer(requestContext(c), actorFromContext(c), quizID, submissionID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "answer recorded", answer)
}

func (h *QuizHandler) complete(c *fiber.Ctx) error {
	quizID, submissionID, err := h.submissionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Complete(requestContext(c), actorFromContext(c), quizID, submissionID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "quiz completed", submission)
}

func (h *QuizHandler) getSubmission(c *fiber.Ctx) error {
	quizID, submissionID, err := h.submissionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.GetSubmission(requestContext(c), actorFromContext(c), quizID, submissionID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "quiz submission retrieved", submission)
}

func (h *QuizHandler) listQuizSubmissions(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "quizID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parsePage(c, h.validator)
	if err != nil {
		return h.handleError(c, err)
	}

	submissions, err := h.service.ListQuizSubmissions(requestContext(c), actorFromContext(c), quizID, page)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "quiz submissions retrieved", submissions)
}

func (h *QuizHandler) listStudentSubmissions(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parsePage(c, h.validator)
	if err != nil {
		return h.handleError(c, err)
	}

	submissions, err := h.service.ListStudentSubmissions(requestContext(c), actorFromContext(c), studentID, page)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "quiz submissions retrieved", submissions)
}

func (h *QuizHandler) teacherStats(c *fiber.Ctx) error {
	stats, err := h.service.TeacherStats(requestContext(c), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "quiz stats retrieved", stats)
}

func (h *QuizHandler) submissionParams(c *fiber.Ctx) (uint, uint, error) {
	quizID, err := parseUintParam(c, "quizID")
	if err != nil {
		return 0, 0, err
	}
	submissionID, err := parseUintParam(c, "submissionID")
	if err != nil {
		return 0, 0, err
	}
	return quizID, submissionID, nil
}

func (h *QuizHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "quiz not found")
	case errors.Is(err, service.ErrQuizSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "quiz submission not found")
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrQuizAlreadyCompleted):
		return utils.SendError(c, fiber.StatusConflict, "quiz submission already completed")
	case errors.Is(err, service.ErrQuizAttemptOpen):
		return utils.SendError(c, fiber.StatusConflict, "an unfinished attempt already exists")
	case errors.Is(err, service.ErrInvalidAnswer):
		return utils.SendError(c, fiber.StatusBadRequest, "answer must be valid JSON")
	default:
		return handleCommonError(c, h.logger, err)
	}
}
