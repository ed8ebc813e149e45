package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/observability"
	"github.com/noah-isme/learnflow-api/internal/repository"
)

// QuizServiceConfig tunes optional quiz rules.
type QuizServiceConfig struct {
	// SingleOpenAttempt rejects starting a quiz while an unfinished attempt exists.
	SingleOpenAttempt bool
}

// QuizService runs the quiz attempt lifecycle: start, answer, complete.
type QuizService interface {
	Start(ctx context.Context, actor Actor, quizID uint) (dto.QuizSubmissionResponse, error)
	SubmitAnswer(ctx context.Context, actor Actor, quizID, submissionID uint, req dto.QuizAnswerRequest) (dto.QuizAnswerResponse, error)
	Complete(ctx context.Context, actor Actor, quizID, submissionID uint) (dto.QuizSubmissionResponse, error)
	GetSubmission(ctx context.Context, actor Actor, quizID, submissionID uint) (dto.QuizSubmissionResponse, error)
	ListQuizSubmissions(ctx context.Context, actor Actor, quizID uint, page dto.PageQuery) (dto.ListResponse[dto.QuizSubmissionResponse], error)
	ListStudentSubmissions(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.QuizSubmissionResponse], error)
	TeacherStats(ctx context.Context, actor Actor) ([]dto.QuizStatsResponse, error)
}

type quizService struct {
	quizzes   repository.QuizRepository
	content   repository.ContentRepository
	students  repository.StudentRepository
	tx        repository.TxManager
	publisher events.Publisher
	validator *validator.Validate
	config    QuizServiceConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewQuizService constructs the quiz assessment engine.
func NewQuizService(
	quizzes repository.QuizRepository,
	content repository.ContentRepository,
	students repository.StudentRepository,
	tx repository.TxManager,
	publisher events.Publisher,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg QuizServiceConfig,
) QuizService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &quizService{
		quizzes:   quizzes,
		content:   content,
		students:  students,
		tx:        tx,
		publisher: publisher,
		validator: validate,
		config:    cfg,
		logger:    logger.With().Str("component", "quiz_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/learnflow-api/internal/service/quiz"),
		now:       time.Now,
	}
}

func (s *quizService) Start(ctx context.Context, actor Actor, quizID uint) (dto.QuizSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "quiz.start")
	span.SetAttributes(attribute.Int64("quiz.id", int64(quizID)))
	defer span.End()

	if !actor.IsStudent() {
		return dto.QuizSubmissionResponse{}, ErrForbidden
	}
	if _, err := s.content.GetQuiz(ctx, quizID); err != nil {
		return dto.QuizSubmissionResponse{}, notFoundAs(err, ErrQuizNotFound)
	}
	if _, err := s.students.GetByID(ctx, actor.ID); err != nil {
		return dto.QuizSubmissionResponse{}, notFoundAs(err, ErrStudentNotFound)
	}

	submission := models.QuizSubmission{
		StudentID: actor.ID,
		QuizID:    quizID,
		StartedAt: s.now().UTC(),
	}
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if s.config.SingleOpenAttempt {
			open, err := s.quizzes.HasOpenSubmission(txCtx, actor.ID, quizID)
			if err != nil {
				return err
			}
			if open {
				return ErrQuizAttemptOpen
			}
		}
		return s.quizzes.CreateSubmission(txCtx, &submission)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quiz_start_failed")
		return dto.QuizSubmissionResponse{}, err
	}

	s.publish(ctx, &events.QuizEvent{
		Kind:         events.TypeQuizStarted,
		StudentID:    submission.StudentID,
		QuizID:       submission.QuizID,
		SubmissionID: submission.ID,
	})
	return dto.NewQuizSubmissionResponse(submission), nil
}

func (s *quizService) SubmitAnswer(ctx context.Context, actor Actor, quizID, submissionID uint, req dto.QuizAnswerRequest) (dto.QuizAnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "quiz.answer")
	span.SetAttributes(
		attribute.Int64("quiz.id", int64(quizID)),
		attribute.Int64("quiz.submission_id", int64(submissionID)),
		attribute.Int64("quiz.question_id", int64(req.QuestionID)),
	)
	defer span.End()

	if !actor.IsStudent() {
		return dto.QuizAnswerResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.QuizAnswerResponse{}, err
	}
	if !json.Valid(req.AnswerText) {
		return dto.QuizAnswerResponse{}, ErrInvalidAnswer
	}

	var (
		answer     models.QuizAnswer
		submission models.QuizSubmission
	)
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		submission, err = s.ownedOpenSubmission(txCtx, actor, quizID, submissionID)
		if err != nil {
			return err
		}

		question, err := s.content.GetQuestion(txCtx, req.QuestionID)
		if err != nil {
			return notFoundAs(err, ErrQuestionNotFound)
		}
		if question.QuizID != quizID {
			return ErrQuestionNotFound
		}

		correct := GradeAnswer(question, req.AnswerText)
		answer = models.QuizAnswer{
			SubmissionID: submission.ID,
			QuestionID:   question.ID,
			Answer:       datatypes.JSON(req.AnswerText),
			IsCorrect:    correct,
			PointsEarned: PointsFor(question, correct),
			AnsweredAt:   s.now().UTC(),
		}
		return s.quizzes.ReplaceAnswer(txCtx, &answer)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quiz_answer_failed")
		return dto.QuizAnswerResponse{}, err
	}

	questionID := answer.QuestionID
	correct := answer.IsCorrect
	s.publish(ctx, &events.QuizEvent{
		Kind:         events.TypeQuizAnswerSubmitted,
		StudentID:    submission.StudentID,
		QuizID:       submission.QuizID,
		SubmissionID: submission.ID,
		QuestionID:   &questionID,
		IsCorrect:    &correct,
	})
	return dto.NewQuizAnswerResponse(answer), nil
}

// Complete scores the attempt from its stored answers. Completing an already
// completed attempt returns the stored result unchanged.
func (s *quizService) Complete(ctx context.Context, actor Actor, quizID, submissionID uint) (dto.QuizSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "quiz.complete")
	span.SetAttributes(
		attribute.Int64("quiz.id", int64(quizID)),
		attribute.Int64("quiz.submission_id", int64(submissionID)),
	)
	defer span.End()

	if !actor.IsStudent() {
		return dto.QuizSubmissionResponse{}, ErrForbidden
	}

	var (
		submission  models.QuizSubmission
		newlyClosed bool
	)
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.ownedSubmission(txCtx, actor, quizID, submissionID)
		if err != nil {
			return err
		}

		answers, err := s.quizzes.ListAnswers(txCtx, current.ID)
		if err != nil {
			return err
		}
		current.Answers = answers

		if current.IsCompleted() {
			submission = current
			return nil
		}

		quiz, err := s.content.GetQuiz(txCtx, quizID)
		if err != nil {
			return notFoundAs(err, ErrQuizNotFound)
		}
		questions, err := s.content.ListQuestions(txCtx, quizID)
		if err != nil {
			return err
		}

		earned := 0
		for _, answer := range answers {
			earned += answer.PointsEarned
		}
		score := ScoreQuiz(earned, MaxPoints(questions))
		completedAt := s.now().UTC()
		current.CompletedAt = &completedAt
		current.Score = &score
		current.Passed = score >= quiz.PassingScore

		if err := s.quizzes.CompleteSubmission(txCtx, &current); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuizAlreadyCompleted
			}
			return err
		}
		submission = current
		newlyClosed = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quiz_complete_failed")
		return dto.QuizSubmissionResponse{}, err
	}

	span.SetAttributes(attribute.Bool("quiz.idempotent", !newlyClosed))
	if newlyClosed {
		observability.QuizCompletions().WithLabelValues(strconv.FormatBool(submission.Passed)).Inc()
		passed := submission.Passed
		s.publish(ctx, &events.QuizEvent{
			Kind:         events.TypeQuizCompleted,
			StudentID:    submission.StudentID,
			QuizID:       submission.QuizID,
			SubmissionID: submission.ID,
			Score:        submission.Score,
			Passed:       &passed,
		})
		s.logger.Info().
			Uint("submission_id", submission.ID).
			Int("score", *submission.Score).
			Bool("passed", submission.Passed).
			Msg("quiz completed")
	}
	return dto.NewQuizSubmissionResponse(submission), nil
}

func (s *quizService) GetSubmission(ctx context.Context, actor Actor, quizID, submissionID uint) (dto.QuizSubmissionResponse, error) {
	submission, err := s.quizzes.GetSubmissionWithAnswers(ctx, submissionID)
	if err != nil {
		return dto.QuizSubmissionResponse{}, notFoundAs(err, ErrQuizSubmissionNotFound)
	}
	if submission.QuizID != quizID {
		return dto.QuizSubmissionResponse{}, ErrQuizSubmissionNotFound
	}

	switch {
	case actor.IsStudent():
		if submission.StudentID != actor.ID {
			return dto.QuizSubmissionResponse{}, ErrForbidden
		}
	case actor.IsTeacher():
		if _, err := s.authoredQuiz(ctx, actor, quizID); err != nil {
			return dto.QuizSubmissionResponse{}, err
		}
	default:
		return dto.QuizSubmissionResponse{}, ErrForbidden
	}
	return dto.NewQuizSubmissionResponse(submission), nil
}

func (s *quizService) ListQuizSubmissions(ctx context.Context, actor Actor, quizID uint, page dto.PageQuery) (dto.ListResponse[dto.QuizSubmissionResponse], error) {
	if _, err := s.authoredQuiz(ctx, actor, quizID); err != nil {
		return dto.ListResponse[dto.QuizSubmissionResponse]{}, err
	}
	page = page.Normalize()
	items, total, err := s.quizzes.ListByQuiz(ctx, quizID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.QuizSubmissionResponse]{}, err
	}
	return dto.NewListResponse(dto.NewQuizSubmissionResponseSlice(items), page, total), nil
}

func (s *quizService) ListStudentSubmissions(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.QuizSubmissionResponse], error) {
	if !actor.canReadStudent(studentID) {
		return dto.ListResponse[dto.QuizSubmissionResponse]{}, ErrForbidden
	}
	page = page.Normalize()
	items, total, err := s.quizzes.ListByStudent(ctx, studentID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.QuizSubmissionResponse]{}, err
	}
	return dto.NewListResponse(dto.NewQuizSubmissionResponseSlice(items), page, total), nil
}

func (s *quizService) TeacherStats(ctx context.Context, actor Actor) ([]dto.QuizStatsResponse, error) {
	if !actor.IsTeacher() {
		return nil, ErrForbidden
	}

	quizzes, err := s.content.ListQuizzesByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(quizzes) == 0 {
		return []dto.QuizStatsResponse{}, nil
	}

	ids := make([]uint, 0, len(quizzes))
	for _, quiz := range quizzes {
		ids = append(ids, quiz.ID)
	}
	rows, err := s.quizzes.StatsByQuiz(ctx, ids)
	if err != nil {
		return nil, err
	}
	byQuiz := make(map[uint]repository.QuizStatsRow, len(rows))
	for _, row := range rows {
		byQuiz[row.QuizID] = row
	}

	stats := make([]dto.QuizStatsResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		row := byQuiz[quiz.ID]
		entry := dto.QuizStatsResponse{
			QuizID:           quiz.ID,
			Title:            quiz.Title,
			TotalSubmissions: row.Total,
			Completed:        row.Completed,
			Passed:           row.Passed,
			AverageScore:     round2(row.AverageScore),
		}
		if row.Completed > 0 {
			entry.PassRate = round2(float64(row.Passed) / float64(row.Completed) * 100)
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// ownedSubmission locks a submission of quizID owned by the student actor.
func (s *quizService) ownedSubmission(ctx context.Context, actor Actor, quizID, submissionID uint) (models.QuizSubmission, error) {
	submission, err := s.quizzes.GetSubmissionForUpdate(ctx, submissionID)
	if err != nil {
		return models.QuizSubmission{}, notFoundAs(err, ErrQuizSubmissionNotFound)
	}
	if submission.QuizID != quizID {
		return models.QuizSubmission{}, ErrQuizSubmissionNotFound
	}
	if submission.StudentID != actor.ID {
		return models.QuizSubmission{}, ErrForbidden
	}
	return submission, nil
}

func (s *quizService) ownedOpenSubmission(ctx context.Context, actor Actor, quizID, submissionID uint) (models.QuizSubmission, error) {
	submission, err := s.ownedSubmission(ctx, actor, quizID, submissionID)
	if err != nil {
		return models.QuizSubmission{}, err
	}
	if submission.IsCompleted() {
		return models.QuizSubmission{}, ErrQuizAlreadyCompleted
	}
	return submission, nil
}

func (s *quizService) authoredQuiz(ctx context.Context, actor Actor, quizID uint) (models.Quiz, error) {
	if !actor.IsTeacher() {
		return models.Quiz{}, ErrForbidden
	}
	quiz, err := s.content.GetQuiz(ctx, quizID)
	if err != nil {
		return models.Quiz{}, notFoundAs(err, ErrQuizNotFound)
	}
	if !quiz.AuthoredBy(actor.ID) {
		return models.Quiz{}, ErrForbidden
	}
	return quiz, nil
}

func (s *quizService) publish(ctx context.Context, event *events.QuizEvent) {
	s.publisher.Publish(ctx, events.TopicQuizEvents, events.IDKey(event.SubmissionID), event)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
