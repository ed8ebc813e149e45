package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/repository"
	"github.com/noah-isme/learnflow-api/pkg/ai"
)

type publishedEvent struct {
	Topic string
	Key   string
	Event events.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
}

func (p *recordingPublisher) onTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []publishedEvent
	for _, event := range p.events {
		if event.Topic == topic {
			matched = append(matched, event)
		}
	}
	return matched
}

type recordingActivity struct {
	entries []ActivityEntry
}

func (r *recordingActivity) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{Action: entry.Action, EntityType: entry.EntityType, EntityID: entry.EntityID}, nil
}

type stubEvaluator struct {
	result ai.EvaluationResult
	err    error
	calls  int
}

func (s *stubEvaluator) Evaluate(context.Context, ai.EvaluationInput) (ai.EvaluationResult, error) {
	s.calls++
	return s.result, s.err
}

type engineFixture struct {
	db          *gorm.DB
	publisher   events.Publisher
	recorder    *recordingPublisher
	activity    *recordingActivity
	progress    ProgressService
	submissions SubmissionService
	quizzes     QuizService
	analytics   AnalyticsService

	student  models.Student
	other    models.Student
	teacher  models.Teacher
	exercise models.Exercise
}

type engineOptions struct {
	publisher         events.Publisher
	evaluator         ai.Evaluator
	singleOpenAttempt bool
	cache             *redis.Client
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newEngine(t *testing.T, opts engineOptions) *engineFixture {
	t.Helper()
	db := newTestDB(t)

	recorder := &recordingPublisher{}
	var publisher events.Publisher = recorder
	if opts.publisher != nil {
		publisher = opts.publisher
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	log := zerolog.Nop()
	tx := repository.NewTxManager(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	contentRepo := repository.NewContentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	activity := &recordingActivity{}

	var cacheTTL time.Duration
	if opts.cache != nil {
		cacheTTL = time.Minute
	}
	analytics := NewAnalyticsService(repository.NewAnalyticsRepository(db), contentRepo, studentRepo, opts.cache, cacheTTL, log)
	progress := NewProgressService(progressRepo, tx, publisher, analytics, validate, 90, log)
	fixture := &engineFixture{
		db:        db,
		publisher: publisher,
		recorder:  recorder,
		activity:  activity,
		progress:  progress,
		submissions: NewSubmissionService(
			submissionRepo, contentRepo, studentRepo, progress, tx, publisher, analytics, activity, opts.evaluator, validate, log,
		),
		quizzes: NewQuizService(
			quizRepo, contentRepo, studentRepo, tx, publisher, validate, log,
			QuizServiceConfig{SingleOpenAttempt: opts.singleOpenAttempt},
		),
		analytics: analytics,
	}

	fixture.student = models.Student{Name: "Ana", Email: "ana@example.com"}
	fixture.other = models.Student{Name: "Budi", Email: "budi@example.com"}
	fixture.teacher = models.Teacher{Name: "Dewi", Email: "dewi@example.com"}
	require.NoError(t, db.Create(&fixture.student).Error)
	require.NoError(t, db.Create(&fixture.other).Error)
	require.NoError(t, db.Create(&fixture.teacher).Error)

	fixture.exercise = models.Exercise{Title: "Sum", Description: "Add numbers", TeacherID: &fixture.teacher.ID}
	require.NoError(t, db.Create(&fixture.exercise).Error)
	return fixture
}

func (f *engineFixture) studentActor() Actor {
	return Actor{ID: f.student.ID, Role: "student"}
}

func (f *engineFixture) otherActor() Actor {
	return Actor{ID: f.other.ID, Role: "student"}
}

func (f *engineFixture) teacherActor() Actor {
	return Actor{ID: f.teacher.ID, Role: "teacher"}
}

// createQuiz stores a quiz authored by the fixture teacher.
func (f *engineFixture) createQuiz(t *testing.T, passingScore int, questions ...models.QuizQuestion) models.Quiz {
	t.Helper()
	quiz := models.Quiz{Title: uuid.NewString(), PassingScore: passingScore, TeacherID: &f.teacher.ID}
	require.NoError(t, f.db.Create(&quiz).Error)
	for i := range questions {
		questions[i].QuizID = quiz.ID
		questions[i].Position = i + 1
		require.NoError(t, f.db.Create(&questions[i]).Error)
	}
	quiz.Questions = questions
	return quiz
}

func choiceQuestion(answer string, points int) models.QuizQuestion {
	return models.QuizQuestion{
		QuestionText:  "Pick one",
		QuestionType:  models.QuestionTypeMultipleChoice,
		Options:       datatypes.JSON(`["A","B","C"]`),
		CorrectAnswer: datatypes.JSON(answer),
		Points:        points,
	}
}
