package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/SAP-F-2025/answer-sheet-service/internal/events"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/storage"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockExamRepository is a mock implementation of ExamRepository
type MockExamRepository struct {
	mock.Mock
}

func (m *MockExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	args := m.Called(ctx, exam)
	return args.Error(0)
}

func (m *MockExamRepository) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	args := m.Called(ctx, id)
	if exam, ok := args.Get(0).(*models.Exam); ok {
		return exam, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	args := m.Called(ctx, exam)
	return args.Error(0)
}

func (m *MockExamRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockExamRepository) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Exam), args.Get(1).(int64), args.Error(2)
}

func (m *MockExamRepository) UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockExamRepository) IsOwner(ctx context.Context, examID uint, userID string) (bool, error) {
	args := m.Called(ctx, examID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExamRepository) ExistsByTitle(ctx context.Context, title, creatorID string, excludeID *uint) (bool, error) {
	args := m.Called(ctx, title, creatorID, excludeID)
	return args.Bool(0), args.Error(1)
}

// MockAttemptRecordRepository is a mock implementation of AttemptRecordRepository
type MockAttemptRecordRepository struct {
	mock.Mock
}

func (m *MockAttemptRecordRepository) Create(ctx context.Context, record *models.AttemptRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAttemptRecordRepository) GetByID(ctx context.Context, id string) (*models.AttemptRecord, error) {
	args := m.Called(ctx, id)
	if record, ok := args.Get(0).(*models.AttemptRecord); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttemptRecordRepository) Update(ctx context.Context, record *models.AttemptRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAttemptRecordRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptRecordRepository) List(ctx context.Context, filters repositories.AttemptRecordFilters) ([]*models.AttemptRecord, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.AttemptRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRecordRepository) ListByExam(ctx context.Context, examID uint) ([]*models.AttemptRecord, error) {
	args := m.Called(ctx, examID)
	return args.Get(0).([]*models.AttemptRecord), args.Error(1)
}

func (m *MockAttemptRecordRepository) CountByExam(ctx context.Context, examID uint) (int64, error) {
	args := m.Called(ctx, examID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRecordRepository) GetExamStats(ctx context.Context, examID uint) (*models.ExamStats, error) {
	args := m.Called(ctx, examID)
	if stats, ok := args.Get(0).(*models.ExamStats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRepository groups the mock repositories
type MockRepository struct {
	exams   *MockExamRepository
	records *MockAttemptRecordRepository
}

func (m *MockRepository) Exam() repositories.ExamRepository {
	return m.exams
}

func (m *MockRepository) AttemptRecord() repositories.AttemptRecordRepository {
	return m.records
}

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

// ===== TEST FIXTURE =====

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	exams     *MockExamRepository
	records   *MockAttemptRecordRepository
	cache     *cache.MemoryCache
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	clock     *testClock
	storage   *storage.LocalProvider

	examService    *examService
	attemptService *attemptService
	importExport   *importExportService
	uploadService  *uploadService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &MockRepository{
		exams:   &MockExamRepository{},
		records: &MockAttemptRecordRepository{},
	}
	f := &serviceFixture{
		exams:     repo.exams,
		records:   repo.records,
		cache:     cache.NewMemoryCache(),
		publisher: events.NewMockEventPublisher(logger),
		metrics:   metrics.New(),
		clock:     &testClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		storage:   storage.NewLocalProvider(t.TempDir(), "/uploads"),
	}

	v := validator.New()
	f.examService = NewExamService(repo, f.cache, f.publisher, logger, v, time.Minute).(*examService)
	f.attemptService = newAttemptService(f.examService, f.metrics, AttemptOptions{Grace: 5 * time.Minute, Now: f.clock.Now})
	f.importExport = NewImportExportService(f.examService).(*importExportService)
	f.uploadService = NewUploadService(f.storage, logger, v, f.metrics, config.UploadConfig{
		MaxBytes:    1 << 20,
		MaxWidth:    64,
		MaxHeight:   64,
		WebPQuality: 75,
	}).(*uploadService)

	t.Cleanup(func() {
		f.exams.AssertExpectations(t)
		f.records.AssertExpectations(t)
	})
	return f
}

func sampleQuestions() []sheet.Question {
	return []sheet.Question{
		{Index: 1, Kind: sheet.MultipleChoice, MultipleChoice: &sheet.MultipleChoiceKey{CorrectAnswer: "A"}},
		{Index: 2, Kind: sheet.MultipleChoice, MultipleChoice: &sheet.MultipleChoiceKey{CorrectAnswer: "C"}},
		{Index: 1, Kind: sheet.TrueFalse, TrueFalse: &sheet.TrueFalseKey{CorrectAnswers: []bool{true, false, true, false}}},
		{Index: 1, Kind: sheet.FillInBlank, FillBlank: &sheet.FillBlankKey{CorrectAnswer: "2024"}},
	}
}

func sampleExam(t *testing.T, status models.ExamStatus) *models.Exam {
	t.Helper()
	exam := &models.Exam{
		ID:              7,
		Title:           "Physics midterm",
		DurationMinutes: 45,
		Status:          status,
		CreatedBy:       "instructor-1",
	}
	require.NoError(t, exam.SetSheetQuestions(sampleQuestions()))
	return exam
}
