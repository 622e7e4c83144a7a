package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/render"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

// MockExamService is a mock implementation of services.ExamService
type MockExamService struct {
	mock.Mock
}

func (m *MockExamService) Create(ctx context.Context, req *services.CreateExamRequest, creatorID string) (*models.ExamView, error) {
	args := m.Called(ctx, req, creatorID)
	return examView(args.Get(0)), args.Error(1)
}

func (m *MockExamService) GetByID(ctx context.Context, id uint, userID string) (*models.ExamView, error) {
	args := m.Called(ctx, id, userID)
	return examView(args.Get(0)), args.Error(1)
}

func (m *MockExamService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*services.ExamListResponse, error) {
	args := m.Called(ctx, filters, userID)
	if resp, ok := args.Get(0).(*services.ExamListResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExamService) Update(ctx context.Context, id uint, req *services.UpdateExamRequest, userID string) (*models.ExamView, error) {
	args := m.Called(ctx, id, req, userID)
	return examView(args.Get(0)), args.Error(1)
}

func (m *MockExamService) Delete(ctx context.Context, id uint, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockExamService) Publish(ctx context.Context, id uint, userID string) (*models.ExamView, error) {
	args := m.Called(ctx, id, userID)
	return examView(args.Get(0)), args.Error(1)
}

func (m *MockExamService) Archive(ctx context.Context, id uint, userID string) (*models.ExamView, error) {
	args := m.Called(ctx, id, userID)
	return examView(args.Get(0)), args.Error(1)
}

func (m *MockExamService) Stats(ctx context.Context, id uint, userID string) (*models.ExamStats, error) {
	args := m.Called(ctx, id, userID)
	if stats, ok := args.Get(0).(*models.ExamStats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExamService) Document(ctx context.Context, id uint, userID string) (*services.SheetDocument, error) {
	args := m.Called(ctx, id, userID)
	return sheetDocument(args.Get(0)), args.Error(1)
}

// MockAttemptService is a mock implementation of services.AttemptService
type MockAttemptService struct {
	mock.Mock
}

func (m *MockAttemptService) Start(ctx context.Context, examID uint, studentID string) (*services.AttemptResponse, error) {
	args := m.Called(ctx, examID, studentID)
	return attemptResponse(args.Get(0)), args.Error(1)
}

func (m *MockAttemptService) Get(ctx context.Context, attemptID, studentID string) (*services.AttemptResponse, error) {
	args := m.Called(ctx, attemptID, studentID)
	return attemptResponse(args.Get(0)), args.Error(1)
}

func (m *MockAttemptService) Select(ctx context.Context, attemptID, studentID string, sel sheet.Selection) (*services.AttemptResponse, error) {
	args := m.Called(ctx, attemptID, studentID, sel)
	return attemptResponse(args.Get(0)), args.Error(1)
}

func (m *MockAttemptService) Preview(ctx context.Context, attemptID, studentID string) (*sheet.Result, error) {
	args := m.Called(ctx, attemptID, studentID)
	if result, ok := args.Get(0).(*sheet.Result); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttemptService) Submit(ctx context.Context, attemptID, studentID string) (*services.AttemptRecordResponse, error) {
	args := m.Called(ctx, attemptID, studentID)
	return recordResponse(args.Get(0)), args.Error(1)
}

func (m *MockAttemptService) GetRecord(ctx context.Context, recordID, userID string) (*services.AttemptRecordResponse, error) {
	args := m.Called(ctx, recordID, userID)
	return recordResponse(args.Get(0)), args.Error(1)
}

func (m *MockAttemptService) ListByStudent(ctx context.Context, studentID, userID string, filters repositories.AttemptRecordFilters) (*services.AttemptRecordListResponse, error) {
	args := m.Called(ctx, studentID, userID, filters)
	if resp, ok := args.Get(0).(*services.AttemptRecordListResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttemptService) ListByExam(ctx context.Context, examID uint, userID string, filters repositories.AttemptRecordFilters) (*services.AttemptRecordListResponse, error) {
	args := m.Called(ctx, examID, userID, filters)
	if resp, ok := args.Get(0).(*services.AttemptRecordListResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttemptService) Rescore(ctx context.Context, recordID, userID string) (*services.AttemptRecordResponse, error) {
	args := m.Called(ctx, recordID, userID)
	return recordResponse(args.Get(0)), args.Error(1)
}

func (m *MockAttemptService) Document(ctx context.Context, recordID, userID string) (*services.SheetDocument, error) {
	args := m.Called(ctx, recordID, userID)
	return sheetDocument(args.Get(0)), args.Error(1)
}

// MockUploadService is a mock implementation of services.UploadService
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) UploadImage(ctx context.Context, req *services.UploadImageRequest, userID string) (*services.UploadResponse, error) {
	args := m.Called(ctx, req, userID)
	if resp, ok := args.Get(0).(*services.UploadResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockImportExportService is a mock implementation of services.ImportExportService
type MockImportExportService struct {
	mock.Mock
}

func (m *MockImportExportService) ImportAnswerKey(ctx context.Context, examID uint, r io.Reader, format models.ImportFormat, userID string) (*services.ImportResult, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, examID, string(data), format, userID)
	if resp, ok := args.Get(0).(*services.ImportResult); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockImportExportService) ExportResults(ctx context.Context, examID uint, userID string) ([]byte, error) {
	args := m.Called(ctx, examID, userID)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func examView(v interface{}) *models.ExamView {
	if view, ok := v.(*models.ExamView); ok {
		return view
	}
	return nil
}

func attemptResponse(v interface{}) *services.AttemptResponse {
	if resp, ok := v.(*services.AttemptResponse); ok {
		return resp
	}
	return nil
}

func recordResponse(v interface{}) *services.AttemptRecordResponse {
	if resp, ok := v.(*services.AttemptRecordResponse); ok {
		return resp
	}
	return nil
}

func sheetDocument(v interface{}) *services.SheetDocument {
	if doc, ok := v.(*services.SheetDocument); ok {
		return doc
	}
	return nil
}

// ===== TEST ROUTER =====

type mockServices struct {
	exams        *MockExamService
	attempts     *MockAttemptService
	uploads      *MockUploadService
	importExport *MockImportExportService
}

func (m *mockServices) Exam() services.ExamService                 { return m.exams }
func (m *mockServices) Attempt() services.AttemptService           { return m.attempts }
func (m *mockServices) Upload() services.UploadService             { return m.uploads }
func (m *mockServices) ImportExport() services.ImportExportService { return m.importExport }

func newTestRouter(t *testing.T, rateLimit config.RateLimitConfig) (*gin.Engine, *mockServices) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sp := &mockServices{
		exams:        &MockExamService{},
		attempts:     &MockAttemptService{},
		uploads:      &MockUploadService{},
		importExport: &MockImportExportService{},
	}
	t.Cleanup(func() {
		sp.exams.AssertExpectations(t)
		sp.attempts.AssertExpectations(t)
		sp.uploads.AssertExpectations(t)
		sp.importExport.AssertExpectations(t)
	})

	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := gin.New()
	router.HTMLRender = render.NewHTMLRenderer()
	NewHandlerManager(sp, logger, RouterOptions{
		Metrics:        metrics.New(),
		RateLimit:      rateLimit,
		MaxImportBytes: 1 << 20,
	}).SetupRoutes(router)

	return router, sp
}
