package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
)

// ===== SERVICE INTERFACES =====

type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*models.ExamView, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.ExamView, error)
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*models.ExamView, error)
	Delete(ctx context.Context, id uint, userID string) error

	Publish(ctx context.Context, id uint, userID string) (*models.ExamView, error)
	Archive(ctx context.Context, id uint, userID string) (*models.ExamView, error)

	Stats(ctx context.Context, id uint, userID string) (*models.ExamStats, error)
	// Document returns the exam for printing a blank sheet. Keys are included
	// only for the owner.
	Document(ctx context.Context, id uint, userID string) (*SheetDocument, error)
}

type AttemptService interface {
	Start(ctx context.Context, examID uint, studentID string) (*AttemptResponse, error)
	Get(ctx context.Context, attemptID, studentID string) (*AttemptResponse, error)
	Select(ctx context.Context, attemptID, studentID string, sel sheet.Selection) (*AttemptResponse, error)
	Preview(ctx context.Context, attemptID, studentID string) (*sheet.Result, error)
	Submit(ctx context.Context, attemptID, studentID string) (*AttemptRecordResponse, error)

	GetRecord(ctx context.Context, recordID, userID string) (*AttemptRecordResponse, error)
	ListByStudent(ctx context.Context, studentID, userID string, filters repositories.AttemptRecordFilters) (*AttemptRecordListResponse, error)
	ListByExam(ctx context.Context, examID uint, userID string, filters repositories.AttemptRecordFilters) (*AttemptRecordListResponse, error)
	Rescore(ctx context.Context, recordID, userID string) (*AttemptRecordResponse, error)
	// Document returns a submitted attempt with its answers and result for printing.
	Document(ctx context.Context, recordID, userID string) (*SheetDocument, error)
}

type UploadService interface {
	UploadImage(ctx context.Context, req *UploadImageRequest, userID string) (*UploadResponse, error)
}

type ImportExportService interface {
	// ImportAnswerKey replaces the answer keys of a draft exam from a CSV or
	// XLSX file. Rows that fail to parse are reported and skipped.
	ImportAnswerKey(ctx context.Context, examID uint, r io.Reader, format models.ImportFormat, userID string) (*ImportResult, error)
	ExportResults(ctx context.Context, examID uint, userID string) ([]byte, error)
}

// ===== REQUESTS =====

type CreateExamRequest struct {
	Title           string           `json:"title" validate:"required,min=1,max=200"`
	Subject         string           `json:"subject" validate:"omitempty,max=100"`
	Description     *string          `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes int              `json:"duration_minutes" validate:"exam_duration"`
	Questions       []sheet.Question `json:"questions" validate:"omitempty,dive"`
}

type UpdateExamRequest struct {
	Title           *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Subject         *string          `json:"subject" validate:"omitempty,max=100"`
	Description     *string          `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,exam_duration"`
	Questions       []sheet.Question `json:"questions" validate:"omitempty,dive"`
}

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" validate:"required,min=1"`
}

type UploadImageRequest struct {
	// Image is a data URL ("data:image/png;base64,...") or bare base64.
	Image    string `json:"image" validate:"required"`
	Filename string `json:"filename" validate:"omitempty,max=255"`
}

// ===== RESPONSES =====

type ExamListResponse struct {
	Exams   []*models.Exam `json:"exams"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

type AttemptResponse struct {
	ID               string           `json:"id"`
	ExamID           uint             `json:"exam_id"`
	ExamTitle        string           `json:"exam_title"`
	StudentID        string           `json:"student_id"`
	StartedAt        time.Time        `json:"started_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Sheet            *sheet.Sheet     `json:"sheet"`
	Questions        []sheet.Question `json:"questions,omitempty"`
}

type AttemptRecordResponse struct {
	*models.AttemptRecord
	Sheet  *sheet.Sheet           `json:"sheet"`
	Detail []sheet.QuestionResult `json:"detail"`
}

type AttemptRecordListResponse struct {
	Records []*models.AttemptRecord `json:"records"`
	Total   int64                   `json:"total"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
	HasMore bool                    `json:"has_more"`
}

type UploadResponse struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

type ImportResult struct {
	TotalRows    int                            `json:"total_rows"`
	SuccessCount int                            `json:"success_count"`
	ErrorCount   int                            `json:"error_count"`
	Errors       []models.ImportValidationError `json:"errors,omitempty"`
	Applied      bool                           `json:"applied"`
	Exam         *models.ExamView               `json:"exam,omitempty"`
}

// SheetDocument is everything needed to print an exam sheet. Sheet and
// Result are nil for a blank sheet.
type SheetDocument struct {
	Exam      *models.Exam
	Questions []sheet.Question
	Sheet     *sheet.Sheet
	Result    *sheet.Result
	Record    *models.AttemptRecord
	ShowKeys  bool
}

func hasMore(offset, count int, total int64) bool {
	return int64(offset+count) < total
}
