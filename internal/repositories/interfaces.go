package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Status    *models.ExamStatus `json:"status"`
	Subject   string             `json:"subject"`
	CreatedBy string             `json:"created_by"`
	Search    string             `json:"search"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title", "published_at"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptRecordFilters struct {
	ExamID    *uint      `json:"exam_id"`
	StudentID string     `json:"student_id"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "submitted_at", "score"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORIES =====

// ExamRepository stores exam documents.
type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id uint) error // Soft delete

	List(ctx context.Context, filters ExamFilters) ([]*models.Exam, int64, error)
	UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) error

	IsOwner(ctx context.Context, examID uint, userID string) (bool, error)
	ExistsByTitle(ctx context.Context, title, creatorID string, excludeID *uint) (bool, error)
}

// AttemptRecordRepository stores submitted attempts.
type AttemptRecordRepository interface {
	Create(ctx context.Context, record *models.AttemptRecord) error
	GetByID(ctx context.Context, id string) (*models.AttemptRecord, error)
	Update(ctx context.Context, record *models.AttemptRecord) error
	Exists(ctx context.Context, id string) (bool, error)

	List(ctx context.Context, filters AttemptRecordFilters) ([]*models.AttemptRecord, int64, error)
	ListByExam(ctx context.Context, examID uint) ([]*models.AttemptRecord, error)
	CountByExam(ctx context.Context, examID uint) (int64, error)

	GetExamStats(ctx context.Context, examID uint) (*models.ExamStats, error)
}

// Repository groups the repositories used by the services.
type Repository interface {
	Exam() ExamRepository
	AttemptRecord() AttemptRecordRepository

	// WithTransaction runs fn against repositories bound to one transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error
}

// IsNotFoundError reports whether err means the row does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
