package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"gorm.io/gorm"
)

var examSortColumns = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"title":        true,
	"published_at": true,
}

type ExamPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// Create stores a new exam as a draft
func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	if exam.Status == "" {
		exam.Status = models.ExamDraft
	}
	exam.Version = 1
	if err := e.db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

// GetByID retrieves an exam by ID
func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

// Update saves the exam and bumps its version
func (e *ExamPostgreSQL) Update(ctx context.Context, exam *models.Exam) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Exam
		if err := tx.Select("id", "version").First(&current, exam.ID).Error; err != nil {
			return err
		}

		exam.Version = current.Version + 1
		exam.UpdatedAt = time.Now()
		if err := tx.Save(exam).Error; err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}
		return nil
	})
}

// Delete soft deletes an exam
func (e *ExamPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := e.db.WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List retrieves exams with filters and pagination
func (e *ExamPostgreSQL) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	query := e.helpers.ApplyExamFilters(e.db.WithContext(ctx).Model(&models.Exam{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder,
		filters.Limit, filters.Offset, examSortColumns, "created_at")

	var exams []*models.Exam
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

// UpdateStatus changes the status and stamps published_at on publish
func (e *ExamPostgreSQL) UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == models.ExamPublished {
		updates["published_at"] = now
	}

	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IsOwner checks if a user created the exam
func (e *ExamPostgreSQL) IsOwner(ctx context.Context, examID uint, userID string) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ? AND created_by = ?", examID, userID).
		Count(&count).Error
	return count > 0, err
}

// ExistsByTitle checks title uniqueness per creator
func (e *ExamPostgreSQL) ExistsByTitle(ctx context.Context, title, creatorID string, excludeID *uint) (bool, error) {
	query := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("title = ? AND created_by = ?", title, creatorID)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
