package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"gorm.io/gorm"
)

var recordSortColumns = map[string]bool{
	"submitted_at": true,
	"started_at":   true,
	"score":        true,
}

type AttemptRecordPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptRecordPostgreSQL(db *gorm.DB) repositories.AttemptRecordRepository {
	return &AttemptRecordPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *AttemptRecordPostgreSQL) Create(ctx context.Context, record *models.AttemptRecord) error {
	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create attempt record: %w", err)
	}
	return nil
}

func (a *AttemptRecordPostgreSQL) GetByID(ctx context.Context, id string) (*models.AttemptRecord, error) {
	var record models.AttemptRecord
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Update rewrites the result columns of a record; the archived answers are immutable.
func (a *AttemptRecordPostgreSQL) Update(ctx context.Context, record *models.AttemptRecord) error {
	return a.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"correct": record.Correct,
			"total":   record.Total,
			"score":   record.Score,
		}).Error
}

func (a *AttemptRecordPostgreSQL) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *AttemptRecordPostgreSQL) List(ctx context.Context, filters repositories.AttemptRecordFilters) ([]*models.AttemptRecord, int64, error) {
	query := a.helpers.ApplyAttemptRecordFilters(a.db.WithContext(ctx).Model(&models.AttemptRecord{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder,
		filters.Limit, filters.Offset, recordSortColumns, "submitted_at")

	var records []*models.AttemptRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListByExam returns every record of an exam, oldest first, for exports.
func (a *AttemptRecordPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.AttemptRecord, error) {
	var records []*models.AttemptRecord
	if err := a.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("submitted_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (a *AttemptRecordPostgreSQL) CountByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

// GetExamStats aggregates scores in a single query
func (a *AttemptRecordPostgreSQL) GetExamStats(ctx context.Context, examID uint) (*models.ExamStats, error) {
	stats := &models.ExamStats{ExamID: examID}

	row := a.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Select("COUNT(*), COUNT(DISTINCT student_id), COALESCE(AVG(score), 0), COALESCE(MAX(score), 0), COALESCE(MIN(score), 0)").
		Where("exam_id = ?", examID).
		Row()
	if err := row.Scan(&stats.AttemptCount, &stats.StudentCount, &stats.AverageScore, &stats.BestScore, &stats.WorstScore); err != nil {
		return nil, fmt.Errorf("failed to aggregate exam stats: %w", err)
	}
	return stats, nil
}
