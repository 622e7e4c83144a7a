package postgres

import (
	"context"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db      *gorm.DB
	exam    repositories.ExamRepository
	records repositories.AttemptRecordRepository
}

// NewRepository builds the repository set on top of db.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:      db,
		exam:    NewExamPostgreSQL(db),
		records: NewAttemptRecordPostgreSQL(db),
	}
}

func (r *repository) Exam() repositories.ExamRepository                   { return r.exam }
func (r *repository) AttemptRecord() repositories.AttemptRecordRepository { return r.records }

func (r *repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// AutoMigrate creates or updates the tables owned by this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Exam{},
		&models.AttemptRecord{},
	)
}
