package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"gorm.io/datatypes"
)

// ActiveAttempt is an attempt in progress. It lives in the cache until it is
// submitted or expires.
type ActiveAttempt struct {
	ID        string       `json:"id"`
	ExamID    uint         `json:"exam_id"`
	StudentID string       `json:"student_id"`
	StartedAt time.Time    `json:"started_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Sheet     *sheet.Sheet `json:"sheet"`
	Version   int          `json:"version"`
}

func (a *ActiveAttempt) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// AttemptRecord is the archived result of one submitted attempt.
type AttemptRecord struct {
	ID              string         `json:"id" gorm:"primaryKey;size:36"`
	ExamID          uint           `json:"exam_id" gorm:"not null;index"`
	StudentID       string         `json:"student_id" gorm:"size:64;not null;index"`
	Answers         datatypes.JSON `json:"-" gorm:"type:jsonb"`
	Correct         int            `json:"correct"`
	Total           int            `json:"total"`
	Score           float64        `json:"score" gorm:"index"`
	StartedAt       time.Time      `json:"started_at"`
	SubmittedAt     time.Time      `json:"submitted_at" gorm:"index"`
	DurationSeconds int            `json:"duration_seconds"`
	Late            bool           `json:"late" gorm:"default:false"`
	CreatedAt       time.Time      `json:"created_at"`

	Exam *Exam `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}

// Sheet decodes the archived answer sheet.
func (r *AttemptRecord) Sheet() (*sheet.Sheet, error) {
	s := sheet.New()
	if len(r.Answers) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(r.Answers, s); err != nil {
		return nil, fmt.Errorf("decode answers of attempt %s: %w", r.ID, err)
	}
	return s, nil
}

func (r *AttemptRecord) SetSheet(s *sheet.Sheet) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	r.Answers = datatypes.JSON(data)
	return nil
}

func (r *AttemptRecord) ApplyResult(res sheet.Result) {
	r.Correct = res.Correct
	r.Total = res.Total
	r.Score = res.Score
}

// ExamStats summarises the attempt records of one exam.
type ExamStats struct {
	ExamID       uint    `json:"exam_id"`
	AttemptCount int64   `json:"attempt_count"`
	StudentCount int64   `json:"student_count"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
	WorstScore   float64 `json:"worst_score"`
}
