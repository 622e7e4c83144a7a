package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/events"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
	"github.com/google/uuid"
)

const defaultAttemptGrace = 10 * time.Minute

// AttemptOptions tunes the lifetime of in-progress attempts.
type AttemptOptions struct {
	// Grace is how long an attempt stays in the cache after its deadline, so
	// a late submit can still be archived.
	Grace time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

type attemptService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	exams     *examService
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	metrics   *metrics.Metrics
	opLogger  *ServiceLogger
	grace     time.Duration
	now       func() time.Time
}

func NewAttemptService(
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
	metrics *metrics.Metrics,
	opts AttemptOptions,
) AttemptService {
	exams := NewExamService(repo, cacheService, publisher, logger, validator, 0).(*examService)
	return newAttemptService(exams, metrics, opts)
}

func newAttemptService(exams *examService, metrics *metrics.Metrics, opts AttemptOptions) *attemptService {
	if opts.Grace <= 0 {
		opts.Grace = defaultAttemptGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &attemptService{
		repo:      exams.repo,
		cache:     exams.cache,
		exams:     exams,
		publisher: exams.publisher,
		logger:    exams.logger,
		validator: exams.validator,
		metrics:   metrics,
		opLogger:  NewServiceLogger(exams.logger, "attempt"),
		grace:     opts.Grace,
		now:       opts.Now,
	}
}

// ===== IN-PROGRESS ATTEMPTS =====

// Start begins an attempt on a published exam. A student with an attempt
// still in progress on the same exam gets that attempt back.
func (s *attemptService) Start(ctx context.Context, examID uint, studentID string) (resp *AttemptResponse, err error) {
	started := time.Now()
	defer func() {
		resourceID := ""
		if resp != nil {
			resourceID = resp.ID
		}
		s.opLogger.LogOperation(ctx, "start_attempt", studentID, resourceID, "attempt", started, err)
	}()

	exam, err := s.exams.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamPublished {
		return nil, ErrExamNotPublished
	}

	if existing, ok := s.resume(ctx, examID, studentID); ok {
		s.logger.Info("Resuming attempt", "attempt_id", existing.ID, "exam_id", examID, "student_id", studentID)
		return s.buildResponse(exam, existing)
	}

	now := s.now()
	duration := time.Duration(exam.DurationMinutes) * time.Minute
	attempt := &models.ActiveAttempt{
		ID:        uuid.NewString(),
		ExamID:    examID,
		StudentID: studentID,
		StartedAt: now,
		ExpiresAt: now.Add(duration),
		Sheet:     sheet.New(),
		Version:   1,
	}

	ttl := duration + s.grace
	if err := s.cache.Set(ctx, attemptCacheKey(attempt.ID), attempt, ttl); err != nil {
		return nil, fmt.Errorf("failed to store attempt: %w", err)
	}
	if err := s.cache.Set(ctx, activeAttemptCacheKey(examID, studentID), attempt.ID, ttl); err != nil {
		s.logger.Warn("Failed to index active attempt", "attempt_id", attempt.ID, "error", err)
	}

	s.metrics.AttemptsStarted.Inc()
	s.publish(ctx, events.NewAttemptStartedEvent(events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		ExamID:    examID,
		ExamTitle: exam.Title,
		StudentID: studentID,
		StartedAt: attempt.StartedAt,
		ExpiresAt: attempt.ExpiresAt,
	}))

	return s.buildResponse(exam, attempt)
}

func (s *attemptService) Get(ctx context.Context, attemptID, studentID string) (*AttemptResponse, error) {
	attempt, err := s.getActive(ctx, attemptID, studentID, "read")
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.loadExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(exam, attempt)
}

// Select applies one selection to the attempt's sheet. Concurrent selections
// on the same attempt are serialised by the cache; none is lost.
func (s *attemptService) Select(ctx context.Context, attemptID, studentID string, sel sheet.Selection) (*AttemptResponse, error) {
	if err := s.validator.Validate(sel); err != nil {
		s.metrics.ObserveSelection(string(sel.Kind), err)
		return nil, err
	}

	current, err := s.getActive(ctx, attemptID, studentID, "select")
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.loadExam(ctx, current.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	if !containsKey(questions, sheet.Key{Kind: sel.Kind, Index: sel.Index}) {
		s.metrics.ObserveSelection(string(sel.Kind), ErrQuestionNotInExam)
		return nil, fmt.Errorf("%w: %s question %d", ErrQuestionNotInExam, sel.Kind, sel.Index)
	}

	var attempt models.ActiveAttempt
	err = s.cache.Update(ctx, attemptCacheKey(attemptID), &attempt, func() error {
		if attempt.StudentID != studentID {
			return NewPermissionError(studentID, attemptID, "attempt", "select", "not the attempt owner")
		}
		if attempt.Expired(s.now()) {
			return ErrAttemptTimeExpired
		}
		if attempt.Sheet == nil {
			attempt.Sheet = sheet.New()
		}
		if err := attempt.Sheet.Select(sel); err != nil {
			return err
		}
		attempt.Version++
		return nil
	})
	s.metrics.ObserveSelection(string(sel.Kind), err)
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrCacheMiss):
			return nil, s.missingAttemptError(ctx, attemptID)
		case errors.Is(err, cache.ErrConflict):
			return nil, ErrAttemptBusy
		case sheet.IsSelectionError(err):
			s.logger.Debug("Rejected selection", "attempt_id", attemptID, "error", err)
			return nil, err
		}
		return nil, err
	}

	return s.buildResponse(exam, &attempt)
}

// Preview scores the current sheet without submitting it.
func (s *attemptService) Preview(ctx context.Context, attemptID, studentID string) (*sheet.Result, error) {
	attempt, err := s.getActive(ctx, attemptID, studentID, "preview")
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.loadExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	result := sheet.Score(questions, attempt.Sheet)
	return &result, nil
}

// Submit scores the attempt and archives it. Only one of several concurrent
// submits succeeds; the others get ErrAttemptAlreadySubmitted.
func (s *attemptService) Submit(ctx context.Context, attemptID, studentID string) (resp *AttemptRecordResponse, err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "submit_attempt", studentID, attemptID, "attempt", started, err)
	}()

	if _, err := s.getActive(ctx, attemptID, studentID, "submit"); err != nil {
		return nil, err
	}

	var attempt models.ActiveAttempt
	if err := s.cache.Take(ctx, attemptCacheKey(attemptID), &attempt); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrAttemptAlreadySubmitted
		}
		return nil, fmt.Errorf("failed to take attempt: %w", err)
	}

	exam, err := s.exams.loadExam(ctx, attempt.ExamID)
	if err != nil {
		s.restore(ctx, &attempt)
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		s.restore(ctx, &attempt)
		return nil, err
	}

	now := s.now()
	result := sheet.Score(questions, attempt.Sheet)
	record := &models.AttemptRecord{
		ID:              attempt.ID,
		ExamID:          attempt.ExamID,
		StudentID:       attempt.StudentID,
		StartedAt:       attempt.StartedAt,
		SubmittedAt:     now,
		DurationSeconds: int(now.Sub(attempt.StartedAt).Seconds()),
		Late:            attempt.Expired(now),
	}
	record.ApplyResult(result)
	if err := record.SetSheet(attempt.Sheet); err != nil {
		s.restore(ctx, &attempt)
		return nil, err
	}

	if err := s.repo.AttemptRecord().Create(ctx, record); err != nil {
		s.restore(ctx, &attempt)
		return nil, fmt.Errorf("failed to save attempt record: %w", err)
	}

	if err := s.cache.Delete(ctx, activeAttemptCacheKey(attempt.ExamID, attempt.StudentID)); err != nil {
		s.logger.Warn("Failed to clear active attempt index", "attempt_id", attempt.ID, "error", err)
	}

	s.metrics.ObserveSubmission(result.Score)
	s.publish(ctx, events.NewAttemptSubmittedEvent(events.AttemptSubmittedEvent{
		AttemptID:       record.ID,
		ExamID:          record.ExamID,
		StudentID:       record.StudentID,
		Correct:         record.Correct,
		Total:           record.Total,
		Score:           record.Score,
		SubmittedAt:     record.SubmittedAt,
		DurationSeconds: record.DurationSeconds,
		Late:            record.Late,
	}))

	return &AttemptRecordResponse{
		AttemptRecord: record,
		Sheet:         attempt.Sheet,
		Detail:        sheet.Detail(questions, attempt.Sheet),
	}, nil
}

// ===== ARCHIVED ATTEMPTS =====

func (s *attemptService) GetRecord(ctx context.Context, recordID, userID string) (*AttemptRecordResponse, error) {
	record, exam, err := s.getReadableRecord(ctx, recordID, userID)
	if err != nil {
		return nil, err
	}
	return s.buildRecordResponse(record, exam)
}

func (s *attemptService) ListByStudent(ctx context.Context, studentID, userID string, filters repositories.AttemptRecordFilters) (*AttemptRecordListResponse, error) {
	if studentID != userID {
		return nil, NewPermissionError(userID, studentID, "attempt_history", "list", "students can only list their own attempts")
	}
	filters.StudentID = studentID
	return s.list(ctx, filters)
}

func (s *attemptService) ListByExam(ctx context.Context, examID uint, userID string, filters repositories.AttemptRecordFilters) (*AttemptRecordListResponse, error) {
	if _, err := s.exams.getOwnedExam(ctx, examID, userID, "list_attempts"); err != nil {
		return nil, err
	}
	filters.ExamID = &examID
	return s.list(ctx, filters)
}

// Rescore grades the archived sheet against the exam's current answer key.
// The stored result is replaced only when it changed.
func (s *attemptService) Rescore(ctx context.Context, recordID, userID string) (resp *AttemptRecordResponse, err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "rescore_attempt", userID, recordID, "attempt_record", started, err)
	}()

	record, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.getOwnedExam(ctx, record.ExamID, userID, "rescore")
	if err != nil {
		return nil, err
	}

	answers, err := record.Sheet()
	if err != nil {
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}

	previous := record.Score
	result := sheet.Score(questions, answers)
	if result.Correct != record.Correct || result.Total != record.Total || result.Score != record.Score {
		record.ApplyResult(result)
		if err := s.repo.AttemptRecord().Update(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to update attempt record: %w", err)
		}
		s.publish(ctx, events.NewAttemptRescoredEvent(events.AttemptRescoredEvent{
			AttemptID:     record.ID,
			ExamID:        record.ExamID,
			StudentID:     record.StudentID,
			PreviousScore: previous,
			Score:         record.Score,
		}))
	}

	return &AttemptRecordResponse{
		AttemptRecord: record,
		Sheet:         answers,
		Detail:        sheet.Detail(questions, answers),
	}, nil
}

func (s *attemptService) Document(ctx context.Context, recordID, userID string) (*SheetDocument, error) {
	record, exam, err := s.getReadableRecord(ctx, recordID, userID)
	if err != nil {
		return nil, err
	}
	answers, err := record.Sheet()
	if err != nil {
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	result := sheet.Result{Correct: record.Correct, Total: record.Total, Score: record.Score}
	return &SheetDocument{
		Exam:      exam,
		Questions: questions,
		Sheet:     answers,
		Result:    &result,
		Record:    record,
		ShowKeys:  true,
	}, nil
}

// ===== HELPERS =====

func attemptCacheKey(id string) string {
	return "attempt:" + id
}

func activeAttemptCacheKey(examID uint, studentID string) string {
	return fmt.Sprintf("attempt:active:%d:%s", examID, studentID)
}

// getActive loads an in-progress attempt and checks that studentID owns it.
func (s *attemptService) getActive(ctx context.Context, attemptID, studentID, action string) (*models.ActiveAttempt, error) {
	var attempt models.ActiveAttempt
	if err := s.cache.Get(ctx, attemptCacheKey(attemptID), &attempt); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, s.missingAttemptError(ctx, attemptID)
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", action, "not the attempt owner")
	}
	if attempt.Sheet == nil {
		attempt.Sheet = sheet.New()
	}
	return &attempt, nil
}

func (s *attemptService) missingAttemptError(ctx context.Context, attemptID string) error {
	exists, err := s.repo.AttemptRecord().Exists(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("failed to check attempt record: %w", err)
	}
	if exists {
		return ErrAttemptAlreadySubmitted
	}
	return ErrAttemptNotFound
}

func (s *attemptService) resume(ctx context.Context, examID uint, studentID string) (*models.ActiveAttempt, bool) {
	var attemptID string
	if err := s.cache.Get(ctx, activeAttemptCacheKey(examID, studentID), &attemptID); err != nil {
		return nil, false
	}
	attempt, err := s.getActive(ctx, attemptID, studentID, "resume")
	if err != nil {
		return nil, false
	}
	return attempt, true
}

// restore puts a taken attempt back after archiving it failed.
func (s *attemptService) restore(ctx context.Context, attempt *models.ActiveAttempt) {
	ttl := attempt.ExpiresAt.Add(s.grace).Sub(s.now())
	if ttl <= 0 {
		ttl = s.grace
	}
	if err := s.cache.Set(ctx, attemptCacheKey(attempt.ID), attempt, ttl); err != nil {
		s.logger.Error("Failed to restore attempt after failed submit", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *attemptService) getRecord(ctx context.Context, recordID string) (*models.AttemptRecord, error) {
	record, err := s.repo.AttemptRecord().GetByID(ctx, recordID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt record: %w", err)
	}
	return record, nil
}

// getReadableRecord loads a record visible to the student who wrote it and
// to the owner of its exam.
func (s *attemptService) getReadableRecord(ctx context.Context, recordID, userID string) (*models.AttemptRecord, *models.Exam, error) {
	record, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	exam, err := s.repo.Exam().GetByID(ctx, record.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrExamNotFound
		}
		return nil, nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if record.StudentID != userID && exam.CreatedBy != userID {
		return nil, nil, NewPermissionError(userID, recordID, "attempt_record", "read", "not the student or exam owner")
	}
	return record, exam, nil
}

func (s *attemptService) list(ctx context.Context, filters repositories.AttemptRecordFilters) (*AttemptRecordListResponse, error) {
	records, total, err := s.repo.AttemptRecord().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempt records: %w", err)
	}
	return &AttemptRecordListResponse{
		Records: records,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
		HasMore: hasMore(filters.Offset, len(records), total),
	}, nil
}

func (s *attemptService) buildResponse(exam *models.Exam, attempt *models.ActiveAttempt) (*AttemptResponse, error) {
	view, err := models.NewExamView(exam, false)
	if err != nil {
		return nil, err
	}
	remaining := int(attempt.ExpiresAt.Sub(s.now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &AttemptResponse{
		ID:               attempt.ID,
		ExamID:           attempt.ExamID,
		ExamTitle:        exam.Title,
		StudentID:        attempt.StudentID,
		StartedAt:        attempt.StartedAt,
		ExpiresAt:        attempt.ExpiresAt,
		RemainingSeconds: remaining,
		Sheet:            attempt.Sheet,
		Questions:        view.Questions,
	}, nil
}

func (s *attemptService) buildRecordResponse(record *models.AttemptRecord, exam *models.Exam) (*AttemptRecordResponse, error) {
	answers, err := record.Sheet()
	if err != nil {
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	return &AttemptRecordResponse{
		AttemptRecord: record,
		Sheet:         answers,
		Detail:        sheet.Detail(questions, answers),
	}, nil
}

func (s *attemptService) publish(ctx context.Context, event *events.Event) {
	s.exams.publish(ctx, event)
}

func containsKey(questions []sheet.Question, key sheet.Key) bool {
	for _, q := range questions {
		if q.Key() == key {
			return true
		}
	}
	return false
}
