package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/events"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
)

const defaultExamCacheTTL = 10 * time.Minute

type examService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	opLogger  *ServiceLogger
	cacheTTL  time.Duration
}

func NewExamService(
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
	cacheTTL time.Duration,
) ExamService {
	if cacheTTL <= 0 {
		cacheTTL = defaultExamCacheTTL
	}
	return &examService{
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		opLogger:  NewServiceLogger(logger, "exam"),
		cacheTTL:  cacheTTL,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (view *models.ExamView, err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "create_exam", creatorID, examResourceID(view), "exam", started, err)
	}()

	if err := s.validateRequest(ctx, "create_exam", creatorID, req, req.Questions, false); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exam().ExistsByTitle(ctx, req.Title, creatorID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam title: %w", err)
	}
	if exists {
		return nil, ErrExamDuplicateTitle
	}

	exam := &models.Exam{
		Title:           req.Title,
		Subject:         req.Subject,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Status:          models.ExamDraft,
		CreatedBy:       creatorID,
	}
	if err := exam.SetSheetQuestions(req.Questions); err != nil {
		return nil, err
	}

	if err := s.repo.Exam().Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	return models.NewExamView(exam, true)
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*models.ExamView, error) {
	exam, err := s.loadExam(ctx, id)
	if err != nil {
		return nil, err
	}

	isOwner := exam.CreatedBy == userID
	if !isOwner && exam.Status != models.ExamPublished {
		return nil, NewPermissionError(userID, id, "exam", "read", "exam is not published")
	}

	return models.NewExamView(exam, isOwner)
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	// Drafts and archived exams are only listed for their owner.
	if filters.CreatedBy != userID {
		published := models.ExamPublished
		filters.Status = &published
	}

	exams, total, err := s.repo.Exam().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	return &ExamListResponse{
		Exams:   exams,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
		HasMore: hasMore(filters.Offset, len(exams), total),
	}, nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (view *models.ExamView, err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "update_exam", userID, strconv.FormatUint(uint64(id), 10), "exam", started, err)
	}()

	exam, err := s.getOwnedExam(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}
	if exam.Status == models.ExamArchived {
		return nil, ErrExamNotEditable
	}

	// Published exams are taken by students, so their keys must stay complete.
	requireKeys := exam.Status == models.ExamPublished
	if err := s.validateRequest(ctx, "update_exam", userID, req, req.Questions, requireKeys); err != nil {
		return nil, err
	}

	if req.Title != nil && *req.Title != exam.Title {
		exists, err := s.repo.Exam().ExistsByTitle(ctx, *req.Title, userID, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check exam title: %w", err)
		}
		if exists {
			return nil, ErrExamDuplicateTitle
		}
		exam.Title = *req.Title
	}
	if req.Subject != nil {
		exam.Subject = *req.Subject
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.Questions != nil {
		if requireKeys {
			if errs := s.validator.Exam().ValidateKeyDensity(req.Questions); len(errs) > 0 {
				return nil, errs
			}
		}
		if err := exam.SetSheetQuestions(req.Questions); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Exam().Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}
	s.invalidate(ctx, id)

	return models.NewExamView(exam, true)
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) (err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "delete_exam", userID, strconv.FormatUint(uint64(id), 10), "exam", started, err)
	}()

	if _, err := s.getOwnedExam(ctx, id, userID, "delete"); err != nil {
		return err
	}

	count, err := s.repo.AttemptRecord().CountByExam(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if count > 0 {
		return ErrExamNotDeletable
	}

	if err := s.repo.Exam().Delete(ctx, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to delete exam: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// ===== STATUS MANAGEMENT =====

func (s *examService) Publish(ctx context.Context, id uint, userID string) (view *models.ExamView, err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "publish_exam", userID, strconv.FormatUint(uint64(id), 10), "exam", started, err)
	}()

	exam, err := s.getOwnedExam(ctx, id, userID, "publish")
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamDraft {
		return nil, ErrExamInvalidStatus
	}

	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, NewBusinessRuleError("publish_requires_questions", "an exam needs at least one question to be published",
			map[string]interface{}{"exam_id": id})
	}
	errs := s.validator.Exam().ValidateQuestions(questions, true)
	errs = append(errs, s.validator.Exam().ValidateKeyDensity(questions)...)
	if len(errs) > 0 {
		s.opLogger.LogValidationError(ctx, "publish_exam", userID, errs)
		return nil, errs
	}

	if err := s.repo.Exam().UpdateStatus(ctx, id, models.ExamPublished); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to publish exam: %w", err)
	}
	s.invalidate(ctx, id)

	now := time.Now()
	exam.Status = models.ExamPublished
	exam.PublishedAt = &now

	s.publish(ctx, events.NewExamPublishedEvent(events.ExamPublishedEvent{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Subject:         exam.Subject,
		DurationMinutes: exam.DurationMinutes,
		QuestionCount:   len(questions),
		CreatorID:       exam.CreatedBy,
		PublishedAt:     now,
	}))

	return models.NewExamView(exam, true)
}

func (s *examService) Archive(ctx context.Context, id uint, userID string) (view *models.ExamView, err error) {
	started := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "archive_exam", userID, strconv.FormatUint(uint64(id), 10), "exam", started, err)
	}()

	exam, err := s.getOwnedExam(ctx, id, userID, "archive")
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamPublished {
		return nil, ErrExamInvalidStatus
	}

	if err := s.repo.Exam().UpdateStatus(ctx, id, models.ExamArchived); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to archive exam: %w", err)
	}
	s.invalidate(ctx, id)
	exam.Status = models.ExamArchived

	s.publish(ctx, events.NewExamArchivedEvent(events.ExamArchivedEvent{
		ExamID:    exam.ID,
		Title:     exam.Title,
		CreatorID: exam.CreatedBy,
	}))

	return models.NewExamView(exam, true)
}

// ===== READ MODELS =====

func (s *examService) Stats(ctx context.Context, id uint, userID string) (*models.ExamStats, error) {
	if _, err := s.getOwnedExam(ctx, id, userID, "view_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.AttemptRecord().GetExamStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}
	return stats, nil
}

func (s *examService) Document(ctx context.Context, id uint, userID string) (*SheetDocument, error) {
	view, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return &SheetDocument{
		Exam:      view.Exam,
		Questions: view.Questions,
		ShowKeys:  view.CreatedBy == userID,
	}, nil
}

// ===== HELPERS =====

// cachedExam carries the question list next to the exam, since the jsonb
// column is not part of the exam's JSON form.
type cachedExam struct {
	Exam      *models.Exam     `json:"exam"`
	Questions []sheet.Question `json:"questions"`
}

func examCacheKey(id uint) string {
	return fmt.Sprintf("exam:%d", id)
}

// loadExam reads an exam through the cache.
func (s *examService) loadExam(ctx context.Context, id uint) (*models.Exam, error) {
	var entry cachedExam
	err := s.cache.Get(ctx, examCacheKey(id), &entry)
	if err == nil && entry.Exam != nil {
		if err := entry.Exam.SetSheetQuestions(entry.Questions); err == nil {
			return entry.Exam, nil
		}
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to read exam from cache", "exam_id", id, "error", err)
	}

	exam, err := s.repo.Exam().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, examCacheKey(id), cachedExam{Exam: exam, Questions: questions}, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache exam", "exam_id", id, "error", err)
	}
	return exam, nil
}

func (s *examService) getOwnedExam(ctx context.Context, id uint, userID, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "exam", action, "not owner")
	}
	return exam, nil
}

func (s *examService) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Delete(ctx, examCacheKey(id)); err != nil {
		s.logger.Warn("Failed to invalidate exam cache", "exam_id", id, "error", err)
	}
}

func (s *examService) validateRequest(ctx context.Context, operation, userID string, req interface{}, questions []sheet.Question, requireKeys bool) error {
	if err := s.validator.Validate(req); err != nil {
		if errs, ok := err.(ValidationErrors); ok {
			s.opLogger.LogValidationError(ctx, operation, userID, errs)
		}
		return err
	}
	if errs := s.validator.Exam().ValidateQuestions(questions, requireKeys); len(errs) > 0 {
		s.opLogger.LogValidationError(ctx, operation, userID, errs)
		return errs
	}
	return nil
}

// publish sends an event without failing the caller; the state change it
// reports is already committed.
func (s *examService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}

func examResourceID(view *models.ExamView) string {
	if view == nil || view.Exam == nil {
		return ""
	}
	return strconv.FormatUint(uint64(view.ID), 10)
}
