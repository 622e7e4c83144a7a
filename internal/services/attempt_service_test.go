package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/events"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func startAttempt(t *testing.T, f *serviceFixture, studentID string) *AttemptResponse {
	t.Helper()
	f.exams.On("GetByID", mock.Anything, uint(7)).Return(sampleExam(t, models.ExamPublished), nil).Maybe()
	resp, err := f.attemptService.Start(context.Background(), 7, studentID)
	require.NoError(t, err)
	return resp
}

func selectAll(t *testing.T, f *serviceFixture, attemptID, studentID string, selections ...sheet.Selection) {
	t.Helper()
	for _, sel := range selections {
		_, err := f.attemptService.Select(context.Background(), attemptID, studentID, sel)
		require.NoError(t, err, "selection %+v", sel)
	}
}

// mixedSelections answers the sample exam with 5 of 7 slots correct.
func mixedSelections() []sheet.Selection {
	return []sheet.Selection{
		{Kind: sheet.MultipleChoice, Index: 1, Value: "A"},
		{Kind: sheet.MultipleChoice, Index: 2, Value: "D"},
		{Kind: sheet.TrueFalse, Index: 1, Slot: "a", Value: "true"},
		{Kind: sheet.TrueFalse, Index: 1, Slot: "b", Value: "false"},
		{Kind: sheet.TrueFalse, Index: 1, Slot: "c", Value: "true"},
		{Kind: sheet.TrueFalse, Index: 1, Slot: "d", Value: "true"},
		{Kind: sheet.FillInBlank, Index: 1, Slot: "0", Value: "2"},
		{Kind: sheet.FillInBlank, Index: 1, Slot: "1", Value: "0"},
		{Kind: sheet.FillInBlank, Index: 1, Slot: "2", Value: "2"},
		{Kind: sheet.FillInBlank, Index: 1, Slot: "3", Value: "4"},
	}
}

func TestAttemptService_Start(t *testing.T) {
	f := newServiceFixture(t)

	resp := startAttempt(t, f, "student-1")
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 45*60, resp.RemainingSeconds)
	assert.Equal(t, 0, resp.Sheet.Len())
	require.Len(t, resp.Questions, 4)
	for _, q := range resp.Questions {
		assert.False(t, q.HasAnswerKey(), "students never see keys")
	}
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AttemptsStarted))

	again, err := f.attemptService.Start(context.Background(), 7, "student-1")
	require.NoError(t, err)
	assert.Equal(t, resp.ID, again.ID, "an attempt in progress is resumed")

	other := startAttempt(t, f, "student-2")
	assert.NotEqual(t, resp.ID, other.ID)
}

func TestAttemptService_StartRequiresPublishedExam(t *testing.T) {
	f := newServiceFixture(t)
	f.exams.On("GetByID", mock.Anything, uint(7)).Return(sampleExam(t, models.ExamDraft), nil)

	_, err := f.attemptService.Start(context.Background(), 7, "student-1")
	assert.ErrorIs(t, err, ErrExamNotPublished)
}

func TestAttemptService_SelectAndSubmit(t *testing.T) {
	f := newServiceFixture(t)
	attempt := startAttempt(t, f, "student-1")
	selectAll(t, f, attempt.ID, "student-1", mixedSelections()...)

	preview, err := f.attemptService.Preview(context.Background(), attempt.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, sheet.Result{Correct: 5, Total: 7, Score: 7.14}, *preview)

	f.clock.Advance(20 * time.Minute)
	f.records.On("Create", mock.Anything, mock.MatchedBy(func(r *models.AttemptRecord) bool {
		return r.ID == attempt.ID && r.Correct == 5 && r.Total == 7 && r.Score == 7.14 &&
			r.DurationSeconds == 20*60 && !r.Late
	})).Return(nil).Once()

	record, err := f.attemptService.Submit(context.Background(), attempt.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 7.14, record.Score)
	assert.Len(t, record.Detail, 4)
	assert.Equal(t, 4, record.Sheet.Len())

	submitted := f.publisher.EventsOfType(events.EventAttemptSubmitted)
	require.Len(t, submitted, 1)
	assert.Equal(t, 7.14, submitted[0].Data.(events.AttemptSubmittedEvent).Score)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AttemptsSubmitted))

	f.records.On("Exists", mock.Anything, attempt.ID).Return(true, nil)
	_, err = f.attemptService.Submit(context.Background(), attempt.ID, "student-1")
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)

	_, err = f.attemptService.Select(context.Background(), attempt.ID, "student-1",
		sheet.Selection{Kind: sheet.MultipleChoice, Index: 1, Value: "B"})
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
}

func TestAttemptService_SelectRejectsInvalidInput(t *testing.T) {
	f := newServiceFixture(t)
	attempt := startAttempt(t, f, "student-1")
	selectAll(t, f, attempt.ID, "student-1", sheet.Selection{Kind: sheet.MultipleChoice, Index: 1, Value: "A"})

	tests := []struct {
		name string
		sel  sheet.Selection
		want error
	}{
		{name: "unknown option", sel: sheet.Selection{Kind: sheet.MultipleChoice, Index: 1, Value: "E"}, want: sheet.ErrInvalidOption},
		{name: "unknown statement", sel: sheet.Selection{Kind: sheet.TrueFalse, Index: 1, Slot: "e", Value: "true"}, want: sheet.ErrInvalidStatement},
		{name: "digit out of range", sel: sheet.Selection{Kind: sheet.FillInBlank, Index: 1, Slot: "0", Value: "x"}, want: sheet.ErrInvalidDigit},
		{name: "column out of range", sel: sheet.Selection{Kind: sheet.FillInBlank, Index: 1, Slot: "4", Value: "1"}, want: sheet.ErrInvalidColumn},
		{name: "question not in exam", sel: sheet.Selection{Kind: sheet.MultipleChoice, Index: 3, Value: "A"}, want: ErrQuestionNotInExam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.attemptService.Select(context.Background(), attempt.ID, "student-1", tt.sel)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}

	t.Run("struct validation", func(t *testing.T) {
		_, err := f.attemptService.Select(context.Background(), attempt.ID, "student-1", sheet.Selection{Kind: "essay", Index: 1, Value: "A"})
		assert.True(t, IsValidation(err))
	})

	current, err := f.attemptService.Get(context.Background(), attempt.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1, current.Sheet.Len(), "rejected selections leave the sheet unchanged")
	option, ok := current.Sheet.Option(1)
	assert.True(t, ok)
	assert.Equal(t, "A", option)
}

func TestAttemptService_OwnershipAndExpiry(t *testing.T) {
	f := newServiceFixture(t)
	attempt := startAttempt(t, f, "student-1")
	sel := sheet.Selection{Kind: sheet.MultipleChoice, Index: 1, Value: "A"}

	_, err := f.attemptService.Select(context.Background(), attempt.ID, "student-2", sel)
	var permErr *PermissionError
	assert.True(t, errors.As(err, &permErr))

	_, err = f.attemptService.Get(context.Background(), attempt.ID, "student-2")
	assert.True(t, IsUnauthorized(err))

	f.clock.Advance(46 * time.Minute)
	_, err = f.attemptService.Select(context.Background(), attempt.ID, "student-1", sel)
	assert.ErrorIs(t, err, ErrAttemptTimeExpired)

	f.records.On("Create", mock.Anything, mock.MatchedBy(func(r *models.AttemptRecord) bool {
		return r.Late && r.Total == 7 && r.Correct == 0
	})).Return(nil).Once()
	record, err := f.attemptService.Submit(context.Background(), attempt.ID, "student-1")
	require.NoError(t, err)
	assert.True(t, record.Late)
}

func TestAttemptService_UnknownAttempt(t *testing.T) {
	f := newServiceFixture(t)
	f.records.On("Exists", mock.Anything, "missing").Return(false, nil)

	_, err := f.attemptService.Get(context.Background(), "missing", "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptService_SubmitRestoresAttemptOnStoreFailure(t *testing.T) {
	f := newServiceFixture(t)
	attempt := startAttempt(t, f, "student-1")
	selectAll(t, f, attempt.ID, "student-1", sheet.Selection{Kind: sheet.MultipleChoice, Index: 1, Value: "A"})

	f.records.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
	_, err := f.attemptService.Submit(context.Background(), attempt.ID, "student-1")
	require.Error(t, err)

	current, err := f.attemptService.Get(context.Background(), attempt.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1, current.Sheet.Len())
	assert.Empty(t, f.publisher.EventsOfType(events.EventAttemptSubmitted))
}

func TestAttemptService_ConcurrentSelectionsAreAllApplied(t *testing.T) {
	f := newServiceFixture(t)
	attempt := startAttempt(t, f, "student-1")

	var wg sync.WaitGroup
	for i, sel := range mixedSelections() {
		wg.Add(1)
		go func(i int, sel sheet.Selection) {
			defer wg.Done()
			_, err := f.attemptService.Select(context.Background(), attempt.ID, "student-1", sel)
			assert.NoError(t, err, "selection %d", i)
		}(i, sel)
	}
	wg.Wait()

	preview, err := f.attemptService.Preview(context.Background(), attempt.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 5, preview.Correct)
}

func TestAttemptService_ConcurrentSubmitsArchiveOnce(t *testing.T) {
	f := newServiceFixture(t)
	attempt := startAttempt(t, f, "student-1")
	f.records.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.records.On("Exists", mock.Anything, attempt.ID).Return(true, nil).Maybe()

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.attemptService.Submit(context.Background(), attempt.ID, "student-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAttemptAlreadySubmitted):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptSubmitted), 1)
}

func archivedRecord(t *testing.T) *models.AttemptRecord {
	t.Helper()
	answers := sheet.New()
	require.NoError(t, answers.SelectOption(1, "B"))
	require.NoError(t, answers.SelectOption(2, "C"))
	record := &models.AttemptRecord{ID: "rec-1", ExamID: 7, StudentID: "student-1", Correct: 1, Total: 7, Score: 1.43}
	require.NoError(t, record.SetSheet(answers))
	return record
}

func TestAttemptService_Rescore(t *testing.T) {
	t.Run("updates when the key changed", func(t *testing.T) {
		f := newServiceFixture(t)
		exam := sampleExam(t, models.ExamPublished)
		questions := sampleQuestions()
		questions[0].MultipleChoice.CorrectAnswer = "B"
		require.NoError(t, exam.SetSheetQuestions(questions))

		f.records.On("GetByID", mock.Anything, "rec-1").Return(archivedRecord(t), nil)
		f.exams.On("GetByID", mock.Anything, uint(7)).Return(exam, nil)
		f.records.On("Update", mock.Anything, mock.MatchedBy(func(r *models.AttemptRecord) bool {
			return r.Correct == 2 && r.Score == 2.86
		})).Return(nil).Once()

		resp, err := f.attemptService.Rescore(context.Background(), "rec-1", "instructor-1")
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Correct)

		rescored := f.publisher.EventsOfType(events.EventAttemptRescored)
		require.Len(t, rescored, 1)
		assert.Equal(t, 1.43, rescored[0].Data.(events.AttemptRescoredEvent).PreviousScore)
	})

	t.Run("unchanged result is not written", func(t *testing.T) {
		f := newServiceFixture(t)
		f.records.On("GetByID", mock.Anything, "rec-1").Return(archivedRecord(t), nil)
		f.exams.On("GetByID", mock.Anything, uint(7)).Return(sampleExam(t, models.ExamPublished), nil)

		resp, err := f.attemptService.Rescore(context.Background(), "rec-1", "instructor-1")
		require.NoError(t, err)
		assert.Equal(t, 1.43, resp.Score)
		assert.Empty(t, f.publisher.GetPublishedEvents())
	})

	t.Run("only the exam owner", func(t *testing.T) {
		f := newServiceFixture(t)
		f.records.On("GetByID", mock.Anything, "rec-1").Return(archivedRecord(t), nil)
		f.exams.On("GetByID", mock.Anything, uint(7)).Return(sampleExam(t, models.ExamPublished), nil)

		_, err := f.attemptService.Rescore(context.Background(), "rec-1", "student-1")
		assert.True(t, IsUnauthorized(err))
	})
}

func TestAttemptService_GetRecord(t *testing.T) {
	f := newServiceFixture(t)
	f.records.On("GetByID", mock.Anything, "rec-1").Return(archivedRecord(t), nil)
	f.records.On("GetByID", mock.Anything, "nope").Return(nil, gorm.ErrRecordNotFound)
	f.exams.On("GetByID", mock.Anything, uint(7)).Return(sampleExam(t, models.ExamPublished), nil)

	for _, userID := range []string{"student-1", "instructor-1"} {
		resp, err := f.attemptService.GetRecord(context.Background(), "rec-1", userID)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Sheet.Len())
		assert.Len(t, resp.Detail, 4)
	}

	_, err := f.attemptService.GetRecord(context.Background(), "rec-1", "student-2")
	assert.True(t, IsUnauthorized(err))

	_, err = f.attemptService.GetRecord(context.Background(), "nope", "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	doc, err := f.attemptService.Document(context.Background(), "rec-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1.43, doc.Result.Score)
	assert.True(t, doc.ShowKeys)
}

func TestAttemptService_Lists(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.attemptService.ListByStudent(context.Background(), "student-1", "student-2", repositories.AttemptRecordFilters{})
	assert.True(t, IsUnauthorized(err))

	f.records.On("List", mock.Anything, mock.MatchedBy(func(filters repositories.AttemptRecordFilters) bool {
		return filters.StudentID == "student-1"
	})).Return([]*models.AttemptRecord{archivedRecord(t)}, int64(1), nil)
	resp, err := f.attemptService.ListByStudent(context.Background(), "student-1", "student-1", repositories.AttemptRecordFilters{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 1)
	assert.False(t, resp.HasMore)

	f.exams.On("GetByID", mock.Anything, uint(7)).Return(sampleExam(t, models.ExamPublished), nil)
	f.records.On("List", mock.Anything, mock.MatchedBy(func(filters repositories.AttemptRecordFilters) bool {
		return filters.ExamID != nil && *filters.ExamID == 7
	})).Return([]*models.AttemptRecord{}, int64(0), nil)
	_, err = f.attemptService.ListByExam(context.Background(), 7, "instructor-1", repositories.AttemptRecordFilters{})
	require.NoError(t, err)

	_, err = f.attemptService.ListByExam(context.Background(), 7, "student-1", repositories.AttemptRecordFilters{})
	assert.True(t, IsUnauthorized(err))
}
