package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheetName   = "Results"
	questionsSheetName = "Questions"
	timeLayout         = "2006-01-02 15:04:05"
	unreadableCell     = "unreadable"
)

var answerKeyColumns = []string{"index", "kind", "correct_answer"}

type importExportService struct {
	exams *examService
}

func NewImportExportService(exams ExamService) ImportExportService {
	return &importExportService{exams: exams.(*examService)}
}

// ===== IMPORT OPERATIONS =====

// ImportAnswerKey merges answer keys read from a file into a draft exam.
// Rows for questions the exam already has replace their key; other rows
// add a question. The exam is saved only when every row parses.
func (s *importExportService) ImportAnswerKey(ctx context.Context, examID uint, r io.Reader, format models.ImportFormat, userID string) (result *ImportResult, err error) {
	started := time.Now()
	defer func() {
		s.exams.opLogger.LogOperation(ctx, "import_answer_key", userID, strconv.FormatUint(uint64(examID), 10), "exam", started, err)
	}()

	exam, err := s.exams.getOwnedExam(ctx, examID, userID, "import_answer_key")
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamDraft {
		return nil, ErrExamNotEditable
	}

	var rows [][]string
	switch format {
	case models.ImportFormatCSV:
		rows, err = readCSVRows(r)
	case models.ImportFormatXLSX:
		rows, err = readExcelRows(r)
	default:
		return nil, NewValidationError("file", "unsupported file format", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, NewValidationError("file", "file must have a header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range answerKeyColumns {
		if _, exists := headerMap[col]; !exists {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}
	byKey := make(map[sheet.Key]int, len(questions))
	for i, q := range questions {
		byKey[q.Key()] = i
	}

	result = &ImportResult{TotalRows: len(rows) - 1}
	for rowIndex, row := range rows[1:] {
		q, rowErr := parseAnswerKeyRow(row, headerMap, rowIndex+2)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			result.ErrorCount++
			continue
		}
		if i, ok := byKey[q.Key()]; ok {
			questions[i].MultipleChoice = q.MultipleChoice
			questions[i].TrueFalse = q.TrueFalse
			questions[i].FillBlank = q.FillBlank
			if q.Prompt != "" {
				questions[i].Prompt = q.Prompt
			}
		} else {
			byKey[q.Key()] = len(questions)
			questions = append(questions, *q)
		}
		result.SuccessCount++
	}

	if result.ErrorCount == 0 {
		if errs := s.exams.validator.Exam().ValidateQuestions(questions, false); len(errs) > 0 {
			return nil, errs
		}
		if err := exam.SetSheetQuestions(questions); err != nil {
			return nil, err
		}
		if err := s.exams.repo.Exam().Update(ctx, exam); err != nil {
			return nil, fmt.Errorf("failed to save imported answer key: %w", err)
		}
		s.exams.invalidate(ctx, examID)
		result.Applied = true
	}

	view, err := models.NewExamView(exam, true)
	if err != nil {
		return nil, err
	}
	result.Exam = view

	s.exams.logger.Info("Answer key import completed",
		"exam_id", examID,
		"format", format,
		"total_rows", result.TotalRows,
		"success_count", result.SuccessCount,
		"error_count", result.ErrorCount,
		"applied", result.Applied)

	return result, nil
}

// ===== EXPORT OPERATIONS =====

// ExportResults writes an exam's attempt records to a workbook with one row
// per attempt and a second sheet of per-question results.
func (s *importExportService) ExportResults(ctx context.Context, examID uint, userID string) ([]byte, error) {
	exam, err := s.exams.getOwnedExam(ctx, examID, userID, "export_results")
	if err != nil {
		return nil, err
	}
	questions, err := exam.SheetQuestions()
	if err != nil {
		return nil, err
	}

	records, err := s.exams.repo.AttemptRecord().ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt records: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheetName); err != nil {
		return nil, fmt.Errorf("failed to name Excel sheet: %w", err)
	}
	if _, err := f.NewSheet(questionsSheetName); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	resultHeaders := []interface{}{
		"Attempt ID", "Student ID", "Correct", "Total", "Score",
		"Started At", "Submitted At", "Duration (seconds)", "Late",
	}
	if err := writeRow(f, resultsSheetName, 1, resultHeaders); err != nil {
		return nil, err
	}

	questionHeaders := []interface{}{"Attempt ID", "Student ID"}
	for _, q := range questions {
		questionHeaders = append(questionHeaders, q.Key().String())
	}
	if err := writeRow(f, questionsSheetName, 1, questionHeaders); err != nil {
		return nil, err
	}

	for i, record := range records {
		row := []interface{}{
			record.ID,
			record.StudentID,
			record.Correct,
			record.Total,
			record.Score,
			record.StartedAt.Format(timeLayout),
			record.SubmittedAt.Format(timeLayout),
			record.DurationSeconds,
			record.Late,
		}
		if err := writeRow(f, resultsSheetName, i+2, row); err != nil {
			return nil, err
		}

		detail := []interface{}{record.ID, record.StudentID}
		answers, err := record.Sheet()
		if err != nil {
			s.exams.logger.Warn("Unreadable answers in export", "attempt_id", record.ID, "error", err)
			for range questions {
				detail = append(detail, unreadableCell)
			}
		} else {
			for _, qr := range sheet.Detail(questions, answers) {
				detail = append(detail, fmt.Sprintf("%d/%d", qr.Correct, qr.Total))
			}
		}
		if err := writeRow(f, questionsSheetName, i+2, detail); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.exams.logger.Info("Exported exam results", "exam_id", examID, "records", len(records))
	return buf.Bytes(), nil
}

// ===== HELPER FUNCTIONS =====

func readCSVRows(r io.Reader) ([][]string, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return records, nil
}

func readExcelRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewValidationError("file", "not a readable Excel file", err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return rows, nil
}

// parseAnswerKeyRow reads one question with its key. True-false keys are
// written as four comma separated T/F values.
func parseAnswerKeyRow(row []string, headerMap map[string]int, rowNum int) (*sheet.Question, *models.ImportValidationError) {
	getColumn := func(name string) string {
		if index, exists := headerMap[name]; exists && index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}
	rowError := func(column, message, value, code string) *models.ImportValidationError {
		return &models.ImportValidationError{Row: rowNum, Column: column, Message: message, Value: value, Code: code}
	}

	kindValue := getColumn("kind")
	kind, ok := sheet.ParseKind(kindValue)
	if !ok {
		return nil, rowError("kind", "unknown question kind", kindValue, "INVALID_KIND")
	}

	indexValue := getColumn("index")
	index, err := strconv.Atoi(indexValue)
	if err != nil || index < 1 {
		return nil, rowError("index", "must be a positive integer", indexValue, "INVALID_INDEX")
	}

	q := &sheet.Question{Index: index, Kind: kind, Prompt: getColumn("prompt")}
	answer := getColumn("correct_answer")

	switch kind {
	case sheet.MultipleChoice:
		option := strings.ToUpper(answer)
		if !isOption(option) {
			return nil, rowError("correct_answer", "must be one of A, B, C, D", answer, "INVALID_OPTION")
		}
		q.MultipleChoice = &sheet.MultipleChoiceKey{CorrectAnswer: option}
	case sheet.TrueFalse:
		values, ok := parseTrueFalseKey(answer)
		if !ok {
			return nil, rowError("correct_answer",
				fmt.Sprintf("must be %d comma separated T/F values", sheet.StatementCount), answer, "INVALID_STATEMENTS")
		}
		q.TrueFalse = &sheet.TrueFalseKey{CorrectAnswers: values}
	case sheet.FillInBlank:
		if !validator.IsCanonicalNumeral(answer) {
			return nil, rowError("correct_answer", "must be a number of at most 4 digits", answer, "INVALID_NUMERAL")
		}
		q.FillBlank = &sheet.FillBlankKey{CorrectAnswer: answer}
	}

	return q, nil
}

func parseTrueFalseKey(value string) ([]bool, bool) {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	if len(parts) != sheet.StatementCount {
		return nil, false
	}
	values := make([]bool, 0, len(parts))
	for _, part := range parts {
		switch strings.ToUpper(part) {
		case "T", "TRUE", "1":
			values = append(values, true)
		case "F", "FALSE", "0":
			values = append(values, false)
		default:
			return nil, false
		}
	}
	return values, true
}

func isOption(label string) bool {
	for _, o := range sheet.Options {
		if o == label {
			return true
		}
	}
	return false
}

func writeRow(f *excelize.File, sheetName string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to address cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}
