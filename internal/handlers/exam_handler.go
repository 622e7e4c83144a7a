package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExamHandler struct {
	documentWriter
	examService         services.ExamService
	attemptService      services.AttemptService
	importExportService services.ImportExportService
	maxImportBytes      int64
}

func NewExamHandler(
	examService services.ExamService,
	attemptService services.AttemptService,
	importExportService services.ImportExportService,
	docs documentWriter,
	maxImportBytes int64,
) *ExamHandler {
	return &ExamHandler{
		documentWriter:      docs,
		examService:         examService,
		attemptService:      attemptService,
		importExportService: importExportService,
		maxImportBytes:      maxImportBytes,
	}
}

// CreateExam creates a draft exam
func (h *ExamHandler) CreateExam(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// ListExams lists exams. Other creators' exams are listed only when published.
func (h *ExamHandler) ListExams(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters := repositories.ExamFilters{
		Subject:   c.Query("subject"),
		CreatedBy: c.Query("created_by"),
		Search:    c.Query("search"),
		Limit:     h.parseIntQuery(c, "limit", 20),
		Offset:    h.parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		s := models.ExamStatus(status)
		if !s.Valid() {
			h.RespondWithError(c, http.StatusBadRequest, "Invalid status", nil, status)
			return
		}
		filters.Status = &s
	}

	exams, err := h.examService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	h.LogRequest(c, "Updating exam", "exam_id", id)

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ExamHandler) PublishExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Publishing exam", "exam_id", id)

	exam, err := h.examService.Publish(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Archive(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) GetExamStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	stats, err := h.examService.Stats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListExamAttempts lists the submitted attempts of an exam for its owner.
func (h *ExamHandler) ListExamAttempts(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters := repositories.AttemptRecordFilters{
		Limit:     h.parseIntQuery(c, "limit", 50),
		Offset:    h.parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	records, err := h.attemptService.ListByExam(c.Request.Context(), id, userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// ExamPDF downloads the blank answer sheet.
func (h *ExamHandler) ExamPDF(c *gin.Context) {
	doc, ok := h.examDocument(c)
	if !ok {
		return
	}
	h.writePDF(c, doc, fmt.Sprintf("exam-%d.pdf", doc.Exam.ID))
}

// PrintExam renders the blank answer sheet as a printable page.
func (h *ExamHandler) PrintExam(c *gin.Context) {
	doc, ok := h.examDocument(c)
	if !ok {
		return
	}
	h.writeHTML(c, doc)
}

func (h *ExamHandler) examDocument(c *gin.Context) (*services.SheetDocument, bool) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return nil, false
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return nil, false
	}

	doc, err := h.examService.Document(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return doc, true
}

// ImportAnswerKey reads answer keys for a draft exam from an uploaded CSV or
// XLSX file in the "file" form field.
func (h *ExamHandler) ImportAnswerKey(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Missing import file", err, err.Error())
		return
	}
	if h.maxImportBytes > 0 && fileHeader.Size > h.maxImportBytes {
		h.RespondWithError(c, http.StatusRequestEntityTooLarge, "Import file too large", nil,
			map[string]interface{}{"size": fileHeader.Size, "max_size": h.maxImportBytes})
		return
	}

	format, ok := importFormat(c.PostForm("format"), fileHeader.Filename)
	if !ok {
		h.RespondWithError(c, http.StatusBadRequest, "Unsupported import format", nil,
			"expected a .csv or .xlsx file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to read import file", err)
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing answer key", "exam_id", id, "file", fileHeader.Filename, "format", format)

	result, err := h.importExportService.ImportAnswerKey(c.Request.Context(), id, file, format, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if !result.Applied {
		h.LogWarn(c, "Answer key import rejected", "exam_id", id, "error_count", result.ErrorCount)
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportResults downloads the exam's submitted results as a workbook.
func (h *ExamHandler) ExportResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	data, err := h.importExportService.ExportResults(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("exam-%d-results.xlsx", id)))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func importFormat(explicit, filename string) (models.ImportFormat, bool) {
	value := strings.ToLower(strings.TrimSpace(explicit))
	if value == "" {
		value = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	}
	switch models.ImportFormat(value) {
	case models.ImportFormatCSV:
		return models.ImportFormatCSV, true
	case models.ImportFormatXLSX:
		return models.ImportFormatXLSX, true
	}
	return "", false
}
