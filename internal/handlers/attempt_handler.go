package handlers

import (
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	documentWriter
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, docs documentWriter) *AttemptHandler {
	return &AttemptHandler{
		documentWriter: docs,
		attemptService: attemptService,
	}
}

// StartAttempt starts or resumes the caller's attempt on a published exam
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ExamID == 0 {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, "exam_id is required")
		return
	}

	h.LogRequest(c, "Starting attempt", "exam_id", req.ExamID)

	attempt, err := h.attemptService.Start(c.Request.Context(), req.ExamID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SelectAnswer applies one bubble selection to the attempt's sheet
func (h *AttemptHandler) SelectAnswer(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var sel sheet.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	attempt, err := h.attemptService.Select(c.Request.Context(), attemptID, userID, sel)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// PreviewScore scores the in-progress sheet without submitting it
func (h *AttemptHandler) PreviewScore(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Preview(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	record, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ===== SUBMITTED RECORDS =====

func (h *AttemptHandler) GetRecord(c *gin.Context) {
	recordID := ParseStringIDParam(c, "id")
	if recordID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	record, err := h.attemptService.GetRecord(c.Request.Context(), recordID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// RescoreRecord grades an archived sheet again against the exam's current keys
func (h *AttemptHandler) RescoreRecord(c *gin.Context) {
	recordID := ParseStringIDParam(c, "id")
	if recordID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Rescoring attempt", "attempt_id", recordID)

	record, err := h.attemptService.Rescore(c.Request.Context(), recordID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *AttemptHandler) RecordPDF(c *gin.Context) {
	doc, ok := h.recordDocument(c)
	if !ok {
		return
	}
	h.writePDF(c, doc, fmt.Sprintf("attempt-%s.pdf", doc.Record.ID))
}

func (h *AttemptHandler) PrintRecord(c *gin.Context) {
	doc, ok := h.recordDocument(c)
	if !ok {
		return
	}
	h.writeHTML(c, doc)
}

func (h *AttemptHandler) recordDocument(c *gin.Context) (*services.SheetDocument, bool) {
	recordID := ParseStringIDParam(c, "id")
	if recordID == "" {
		return nil, false
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return nil, false
	}

	doc, err := h.attemptService.Document(c.Request.Context(), recordID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return doc, true
}

// ListStudentAttempts lists a student's own submitted attempts
func (h *AttemptHandler) ListStudentAttempts(c *gin.Context) {
	studentID := ParseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters := repositories.AttemptRecordFilters{
		Limit:     h.parseIntQuery(c, "limit", 20),
		Offset:    h.parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if examID := h.parseIntQuery(c, "exam_id", 0); examID > 0 {
		id := uint(examID)
		filters.ExamID = &id
	}

	records, err := h.attemptService.ListByStudent(c.Request.Context(), studentID, userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}
