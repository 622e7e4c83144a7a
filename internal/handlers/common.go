package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	logger, fields := h.requestLogger(c)
	fields = append(fields, "remote_addr", c.ClientIP())
	logger.Info(message, append(fields, additionalFields...)...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	logger, fields := h.requestLogger(c)
	logger.LogError(err, message, append(fields, additionalFields...)...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	logger, fields := h.requestLogger(c)
	logger.Warn(message, append(fields, additionalFields...)...)
}

// requestLogger prefers the logger installed by utils.ContextLogger, which
// already carries the request id, method and path.
func (h *BaseHandler) requestLogger(c *gin.Context) (utils.Logger, []interface{}) {
	if logger, ok := utils.LoggerFromContext(c); ok {
		return logger, []interface{}{"user_id", c.GetString(UserIDKey)}
	}
	return h.logger, []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"user_id", c.GetString(UserIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
	}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil && statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else {
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	}

	c.AbortWithStatusJSON(statusCode, errorResp)
}

// getUserID returns the caller set by the identity middleware, answering 401
// when it is missing.
func (h *BaseHandler) getUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	if userID == "" {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid "+param, err, "ID must be a positive integer")
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// handleServiceError maps service errors onto HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)
		return
	}

	var selectionError *sheet.SelectionError
	if errors.As(err, &selectionError) {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid selection", err, map[string]interface{}{
			"key":    selectionError.Key.String(),
			"slot":   selectionError.Slot,
			"value":  selectionError.Value,
			"reason": selectionError.Err.Error(),
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.RespondWithError(c, http.StatusUnprocessableEntity, businessRuleError.Message, err, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err, map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Exam not found", err)
	case errors.Is(err, services.ErrAttemptNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Attempt not found", err)
	case errors.Is(err, services.ErrAttemptTimeExpired):
		h.RespondWithError(c, http.StatusGone, "Attempt time has expired", err)
	case errors.Is(err, services.ErrExamNotEditable), errors.Is(err, services.ErrExamInvalidStatus),
		errors.Is(err, services.ErrExamNotPublished):
		h.RespondWithError(c, http.StatusUnprocessableEntity, err.Error(), err)
	case errors.Is(err, services.ErrImageTooLarge):
		h.RespondWithError(c, http.StatusRequestEntityTooLarge, "Image too large", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Resource not found", err)
	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), err)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, err.Error(), err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
