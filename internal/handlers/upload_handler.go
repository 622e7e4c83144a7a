package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	BaseHandler
	uploadService services.UploadService
}

func NewUploadHandler(uploadService services.UploadService, base BaseHandler) *UploadHandler {
	return &UploadHandler{
		BaseHandler:   base,
		uploadService: uploadService,
	}
}

// UploadImage stores a base64 image for use in question prompts
func (h *UploadHandler) UploadImage(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.UploadImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	result, err := h.uploadService.UploadImage(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Image uploaded", "key", result.Key, "size", result.Size)
	c.JSON(http.StatusCreated, result)
}
