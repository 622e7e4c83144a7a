package handlers

import (
	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/render"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ServiceProvider is implemented by services.ServiceManager.
type ServiceProvider interface {
	Exam() services.ExamService
	Attempt() services.AttemptService
	Upload() services.UploadService
	ImportExport() services.ImportExportService
}

// RouterOptions configures the routes that are not plain service calls.
type RouterOptions struct {
	Metrics *metrics.Metrics
	// LocalUploadsDir is served under LocalUploadsURL when set.
	LocalUploadsDir string
	LocalUploadsURL string
	RateLimit       config.RateLimitConfig
	MaxImportBytes  int64
}

type HandlerManager struct {
	examHandler    *ExamHandler
	attemptHandler *AttemptHandler
	uploadHandler  *UploadHandler
	opts           RouterOptions
}

func NewHandlerManager(sp ServiceProvider, logger utils.Logger, opts RouterOptions) *HandlerManager {
	base := NewBaseHandler(logger)
	docs := documentWriter{BaseHandler: base, pdf: render.NewPDFRenderer("answer-sheet-service")}

	return &HandlerManager{
		examHandler:    NewExamHandler(sp.Exam(), sp.Attempt(), sp.ImportExport(), docs, opts.MaxImportBytes),
		attemptHandler: NewAttemptHandler(sp.Attempt(), docs),
		uploadHandler:  NewUploadHandler(sp.Upload(), base),
		opts:           opts,
	}
}

// SetupRoutes sets up all API routes. The engine must use render.NewHTMLRenderer
// for the print routes.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)
	if hm.opts.Metrics != nil {
		router.GET("/metrics", hm.opts.Metrics.Handler())
	}
	if hm.opts.LocalUploadsDir != "" && hm.opts.LocalUploadsURL != "" {
		router.Static(hm.opts.LocalUploadsURL, hm.opts.LocalUploadsDir)
	}

	v1 := router.Group("/api/v1")
	v1.Use(UserIdentity())
	{
		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.PUT("/:id", hm.examHandler.UpdateExam)
			exams.DELETE("/:id", hm.examHandler.DeleteExam)
			exams.POST("/:id/publish", hm.examHandler.PublishExam)
			exams.POST("/:id/archive", hm.examHandler.ArchiveExam)
			exams.GET("/:id/stats", hm.examHandler.GetExamStats)
			exams.GET("/:id/attempts", hm.examHandler.ListExamAttempts)

			// Import / export
			exams.POST("/:id/import", hm.examHandler.ImportAnswerKey)
			exams.GET("/:id/results.xlsx", hm.examHandler.ExportResults)

			// Printable sheets
			exams.GET("/:id/pdf", hm.examHandler.ExamPDF)
			exams.GET("/:id/print", hm.examHandler.PrintExam)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/select", hm.attemptHandler.SelectAnswer)
			attempts.GET("/:id/score", hm.attemptHandler.PreviewScore)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)

			records := attempts.Group("/records")
			{
				records.GET("/:id", hm.attemptHandler.GetRecord)
				records.POST("/:id/rescore", hm.attemptHandler.RescoreRecord)
				records.GET("/:id/pdf", hm.attemptHandler.RecordPDF)
				records.GET("/:id/print", hm.attemptHandler.PrintRecord)
			}
		}

		v1.GET("/students/:student_id/attempts", hm.attemptHandler.ListStudentAttempts)

		v1.POST("/uploads",
			RateLimiter(hm.opts.RateLimit.UploadsPerMinute, hm.opts.RateLimit.Burst),
			hm.uploadHandler.UploadImage)
	}
}
