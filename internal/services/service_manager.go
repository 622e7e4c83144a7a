package services

import (
	"log/slog"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/SAP-F-2025/answer-sheet-service/internal/events"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/storage"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
)

// Dependencies are the collaborators shared by all services.
type Dependencies struct {
	Repo      repositories.Repository
	Cache     cache.CacheService
	Publisher events.EventPublisher
	Storage   storage.Provider
	Logger    *slog.Logger
	Validator *validator.Validator
	Metrics   *metrics.Metrics
	Config    *config.Config
}

// ServiceManager builds the services once so they share one exam cache path.
type ServiceManager struct {
	exam         ExamService
	attempt      AttemptService
	upload       UploadService
	importExport ImportExportService
}

func NewServiceManager(deps Dependencies) *ServiceManager {
	exams := NewExamService(deps.Repo, deps.Cache, deps.Publisher, deps.Logger, deps.Validator, deps.Config.ExamCacheTTL).(*examService)

	return &ServiceManager{
		exam:         exams,
		attempt:      newAttemptService(exams, deps.Metrics, AttemptOptions{Grace: deps.Config.AttemptGrace}),
		upload:       NewUploadService(deps.Storage, deps.Logger, deps.Validator, deps.Metrics, deps.Config.Upload),
		importExport: NewImportExportService(exams),
	}
}

func (m *ServiceManager) Exam() ExamService {
	return m.exam
}

func (m *ServiceManager) Attempt() AttemptService {
	return m.attempt
}

func (m *ServiceManager) Upload() UploadService {
	return m.upload
}

func (m *ServiceManager) ImportExport() ImportExportService {
	return m.importExport
}
