package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shenikar/hazard_reporting_system/internal/audit"
	"github.com/shenikar/hazard_reporting_system/internal/classifier"
	"github.com/shenikar/hazard_reporting_system/internal/geocoder"
	"github.com/shenikar/hazard_reporting_system/internal/models"
	"github.com/shenikar/hazard_reporting_system/internal/observability"
	"github.com/sirupsen/logrus"
)

// ReportRepository определяет контракт для работы с бд отчетов
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id int64) (*models.Report, error)
	ListBySubmitter(ctx context.Context, submitterID string) ([]*models.Report, error)
	ListByRegion(ctx context.Context, region string) ([]*models.Report, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	GetReportFromCache(ctx context.Context, id int64) (*models.Report, error)
	SetReportCache(ctx context.Context, report *models.Report) error
	InvalidateReportCache(ctx context.Context, id int64) error
}

// ImageStore определяет контракт хранилища снимков
type ImageStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// HazardClassifier определяет контракт сервиса детекции опасностей
type HazardClassifier interface {
	Classify(ctx context.Context, image []byte, filename string) (*classifier.Detection, error)
}

// LocationResolver определяет контракт обратного геокодирования
type LocationResolver interface {
	Resolve(ctx context.Context, lat, lon string) (*geocoder.Location, error)
}

// RoutingResolver отображает населенный пункт в ответственного чиновника
type RoutingResolver interface {
	Assign(locality string) string
}

// ReportService определяет контракт бизнес-логики приема и закрытия отчетов
type ReportService interface {
	SubmitReport(ctx context.Context, submitterID string, image []byte, imageName, lat, lon string) (*models.Report, error)
	ResolveReport(ctx context.Context, reportID int64, actor models.User) error
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	ListBySubmitter(ctx context.Context, submitterID string) ([]*models.Report, error)
	ListByRegion(ctx context.Context, region string) ([]*models.Report, error)
}

type reportService struct {
	repo       ReportRepository
	store      ImageStore
	classifier HazardClassifier
	resolver   LocationResolver
	router     RoutingResolver
	publisher  audit.Publisher
	metrics    *observability.Metrics
	clock      clockwork.Clock
	logger     *logrus.Logger
}

func NewReportService(
	repo ReportRepository,
	store ImageStore,
	hazardClassifier HazardClassifier,
	resolver LocationResolver,
	router RoutingResolver,
	publisher audit.Publisher,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	logger *logrus.Logger,
) ReportService {
	return &reportService{
		repo:       repo,
		store:      store,
		classifier: hazardClassifier,
		resolver:   resolver,
		router:     router,
		publisher:  publisher,
		metrics:    metrics,
		clock:      clock,
		logger:     logger,
	}
}

// SubmitReport проводит отправку гражданина через весь конвейер:
// сохранение снимка, классификация, геокодирование, маршрутизация, запись.
// Фатален только отказ хранилища на исходном снимке - все остальные
// отказы деградируют до заглушек, и отчет все равно сохраняется.
func (s *reportService) SubmitReport(ctx context.Context, submitterID string, image []byte, imageName, lat, lon string) (*models.Report, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "report",
		"method":       "SubmitReport",
		"submitter_id": submitterID,
	})
	log.Info("Accepting a new hazard report")

	if len(image) == 0 {
		return nil, fmt.Errorf("service: image must not be empty")
	}

	start := s.clock.Now()
	defer func() {
		s.metrics.SubmissionDuration.Observe(s.clock.Since(start).Seconds())
	}()

	// Каждая отправка получает собственное пространство имен ключей,
	// чтобы одинаковые имена файлов не перетирали друг друга
	keyPrefix := uuid.New().String()
	contentType := http.DetectContentType(image)

	originalRef, err := s.store.Save(ctx, keyPrefix+"/"+imageName, image, contentType)
	if err != nil {
		log.WithError(err).Error("Failed to store original image")
		return nil, fmt.Errorf("service: could not store original image: %w", err)
	}

	report := &models.Report{
		SubmitterID:      submitterID,
		OriginalImageRef: originalRef,
		Latitude:         lat,
		Longitude:        lon,
		Status:           models.StatusPending,
	}

	degraded := false

	detection, err := s.classifier.Classify(ctx, image, imageName)
	switch {
	case err == nil:
		report.HazardType = detection.Label
		s.metrics.ClassifierRequests.WithLabelValues("success").Inc()

		if len(detection.Annotated) > 0 {
			annotatedRef, saveErr := s.store.Save(ctx, keyPrefix+"/detected_"+imageName, detection.Annotated, contentType)
			if saveErr != nil {
				// Аннотированный снимок - best-effort, метку оставляем
				log.WithError(saveErr).Warn("Failed to store annotated image")
			} else {
				report.AnnotatedImageRef = annotatedRef
			}
		}
	case errors.Is(err, classifier.ErrNoDetection):
		log.Info("Classifier found no hazards, using sentinel label")
		report.HazardType = models.UnknownHazard
		s.metrics.ClassifierRequests.WithLabelValues("no_detection").Inc()
		degraded = true
	default:
		log.WithError(err).Warn("Classifier unavailable, using sentinel label")
		report.HazardType = models.UnknownHazard
		s.metrics.ClassifierRequests.WithLabelValues("error").Inc()
		degraded = true
	}

	locality := models.DefaultLocality
	location, err := s.resolver.Resolve(ctx, lat, lon)
	switch {
	case err == nil:
		report.Address = location.Address
		locality = location.Locality
		s.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	case errors.Is(err, geocoder.ErrNoResult):
		log.Info("Geocoder found no address, using sentinel address")
		report.Address = models.AddressUnavailable
		s.metrics.GeocodeRequests.WithLabelValues("no_result").Inc()
		degraded = true
	default:
		log.WithError(err).Warn("Geocoder unavailable, using sentinel address")
		report.Address = models.AddressUnavailable
		s.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		degraded = true
	}

	report.AssignedTo = s.router.Assign(locality)

	if err := s.repo.Create(ctx, report); err != nil {
		log.WithError(err).Error("Failed to create report in repository")
		return nil, fmt.Errorf("service: could not create report: %w", err)
	}

	s.metrics.ReportsSubmitted.Inc()
	if degraded {
		s.metrics.ReportsDegraded.Inc()
	}

	event := audit.Event{
		Type:        audit.EventReportSubmitted,
		ReportID:    report.ID,
		SubmitterID: report.SubmitterID,
		AssignedTo:  report.AssignedTo,
		Status:      report.Status,
		Timestamp:   s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish audit event")
	}

	log.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"hazard_type": report.HazardType,
		"assigned_to": report.AssignedTo,
	}).Info("Report submitted successfully")
	return report, nil
}

// ResolveReport переводит отчет в статус Resolved. Операция идемпотентна
// и ничего не делает для несуществующего id. Попытка не-официала -
// тихий no-op: вызывающему не сообщается даже о существовании отчета.
func (s *reportService) ResolveReport(ctx context.Context, reportID int64, actor models.User) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "report",
		"method":    "ResolveReport",
		"report_id": reportID,
		"actor_id":  actor.ID,
	})

	if !actor.IsOfficial() {
		log.Debug("Resolve attempted by a non-official, ignoring")
		return nil
	}

	log.Info("Resolving report")
	if err := s.repo.UpdateStatus(ctx, reportID, models.StatusResolved); err != nil {
		log.WithError(err).Error("Failed to update report status in repository")
		return fmt.Errorf("service: could not resolve report: %w", err)
	}

	if err := s.repo.InvalidateReportCache(ctx, reportID); err != nil {
		log.WithError(err).Warn("Failed to invalidate report cache")
	}

	s.metrics.ReportsResolved.Inc()

	event := audit.Event{
		Type:      audit.EventReportResolved,
		ReportID:  reportID,
		Status:    models.StatusResolved,
		Timestamp: s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish audit event")
	}

	log.Info("Report resolved successfully")
	return nil
}

// GetReport получает отчет по ID, сначала пробуя кеш
func (s *reportService) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "report",
		"method":    "GetReport",
		"report_id": id,
	})
	log.Info("Fetching report by ID")

	cached, err := s.repo.GetReportFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read report cache")
	}
	if cached != nil {
		return cached, nil
	}

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get report from repository")
		return nil, fmt.Errorf("service: could not get report: %w", err)
	}

	if err := s.repo.SetReportCache(ctx, report); err != nil {
		log.WithError(err).Warn("Failed to cache report")
	}

	log.Info("Report fetched successfully")
	return report, nil
}

// ListBySubmitter возвращает отчеты пользователя, новые первыми
func (s *reportService) ListBySubmitter(ctx context.Context, submitterID string) ([]*models.Report, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "report",
		"method":       "ListBySubmitter",
		"submitter_id": submitterID,
	})
	log.Info("Listing reports by submitter")

	reports, err := s.repo.ListBySubmitter(ctx, submitterID)
	if err != nil {
		log.WithError(err).Error("Failed to list reports from repository")
		return nil, fmt.Errorf("service: could not list reports by submitter: %w", err)
	}

	log.WithField("count", len(reports)).Info("Reports listed successfully")
	return reports, nil
}

// ListByRegion возвращает отчеты, адрес которых содержит токен региона.
// Совпадение - по подстроке, с учетом регистра; это осознанно грубая
// фильтрация, совместимая с исторической панелью чиновника.
func (s *reportService) ListByRegion(ctx context.Context, region string) ([]*models.Report, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "report",
		"method":  "ListByRegion",
		"region":  region,
	})
	log.Info("Listing reports by region")

	reports, err := s.repo.ListByRegion(ctx, region)
	if err != nil {
		log.WithError(err).Error("Failed to list reports from repository")
		return nil, fmt.Errorf("service: could not list reports by region: %w", err)
	}

	log.WithField("count", len(reports)).Info("Reports listed successfully")
	return reports, nil
}
