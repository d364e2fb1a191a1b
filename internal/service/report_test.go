package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	audit_mocks "github.com/shenikar/hazard_reporting_system/internal/audit/mocks"
	"github.com/shenikar/hazard_reporting_system/internal/classifier"
	"github.com/shenikar/hazard_reporting_system/internal/geocoder"
	"github.com/shenikar/hazard_reporting_system/internal/models"
	"github.com/shenikar/hazard_reporting_system/internal/observability"
	"github.com/shenikar/hazard_reporting_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testMocks struct {
	repo       *mocks.MockReportRepository
	store      *mocks.MockImageStore
	classifier *mocks.MockHazardClassifier
	resolver   *mocks.MockLocationResolver
	publisher  *audit_mocks.MockPublisher
}

// newTestReportService — вспомогательная функция для создания инстанса сервиса с моками.
func newTestReportService(t *testing.T) (*reportService, testMocks) {
	ctrl := gomock.NewController(t)
	m := testMocks{
		repo:       mocks.NewMockReportRepository(ctrl),
		store:      mocks.NewMockImageStore(ctrl),
		classifier: mocks.NewMockHazardClassifier(ctrl),
		resolver:   mocks.NewMockLocationResolver(ctrl),
		publisher:  audit_mocks.NewMockPublisher(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	service := NewReportService(
		m.repo,
		m.store,
		m.classifier,
		m.resolver,
		NewMayorRouter(),
		m.publisher,
		observability.NewMetricsForTesting(),
		clockwork.NewFakeClock(),
		logger,
	)
	return service.(*reportService), m
}

func TestSubmitReport_Success(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	image := []byte("original image bytes")
	annotated := []byte("annotated image bytes")

	// Ожидания
	// 1. Сохранение исходного снимка
	m.store.EXPECT().
		Save(ctx, gomock.Any(), image, gomock.Any()).
		Return("https://storage.googleapis.com/hazards/uploads/abc/pothole.jpg", nil).
		Times(1)

	// 2. Классификация и сохранение аннотированного снимка
	m.classifier.EXPECT().
		Classify(ctx, image, "pothole.jpg").
		Return(&classifier.Detection{Label: "Pothole", Confidence: 0.91, Annotated: annotated}, nil).
		Times(1)
	m.store.EXPECT().
		Save(ctx, gomock.Any(), annotated, gomock.Any()).
		DoAndReturn(func(_ context.Context, key string, _ []byte, _ string) (string, error) {
			// Аннотированный снимок получает префикс detected_
			assert.True(t, strings.HasSuffix(key, "/detected_pothole.jpg"))
			return "https://storage.googleapis.com/hazards/uploads/abc/detected_pothole.jpg", nil
		}).
		Times(1)

	// 3. Геокодирование
	m.resolver.EXPECT().
		Resolve(ctx, "13.08", "80.27").
		Return(&geocoder.Location{Address: "12 Main St, Chennai, TN", Locality: "Chennai"}, nil).
		Times(1)

	// 4. Запись в бд
	m.repo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, report *models.Report) error {
			report.ID = 42
			return nil
		}).
		Times(1)

	// 5. Событие аудита
	m.publisher.EXPECT().
		Publish(ctx, gomock.Any()).
		Return(nil).
		Times(1)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", image, "pothole.jpg", "13.08", "80.27")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, int64(42), report.ID)
	assert.Equal(t, "user-1", report.SubmitterID)
	assert.Equal(t, "Pothole", report.HazardType)
	assert.Equal(t, "12 Main St, Chennai, TN", report.Address)
	assert.Equal(t, "Chennai Mayor", report.AssignedTo)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Equal(t, "13.08", report.Latitude)
	assert.Equal(t, "80.27", report.Longitude)
	assert.NotEmpty(t, report.OriginalImageRef)
	assert.NotEmpty(t, report.AnnotatedImageRef)
}

func TestSubmitReport_ClassifierNoDetection(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	image := []byte("image without hazards")

	// Ожидания: исходный снимок сохраняется, аннотированный - нет
	m.store.EXPECT().
		Save(ctx, gomock.Any(), image, gomock.Any()).
		Return("ref-original", nil).
		Times(1)
	m.classifier.EXPECT().
		Classify(ctx, image, "clean.jpg").
		Return(nil, classifier.ErrNoDetection).
		Times(1)
	m.resolver.EXPECT().
		Resolve(ctx, "13.08", "80.27").
		Return(&geocoder.Location{Address: "12 Main St, Chennai, TN", Locality: "Chennai"}, nil).
		Times(1)
	m.repo.EXPECT().
		Create(ctx, gomock.Any()).
		Return(nil).
		Times(1)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", image, "clean.jpg", "13.08", "80.27")

	// Проверки: отправка успешна, метка - заглушка
	require.NoError(t, err)
	assert.Equal(t, models.UnknownHazard, report.HazardType)
	assert.Empty(t, report.AnnotatedImageRef)
	assert.Equal(t, models.StatusPending, report.Status)
}

func TestSubmitReport_ClassifierUnavailable(t *testing.T) {
	// Подготовка: отказ модели - отдельный путь от пустой детекции
	service, m := newTestReportService(t)
	ctx := context.Background()
	image := []byte("image bytes")

	// Ожидания
	m.store.EXPECT().
		Save(ctx, gomock.Any(), image, gomock.Any()).
		Return("ref-original", nil).
		Times(1)
	m.classifier.EXPECT().
		Classify(ctx, image, "pothole.jpg").
		Return(nil, fmt.Errorf("classifier: detect request: connection refused")).
		Times(1)
	m.resolver.EXPECT().
		Resolve(ctx, "13.08", "80.27").
		Return(&geocoder.Location{Address: "12 Main St, Chennai, TN", Locality: "Chennai"}, nil).
		Times(1)
	m.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", image, "pothole.jpg", "13.08", "80.27")

	// Проверки: отправка все равно успешна
	require.NoError(t, err)
	assert.Equal(t, models.UnknownHazard, report.HazardType)
	assert.Empty(t, report.AnnotatedImageRef)
}

func TestSubmitReport_GeocoderUnavailable(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	image := []byte("image bytes")
	annotated := []byte("annotated bytes")

	// Ожидания
	m.store.EXPECT().
		Save(ctx, gomock.Any(), image, gomock.Any()).
		Return("ref-original", nil).
		Times(1)
	m.classifier.EXPECT().
		Classify(ctx, image, "pothole.jpg").
		Return(&classifier.Detection{Label: "Pothole", Annotated: annotated}, nil).
		Times(1)
	m.store.EXPECT().
		Save(ctx, gomock.Any(), annotated, gomock.Any()).
		Return("ref-annotated", nil).
		Times(1)
	m.resolver.EXPECT().
		Resolve(ctx, "13.08", "80.27").
		Return(nil, fmt.Errorf("geocoder: reverse request: timeout")).
		Times(1)
	m.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", image, "pothole.jpg", "13.08", "80.27")

	// Проверки: адрес - заглушка, назначение уходит General Mayor
	require.NoError(t, err)
	assert.Equal(t, models.AddressUnavailable, report.Address)
	assert.Equal(t, "General Mayor", report.AssignedTo)
	assert.Equal(t, models.StatusPending, report.Status)
}

func TestSubmitReport_StorageFailure(t *testing.T) {
	// Подготовка: отказ хранилища на исходном снимке фатален
	service, m := newTestReportService(t)
	ctx := context.Background()
	image := []byte("image bytes")

	// Ожидания: до классификации и записи дело не доходит
	m.store.EXPECT().
		Save(ctx, gomock.Any(), image, gomock.Any()).
		Return("", fmt.Errorf("bucket unavailable")).
		Times(1)
	m.classifier.EXPECT().Classify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", image, "pothole.jpg", "13.08", "80.27")

	// Проверки
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestSubmitReport_EmptyImage(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()

	// Ожидания: ни одна зависимость не вызывается
	m.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", nil, "empty.jpg", "13.08", "80.27")

	// Проверки
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestSubmitReport_AnnotatedSaveFailure(t *testing.T) {
	// Подготовка: отказ на аннотированном снимке не фатален
	service, m := newTestReportService(t)
	ctx := context.Background()
	image := []byte("image bytes")
	annotated := []byte("annotated bytes")

	// Ожидания
	m.store.EXPECT().
		Save(ctx, gomock.Any(), image, gomock.Any()).
		Return("ref-original", nil).
		Times(1)
	m.classifier.EXPECT().
		Classify(ctx, image, "pothole.jpg").
		Return(&classifier.Detection{Label: "Pothole", Annotated: annotated}, nil).
		Times(1)
	m.store.EXPECT().
		Save(ctx, gomock.Any(), annotated, gomock.Any()).
		Return("", fmt.Errorf("bucket unavailable")).
		Times(1)
	m.resolver.EXPECT().
		Resolve(ctx, "13.08", "80.27").
		Return(&geocoder.Location{Address: "12 Main St, Chennai, TN", Locality: "Chennai"}, nil).
		Times(1)
	m.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	report, err := service.SubmitReport(ctx, "user-1", image, "pothole.jpg", "13.08", "80.27")

	// Проверки: метка сохранена, ссылки на аннотированный снимок нет
	require.NoError(t, err)
	assert.Equal(t, "Pothole", report.HazardType)
	assert.Empty(t, report.AnnotatedImageRef)
}

func TestResolveReport_ByOfficial(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	official := models.User{ID: "official-1", Role: models.RoleOfficial, Region: "Chennai"}

	// Ожидания
	m.repo.EXPECT().
		UpdateStatus(ctx, int64(42), models.StatusResolved).
		Return(nil).
		Times(1)
	m.repo.EXPECT().
		InvalidateReportCache(ctx, int64(42)).
		Return(nil).
		Times(1)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	err := service.ResolveReport(ctx, 42, official)

	// Проверки
	require.NoError(t, err)
}

func TestResolveReport_ByOfficial_Idempotent(t *testing.T) {
	// Подготовка: повторное закрытие уже закрытого отчета - no-op без ошибки
	service, m := newTestReportService(t)
	ctx := context.Background()
	official := models.User{ID: "official-1", Role: models.RoleOfficial}

	// Ожидания
	m.repo.EXPECT().
		UpdateStatus(ctx, int64(42), models.StatusResolved).
		Return(nil).
		Times(2)
	m.repo.EXPECT().
		InvalidateReportCache(ctx, int64(42)).
		Return(nil).
		Times(2)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(2)

	// Действие
	require.NoError(t, service.ResolveReport(ctx, 42, official))
	require.NoError(t, service.ResolveReport(ctx, 42, official))
}

func TestResolveReport_ByCitizen_SilentNoOp(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	citizen := models.User{ID: "user-1", Role: models.RoleCitizen}

	// Ожидания: никаких обращений к бд и аудиту
	m.repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	err := service.ResolveReport(ctx, 42, citizen)

	// Проверки: ошибки нет - вызывающий не узнает об отказе
	require.NoError(t, err)
}

func TestGetReport_Success_FromCache(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	expectedReport := &models.Report{
		ID:         42,
		HazardType: "Pothole",
	}

	// Ожидания
	m.repo.EXPECT().
		GetReportFromCache(ctx, int64(42)).
		Return(expectedReport, nil).
		Times(1)

	// Действие
	report, err := service.GetReport(ctx, 42)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedReport, report)
}

func TestGetReport_Success_FromDB(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	expectedReport := &models.Report{
		ID:         42,
		HazardType: "Pothole",
	}

	// Ожидания
	// 1. Промах кеша
	m.repo.EXPECT().
		GetReportFromCache(ctx, int64(42)).
		Return(nil, nil).
		Times(1)

	// 2. Попадание в БД
	m.repo.EXPECT().
		GetByID(ctx, int64(42)).
		Return(expectedReport, nil).
		Times(1)

	// 3. Запись в кеш
	m.repo.EXPECT().
		SetReportCache(ctx, expectedReport).
		Return(nil).
		Times(1)

	// Действие
	report, err := service.GetReport(ctx, 42)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedReport, report)
}

func TestGetReport_NotFound(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	dbError := fmt.Errorf("report with id 42 not found")

	// Ожидания
	m.repo.EXPECT().
		GetReportFromCache(ctx, int64(42)).
		Return(nil, nil).
		Times(1)
	m.repo.EXPECT().
		GetByID(ctx, int64(42)).
		Return(nil, dbError).
		Times(1)

	// Действие
	report, err := service.GetReport(ctx, 42)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestListBySubmitter_Success(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()
	expected := []*models.Report{
		{ID: 3, SubmitterID: "user-1"},
		{ID: 1, SubmitterID: "user-1"},
	}

	// Ожидания
	m.repo.EXPECT().
		ListBySubmitter(ctx, "user-1").
		Return(expected, nil).
		Times(1)

	// Действие
	reports, err := service.ListBySubmitter(ctx, "user-1")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, reports)
}

func TestListByRegion_SubstringSemantics(t *testing.T) {
	// Подготовка: репозиторий фильтрует по подстроке адреса, поэтому
	// "New Chennai Road, Mumbai" попадает в выборку по "Chennai"
	service, m := newTestReportService(t)
	ctx := context.Background()

	all := []*models.Report{
		{ID: 3, Address: "New Chennai Road, Mumbai"},
		{ID: 2, Address: "Marine Drive, Mumbai"},
		{ID: 1, Address: "12 Main St, Chennai, TN"},
	}

	// Ожидания: мок повторяет контракт репозитория (LIKE '%token%')
	m.repo.EXPECT().
		ListByRegion(ctx, "Chennai").
		DoAndReturn(func(_ context.Context, region string) ([]*models.Report, error) {
			matched := make([]*models.Report, 0)
			for _, r := range all {
				if strings.Contains(r.Address, region) {
					matched = append(matched, r)
				}
			}
			return matched, nil
		}).
		Times(1)

	// Действие
	reports, err := service.ListByRegion(ctx, "Chennai")

	// Проверки: id 3 (over-match) и id 1, новые первыми; id 2 отсутствует
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(3), reports[0].ID)
	assert.Equal(t, int64(1), reports[1].ID)
}

func TestListByRegion_RepositoryError(t *testing.T) {
	// Подготовка
	service, m := newTestReportService(t)
	ctx := context.Background()

	// Ожидания
	m.repo.EXPECT().
		ListByRegion(ctx, "Chennai").
		Return(nil, fmt.Errorf("connection refused")).
		Times(1)

	// Действие
	reports, err := service.ListByRegion(ctx, "Chennai")

	// Проверки
	require.Error(t, err)
	assert.Nil(t, reports)
}
