package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/hazard_reporting_system/internal/models"
	"github.com/shenikar/hazard_reporting_system/internal/service"
)

type ReportRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewReportRepository(db *pgxpool.Pool, redisClient *redis.Client) service.ReportRepository {
	return &ReportRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись об отчете в бд.
// Идентификатор выдает BIGSERIAL, поэтому он уникален и монотонен
// даже при конкурентных вставках.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (submitter_id, original_image_ref, annotated_image_ref, hazard_type, latitude, longitude, address, assigned_to, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		report.SubmitterID,
		report.OriginalImageRef,
		report.AnnotatedImageRef,
		report.HazardType,
		report.Latitude,
		report.Longitude,
		report.Address,
		report.AssignedTo,
		report.Status,
	).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetByID возвращает отчет по его идентификатору
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	report := &models.Report{}
	query := `
		SELECT
			id,
			submitter_id,
			original_image_ref,
			annotated_image_ref,
			hazard_type,
			latitude,
			longitude,
			address,
			assigned_to,
			status,
			created_at
		FROM reports
		WHERE id = $1;
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.SubmitterID,
		&report.OriginalImageRef,
		&report.AnnotatedImageRef,
		&report.HazardType,
		&report.Latitude,
		&report.Longitude,
		&report.Address,
		&report.AssignedTo,
		&report.Status,
		&report.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get report by id: %w", err)
	}
	return report, nil
}

// ListBySubmitter возвращает отчеты пользователя, новые первыми
func (r *ReportRepository) ListBySubmitter(ctx context.Context, submitterID string) ([]*models.Report, error) {
	query := `
		SELECT
			id,
			submitter_id,
			original_image_ref,
			annotated_image_ref,
			hazard_type,
			latitude,
			longitude,
			address,
			assigned_to,
			status,
			created_at
		FROM reports
		WHERE submitter_id = $1
		ORDER BY id DESC;
	`
	rows, err := r.db.Query(ctx, query, submitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports by submitter: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// ListByRegion возвращает отчеты, в адресе которых встречается токен
// региона. Подстрочное совпадение с учетом регистра (LIKE '%token%') -
// семантика исторической панели чиновника, сохраняем как есть.
func (r *ReportRepository) ListByRegion(ctx context.Context, region string) ([]*models.Report, error) {
	query := `
		SELECT
			id,
			submitter_id,
			original_image_ref,
			annotated_image_ref,
			hazard_type,
			latitude,
			longitude,
			address,
			assigned_to,
			status,
			created_at
		FROM reports
		WHERE address LIKE '%' || $1 || '%'
		ORDER BY id DESC;
	`
	rows, err := r.db.Query(ctx, query, region)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports by region: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// UpdateStatus устанавливает статус отчета. Отсутствие строки с таким
// id - не ошибка: операция закрытия должна быть no-op для несуществующих
// отчетов, поэтому RowsAffected здесь сознательно не проверяется.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE reports SET
			status = $1
		WHERE id = $2;
	`
	if _, err := r.db.Exec(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	return nil
}

func scanReports(rows pgx.Rows) ([]*models.Report, error) {
	reports := make([]*models.Report, 0)
	for rows.Next() {
		report := &models.Report{}
		err := rows.Scan(
			&report.ID,
			&report.SubmitterID,
			&report.OriginalImageRef,
			&report.AnnotatedImageRef,
			&report.HazardType,
			&report.Latitude,
			&report.Longitude,
			&report.Address,
			&report.AssignedTo,
			&report.Status,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return reports, nil
}

// GetReportFromCache пытается получить отчет из Redis
func (r *ReportRepository) GetReportFromCache(ctx context.Context, id int64) (*models.Report, error) {
	key := fmt.Sprintf("report:%d", id)
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report from cache: %w", err)
	}

	report := &models.Report{}
	if err := json.Unmarshal(val, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report from cache: %w", err)
	}
	return report, nil
}

// SetReportCache сохраняет отчет в Redis
func (r *ReportRepository) SetReportCache(ctx context.Context, report *models.Report) error {
	key := fmt.Sprintf("report:%d", report.ID)
	val, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report for cache: %w", err)
	}
	// Устанавливаем срок жизни кэша, например, 5 минут
	if err := r.redisClient.Set(ctx, key, val, 5*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set report in cache: %w", err)
	}
	return nil
}

// InvalidateReportCache удаляет отчет из Redis кэша
func (r *ReportRepository) InvalidateReportCache(ctx context.Context, id int64) error {
	key := fmt.Sprintf("report:%d", id)
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate report cache: %w", err)
	}
	return nil
}
