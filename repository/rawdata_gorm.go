package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
)

// RawDataRepository reads wearable readings and assessments from the system
// of record. It is strictly read-only for the metrics engine; ingestion
// writes happen elsewhere.
type RawDataRepository struct {
	db *gorm.DB
}

func NewRawDataRepository(db *gorm.DB) *RawDataRepository {
	return &RawDataRepository{db: db}
}

// AutoMigrate creates the raw tables when missing.
func (r *RawDataRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&domainMetrics.WearableReading{}, &domainMetrics.Assessment{}); err != nil {
		return fmt.Errorf("failed to migrate raw data tables: %w", err)
	}
	return nil
}

func (r *RawDataRepository) GetRecordsInRange(ctx context.Context, userID string, start, end time.Time) ([]domainMetrics.WearableReading, error) {
	var records []domainMetrics.WearableReading
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND recorded_at >= ? AND recorded_at < ?", userID, start, end).
		Order("recorded_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read records for %s: %w", userID, err)
	}
	return records, nil
}

func (r *RawDataRepository) GetAllRecords(ctx context.Context, userID string, limit int) ([]domainMetrics.WearableReading, error) {
	var records []domainMetrics.WearableReading
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", userID, err)
	}
	return records, nil
}

func (r *RawDataRepository) GetLatestAssessment(ctx context.Context, userID string) (*domainMetrics.Assessment, error) {
	var a domainMetrics.Assessment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("taken_at DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest assessment for %s: %w", userID, err)
	}
	return &a, nil
}

func (r *RawDataRepository) GetAssessmentHistory(ctx context.Context, userID string, limit int) ([]domainMetrics.Assessment, error) {
	var list []domainMetrics.Assessment
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("taken_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to read assessments for %s: %w", userID, err)
	}
	return list, nil
}

func (r *RawDataRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domainMetrics.WearableReading{}).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}
