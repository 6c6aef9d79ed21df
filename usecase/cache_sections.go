package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
)

// Typed per-section accessors. These bind each section name to its canonical
// TTL constant, so the read and write paths cannot disagree about freshness.

func (s *cacheService) GetDashboardCache(ctx context.Context, userID string) (*domainCache.DashboardData, error) {
	return decodeSection[domainCache.DashboardData](s, ctx, userID, domainCache.SectionDashboard, domainCache.TTLDashboard)
}

func (s *cacheService) UpdateDashboardCache(ctx context.Context, userID string, data domainCache.DashboardData) error {
	return s.UpdateCacheSection(ctx, userID, domainCache.SectionDashboard, data, domainCache.TTLDashboard)
}

func (s *cacheService) GetDailyMetrics(ctx context.Context, userID string) (*domainCache.DailyData, error) {
	return decodeSection[domainCache.DailyData](s, ctx, userID, domainCache.SectionDaily, domainCache.TTLDaily)
}

func (s *cacheService) UpdateDailyMetrics(ctx context.Context, userID string, data domainCache.DailyData) error {
	return s.UpdateCacheSection(ctx, userID, domainCache.SectionDaily, data, domainCache.TTLDaily)
}

func (s *cacheService) GetWeeklyMetrics(ctx context.Context, userID string) (*domainCache.WeeklyData, error) {
	return decodeSection[domainCache.WeeklyData](s, ctx, userID, domainCache.SectionWeekly, domainCache.TTLWeekly)
}

func (s *cacheService) UpdateWeeklyMetrics(ctx context.Context, userID string, data domainCache.WeeklyData) error {
	return s.UpdateCacheSection(ctx, userID, domainCache.SectionWeekly, data, domainCache.TTLWeekly)
}

func (s *cacheService) GetMonthlyMetrics(ctx context.Context, userID string) (*domainCache.MonthlyData, error) {
	return decodeSection[domainCache.MonthlyData](s, ctx, userID, domainCache.SectionMonthly, domainCache.TTLMonthly)
}

func (s *cacheService) UpdateMonthlyMetrics(ctx context.Context, userID string, data domainCache.MonthlyData) error {
	return s.UpdateCacheSection(ctx, userID, domainCache.SectionMonthly, data, domainCache.TTLMonthly)
}

func (s *cacheService) GetLifetimeMetrics(ctx context.Context, userID string) (*domainCache.LifetimeData, error) {
	return decodeSection[domainCache.LifetimeData](s, ctx, userID, domainCache.SectionLifetime, domainCache.TTLNone)
}

func (s *cacheService) UpdateLifetimeMetrics(ctx context.Context, userID string, data domainCache.LifetimeData) error {
	return s.UpdateCacheSection(ctx, userID, domainCache.SectionLifetime, data, domainCache.TTLNone)
}

// decodeSection resolves the envelope through the expiry chokepoint and
// unmarshals its payload. A corrupt payload degrades to a miss.
func decodeSection[T any](s *cacheService, ctx context.Context, userID, section string, ttl time.Duration) (*T, error) {
	sec, err := s.GetCacheSection(ctx, userID, section, ttl)
	if err != nil || sec == nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(sec.Data, &out); err != nil {
		logrus.WithError(err).Warnf("[CACHE] Corrupt %s payload for user %s, treating as miss", section, userID)
		return nil, nil
	}
	return &out, nil
}
