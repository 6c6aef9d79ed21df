package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	domainHealth "github.com/vitalsync/vitalsync/domains/health"
	"github.com/vitalsync/vitalsync/infrastructure/cachestore"
)

type healthService struct {
	store    cachestore.Store
	db       *gorm.DB
	interval time.Duration

	mu      sync.RWMutex
	records map[domainHealth.EntityType]domainHealth.HealthRecord
}

// NewHealthService probes the cache store and the raw database. Records
// start UNKNOWN until the first check runs.
func NewHealthService(store cachestore.Store, db *gorm.DB, interval time.Duration) domainHealth.IHealthUsecase {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &healthService{
		store:    store,
		db:       db,
		interval: interval,
		records:  make(map[domainHealth.EntityType]domainHealth.HealthRecord),
	}
	for _, entity := range []domainHealth.EntityType{domainHealth.EntityCacheStore, domainHealth.EntityDatabase} {
		s.records[entity] = domainHealth.HealthRecord{
			EntityType: entity,
			Status:     domainHealth.StatusUnknown,
		}
	}
	return s
}

// CheckAll probes every dependency now and returns the refreshed records.
func (s *healthService) CheckAll(ctx context.Context) []domainHealth.HealthRecord {
	s.record(domainHealth.EntityCacheStore, s.store.Ping(ctx))
	s.record(domainHealth.EntityDatabase, s.pingDatabase(ctx))
	return s.GetStatus(ctx)
}

// GetStatus returns the last known records without probing.
func (s *healthService) GetStatus(_ context.Context) []domainHealth.HealthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domainHealth.HealthRecord{
		s.records[domainHealth.EntityCacheStore],
		s.records[domainHealth.EntityDatabase],
	}
	return out
}

// StartPeriodicChecks runs CheckAll on the configured interval until the
// context is cancelled. Call it in its own goroutine.
func (s *healthService) StartPeriodicChecks(ctx context.Context) {
	logrus.Infof("[HEALTH] Periodic checks every %s", s.interval)
	s.CheckAll(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("[HEALTH] Periodic checks stopped")
			return
		case <-ticker.C:
			s.CheckAll(ctx)
		}
	}
}

func (s *healthService) pingDatabase(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func (s *healthService) record(entity domainHealth.EntityType, err error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[entity]
	rec.EntityType = entity
	rec.LastChecked = now
	if err != nil {
		rec.Status = domainHealth.StatusError
		rec.LastMessage = err.Error()
		logrus.WithError(err).Warnf("[HEALTH] %s check failed", entity)
	} else {
		rec.Status = domainHealth.StatusOk
		rec.LastMessage = "ok"
		rec.LastSuccess = &now
	}
	s.records[entity] = rec
}
