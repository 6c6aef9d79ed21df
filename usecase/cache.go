package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	"github.com/vitalsync/vitalsync/infrastructure/cachestore"
)

const timeFieldFormat = time.RFC3339Nano

type cacheService struct {
	store      cachestore.Store
	maxDocSize int64
	nowFn      func() time.Time
}

// NewCacheService builds the cache service on top of a document store.
// maxDocSize <= 0 falls back to the default compaction trigger.
func NewCacheService(store cachestore.Store, maxDocSize int64) domainCache.ICacheUsecase {
	if maxDocSize <= 0 {
		maxDocSize = domainCache.MaxDocumentBytes
	}
	return &cacheService{
		store:      store,
		maxDocSize: maxDocSize,
		nowFn:      time.Now,
	}
}

// GetUserCache reads the whole document. Reads are deliberately fail-open:
// a store error degrades to a cache miss so the caller falls back to live
// computation instead of erroring a request.
func (s *cacheService) GetUserCache(ctx context.Context, userID string) (*domainCache.UserCache, error) {
	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[CACHE] Read failed for user %s, treating as miss", userID)
		return nil, nil
	}
	if doc == nil {
		return nil, nil
	}

	uc := decodeDocument(userID, doc)
	if uc.TotalSize > s.maxDocSize {
		logrus.Warnf("[CACHE] Document for user %s oversized (%s > %s), compacting",
			userID, humanize.Bytes(uint64(uc.TotalSize)), humanize.Bytes(uint64(s.maxDocSize)))
		compacted, err := s.compact(ctx, uc)
		if err != nil {
			logrus.WithError(err).Errorf("[CACHE] Compaction failed for user %s", userID)
			return uc, nil
		}
		uc = compacted
	}
	return uc, nil
}

// GetCacheSection is the single expiry chokepoint: no other code path may
// decide staleness.
func (s *cacheService) GetCacheSection(ctx context.Context, userID, section string, ttl time.Duration) (*domainCache.Section, error) {
	if !domainCache.IsSectionName(section) {
		return nil, fmt.Errorf("unknown cache section %q", section)
	}
	uc, err := s.GetUserCache(ctx, userID)
	if err != nil || uc == nil {
		return nil, err
	}
	sec := uc.Sections[section]
	if !sec.Valid(s.nowFn(), ttl) {
		return nil, nil
	}
	return sec, nil
}

// UpdateCacheSection merge-writes one section. Unlike reads, writes are
// fail-closed: a silently dropped write would leave stale data masquerading
// as fresh.
//
// totalSize is intentionally the size estimate of the just-written section,
// not a running document total: its only consumer is the compaction trigger,
// and the dominant oversize cause is a single bloated section. Keeping the
// write a blind merge avoids a read-modify-write on every update.
func (s *cacheService) UpdateCacheSection(ctx context.Context, userID, section string, data any, ttl time.Duration) error {
	if !domainCache.IsSectionName(section) {
		return fmt.Errorf("unknown cache section %q", section)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s for user %s: %w", section, userID, err)
	}

	now := s.nowFn().UTC()
	env := domainCache.Section{Data: raw, LastUpdated: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		env.ExpiresAt = &exp
	}
	envJSON, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope for user %s: %w", section, userID, err)
	}

	fields := cachestore.Document{
		section:                    string(envJSON),
		domainCache.FieldTotalSize: strconv.FormatInt(int64(len(envJSON)), 10),
		domainCache.FieldUpdatedAt: now.Format(timeFieldFormat),
	}
	if err := s.store.SetMerged(ctx, userID, fields); err != nil {
		return fmt.Errorf("failed to write %s for user %s: %w", section, userID, err)
	}
	return nil
}

// InitializeUserCache lazily creates the document skeleton. Idempotent: an
// existing document (and all its sections) is left untouched.
func (s *cacheService) InitializeUserCache(ctx context.Context, userID string) error {
	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check cache existence for user %s: %w", userID, err)
	}
	if doc != nil {
		return nil
	}

	now := s.nowFn().UTC().Format(timeFieldFormat)
	skeleton := cachestore.Document{
		domainCache.FieldUserID:       userID,
		domainCache.FieldCacheVersion: domainCache.CacheVersion,
		domainCache.FieldTotalSize:    "0",
		domainCache.FieldCreatedAt:    now,
		domainCache.FieldUpdatedAt:    now,
	}
	if err := s.store.SetMerged(ctx, userID, skeleton); err != nil {
		return fmt.Errorf("failed to initialize cache for user %s: %w", userID, err)
	}
	return nil
}

func (s *cacheService) InvalidateCache(ctx context.Context, userID string, sections ...string) error {
	if len(sections) == 0 {
		if err := s.store.Delete(ctx, userID); err != nil {
			return fmt.Errorf("failed to invalidate cache for user %s: %w", userID, err)
		}
		logrus.Debugf("[CACHE] Fully invalidated user %s", userID)
		return nil
	}
	for _, sec := range sections {
		if !domainCache.IsSectionName(sec) {
			return fmt.Errorf("unknown cache section %q", sec)
		}
	}
	if err := s.store.RemoveFields(ctx, userID, sections...); err != nil {
		return fmt.Errorf("failed to invalidate sections for user %s: %w", userID, err)
	}
	logrus.Debugf("[CACHE] Invalidated sections %v for user %s", sections, userID)
	return nil
}

// BulkInvalidateCache batches invalidation across many users so a
// system-wide recalculation does not pay per-user round trips.
func (s *cacheService) BulkInvalidateCache(ctx context.Context, userIDs []string, sections ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if len(sections) == 0 {
		if err := s.store.BatchDelete(ctx, userIDs); err != nil {
			return fmt.Errorf("failed to bulk invalidate %d users: %w", len(userIDs), err)
		}
		logrus.Infof("[CACHE] Bulk invalidated %d user caches", len(userIDs))
		return nil
	}
	for _, sec := range sections {
		if !domainCache.IsSectionName(sec) {
			return fmt.Errorf("unknown cache section %q", sec)
		}
	}
	if err := s.store.BatchRemoveFields(ctx, userIDs, sections...); err != nil {
		return fmt.Errorf("failed to bulk invalidate sections for %d users: %w", len(userIDs), err)
	}
	logrus.Infof("[CACHE] Bulk invalidated sections %v for %d users", sections, len(userIDs))
	return nil
}

// GetCacheStats performs a full scan; oversized counts may lag real time if
// compaction has not yet run for a document.
func (s *cacheService) GetCacheStats(ctx context.Context) (domainCache.CacheStats, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return domainCache.CacheStats{}, fmt.Errorf("failed to scan cache keys: %w", err)
	}

	stats := domainCache.CacheStats{}
	for _, key := range keys {
		doc, err := s.store.Get(ctx, key)
		if err != nil || doc == nil {
			continue
		}
		stats.TotalCacheDocuments++
		size, _ := strconv.ParseInt(doc[domainCache.FieldTotalSize], 10, 64)
		stats.TotalSize += size
		if size > s.maxDocSize {
			stats.OversizedDocuments++
		}
	}
	if stats.TotalCacheDocuments > 0 {
		stats.AverageSize = stats.TotalSize / int64(stats.TotalCacheDocuments)
	}
	stats.HumanSize = humanize.Bytes(uint64(stats.TotalSize))
	return stats, nil
}

// compact trims the compactable list fields to their configured maximums,
// keeping the most recent entries, then rewrites the whole document. Running
// it twice in a row is a no-op.
func (s *cacheService) compact(ctx context.Context, uc *domainCache.UserCache) (*domainCache.UserCache, error) {
	if sec := uc.Sections[domainCache.SectionLifetime]; sec != nil {
		var data domainCache.LifetimeData
		if err := json.Unmarshal(sec.Data, &data); err == nil {
			sort.Slice(data.Milestones, func(i, j int) bool {
				return data.Milestones[i].AchievedAt.After(data.Milestones[j].AchievedAt)
			})
			if len(data.Milestones) > domainCache.MaxMilestones {
				data.Milestones = data.Milestones[:domainCache.MaxMilestones]
			}
			if raw, err := json.Marshal(data); err == nil {
				sec.Data = raw
			}
		}
	}

	if sec := uc.Sections[domainCache.SectionMonthly]; sec != nil {
		var data domainCache.MonthlyData
		if err := json.Unmarshal(sec.Data, &data); err == nil {
			sort.Slice(data.CorrelationInsights, func(i, j int) bool {
				return data.CorrelationInsights[i].CreatedAt.After(data.CorrelationInsights[j].CreatedAt)
			})
			if len(data.CorrelationInsights) > domainCache.MaxCorrelationInsights {
				data.CorrelationInsights = data.CorrelationInsights[:domainCache.MaxCorrelationInsights]
			}
			if raw, err := json.Marshal(data); err == nil {
				sec.Data = raw
			}
		}
	}

	if sec := uc.Sections[domainCache.SectionDashboard]; sec != nil {
		var data domainCache.DashboardData
		if err := json.Unmarshal(sec.Data, &data); err == nil {
			sort.Slice(data.RecentAchievements, func(i, j int) bool {
				return data.RecentAchievements[i].AchievedAt.After(data.RecentAchievements[j].AchievedAt)
			})
			if len(data.RecentAchievements) > domainCache.MaxRecentAchievements {
				data.RecentAchievements = data.RecentAchievements[:domainCache.MaxRecentAchievements]
			}
			if raw, err := json.Marshal(data); err == nil {
				sec.Data = raw
			}
		}
	}

	doc, totalSize := encodeDocument(uc)
	uc.TotalSize = totalSize
	doc[domainCache.FieldTotalSize] = strconv.FormatInt(totalSize, 10)

	if err := s.store.SetFull(ctx, uc.UserID, doc); err != nil {
		return nil, fmt.Errorf("failed to persist compacted document: %w", err)
	}
	logrus.Infof("[CACHE] Compacted document for user %s down to %s", uc.UserID, humanize.Bytes(uint64(totalSize)))
	return uc, nil
}

// decodeDocument tolerantly parses the wire form; corrupt sections are
// dropped rather than failing the whole read.
func decodeDocument(userID string, doc cachestore.Document) *domainCache.UserCache {
	uc := &domainCache.UserCache{
		UserID:       userID,
		CacheVersion: doc[domainCache.FieldCacheVersion],
		Sections:     make(map[string]*domainCache.Section),
	}
	if v, ok := doc[domainCache.FieldUserID]; ok && v != "" {
		uc.UserID = v
	}
	uc.TotalSize, _ = strconv.ParseInt(doc[domainCache.FieldTotalSize], 10, 64)
	if t, err := time.Parse(timeFieldFormat, doc[domainCache.FieldCreatedAt]); err == nil {
		uc.CreatedAt = t
	}
	if t, err := time.Parse(timeFieldFormat, doc[domainCache.FieldUpdatedAt]); err == nil {
		uc.UpdatedAt = t
	}

	for _, name := range domainCache.SectionNames {
		raw, ok := doc[name]
		if !ok || raw == "" {
			continue
		}
		var sec domainCache.Section
		if err := json.Unmarshal([]byte(raw), &sec); err != nil {
			logrus.Warnf("[CACHE] Dropping corrupt section %s for user %s", name, userID)
			continue
		}
		uc.Sections[name] = &sec
	}
	return uc
}

func encodeDocument(uc *domainCache.UserCache) (cachestore.Document, int64) {
	doc := cachestore.Document{
		domainCache.FieldUserID:       uc.UserID,
		domainCache.FieldCacheVersion: uc.CacheVersion,
		domainCache.FieldCreatedAt:    uc.CreatedAt.Format(timeFieldFormat),
		domainCache.FieldUpdatedAt:    uc.UpdatedAt.Format(timeFieldFormat),
	}
	var total int64
	for name, sec := range uc.Sections {
		envJSON, err := json.Marshal(sec)
		if err != nil {
			continue
		}
		doc[name] = string(envJSON)
		total += int64(len(envJSON))
	}
	return doc, total
}
