package cache

import (
	"context"
	"encoding/json"
	"time"
)

// CacheVersion is stamped on every document so future schema migrations can
// detect and rewrite old layouts.
const CacheVersion = "1.0"

// Section field names. These are the wire contract between the calculation
// engine and the cache service: they appear verbatim as hash fields in the
// store and must not be renamed on one side only.
const (
	SectionDashboard = "dashboardCache"
	SectionDaily     = "dailyMetrics"
	SectionWeekly    = "weeklyMetrics"
	SectionMonthly   = "monthlyMetrics"
	SectionLifetime  = "lifetimeMetrics"
)

// Document-level field names.
const (
	FieldUserID       = "userId"
	FieldCacheVersion = "cacheVersion"
	FieldTotalSize    = "totalSize"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
)

// Canonical TTL per section. Lifetime metrics never expire.
const (
	TTLDashboard = 1 * time.Hour
	TTLDaily     = 24 * time.Hour
	TTLWeekly    = 7 * 24 * time.Hour
	TTLMonthly   = 30 * 24 * time.Hour
	TTLNone      = time.Duration(0)
)

// Size and compaction limits.
const (
	// MaxDocumentBytes triggers compaction when the stored totalSize
	// estimate exceeds it. It is a trigger, not a hard allocation limit.
	MaxDocumentBytes = 256 * 1024

	MaxMilestones          = 50
	MaxCorrelationInsights = 20
	MaxRecentAchievements  = 10
)

// SectionNames lists every section field in a stable order.
var SectionNames = []string{
	SectionDashboard,
	SectionDaily,
	SectionWeekly,
	SectionMonthly,
	SectionLifetime,
}

// IsSectionName reports whether name is one of the five section fields.
func IsSectionName(name string) bool {
	for _, s := range SectionNames {
		if s == name {
			return true
		}
	}
	return false
}

// Section is the envelope every section is stored under. Data holds the
// section-specific payload; LastUpdated drives expiry, independent of the
// document-level updatedAt.
type Section struct {
	Data        json.RawMessage `json:"data"`
	LastUpdated time.Time       `json:"lastUpdated"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}

// Valid reports whether the section is fresh at the given instant. A zero
// ttl means the section never expires.
func (s *Section) Valid(now time.Time, ttl time.Duration) bool {
	if s == nil {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(s.LastUpdated) < ttl
}

// UserCache is the per-user composite document: one document per user,
// keyed by user id, holding five independently-aged sections.
type UserCache struct {
	UserID       string              `json:"userId"`
	CacheVersion string              `json:"cacheVersion"`
	TotalSize    int64               `json:"totalSize"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	Sections     map[string]*Section `json:"sections"`
}

// CacheStats is the operational aggregate over all cache documents.
type CacheStats struct {
	TotalCacheDocuments int    `json:"total_cache_documents"`
	TotalSize           int64  `json:"total_size"`
	AverageSize         int64  `json:"average_size"`
	OversizedDocuments  int    `json:"oversized_documents"`
	HumanSize           string `json:"human_size"`
}

// InvalidateRequest is the REST payload for selective or bulk invalidation.
// An empty Sections list means full invalidation (document deletion).
type InvalidateRequest struct {
	UserIDs  []string `json:"user_ids"`
	Sections []string `json:"sections"`
}

type ICacheUsecase interface {
	// GetUserCache reads the whole document. Reads are fail-open: store
	// errors are logged and reported as a miss (nil, nil).
	GetUserCache(ctx context.Context, userID string) (*UserCache, error)
	// GetCacheSection is the single expiry chokepoint: it returns nil when
	// the document or section is absent, or the section is older than ttl.
	GetCacheSection(ctx context.Context, userID, section string, ttl time.Duration) (*Section, error)
	// UpdateCacheSection stamps lastUpdated (and expiresAt when ttl > 0) and
	// merge-writes the section without touching its siblings. Writes are
	// fail-closed: store errors propagate.
	UpdateCacheSection(ctx context.Context, userID, section string, data any, ttl time.Duration) error
	// InitializeUserCache creates the document skeleton if missing. Calling
	// it on an existing document is a no-op.
	InitializeUserCache(ctx context.Context, userID string) error
	// InvalidateCache deletes the whole document when no sections are given,
	// otherwise nulls exactly the named sections.
	InvalidateCache(ctx context.Context, userID string, sections ...string) error
	BulkInvalidateCache(ctx context.Context, userIDs []string, sections ...string) error
	GetCacheStats(ctx context.Context) (CacheStats, error)

	// Typed per-section accessors. These are the only place the canonical
	// TTL constants are bound, so read and write paths cannot drift.
	GetDashboardCache(ctx context.Context, userID string) (*DashboardData, error)
	UpdateDashboardCache(ctx context.Context, userID string, data DashboardData) error
	GetDailyMetrics(ctx context.Context, userID string) (*DailyData, error)
	UpdateDailyMetrics(ctx context.Context, userID string, data DailyData) error
	GetWeeklyMetrics(ctx context.Context, userID string) (*WeeklyData, error)
	UpdateWeeklyMetrics(ctx context.Context, userID string, data WeeklyData) error
	GetMonthlyMetrics(ctx context.Context, userID string) (*MonthlyData, error)
	UpdateMonthlyMetrics(ctx context.Context, userID string, data MonthlyData) error
	GetLifetimeMetrics(ctx context.Context, userID string) (*LifetimeData, error)
	UpdateLifetimeMetrics(ctx context.Context, userID string, data LifetimeData) error
}
