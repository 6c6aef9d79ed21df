package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	"github.com/vitalsync/vitalsync/infrastructure/cachestore"
)

func newTestCacheService(t *testing.T) (*cacheService, *cachestore.MemoryStore, *time.Time) {
	t.Helper()
	store := cachestore.NewMemoryStore()
	svc := NewCacheService(store, 0).(*cacheService)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.nowFn = func() time.Time { return *clock }
	return svc, store, clock
}

func TestInitializeUserCacheIdempotent(t *testing.T) {
	svc, store, _ := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.InitializeUserCache(ctx, "u1"); err != nil {
		t.Fatalf("InitializeUserCache() error: %v", err)
	}
	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{Date: "2026-03-10"}); err != nil {
		t.Fatalf("UpdateDailyMetrics() error: %v", err)
	}

	// A second initialize must not wipe the daily section.
	if err := svc.InitializeUserCache(ctx, "u1"); err != nil {
		t.Fatalf("second InitializeUserCache() error: %v", err)
	}
	doc, err := store.Get(ctx, "u1")
	if err != nil || doc == nil {
		t.Fatalf("store.Get() = %v, %v", doc, err)
	}
	if doc[domainCache.SectionDaily] == "" {
		t.Fatal("daily section lost after re-initialize")
	}
	if doc[domainCache.FieldCacheVersion] != domainCache.CacheVersion {
		t.Fatalf("cacheVersion = %q", doc[domainCache.FieldCacheVersion])
	}
}

func TestSectionExpiryBoundary(t *testing.T) {
	svc, _, clock := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{Date: "2026-03-10"}); err != nil {
		t.Fatalf("UpdateDailyMetrics() error: %v", err)
	}

	*clock = clock.Add(23*time.Hour + 59*time.Minute)
	got, err := svc.GetDailyMetrics(ctx, "u1")
	if err != nil {
		t.Fatalf("GetDailyMetrics() error: %v", err)
	}
	if got == nil {
		t.Fatal("section expired before its 24h TTL")
	}

	*clock = clock.Add(2 * time.Minute)
	got, err = svc.GetDailyMetrics(ctx, "u1")
	if err != nil {
		t.Fatalf("GetDailyMetrics() error: %v", err)
	}
	if got != nil {
		t.Fatal("section still served after its 24h TTL")
	}
}

func TestLifetimeSectionNeverExpires(t *testing.T) {
	svc, _, clock := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.UpdateLifetimeMetrics(ctx, "u1", domainCache.LifetimeData{TotalSteps: 5}); err != nil {
		t.Fatalf("UpdateLifetimeMetrics() error: %v", err)
	}

	*clock = clock.Add(365 * 24 * time.Hour)
	got, err := svc.GetLifetimeMetrics(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLifetimeMetrics() error: %v", err)
	}
	if got == nil || got.TotalSteps != 5 {
		t.Fatalf("lifetime section = %+v, want TotalSteps 5", got)
	}
}

func TestUpdateSectionLeavesSiblingsUntouched(t *testing.T) {
	svc, store, _ := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.UpdateWeeklyMetrics(ctx, "u1", domainCache.WeeklyData{DaysTracked: 6}); err != nil {
		t.Fatalf("UpdateWeeklyMetrics() error: %v", err)
	}
	before, _ := store.Get(ctx, "u1")
	weeklyBefore := before[domainCache.SectionWeekly]

	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{Steps: 9000}); err != nil {
		t.Fatalf("UpdateDailyMetrics() error: %v", err)
	}
	after, _ := store.Get(ctx, "u1")
	if after[domainCache.SectionWeekly] != weeklyBefore {
		t.Fatal("weekly section bytes changed by a daily write")
	}
}

func TestUpdateSectionLastWriteWins(t *testing.T) {
	svc, _, clock := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{Steps: 100}); err != nil {
		t.Fatalf("first write error: %v", err)
	}
	*clock = clock.Add(time.Minute)
	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{Steps: 200}); err != nil {
		t.Fatalf("second write error: %v", err)
	}

	got, err := svc.GetDailyMetrics(ctx, "u1")
	if err != nil || got == nil {
		t.Fatalf("GetDailyMetrics() = %v, %v", got, err)
	}
	if got.Steps != 200 {
		t.Fatalf("Steps = %d, want 200 (last write)", got.Steps)
	}
}

func TestSelectiveInvalidation(t *testing.T) {
	svc, _, _ := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{Steps: 1}); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpdateLifetimeMetrics(ctx, "u1", domainCache.LifetimeData{TotalSteps: 9}); err != nil {
		t.Fatal(err)
	}

	if err := svc.InvalidateCache(ctx, "u1", domainCache.SectionDaily); err != nil {
		t.Fatalf("InvalidateCache() error: %v", err)
	}

	daily, _ := svc.GetDailyMetrics(ctx, "u1")
	if daily != nil {
		t.Fatal("daily section survived selective invalidation")
	}
	lifetime, _ := svc.GetLifetimeMetrics(ctx, "u1")
	if lifetime == nil || lifetime.TotalSteps != 9 {
		t.Fatalf("lifetime section = %+v, should have survived", lifetime)
	}
}

func TestFullInvalidationDeletesDocument(t *testing.T) {
	svc, store, _ := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.UpdateDailyMetrics(ctx, "u1", domainCache.DailyData{}); err != nil {
		t.Fatal(err)
	}
	if err := svc.InvalidateCache(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateCache() error: %v", err)
	}
	doc, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Fatal("document still present after full invalidation")
	}
}

func TestInvalidateRejectsUnknownSection(t *testing.T) {
	svc, _, _ := newTestCacheService(t)
	if err := svc.InvalidateCache(context.Background(), "u1", "bogusSection"); err == nil {
		t.Fatal("expected error for unknown section name")
	}
}

func TestBulkInvalidation(t *testing.T) {
	svc, store, _ := newTestCacheService(t)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2", "u3"} {
		if err := svc.UpdateDailyMetrics(ctx, id, domainCache.DailyData{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.BulkInvalidateCache(ctx, []string{"u1", "u3"}); err != nil {
		t.Fatalf("BulkInvalidateCache() error: %v", err)
	}

	keys, _ := store.Keys(ctx)
	if len(keys) != 1 || keys[0] != "u2" {
		t.Fatalf("surviving keys = %v, want [u2]", keys)
	}
}

func TestBulkSelectiveInvalidation(t *testing.T) {
	svc, _, _ := newTestCacheService(t)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2", "u3"} {
		if err := svc.UpdateDailyMetrics(ctx, id, domainCache.DailyData{Steps: 1}); err != nil {
			t.Fatal(err)
		}
		if err := svc.UpdateLifetimeMetrics(ctx, id, domainCache.LifetimeData{TotalSteps: 9}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.BulkInvalidateCache(ctx, []string{"u1", "u2"}, domainCache.SectionDaily); err != nil {
		t.Fatalf("BulkInvalidateCache() error: %v", err)
	}

	for _, id := range []string{"u1", "u2"} {
		if daily, _ := svc.GetDailyMetrics(ctx, id); daily != nil {
			t.Fatalf("daily section for %s survived bulk selective invalidation", id)
		}
		if lifetime, _ := svc.GetLifetimeMetrics(ctx, id); lifetime == nil || lifetime.TotalSteps != 9 {
			t.Fatalf("lifetime section for %s = %+v, should have survived", id, lifetime)
		}
	}
	if daily, _ := svc.GetDailyMetrics(ctx, "u3"); daily == nil || daily.Steps != 1 {
		t.Fatalf("daily section for u3 = %+v, should not have been touched", daily)
	}
}

func TestGetUserCacheFailOpenOnStoreError(t *testing.T) {
	svc, _, _ := newTestCacheService(t)
	svc.store = failingStore{}

	uc, err := svc.GetUserCache(context.Background(), "u1")
	if err != nil {
		t.Fatalf("read path must be fail-open, got error: %v", err)
	}
	if uc != nil {
		t.Fatalf("uc = %+v, want nil miss", uc)
	}
}

func TestUpdateSectionFailClosedOnStoreError(t *testing.T) {
	svc, _, _ := newTestCacheService(t)
	svc.store = failingStore{}

	err := svc.UpdateDailyMetrics(context.Background(), "u1", domainCache.DailyData{})
	if err == nil {
		t.Fatal("write path must be fail-closed, got nil error")
	}
}

func TestCompactionBoundsListsAndIsIdempotent(t *testing.T) {
	svc, store, clock := newTestCacheService(t)
	svc.maxDocSize = 64 // force the trigger with tiny payloads
	ctx := context.Background()

	milestones := make([]domainCache.Milestone, domainCache.MaxMilestones+25)
	for i := range milestones {
		milestones[i] = domainCache.Milestone{
			ID:         "m" + string(rune('a'+i%26)),
			Title:      "Milestone",
			AchievedAt: clock.Add(time.Duration(i) * time.Hour),
		}
	}
	if err := svc.UpdateLifetimeMetrics(ctx, "u1", domainCache.LifetimeData{Milestones: milestones}); err != nil {
		t.Fatal(err)
	}

	uc, err := svc.GetUserCache(ctx, "u1")
	if err != nil || uc == nil {
		t.Fatalf("GetUserCache() = %v, %v", uc, err)
	}

	var data domainCache.LifetimeData
	if err := json.Unmarshal(uc.Sections[domainCache.SectionLifetime].Data, &data); err != nil {
		t.Fatalf("unmarshal compacted lifetime: %v", err)
	}
	if len(data.Milestones) != domainCache.MaxMilestones {
		t.Fatalf("milestones after compaction = %d, want %d", len(data.Milestones), domainCache.MaxMilestones)
	}
	// Most recent entries survive.
	newest := milestones[len(milestones)-1].AchievedAt
	if !data.Milestones[0].AchievedAt.Equal(newest) {
		t.Fatalf("newest milestone dropped: %v != %v", data.Milestones[0].AchievedAt, newest)
	}

	// A second pass must not change the stored bytes.
	first, _ := store.Get(ctx, "u1")
	if _, err := svc.GetUserCache(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	second, _ := store.Get(ctx, "u1")
	if first[domainCache.SectionLifetime] != second[domainCache.SectionLifetime] {
		t.Fatal("compaction is not idempotent")
	}
}

func TestGetCacheStats(t *testing.T) {
	svc, _, _ := newTestCacheService(t)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		if err := svc.UpdateDailyMetrics(ctx, id, domainCache.DailyData{Date: "2026-03-10"}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := svc.GetCacheStats(ctx)
	if err != nil {
		t.Fatalf("GetCacheStats() error: %v", err)
	}
	if stats.TotalCacheDocuments != 2 {
		t.Fatalf("TotalCacheDocuments = %d, want 2", stats.TotalCacheDocuments)
	}
	if stats.TotalSize <= 0 || stats.AverageSize <= 0 {
		t.Fatalf("sizes not populated: %+v", stats)
	}
	if stats.HumanSize == "" {
		t.Fatal("HumanSize empty")
	}
}

func TestCorruptSectionDegradesToMiss(t *testing.T) {
	svc, store, _ := newTestCacheService(t)
	ctx := context.Background()

	if err := store.SetMerged(ctx, "u1", cachestore.Document{
		domainCache.SectionDaily: "{not json",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetDailyMetrics(ctx, "u1")
	if err != nil {
		t.Fatalf("corrupt section must degrade to a miss, got error: %v", err)
	}
	if got != nil {
		t.Fatalf("got = %+v, want nil", got)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (cachestore.Document, error) {
	return nil, errStore
}
func (failingStore) SetMerged(context.Context, string, cachestore.Document) error { return errStore }
func (failingStore) SetFull(context.Context, string, cachestore.Document) error   { return errStore }
func (failingStore) Delete(context.Context, string) error                         { return errStore }
func (failingStore) RemoveFields(context.Context, string, ...string) error        { return errStore }
func (failingStore) BatchDelete(context.Context, []string) error                  { return errStore }
func (failingStore) BatchRemoveFields(context.Context, []string, ...string) error { return errStore }
func (failingStore) Keys(context.Context) ([]string, error)                       { return nil, errStore }
func (failingStore) Ping(context.Context) error                                   { return errStore }

var errStore = errTest("store unavailable")

type errTest string

func (e errTest) Error() string { return string(e) }
