package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/core/config"
	"github.com/vitalsync/vitalsync/pkg/recalcworker"
)

var recalcInvalidateFirst bool

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate cached metrics for every known user",
	Long: `Walks every user id present in the readings store and recomputes all
cache sections through the worker pool. Run it after a scoring formula
change, optionally invalidating the old documents first.`,
	Run: recalcAll,
}

func init() {
	recalcCmd.Flags().BoolVar(&recalcInvalidateFirst, "invalidate-first", false,
		"delete every cache document before recomputing")
	rootCmd.AddCommand(recalcCmd)
}

func recalcAll(_ *cobra.Command, _ []string) {
	defer StopApp()
	ctx := context.Background()
	runID := uuid.NewString()

	userIDs, err := rawRepo.ListUserIDs(ctx)
	if err != nil {
		logrus.Fatalf("Failed to list user ids: %v", err)
	}
	if len(userIDs) == 0 {
		logrus.Info("[RECALC] No users with readings, nothing to do")
		return
	}
	logrus.Infof("[RECALC] Run %s: recalculating caches for %d users", runID, len(userIDs))

	if recalcInvalidateFirst {
		if err := cacheUsecase.BulkInvalidateCache(ctx, userIDs); err != nil {
			logrus.WithError(err).Fatal("[RECALC] Bulk invalidation failed")
		}
		logrus.Infof("[RECALC] Invalidated %d cache documents", len(userIDs))
	}

	pool := recalcworker.NewPool(config.Global.WorkerPool.Size, config.Global.WorkerPool.QueueSize)
	pool.Start(ctx)

	for _, userID := range userIDs {
		uid := userID
		pool.Dispatch(recalcworker.RecalcJob{
			UserID: uid,
			Handler: func(jobCtx context.Context) error {
				return metricsEngine.CalculateAndCacheUserMetrics(jobCtx, uid)
			},
		})
	}

	pool.Drain()
	pool.Stop()

	stats := pool.Stats()
	logrus.Infof("[RECALC] Run %s done: %d processed, %d dropped, %d errors",
		runID, stats.TotalProcessed, stats.TotalDropped, stats.TotalErrors)
}
