// Package cleanup removes downloaded files once their retention window has
// passed and releases their tracking records back to idle.
package cleanup

import (
	"context"
	"os"
	"time"

	"github.com/courseloom/course_downloader/internal/downloader"
	"github.com/courseloom/course_downloader/internal/logctx"
)

// Cleaner deletes completed downloads that are older than the retention
// period.
type Cleaner struct {
	store     downloader.Storage
	keepFor   time.Duration
	clockFunc func() time.Time
}

func NewCleaner(store downloader.Storage, keepFor time.Duration) *Cleaner {
	return &Cleaner{
		store:     store,
		keepFor:   keepFor,
		clockFunc: time.Now,
	}
}

// DeleteExpiredFiles walks completed tracking records and removes the files of
// those whose last update is older than the retention period. Each removed
// download's tracking is reset to idle so the module can be downloaded again.
func (c *Cleaner) DeleteExpiredFiles(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	records, err := c.store.ListTracking(ctx, downloader.StateCompleted)
	if err != nil {
		return err
	}

	cutoff := c.clockFunc().Add(-c.keepFor)

	for _, record := range records {
		if record.UpdatedAt.After(cutoff) {
			continue
		}

		logger.Info("removing expired download",
			"item_id", record.ItemID,
			"path", record.LocalPath,
			"updated_at", record.UpdatedAt,
		)

		if record.LocalPath != "" {
			if err := os.RemoveAll(record.LocalPath); err != nil {
				logger.Error("failed to remove expired file", "path", record.LocalPath, "err", err)

				continue
			}
		}

		reset := &downloader.TrackingRecord{
			ItemID:    record.ItemID,
			State:     downloader.StateIdle,
			UpdatedAt: c.clockFunc(),
		}
		if err := c.store.SaveTracking(ctx, reset); err != nil {
			logger.Error("failed to reset tracking", "item_id", record.ItemID, "err", err)
		}
	}

	return nil
}

// Run is the cron job body. Errors are logged, not returned, so one failed
// sweep never stops the schedule.
func (c *Cleaner) Run(ctx context.Context) {
	if err := c.DeleteExpiredFiles(ctx); err != nil {
		logctx.LoggerFromContext(ctx).Error("cleanup sweep failed", "err", err)
	}
}
