package lms

import (
	"context"
	"fmt"

	"github.com/courseloom/course_downloader/internal/logctx"
	"github.com/courseloom/course_downloader/internal/storage"
	"github.com/courseloom/course_downloader/internal/telemetry"
)

// Syncer upserts the remote catalog into the local store.
type Syncer struct {
	client  CatalogClient
	courses storage.CourseRepository
	modules storage.ModuleRepository
	tel     *telemetry.Telemetry
}

func NewSyncer(client CatalogClient, courses storage.CourseRepository, modules storage.ModuleRepository, tel *telemetry.Telemetry) *Syncer {
	return &Syncer{
		client:  client,
		courses: courses,
		modules: modules,
		tel:     tel,
	}
}

// Sync fetches the catalog and upserts every course and module, returning the
// number of modules touched. Existing download tracking is untouched: the
// upsert only writes catalog fields.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	logger := logctx.LoggerFromContext(ctx)

	entries, err := s.client.FetchCatalog(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	modules := 0

	for _, entry := range entries {
		if err := s.courses.UpsertCourse(ctx, entry.Course); err != nil {
			return modules, fmt.Errorf("failed to upsert course %d: %w", entry.Course.CourseID, err)
		}

		for _, module := range entry.Modules {
			if err := s.modules.UpsertModule(ctx, module); err != nil {
				return modules, fmt.Errorf("failed to upsert module %d: %w", module.ModuleID, err)
			}

			modules++
		}
	}

	logger.Info("catalog sync completed", "course_count", len(entries), "module_count", modules)

	return modules, nil
}

// Run executes one instrumented sync, logging instead of returning the error.
// Intended as a cron job body.
func (s *Syncer) Run(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	if err := s.tel.InstrumentSync(ctx, s.Sync); err != nil {
		logger.Error("catalog sync failed", "err", err)
	}
}
