package sqlite

import (
	"context"
	"database/sql"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
	"github.com/courseloom/course_downloader/internal/telemetry"
	"github.com/google/uuid"
)

// InstrumentedModuleRepository wraps ModuleRepository with telemetry.
type InstrumentedModuleRepository struct {
	repo      *ModuleRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedModuleRepository creates a new instrumented module repository.
func NewInstrumentedModuleRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedModuleRepository {
	return &InstrumentedModuleRepository{
		repo:      NewModuleRepository(dbConn),
		telemetry: tel,
	}
}

// UpsertModule upserts a module with telemetry.
func (r *InstrumentedModuleRepository) UpsertModule(ctx context.Context, module *catalog.Module) error {
	return r.telemetry.InstrumentDBOperation(ctx, "upsert_module", func(ctx context.Context) error {
		return r.repo.UpsertModule(ctx, module)
	})
}

// ModuleByID retrieves a module with telemetry.
func (r *InstrumentedModuleRepository) ModuleByID(ctx context.Context, id uuid.UUID) (*catalog.Module, error) {
	var result *catalog.Module

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_module", func(ctx context.Context) error {
		result, err = r.repo.ModuleByID(ctx, id)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// ModulesByCourse lists a course's modules with telemetry.
func (r *InstrumentedModuleRepository) ModulesByCourse(ctx context.Context, courseID uuid.UUID) ([]*catalog.Module, error) {
	var result []*catalog.Module

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "list_modules", func(ctx context.Context) error {
		result, err = r.repo.ModulesByCourse(ctx, courseID)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// DeleteModule deletes a module with telemetry.
func (r *InstrumentedModuleRepository) DeleteModule(ctx context.Context, id uuid.UUID) error {
	return r.telemetry.InstrumentDBOperation(ctx, "delete_module", func(ctx context.Context) error {
		return r.repo.DeleteModule(ctx, id)
	})
}

// SaveTracking writes tracking fields with telemetry.
func (r *InstrumentedModuleRepository) SaveTracking(ctx context.Context, rec *downloader.TrackingRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "save_tracking", func(ctx context.Context) error {
		return r.repo.SaveTracking(ctx, rec)
	})
}

// LoadTracking reads tracking fields with telemetry.
func (r *InstrumentedModuleRepository) LoadTracking(ctx context.Context, itemID uuid.UUID) (*downloader.TrackingRecord, error) {
	var result *downloader.TrackingRecord

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "load_tracking", func(ctx context.Context) error {
		result, err = r.repo.LoadTracking(ctx, itemID)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// ListTracking lists tracking records with telemetry.
func (r *InstrumentedModuleRepository) ListTracking(ctx context.Context, states ...downloader.State) ([]*downloader.TrackingRecord, error) {
	var result []*downloader.TrackingRecord

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "list_tracking", func(ctx context.Context) error {
		result, err = r.repo.ListTracking(ctx, states...)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// ResetAllTracking resets tracking with telemetry.
func (r *InstrumentedModuleRepository) ResetAllTracking(ctx context.Context) error {
	return r.telemetry.InstrumentDBOperation(ctx, "reset_all_tracking", func(ctx context.Context) error {
		return r.repo.ResetAllTracking(ctx)
	})
}
