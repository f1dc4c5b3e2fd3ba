package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
	"github.com/courseloom/course_downloader/internal/storage"
	"github.com/google/uuid"
)

// ModuleRepository persists module records and implements the download
// manager's tracking storage against the same table, so a tracking read
// following a write observes the new value.
type ModuleRepository struct {
	db *sql.DB
}

func NewModuleRepository(dbConn *sql.DB) *ModuleRepository {
	return &ModuleRepository{db: dbConn}
}

const moduleColumns = `m.id, m.module_id, m.course_id, c.title, m.title, m.type,
	m.download_url, m.youtube_video_id, m.zip_path,
	m.download_state, m.download_progress, m.local_path, m.file_size`

func (r *ModuleRepository) UpsertModule(ctx context.Context, module *catalog.Module) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO modules (id, module_id, course_id, title, type, download_url, youtube_video_id, zip_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			module_id = excluded.module_id,
			course_id = excluded.course_id,
			title = excluded.title,
			type = excluded.type,
			download_url = excluded.download_url,
			youtube_video_id = excluded.youtube_video_id,
			zip_path = excluded.zip_path
	`, module.ID.String(), module.ModuleID, module.CourseID.String(), module.Title,
		string(module.Type), module.DownloadURL, module.YouTubeVideoID, module.ZipPath)
	if err != nil {
		return fmt.Errorf("failed to upsert module: %w", err)
	}

	return nil
}

func (r *ModuleRepository) ModuleByID(ctx context.Context, id uuid.UUID) (*catalog.Module, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+moduleColumns+`
		FROM modules m JOIN courses c ON c.id = m.course_id
		WHERE m.id = ?
	`, id.String())

	module, err := scanModule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get module: %w", err)
	}

	return module, nil
}

func (r *ModuleRepository) ModulesByCourse(ctx context.Context, courseID uuid.UUID) ([]*catalog.Module, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+moduleColumns+`
		FROM modules m JOIN courses c ON c.id = m.course_id
		WHERE m.course_id = ? ORDER BY m.module_id
	`, courseID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}

	defer rows.Close()

	var modules []*catalog.Module

	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}

		modules = append(modules, module)
	}

	return modules, rows.Err()
}

func (r *ModuleRepository) DeleteModule(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// SaveTracking writes the four tracking fields for an item. Tracking for a
// module that left the catalog is dropped by the cascade, so a miss is not an
// error.
func (r *ModuleRepository) SaveTracking(ctx context.Context, rec *downloader.TrackingRecord) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE modules SET
			download_state = ?,
			download_progress = ?,
			local_path = ?,
			file_size = ?,
			tracking_updated_at = ?
		WHERE id = ?
	`, string(rec.State), rec.Progress, rec.LocalPath, rec.FileSize,
		updatedAt.Format(time.RFC3339), rec.ItemID.String())
	if err != nil {
		return fmt.Errorf("failed to save tracking: %w", err)
	}

	return nil
}

// LoadTracking reads the tracking fields for an item. Returns (nil, nil) when
// the item is unknown.
func (r *ModuleRepository) LoadTracking(ctx context.Context, itemID uuid.UUID) (*downloader.TrackingRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT download_state, download_progress, local_path, file_size, tracking_updated_at
		FROM modules WHERE id = ?
	`, itemID.String())

	rec := downloader.TrackingRecord{ItemID: itemID}

	var state string

	var updatedAt sql.NullString

	if err := row.Scan(&state, &rec.Progress, &rec.LocalPath, &rec.FileSize, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load tracking: %w", err)
	}

	rec.State = downloader.State(state)

	if updatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
			rec.UpdatedAt = t
		}
	}

	return &rec, nil
}

// ListTracking returns tracking records in the given states; with no states
// it returns every record with download activity.
func (r *ModuleRepository) ListTracking(ctx context.Context, states ...downloader.State) ([]*downloader.TrackingRecord, error) {
	query := `
		SELECT id, download_state, download_progress, local_path, file_size, tracking_updated_at
		FROM modules`

	args := make([]any, 0, len(states))

	if len(states) == 0 {
		query += ` WHERE download_state != 'idle'`
	} else {
		placeholders := make([]string, len(states))
		for i, s := range states {
			placeholders[i] = "?"
			args = append(args, string(s))
		}

		query += ` WHERE download_state IN (` + strings.Join(placeholders, ", ") + `)`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking: %w", err)
	}

	defer rows.Close()

	var recs []*downloader.TrackingRecord

	for rows.Next() {
		var rec downloader.TrackingRecord

		var id, state string

		var updatedAt sql.NullString

		if err := rows.Scan(&id, &state, &rec.Progress, &rec.LocalPath, &rec.FileSize, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking: %w", err)
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid module id %q: %w", id, err)
		}

		rec.ItemID = parsed
		rec.State = downloader.State(state)

		if updatedAt.Valid {
			if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
				rec.UpdatedAt = t
			}
		}

		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// ResetAllTracking returns every module to the idle state with no download
// data.
func (r *ModuleRepository) ResetAllTracking(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE modules SET
			download_state = 'idle',
			download_progress = 0,
			local_path = '',
			file_size = 0,
			tracking_updated_at = NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to reset tracking: %w", err)
	}

	return nil
}

func scanModule(row rowScanner) (*catalog.Module, error) {
	var module catalog.Module

	var id, courseID, moduleType, state string

	if err := row.Scan(&id, &module.ModuleID, &courseID, &module.CourseTitle, &module.Title,
		&moduleType, &module.DownloadURL, &module.YouTubeVideoID, &module.ZipPath,
		&state, &module.Progress, &module.LocalPath, &module.FileSize); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid module id %q: %w", id, err)
	}

	parsedCourseID, err := uuid.Parse(courseID)
	if err != nil {
		return nil, fmt.Errorf("invalid course id %q: %w", courseID, err)
	}

	module.ID = parsedID
	module.CourseID = parsedCourseID
	module.Type = catalog.ModuleType(moduleType)
	module.State = state

	return &module, nil
}
