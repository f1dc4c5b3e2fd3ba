package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/storage"
	"github.com/google/uuid"
)

type CourseRepository struct {
	db *sql.DB
}

func NewCourseRepository(dbConn *sql.DB) *CourseRepository {
	return &CourseRepository{db: dbConn}
}

func (r *CourseRepository) UpsertCourse(ctx context.Context, course *catalog.Course) error {
	createdAt := course.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, course_id, title, fee, rating, admin, number_of_modules, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			course_id = excluded.course_id,
			title = excluded.title,
			fee = excluded.fee,
			rating = excluded.rating,
			admin = excluded.admin,
			number_of_modules = excluded.number_of_modules
	`, course.ID.String(), course.CourseID, course.Title, course.Fee, course.Rating,
		course.Admin, course.NumberOfModules, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}

	return nil
}

func (r *CourseRepository) CourseByID(ctx context.Context, id uuid.UUID) (*catalog.Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, title, fee, rating, admin, number_of_modules, created_at
		FROM courses WHERE id = ?
	`, id.String())

	course, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return course, nil
}

func (r *CourseRepository) Courses(ctx context.Context) ([]*catalog.Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, title, fee, rating, admin, number_of_modules, created_at
		FROM courses ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	defer rows.Close()

	var courses []*catalog.Course

	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}

		courses = append(courses, course)
	}

	return courses, rows.Err()
}

// DeleteCourse removes the course; its modules go with it via the cascade.
func (r *CourseRepository) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*catalog.Course, error) {
	var course catalog.Course

	var id, createdAt string

	if err := row.Scan(&id, &course.CourseID, &course.Title, &course.Fee, &course.Rating,
		&course.Admin, &course.NumberOfModules, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid course id %q: %w", id, err)
	}

	course.ID = parsed

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		course.CreatedAt = t
	}

	return &course, nil
}
