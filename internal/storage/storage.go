package storage

import (
	"context"
	"errors"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a course or module record does not exist.
var ErrNotFound = errors.New("record not found")

// CourseRepository persists course records.
type CourseRepository interface {
	UpsertCourse(ctx context.Context, course *catalog.Course) error
	CourseByID(ctx context.Context, id uuid.UUID) (*catalog.Course, error)
	Courses(ctx context.Context) ([]*catalog.Course, error)
	DeleteCourse(ctx context.Context, id uuid.UUID) error
}

// ModuleRepository persists module records. Deleting a course cascades to its
// modules.
type ModuleRepository interface {
	UpsertModule(ctx context.Context, module *catalog.Module) error
	ModuleByID(ctx context.Context, id uuid.UUID) (*catalog.Module, error)
	ModulesByCourse(ctx context.Context, courseID uuid.UUID) ([]*catalog.Module, error)
	DeleteModule(ctx context.Context, id uuid.UUID) error
}
