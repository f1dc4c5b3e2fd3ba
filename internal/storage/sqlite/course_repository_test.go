package sqlite

import (
	"context"
	"testing"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCourseRepository_UpsertAndGet(t *testing.T) {
	db := testDB(t)
	course := seedCourse(t, db)

	repo := NewCourseRepository(db)
	ctx := context.Background()

	got, err := repo.CourseByID(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, course.ID, got.ID)
	require.Equal(t, "Intro to Go", got.Title)
	require.InDelta(t, 49.90, got.Fee, 0.001)
	require.InDelta(t, 4.7, got.Rating, 0.001)
	require.Equal(t, "alex", got.Admin)
	require.Equal(t, 2, got.NumberOfModules)
	require.False(t, got.CreatedAt.IsZero())
}

func TestCourseRepository_UpsertUpdatesInPlace(t *testing.T) {
	db := testDB(t)
	course := seedCourse(t, db)

	repo := NewCourseRepository(db)
	ctx := context.Background()

	course.Rating = 4.9
	course.NumberOfModules = 3
	require.NoError(t, repo.UpsertCourse(ctx, course))

	courses, err := repo.Courses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.InDelta(t, 4.9, courses[0].Rating, 0.001)
	require.Equal(t, 3, courses[0].NumberOfModules)
}

func TestCourseRepository_Courses_OrderedByTitle(t *testing.T) {
	db := testDB(t)

	repo := NewCourseRepository(db)
	ctx := context.Background()

	for i, title := range []string{"Zig for Gophers", "Advanced SQL", "Intro to Go"} {
		require.NoError(t, repo.UpsertCourse(ctx, &catalog.Course{
			ID:       catalog.DeterministicCourseID(int64(i + 10)),
			CourseID: int64(i + 10),
			Title:    title,
		}))
	}

	courses, err := repo.Courses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	require.Equal(t, "Advanced SQL", courses[0].Title)
	require.Equal(t, "Intro to Go", courses[1].Title)
	require.Equal(t, "Zig for Gophers", courses[2].Title)
}

func TestCourseRepository_NotFound(t *testing.T) {
	db := testDB(t)

	repo := NewCourseRepository(db)
	ctx := context.Background()

	_, err := repo.CourseByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, repo.DeleteCourse(ctx, uuid.New()), storage.ErrNotFound)
}
