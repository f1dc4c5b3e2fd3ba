package downloads

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sync/atomic"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
	"github.com/courseloom/course_downloader/internal/logctx"
	"github.com/courseloom/course_downloader/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// onlineCourseTitle names the synthetic course collecting modules registered
// by bare URL.
const onlineCourseTitle = "Online Modules"

// Manager is the slice of the download engine the service forwards to.
type Manager interface {
	Download(ctx context.Context, item *catalog.Module) error
	Pause(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Clear(ctx context.Context) error
	States() map[uuid.UUID]downloader.State
	Progress() map[uuid.UUID]float64
	ActiveCount() int
	LastError(id uuid.UUID) string
}

// URLRequest registers a download by bare URL.
type URLRequest struct {
	URL            string
	Title          string
	Type           catalog.ModuleType
	YouTubeVideoID string
	ZipPath        string
}

// Snapshot mirrors the manager's published state for API consumers.
type Snapshot struct {
	States      map[uuid.UUID]downloader.State `json:"states"`
	Progress    map[uuid.UUID]float64          `json:"progress"`
	ActiveCount int                            `json:"activeCount"`
	Errors      map[uuid.UUID]string           `json:"errors,omitempty"`
}

// Service is the single shared adapter between the API layer and the download
// manager: one manager call per user action, plus the published state.
type Service struct {
	manager     Manager
	courses     storage.CourseRepository
	modules     storage.ModuleRepository
	maxParallel int
}

func New(manager Manager, courses storage.CourseRepository, modules storage.ModuleRepository, maxParallel int) *Service {
	if maxParallel <= 0 {
		maxParallel = 3
	}

	return &Service{
		manager:     manager,
		courses:     courses,
		modules:     modules,
		maxParallel: maxParallel,
	}
}

// DownloadModule queues a download for a persisted module.
func (s *Service) DownloadModule(ctx context.Context, id uuid.UUID) error {
	module, err := s.modules.ModuleByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load module: %w", err)
	}

	return s.manager.Download(ctx, module)
}

// DownloadCourse queues downloads for every module of a course and returns
// how many were newly queued. Modules that already completed are skipped.
func (s *Service) DownloadCourse(ctx context.Context, courseID uuid.UUID) (int, error) {
	modules, err := s.modules.ModulesByCourse(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("failed to load course modules: %w", err)
	}

	var queued int32

	wg, ctx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, s.maxParallel)

	for i := range modules {
		module := modules[i]
		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }() // release the slot

			if err := s.manager.Download(ctx, module); err != nil {
				if errors.Is(err, downloader.ErrAlreadyDownloaded) {
					return nil
				}

				return err
			}

			atomic.AddInt32(&queued, 1)

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return int(queued), fmt.Errorf("failed to queue course downloads: %w", err)
	}

	return int(queued), nil
}

// DownloadFromURL registers a module for a bare URL and queues its download.
// The module id derives deterministically from the URL, so repeated requests
// for the same resource resolve to the same record instead of duplicating it.
func (s *Service) DownloadFromURL(ctx context.Context, req URLRequest) (*catalog.Module, error) {
	logger := logctx.LoggerFromContext(ctx)

	id := catalog.DeterministicModuleID(req.URL)

	module, err := s.modules.ModuleByID(ctx, id)

	switch {
	case err == nil:
		logger.Debug("reusing existing module for url", "module_id", id)
	case errors.Is(err, storage.ErrNotFound):
		course, err := s.onlineCourse(ctx)
		if err != nil {
			return nil, err
		}

		module = &catalog.Module{
			ID:             id,
			CourseID:       course.ID,
			CourseTitle:    course.Title,
			Title:          req.Title,
			Type:           req.Type,
			DownloadURL:    req.URL,
			YouTubeVideoID: req.YouTubeVideoID,
			ZipPath:        req.ZipPath,
		}

		if module.Title == "" {
			module.Title = titleFromURL(req.URL, id)
		}

		if err := s.modules.UpsertModule(ctx, module); err != nil {
			return nil, fmt.Errorf("failed to save module: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up module: %w", err)
	}

	if err := s.manager.Download(ctx, module); err != nil {
		return module, err
	}

	return module, nil
}

// Pause forwards a pause request for one item.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.manager.Pause(ctx, id)
}

// Resume forwards a resume request for one item.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.manager.Resume(ctx, id)
}

// Cancel forwards a cancel request for one item.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.manager.Cancel(ctx, id)
}

// Delete forwards a delete request for one item.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.manager.Delete(ctx, id)
}

// ClearAll removes every download and resets all tracking.
func (s *Service) ClearAll(ctx context.Context) error {
	return s.manager.Clear(ctx)
}

// DeleteCourse removes a course, its modules (via the storage cascade), and
// their downloaded files.
func (s *Service) DeleteCourse(ctx context.Context, courseID uuid.UUID) error {
	modules, err := s.modules.ModulesByCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to load course modules: %w", err)
	}

	for _, module := range modules {
		if err := s.manager.Delete(ctx, module.ID); err != nil {
			return fmt.Errorf("failed to delete download for module %s: %w", module.ID, err)
		}
	}

	return s.courses.DeleteCourse(ctx, courseID)
}

// Snapshot returns the manager's published state.
func (s *Service) Snapshot() Snapshot {
	states := s.manager.States()

	snap := Snapshot{
		States:      states,
		Progress:    s.manager.Progress(),
		ActiveCount: s.manager.ActiveCount(),
	}

	for id, state := range states {
		if state == downloader.StateFailed {
			if msg := s.manager.LastError(id); msg != "" {
				if snap.Errors == nil {
					snap.Errors = make(map[uuid.UUID]string)
				}

				snap.Errors[id] = msg
			}
		}
	}

	return snap
}

// onlineCourse upserts and returns the parent course for URL-registered
// modules.
func (s *Service) onlineCourse(ctx context.Context) (*catalog.Course, error) {
	course := &catalog.Course{
		ID:    catalog.DeterministicCourseID(0),
		Title: onlineCourseTitle,
		Admin: "system",
	}

	if err := s.courses.UpsertCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to upsert online course: %w", err)
	}

	return course, nil
}

func titleFromURL(rawURL string, fallback uuid.UUID) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}

	return fallback.String()
}
