package rest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
	"github.com/courseloom/course_downloader/internal/logctx"
	"github.com/courseloom/course_downloader/internal/storage"
	"github.com/courseloom/course_downloader/internal/svc/downloads"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Syncer triggers a catalog sync on demand.
type Syncer interface {
	Sync(ctx context.Context) (int, error)
}

// Handler serves the course and download API.
type Handler struct {
	username string
	password string
	svc      *downloads.Service
	courses  storage.CourseRepository
	modules  storage.ModuleRepository
	syncer   Syncer
	validate *validator.Validate
}

// NewHandler creates a new API handler.
func NewHandler(username, password string, svc *downloads.Service, courses storage.CourseRepository, modules storage.ModuleRepository, syncer Syncer) *Handler {
	return &Handler{
		username: username,
		password: password,
		svc:      svc,
		courses:  courses,
		modules:  modules,
		syncer:   syncer,
		validate: validator.New(),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.basicAuthMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/courses", h.ListCourses)
		r.Route("/courses/{courseID}", func(r chi.Router) {
			r.Get("/", h.GetCourse)
			r.Delete("/", h.DeleteCourse)
			r.Get("/modules", h.ListModules)
			r.Post("/download", h.DownloadCourse)
		})

		r.Route("/modules/{moduleID}", func(r chi.Router) {
			r.Post("/download", h.DownloadModule)
			r.Post("/pause", h.PauseDownload)
			r.Post("/resume", h.ResumeDownload)
			r.Post("/cancel", h.CancelDownload)
			r.Delete("/download", h.DeleteDownload)
		})

		r.Post("/downloads", h.DownloadFromURL)
		r.Get("/downloads", h.GetDownloads)
		r.Delete("/downloads", h.ClearDownloads)
		r.Post("/catalog/sync", h.SyncCatalog)
	})

	return r
}

type downloadRequest struct {
	URL            string `json:"url" validate:"required,url"`
	Title          string `json:"title" validate:"max=200"`
	Type           string `json:"type" validate:"required,oneof=document video audio youtube scorm"`
	YouTubeVideoID string `json:"youtubeVideoId" validate:"required_if=Type youtube"`
	ZipPath        string `json:"zipPath" validate:"omitempty,url"`
}

type courseResponse struct {
	ID              uuid.UUID `json:"id"`
	CourseID        int64     `json:"courseId"`
	Title           string    `json:"title"`
	Fee             float64   `json:"fee"`
	Rating          float64   `json:"rating"`
	Admin           string    `json:"admin"`
	NumberOfModules int       `json:"numberOfModules"`
}

type moduleResponse struct {
	ID             uuid.UUID `json:"id"`
	ModuleID       int64     `json:"moduleId"`
	CourseID       uuid.UUID `json:"courseId"`
	Title          string    `json:"title"`
	Type           string    `json:"type"`
	DownloadURL    string    `json:"downloadUrl,omitempty"`
	YouTubeVideoID string    `json:"youtubeVideoId,omitempty"`
	ZipPath        string    `json:"zipPath,omitempty"`
	State          string    `json:"state"`
	Progress       float64   `json:"progress"`
	LocalPath      string    `json:"localPath,omitempty"`
	FileSize       int64     `json:"fileSize"`
}

// ListCourses returns every course in the catalog.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.Courses(r.Context())
	if err != nil {
		h.respondError(w, r, err)

		return
	}

	resp := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, toCourseResponse(c))
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetCourse returns one course.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}

	course, err := h.courses.CourseByID(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, toCourseResponse(course))
}

// DeleteCourse removes a course, its modules, and their downloads.
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}

	if err := h.svc.DeleteCourse(r.Context(), id); err != nil {
		h.respondError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListModules returns a course's modules with their download tracking.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}

	modules, err := h.modules.ModulesByCourse(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)

		return
	}

	resp := make([]moduleResponse, 0, len(modules))
	for _, m := range modules {
		resp = append(resp, toModuleResponse(m))
	}

	respondJSON(w, http.StatusOK, resp)
}

// DownloadCourse queues downloads for every module of a course.
func (h *Handler) DownloadCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}

	queued, err := h.svc.DownloadCourse(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}

// DownloadModule queues one module download.
func (h *Handler) DownloadModule(w http.ResponseWriter, r *http.Request) {
	h.moduleAction(w, r, h.svc.DownloadModule, http.StatusAccepted)
}

// PauseDownload pauses one module download.
func (h *Handler) PauseDownload(w http.ResponseWriter, r *http.Request) {
	h.moduleAction(w, r, h.svc.Pause, http.StatusOK)
}

// ResumeDownload resumes one module download.
func (h *Handler) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	h.moduleAction(w, r, h.svc.Resume, http.StatusOK)
}

// CancelDownload cancels one module download.
func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	h.moduleAction(w, r, h.svc.Cancel, http.StatusOK)
}

// DeleteDownload deletes one module's downloaded files and tracking.
func (h *Handler) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	h.moduleAction(w, r, h.svc.Delete, http.StatusNoContent)
}

// DownloadFromURL registers a module for a bare URL and queues its download.
func (h *Handler) DownloadFromURL(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("failed to decode request", "err", err)
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})

		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})

		return
	}

	module, err := h.svc.DownloadFromURL(r.Context(), downloads.URLRequest{
		URL:            req.URL,
		Title:          req.Title,
		Type:           catalog.ParseModuleType(req.Type),
		YouTubeVideoID: req.YouTubeVideoID,
		ZipPath:        req.ZipPath,
	})
	if err != nil {
		if errors.Is(err, downloader.ErrAlreadyDownloaded) && module != nil {
			respondJSON(w, http.StatusOK, toModuleResponse(module))

			return
		}

		h.respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusAccepted, toModuleResponse(module))
}

// GetDownloads returns the manager's published state.
func (h *Handler) GetDownloads(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Snapshot())
}

// ClearDownloads removes all downloads and resets tracking.
func (h *Handler) ClearDownloads(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		h.respondError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncCatalog runs one catalog sync.
func (h *Handler) SyncCatalog(w http.ResponseWriter, r *http.Request) {
	modules, err := h.syncer.Sync(r.Context())
	if err != nil {
		h.respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"modules": modules})
}

func (h *Handler) moduleAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) error, status int) {
	id, ok := h.pathID(w, r, "moduleID")
	if !ok {
		return
	}

	if err := fn(r.Context(), id); err != nil {
		h.respondError(w, r, err)

		return
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)

		return
	}

	respondJSON(w, status, map[string]string{"result": "success"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + param})

		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logctx.LoggerFromContext(r.Context())

	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "err", err)

		// server-side detail stays in the logs
		respondJSON(w, status, map[string]string{"error": "internal server error"})

		return
	}

	logger.Warn("request rejected", "path", r.URL.Path, "err", err)

	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFromError(err error) int {
	var stateErr *downloader.StateError

	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, downloader.ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, downloader.ErrAlreadyDownloaded), errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.Is(err, downloader.ErrNoStrategy):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func toCourseResponse(c *catalog.Course) courseResponse {
	return courseResponse{
		ID:              c.ID,
		CourseID:        c.CourseID,
		Title:           c.Title,
		Fee:             c.Fee,
		Rating:          c.Rating,
		Admin:           c.Admin,
		NumberOfModules: c.NumberOfModules,
	}
}

func toModuleResponse(m *catalog.Module) moduleResponse {
	state := m.State
	if state == "" {
		state = string(downloader.StateIdle)
	}

	return moduleResponse{
		ID:             m.ID,
		ModuleID:       m.ModuleID,
		CourseID:       m.CourseID,
		Title:          m.Title,
		Type:           string(m.Type),
		DownloadURL:    m.DownloadURL,
		YouTubeVideoID: m.YouTubeVideoID,
		ZipPath:        m.ZipPath,
		State:          state,
		Progress:       m.Progress,
		LocalPath:      m.LocalPath,
		FileSize:       m.FileSize,
	}
}

// basicAuthMiddleware guards the API with HTTP basic auth when credentials
// are configured.
func (h *Handler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.username == "" && h.password == "" {
			next.ServeHTTP(w, r)

			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(h.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="course_downloader"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}
