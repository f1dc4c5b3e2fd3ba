package downloader

import (
	"context"
	"net/http"
	"time"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/google/uuid"
)

// Request describes what to fetch for an item and how.
type Request struct {
	// URL is the remote location to fetch. Ignored when LocalSource is set.
	URL string
	// Headers are sent with the HTTP request.
	Headers http.Header
	// LocalSource, when set, points to a locally materialized file that is
	// copied into place instead of fetched over the network.
	LocalSource string
	// AllowResume reports whether a partial file may be continued with a
	// ranged request. Strategies that materialize content locally veto it.
	AllowResume bool
}

// Strategy is the per-content-type policy consumed by the manager: how to
// prepare a fetch, post-process the finished file, and validate it.
type Strategy interface {
	Prepare(ctx context.Context, item *catalog.Module, resumeOffset int64) (*Request, error)
	Process(ctx context.Context, path string, item *catalog.Module) (string, error)
	Validate(ctx context.Context, path string, item *catalog.Module) error
}

// TrackingRecord holds the four download-tracking fields persisted per item.
type TrackingRecord struct {
	ItemID    uuid.UUID
	State     State
	Progress  float64
	LocalPath string
	FileSize  int64
	UpdatedAt time.Time
}

// Storage bridges the manager to the application's persistence store. A read
// following a write from the same goroutine observes the new value.
type Storage interface {
	SaveTracking(ctx context.Context, rec *TrackingRecord) error
	LoadTracking(ctx context.Context, itemID uuid.UUID) (*TrackingRecord, error)
	ListTracking(ctx context.Context, states ...State) ([]*TrackingRecord, error)
	ResetAllTracking(ctx context.Context) error
}

// ModuleSource resolves a tracked item id back to its module record. The
// manager uses it to rebuild its queue from storage on startup.
type ModuleSource interface {
	ModuleByID(ctx context.Context, id uuid.UUID) (*catalog.Module, error)
}
