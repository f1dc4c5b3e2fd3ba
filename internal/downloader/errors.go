package downloader

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAlreadyDownloaded is returned when a download is requested for an item
// that already completed.
var ErrAlreadyDownloaded = errors.New("item already downloaded")

// ErrUnknownItem is returned when an operation references an item id the
// manager is not tracking.
var ErrUnknownItem = errors.New("unknown download item")

// ErrNoStrategy is returned when no strategy is registered for an item's
// module type.
var ErrNoStrategy = errors.New("no strategy registered for module type")

// ValidationError represents a downloaded file failing the strategy's
// integrity check. Validation failures are permanent and never retried.
type ValidationError struct {
	Path   string // path of the file that failed validation
	Reason string // human-readable explanation
	Err    error  // underlying error, if any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FetchError represents network failures and unexpected HTTP responses while
// grabbing a file.
type FetchError struct {
	URL        string // the URL that was fetched
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Err        error  // underlying error, if any
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed for %s (HTTP %d)", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch failed for %s", e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the fetch is worth retrying. Client errors are
// permanent; server errors and transport failures are transient.
func (e *FetchError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// StateError represents a rejected state transition.
type StateError struct {
	ItemID uuid.UUID
	From   State
	To     State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid state transition for %s: %s -> %s", e.ItemID, e.From, e.To)
}

// StorageError represents a failure in the tracking persistence layer.
type StorageError struct {
	Op  string // the storage operation that failed
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
