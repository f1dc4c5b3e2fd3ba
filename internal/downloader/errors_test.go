package downloader

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

// TestValidationError_Error verifies error message formatting
func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Path:   "/downloads/intro.pdf",
		Reason: "file is empty",
	}

	expected := "validation failed for /downloads/intro.pdf: file is empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestFetchError_Error verifies error message formatting
func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *FetchError
		wantFormat string
	}{
		{
			name: "with HTTP status code",
			err: &FetchError{
				URL:        "https://cdn.example.com/video.mp4",
				StatusCode: 503,
			},
			wantFormat: "fetch failed for https://cdn.example.com/video.mp4 (HTTP 503)",
		},
		{
			name: "without HTTP status code",
			err: &FetchError{
				URL:        "https://cdn.example.com/video.mp4",
				StatusCode: 0,
			},
			wantFormat: "fetch failed for https://cdn.example.com/video.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantFormat {
				t.Errorf("Error() = %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

// TestFetchError_Retryable verifies the transient vs permanent split
func TestFetchError_Retryable(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{name: "transport failure", statusCode: 0, want: true},
		{name: "server error", statusCode: 500, want: true},
		{name: "gateway timeout", statusCode: 504, want: true},
		{name: "not found", statusCode: 404, want: false},
		{name: "forbidden", statusCode: 403, want: false},
		{name: "rate limited", statusCode: 429, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &FetchError{URL: "https://example.com/file", StatusCode: tt.statusCode}
			if got := err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestStateError_Error verifies error message formatting
func TestStateError_Error(t *testing.T) {
	id := uuid.MustParse("f47ac10b-58cc-0372-8567-0e02b2c3d479")
	err := &StateError{ItemID: id, From: StateCompleted, To: StatePaused}

	expected := "invalid state transition for f47ac10b-58cc-0372-8567-0e02b2c3d479: completed -> paused"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestStorageError_Error verifies error message formatting
func TestStorageError_Error(t *testing.T) {
	err := &StorageError{Op: "save_tracking"}

	expected := "storage error during save_tracking"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestValidationError_Unwrap verifies error chain traversal
func TestValidationError_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")
	err := &ValidationError{
		Path:   "/downloads/intro.pdf",
		Reason: "stat failed",
		Err:    cause,
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}
}

// TestFetchError_Unwrap verifies error chain traversal
func TestFetchError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &FetchError{
		URL: "https://cdn.example.com/video.mp4",
		Err: cause,
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}
}

// TestFetchError_As verifies programmatic error type detection
func TestFetchError_As(t *testing.T) {
	originalErr := &FetchError{
		URL:        "https://cdn.example.com/video.mp4",
		StatusCode: 503,
	}

	wrapped := fmt.Errorf("context: %w", originalErr)

	var target *FetchError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract FetchError from wrapped chain")
	}

	if target.URL != "https://cdn.example.com/video.mp4" {
		t.Errorf("URL = %q, want %q", target.URL, "https://cdn.example.com/video.mp4")
	}
	if target.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want %d", target.StatusCode, 503)
	}
}

// TestStateError_As verifies programmatic error type detection
func TestStateError_As(t *testing.T) {
	id := uuid.New()
	originalErr := &StateError{ItemID: id, From: StateIdle, To: StatePaused}

	wrapped := fmt.Errorf("context: %w", originalErr)

	var target *StateError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract StateError from wrapped chain")
	}

	if target.From != StateIdle || target.To != StatePaused {
		t.Errorf("transition = %s -> %s, want %s -> %s", target.From, target.To, StateIdle, StatePaused)
	}
}

// TestErrorTypes_Nil verifies nil error handling
func TestErrorTypes_Nil(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "ValidationError with nil Err",
			err:  &ValidationError{Path: "/downloads/a.pdf", Reason: "too small", Err: nil},
		},
		{
			name: "FetchError with nil Err",
			err:  &FetchError{URL: "https://example.com", StatusCode: 500, Err: nil},
		},
		{
			name: "StorageError with nil Err",
			err:  &StorageError{Op: "load_tracking", Err: nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unwrapped := errors.Unwrap(tt.err); unwrapped != nil {
				t.Errorf("Unwrap() = %v, want nil", unwrapped)
			}

			if errMsg := tt.err.Error(); errMsg == "" {
				t.Error("Error() should return non-empty string even when Err is nil")
			}
		})
	}
}
