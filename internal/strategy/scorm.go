package strategy

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
)

// SCORM handles scorm modules. A dedicated archive path takes precedence over
// the primary download URL when the catalog provides one; the downloaded zip
// is extracted next to the target and removed afterwards.
type SCORM struct{}

func (SCORM) Prepare(_ context.Context, item *catalog.Module, _ int64) (*downloader.Request, error) {
	source := item.DownloadURL
	if item.ZipPath != "" {
		source = item.ZipPath
	}

	if source == "" {
		return nil, fmt.Errorf("module %s has no download URL or zip path", item.ID)
	}

	headers := http.Header{}
	headers.Set("Accept", item.Type.MIME())

	return &downloader.Request{
		URL:         source,
		Headers:     headers,
		AllowResume: true,
	}, nil
}

// Process extracts the package into a directory named after the archive and
// removes the archive. The archive is size-checked first so a truncated
// download never reaches the extractor.
func (SCORM) Process(_ context.Context, path string, _ *catalog.Module) (string, error) {
	if err := minSize(path, minSCORMSize); err != nil {
		return "", err
	}

	dest := strings.TrimSuffix(path, filepath.Ext(path))
	if err := extractZip(path, dest); err != nil {
		return "", fmt.Errorf("failed to extract scorm package: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove archive: %w", err)
	}

	return dest, nil
}

// Validate accepts either an extracted non-empty package directory or, before
// extraction, an archive meeting the minimum size.
func (SCORM) Validate(_ context.Context, path string, _ *catalog.Module) error {
	info, err := os.Stat(path)
	if err != nil {
		return &downloader.ValidationError{Path: path, Reason: "file missing", Err: err}
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return &downloader.ValidationError{Path: path, Reason: "unreadable package directory", Err: err}
		}

		if len(entries) == 0 {
			return &downloader.ValidationError{Path: path, Reason: "empty scorm package"}
		}

		return nil
	}

	return minSize(path, minSCORMSize)
}
