package strategy

import (
	"fmt"
	"os"

	"github.com/courseloom/course_downloader/internal/downloader"
)

// Minimum byte sizes accepted per content type. Documents may legitimately be
// empty; media and SCORM packages below these sizes are error pages or
// truncated transfers.
const (
	minDocumentSize = 0
	minMediaSize    = 1000
	minSCORMSize    = 100
)

func minSize(path string, minBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return &downloader.ValidationError{Path: path, Reason: "file missing", Err: err}
	}

	if info.Size() < minBytes {
		return &downloader.ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("file size %d below minimum %d bytes", info.Size(), minBytes),
		}
	}

	return nil
}
