package strategy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
)

// YouTube handles youtube modules. Nothing is fetched over the network:
// a local text file holding the video id is materialized and copied into
// place, so players can resolve the reference later. Resume makes no sense
// for a locally generated stub and is vetoed.
type YouTube struct {
	// StubDir is where video id stub files are materialized before the
	// manager copies them to their target.
	StubDir string
}

func (s YouTube) Prepare(_ context.Context, item *catalog.Module, _ int64) (*downloader.Request, error) {
	if item.YouTubeVideoID == "" {
		return nil, fmt.Errorf("module %s has no youtube video id", item.ID)
	}

	if err := os.MkdirAll(s.StubDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stub directory: %w", err)
	}

	stubPath := filepath.Join(s.StubDir, item.ID.String()+".txt")
	if err := os.WriteFile(stubPath, []byte(item.YouTubeVideoID+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to write video id stub: %w", err)
	}

	return &downloader.Request{
		LocalSource: stubPath,
		AllowResume: false,
	}, nil
}

func (s YouTube) Process(_ context.Context, path string, item *catalog.Module) (string, error) {
	// the stub served its purpose once the copy landed
	_ = os.Remove(filepath.Join(s.StubDir, item.ID.String()+".txt"))

	return path, nil
}

// Validate requires a non-empty video id in the file.
func (YouTube) Validate(_ context.Context, path string, _ *catalog.Module) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &downloader.ValidationError{Path: path, Reason: "file missing", Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &downloader.ValidationError{Path: path, Reason: "empty video id file"}
	}

	return nil
}
