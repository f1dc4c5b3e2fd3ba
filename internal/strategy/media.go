package strategy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
)

// Media handles video and audio modules. Media servers routinely answer
// failed lookups with tiny HTML error pages, so anything under a kilobyte is
// rejected.
type Media struct{}

func (Media) Prepare(_ context.Context, item *catalog.Module, _ int64) (*downloader.Request, error) {
	if item.DownloadURL == "" {
		return nil, fmt.Errorf("module %s has no download URL", item.ID)
	}

	headers := http.Header{}
	headers.Set("Accept", item.Type.MIME())

	return &downloader.Request{
		URL:         item.DownloadURL,
		Headers:     headers,
		AllowResume: true,
	}, nil
}

func (Media) Process(_ context.Context, path string, _ *catalog.Module) (string, error) {
	return path, nil
}

func (Media) Validate(_ context.Context, path string, _ *catalog.Module) error {
	return minSize(path, minMediaSize)
}
