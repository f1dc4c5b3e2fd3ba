package strategy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader"
)

// Document handles document modules: a plain GET of the download URL.
type Document struct{}

func (Document) Prepare(_ context.Context, item *catalog.Module, _ int64) (*downloader.Request, error) {
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

func (Document) Process(_ context.Context, path string, _ *catalog.Module) (string, error) {
	return path, nil
}

// Validate accepts any readable file; empty documents are legal.
func (Document) Validate(_ context.Context, path string, _ *catalog.Module) error {
	return minSize(path, minDocumentSize)
}
