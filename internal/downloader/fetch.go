package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
)

// fetcher turns a prepared Request into a byte stream, honoring resume
// offsets for both remote and locally materialized sources.
type fetcher struct {
	client *http.Client
}

// fetchResult carries the stream plus what the source told us about it.
type fetchResult struct {
	body io.ReadCloser
	// total is the full size of the content including any resumed prefix.
	// Zero when the source did not report a size.
	total int64
	// resumed reports whether the stream starts at the requested offset.
	// When false the caller must truncate and write from scratch.
	resumed bool
}

func (f *fetcher) Fetch(ctx context.Context, req *Request, offset int64) (*fetchResult, error) {
	if req.LocalSource != "" {
		return f.fetchLocal(req, offset)
	}

	return f.fetchHTTP(ctx, req, offset)
}

func (f *fetcher) fetchLocal(req *Request, offset int64) (*fetchResult, error) {
	file, err := os.Open(req.LocalSource)
	if err != nil {
		return nil, &FetchError{URL: req.LocalSource, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()

		return nil, &FetchError{URL: req.LocalSource, Err: err}
	}

	resumed := false

	if offset > 0 && req.AllowResume && offset <= info.Size() {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()

			return nil, &FetchError{URL: req.LocalSource, Err: err}
		}

		resumed = true
	}

	return &fetchResult{body: file, total: info.Size(), resumed: resumed}, nil
}

func (f *fetcher) fetchHTTP(ctx context.Context, req *Request, offset int64) (*fetchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: req.URL, Err: err}
	}

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	wantRange := offset > 0 && req.AllowResume
	if wantRange {
		httpReq.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{URL: req.URL, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the range request; stream restarts from zero.
		return &fetchResult{body: resp.Body, total: resp.ContentLength, resumed: false}, nil
	case http.StatusPartialContent:
		if !wantRange {
			resp.Body.Close()

			return nil, &FetchError{URL: req.URL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected partial content")}
		}

		total := int64(0)
		if resp.ContentLength > 0 {
			total = offset + resp.ContentLength
		}

		return &fetchResult{body: resp.Body, total: total, resumed: true}, nil
	default:
		resp.Body.Close()

		return nil, &FetchError{URL: req.URL, StatusCode: resp.StatusCode}
	}
}
