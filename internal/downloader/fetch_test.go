package downloader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetcher_HTTP_FullDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Range"))

		_, _ = w.Write([]byte("full content"))
	}))
	defer server.Close()

	f := &fetcher{client: http.DefaultClient}

	res, err := f.Fetch(context.Background(), &Request{URL: server.URL, AllowResume: true}, 0)
	require.NoError(t, err)

	defer res.body.Close()

	require.False(t, res.resumed)
	require.Equal(t, int64(len("full content")), res.total)

	body, err := io.ReadAll(res.body)
	require.NoError(t, err)
	require.Equal(t, "full content", string(body))
}

func TestFetcher_HTTP_Resume(t *testing.T) {
	const content = "0123456789"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bytes=4-", r.Header.Get("Range"))

		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(content[4:]))
	}))
	defer server.Close()

	f := &fetcher{client: http.DefaultClient}

	res, err := f.Fetch(context.Background(), &Request{URL: server.URL, AllowResume: true}, 4)
	require.NoError(t, err)

	defer res.body.Close()

	require.True(t, res.resumed)
	// total includes the already-downloaded prefix
	require.Equal(t, int64(len(content)), res.total)

	body, err := io.ReadAll(res.body)
	require.NoError(t, err)
	require.Equal(t, content[4:], string(body))
}

func TestFetcher_HTTP_ServerIgnoresRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// plain 200 means the stream restarts from zero
		_, _ = w.Write([]byte("full content"))
	}))
	defer server.Close()

	f := &fetcher{client: http.DefaultClient}

	res, err := f.Fetch(context.Background(), &Request{URL: server.URL, AllowResume: true}, 4)
	require.NoError(t, err)

	defer res.body.Close()

	require.False(t, res.resumed)
}

func TestFetcher_HTTP_NoRangeWhenResumeDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Range"))

		_, _ = w.Write([]byte("full content"))
	}))
	defer server.Close()

	f := &fetcher{client: http.DefaultClient}

	res, err := f.Fetch(context.Background(), &Request{URL: server.URL, AllowResume: false}, 4)
	require.NoError(t, err)

	defer res.body.Close()

	require.False(t, res.resumed)
}

func TestFetcher_HTTP_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := &fetcher{client: http.DefaultClient}

	_, err := f.Fetch(context.Background(), &Request{URL: server.URL}, 0)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
	require.False(t, fetchErr.Retryable())
}

func TestFetcher_HTTP_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/pdf", r.Header.Get("Accept"))

		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := &fetcher{client: http.DefaultClient}

	headers := http.Header{}
	headers.Set("Accept", "application/pdf")

	res, err := f.Fetch(context.Background(), &Request{URL: server.URL, Headers: headers}, 0)
	require.NoError(t, err)

	res.body.Close()
}

func TestFetcher_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.txt")
	require.NoError(t, os.WriteFile(path, []byte("local content"), 0644))

	f := &fetcher{client: http.DefaultClient}

	res, err := f.Fetch(context.Background(), &Request{LocalSource: path, AllowResume: true}, 0)
	require.NoError(t, err)

	defer res.body.Close()

	require.False(t, res.resumed)
	require.Equal(t, int64(len("local content")), res.total)

	body, err := io.ReadAll(res.body)
	require.NoError(t, err)
	require.Equal(t, "local content", string(body))
}

func TestFetcher_Local_Resume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.txt")
	require.NoError(t, os.WriteFile(path, []byte("local content"), 0644))

	f := &fetcher{client: http.DefaultClient}

	res, err := f.Fetch(context.Background(), &Request{LocalSource: path, AllowResume: true}, 6)
	require.NoError(t, err)

	defer res.body.Close()

	require.True(t, res.resumed)

	body, err := io.ReadAll(res.body)
	require.NoError(t, err)
	require.Equal(t, "content", string(body))
}

func TestFetcher_Local_Missing(t *testing.T) {
	f := &fetcher{client: http.DefaultClient}

	_, err := f.Fetch(context.Background(), &Request{LocalSource: "/nonexistent/stub.txt"}, 0)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, strings.Contains(fetchErr.URL, "stub.txt"))
}
