package lms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/stretchr/testify/require"
)

const catalogPayload = `{
	"courses": [
		{
			"id": 1,
			"title": "Intro to Go",
			"fee": 49.90,
			"rating": 4.7,
			"admin": "alex",
			"numberOfModules": 3,
			"modules": [
				{"id": 1, "title": "Lesson 1", "type": "document", "downloadUrl": "https://cdn.example.com/l1.pdf"},
				{"id": 2, "title": "Lesson 2", "type": "youtube", "youtubeVideoId": "dQw4w9WgXcQ"},
				{"id": 3, "title": "Lesson 3", "type": "scorm", "downloadUrl": "https://cdn.example.com/l3", "zipPath": "https://cdn.example.com/l3.zip"}
			]
		}
	]
}`

func TestClient_FetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/catalog", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogPayload))
	}))
	defer server.Close()

	client := NewClient(context.Background(), server.URL, "test-token")

	entries, err := client.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	course := entries[0].Course
	require.Equal(t, catalog.DeterministicCourseID(1), course.ID)
	require.Equal(t, "Intro to Go", course.Title)
	require.Equal(t, 3, course.NumberOfModules)

	modules := entries[0].Modules
	require.Len(t, modules, 3)

	require.Equal(t, catalog.TypeDocument, modules[0].Type)
	require.Equal(t, catalog.DeterministicModuleID("https://cdn.example.com/l1.pdf"), modules[0].ID)
	require.Equal(t, "Intro to Go", modules[0].CourseTitle)

	require.Equal(t, catalog.TypeYouTube, modules[1].Type)
	require.Equal(t, "dQw4w9WgXcQ", modules[1].YouTubeVideoID)
	// URL-less modules fall back to a catalog-derived identity
	require.Equal(t, catalog.DeterministicModuleID("lms:1:2"), modules[1].ID)

	require.Equal(t, catalog.TypeSCORM, modules[2].Type)
	require.Equal(t, "https://cdn.example.com/l3.zip", modules[2].ZipPath)
}

func TestClient_FetchCatalog_SkipsMalformedModules(t *testing.T) {
	payload := `{
		"courses": [
			{
				"id": 1,
				"title": "Intro to Go",
				"modules": [
					{"id": 1, "title": "Good", "type": "document", "downloadUrl": "https://cdn.example.com/l1.pdf"},
					{"id": 2, "title": "Bad type", "type": "torrent"},
					{"id": 3, "title": "YouTube without id", "type": "youtube"}
				]
			}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client := NewClient(context.Background(), server.URL, "test-token")

	entries, err := client.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Modules, 1)
	require.Equal(t, "Good", entries[0].Modules[0].Title)
}

func TestClient_FetchCatalog_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(context.Background(), server.URL, "bad-token")

	_, err := client.FetchCatalog(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
