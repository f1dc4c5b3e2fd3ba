package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// Entry is one course from the remote catalog together with its modules.
type Entry struct {
	Course  *catalog.Course
	Modules []*catalog.Module
}

// CatalogClient fetches the remote course catalog.
type CatalogClient interface {
	FetchCatalog(ctx context.Context) ([]*Entry, error)
}

// Client talks to the LMS catalog API with a static bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(ctx context.Context, baseURL, token string) *Client {
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: oauth2.NewClient(ctx, tokenSource),
	}
}

type courseResponse struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Fee             float64          `json:"fee"`
	Rating          float64          `json:"rating"`
	Admin           string           `json:"admin"`
	NumberOfModules int              `json:"numberOfModules"`
	Modules         []moduleResponse `json:"modules"`
}

type moduleResponse struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Type           string `json:"type"`
	DownloadURL    string `json:"downloadUrl"`
	YouTubeVideoID string `json:"youtubeVideoId"`
	ZipPath        string `json:"zipPath"`
}

type catalogResponse struct {
	Courses []courseResponse `json:"courses"`
}

// FetchCatalog retrieves every course and its modules from the LMS.
func (c *Client) FetchCatalog(ctx context.Context) ([]*Entry, error) {
	logger := logctx.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/catalog", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog request failed with status %d", resp.StatusCode)
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	entries := make([]*Entry, 0, len(payload.Courses))

	for _, cr := range payload.Courses {
		entry := &Entry{Course: cr.toModel()}

		for _, mr := range cr.Modules {
			module, err := mr.toModel(entry.Course)
			if err != nil {
				logger.WarnContext(ctx, "skipping malformed catalog module",
					"course_id", cr.ID, "module_id", mr.ID, "err", err)

				continue
			}

			entry.Modules = append(entry.Modules, module)
		}

		entries = append(entries, entry)
	}

	logger.DebugContext(ctx, "fetched catalog", "course_count", len(entries))

	return entries, nil
}

func (cr courseResponse) toModel() *catalog.Course {
	return &catalog.Course{
		ID:              catalog.DeterministicCourseID(cr.ID),
		CourseID:        cr.ID,
		Title:           cr.Title,
		Fee:             cr.Fee,
		Rating:          cr.Rating,
		Admin:           cr.Admin,
		NumberOfModules: cr.NumberOfModules,
	}
}

func (mr moduleResponse) toModel(course *catalog.Course) (*catalog.Module, error) {
	moduleType := catalog.ParseModuleType(mr.Type)
	if !moduleType.Valid() {
		return nil, fmt.Errorf("unknown module type %q", mr.Type)
	}

	if moduleType == catalog.TypeYouTube && mr.YouTubeVideoID == "" {
		return nil, fmt.Errorf("youtube module without video id")
	}

	// Identity derives from the download URL so the same remote resource
	// resolves to one record; URL-less modules fall back to catalog ids.
	var id string
	if mr.DownloadURL != "" {
		id = mr.DownloadURL
	} else {
		id = fmt.Sprintf("lms:%d:%d", course.CourseID, mr.ID)
	}

	return &catalog.Module{
		ID:             catalog.DeterministicModuleID(id),
		ModuleID:       mr.ID,
		CourseID:       course.ID,
		CourseTitle:    course.Title,
		Title:          mr.Title,
		Type:           moduleType,
		DownloadURL:    mr.DownloadURL,
		YouTubeVideoID: mr.YouTubeVideoID,
		ZipPath:        mr.ZipPath,
	}, nil
}
