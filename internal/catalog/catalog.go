package catalog

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModuleType is the closed set of downloadable content kinds.
type ModuleType string

const (
	TypeDocument ModuleType = "document"
	TypeVideo    ModuleType = "video"
	TypeAudio    ModuleType = "audio"
	TypeYouTube  ModuleType = "youtube"
	TypeSCORM    ModuleType = "scorm"
)

// Ext returns the file extension used for the module's downloaded file.
func (t ModuleType) Ext() string {
	switch t {
	case TypeDocument:
		return ".pdf"
	case TypeVideo:
		return ".mp4"
	case TypeAudio:
		return ".mp3"
	case TypeYouTube:
		return ".txt"
	case TypeSCORM:
		return ".zip"
	}

	return ""
}

// MIME returns the content type expected for the module's file.
func (t ModuleType) MIME() string {
	switch t {
	case TypeDocument:
		return "application/pdf"
	case TypeVideo:
		return "video/mp4"
	case TypeAudio:
		return "audio/mpeg"
	case TypeYouTube:
		return "text/plain"
	case TypeSCORM:
		return "application/zip"
	}

	return "application/octet-stream"
}

// NeedsSpecialHandling reports whether a generic HTTP GET of the download URL
// is not enough to materialize the module's content.
func (t ModuleType) NeedsSpecialHandling() bool {
	return t == TypeYouTube || t == TypeSCORM
}

func (t ModuleType) Valid() bool {
	switch t {
	case TypeDocument, TypeVideo, TypeAudio, TypeYouTube, TypeSCORM:
		return true
	}

	return false
}

// ParseModuleType normalizes a wire value into a ModuleType.
func ParseModuleType(s string) ModuleType {
	return ModuleType(strings.ToLower(strings.TrimSpace(s)))
}

// Course groups modules under descriptive metadata. NumberOfModules is
// advisory metadata from the catalog API and is never reconciled against the
// actual module count.
type Course struct {
	ID              uuid.UUID
	CourseID        int64
	Title           string
	Fee             float64
	Rating          float64
	Admin           string
	NumberOfModules int
	CreatedAt       time.Time
}

// Module is a single piece of downloadable course content. The download
// tracking fields (State, Progress, LocalPath, FileSize) mirror state owned by
// the download manager; they are written only through its persistence
// callback, never by the API layer.
type Module struct {
	ID          uuid.UUID
	ModuleID    int64
	CourseID    uuid.UUID
	CourseTitle string
	Title       string
	Type        ModuleType
	DownloadURL string

	// YouTubeVideoID is meaningful only when Type is youtube.
	YouTubeVideoID string
	// ZipPath is meaningful only when Type is scorm.
	ZipPath string

	State     string
	Progress  float64
	LocalPath string
	FileSize  int64
}

// DeterministicModuleID derives a stable version 5 UUID from a download URL so
// repeated requests for the same remote resource resolve to one record.
func DeterministicModuleID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url))
}

// DeterministicCourseID derives a stable version 5 UUID from a catalog course
// id so re-syncs upsert the same record.
func DeterministicCourseID(courseID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("course/"+strconv.FormatInt(courseID, 10)))
}
