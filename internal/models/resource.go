package models

import "fmt"

// ResourceType classifies a discovered Resource.
type ResourceType string

const (
	ResourceImage       ResourceType = "image"
	ResourceVideo       ResourceType = "video"
	ResourceAudio       ResourceType = "audio"
	ResourceHLSPlaylist ResourceType = "hls_playlist"
	ResourceDocument    ResourceType = "document"
	ResourceText        ResourceType = "text"
	ResourceJSON        ResourceType = "json"
	ResourceRichText    ResourceType = "rich_text"
	ResourceUnknown     ResourceType = "unknown"
)

// ResourceStatus tracks a Resource through download.
type ResourceStatus string

const (
	ResourceStatusPending     ResourceStatus = "pending"
	ResourceStatusDownloading ResourceStatus = "downloading"
	ResourceStatusCompleted   ResourceStatus = "completed"
	ResourceStatusFailed      ResourceStatus = "failed"
	ResourceStatusCancelled   ResourceStatus = "cancelled"
)

// Resource is a single discovered item, either fetchable by URL or
// carrying its content inline (a quote, an inline script JSON blob).
type Resource struct {
	URL       string
	Type      ResourceType
	Title     string
	Extension string
	Referer   string
	Headers   map[string]string

	Size    int64
	Content string // inline text/JSON payload; empty for binary/URL resources

	Metadata map[string]any

	Status     ResourceStatus
	Progress   float64
	Error      string
	LocalPath  string
}

// Validate enforces the data model's invariants: URL may be empty only
// when Content is non-empty, and Type/Extension must agree when both
// are present.
func (r *Resource) Validate() error {
	if r.URL == "" && r.Content == "" {
		return fmt.Errorf("resource: empty url requires non-empty inline content")
	}
	if r.Type != "" && r.Extension != "" {
		want := ExtensionForType(r.Type)
		if want != "" && r.Extension != want && !sameFamily(r.Type, r.Extension) {
			return fmt.Errorf("resource: type %q inconsistent with extension %q", r.Type, r.Extension)
		}
	}
	return nil
}

// sameFamily tolerates the many real extensions a type can carry (e.g.
// image can be .jpg, .png, .gif, ...); only catches blatant mismatches
// like type=image extension=.mp4.
func sameFamily(t ResourceType, ext string) bool {
	switch t {
	case ResourceImage:
		return isOneOf(ext, ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg")
	case ResourceVideo:
		return isOneOf(ext, ".mp4", ".webm", ".mov", ".mkv", ".avi")
	case ResourceAudio:
		return isOneOf(ext, ".mp3", ".wav", ".ogg", ".m4a", ".flac")
	case ResourceHLSPlaylist:
		return ext == ".m3u8"
	case ResourceDocument:
		return isOneOf(ext, ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".zip", ".csv")
	case ResourceText, ResourceRichText:
		return isOneOf(ext, ".txt", ".md", ".html")
	case ResourceJSON:
		return ext == ".json"
	default:
		return true
	}
}

func isOneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// ExtensionForType returns the default extension used when a downloaded
// filename has none.
func ExtensionForType(t ResourceType) string {
	switch t {
	case ResourceImage:
		return ".jpg"
	case ResourceVideo, ResourceHLSPlaylist:
		return ".mp4"
	case ResourceAudio:
		return ".mp3"
	case ResourceText, ResourceJSON, ResourceRichText:
		return ".txt"
	default:
		return ".dat"
	}
}
