package models

import "time"

// Priority orders CrawlTasks in the CrawlQueue; lower numeric value
// dequeues first.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

// CrawlTask is a single unit of crawl work. ID is a per-task uuid used
// to trace one URL's work through worker logs; it has no relation to a
// catalog Task's integer primary key.
type CrawlTask struct {
	ID       string
	URL      string
	Depth    int // 1-based; seed is 1
	Priority Priority
	Referer  string
}

// TaskStatus is the lifecycle of a catalog Task row.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskScanning  TaskStatus = "scanning"
	TaskScanned   TaskStatus = "scanned"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is a catalog row describing a crawl or download run.
type Task struct {
	ID              int64
	SourceURL       string
	Status          TaskStatus
	CreatedAt       time.Time
	FinishedAt      *time.Time
	TotalItems      int
	DownloadedItems int
	SavePath        string
}

// ResourceRecord is a catalog row tracking a single Resource's
// download outcome for a given Task.
type ResourceRecord struct {
	ID        int64
	TaskID    int64
	URL       string
	Type      ResourceType
	Filename  string
	LocalPath string
	FileSize  int64
	Status    ResourceStatus
	Error     string
	UpdatedAt time.Time
}

// ScrapedData is the per-run aggregation: category-partitioned
// resource lists with intra-category URL uniqueness.
type ScrapedData struct {
	SourceURL     string
	Images        []*Resource
	Videos        []*Resource
	Audios        []*Resource
	HLSPlaylists  []*Resource
	Documents     []*Resource
}

// Category names the five partitions of ScrapedData, used to drive
// selection in DownloadPool.
type Category string

const (
	CategoryImages       Category = "images"
	CategoryVideos       Category = "videos"
	CategoryAudios       Category = "audios"
	CategoryHLSPlaylists Category = "hls_playlists"
	CategoryDocuments    Category = "documents"
)

// AllCategories lists the deterministic union order DownloadPool walks
// when flattening a selection.
var AllCategories = []Category{
	CategoryImages, CategoryVideos, CategoryAudios, CategoryHLSPlaylists, CategoryDocuments,
}

// List returns the slice backing a given category.
func (s *ScrapedData) List(c Category) []*Resource {
	switch c {
	case CategoryImages:
		return s.Images
	case CategoryVideos:
		return s.Videos
	case CategoryAudios:
		return s.Audios
	case CategoryHLSPlaylists:
		return s.HLSPlaylists
	case CategoryDocuments:
		return s.Documents
	default:
		return nil
	}
}

// Counts summarizes the aggregation for logging/events.
func (s *ScrapedData) Counts() map[Category]int {
	out := make(map[Category]int, len(AllCategories))
	for _, c := range AllCategories {
		out[c] = len(s.List(c))
	}
	return out
}
